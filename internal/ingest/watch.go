package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// quiescenceWindow is the quiescence timer coalescing rapid writes into
// one sync.
const quiescenceWindow = 2 * time.Second

// sweepInterval is how often pending files are swept.
const sweepInterval = 5 * time.Second

// pendingEntry tracks one path awaiting its quiescence window to elapse.
type pendingEntry struct {
	lastEventAt time.Time
	size        int64
}

// Watcher continuously ingests a folder as fsnotify reports changes,
// applying adaptive sparsity under load.
type Watcher struct {
	pipeline  *Pipeline
	libraryID int64
	folderID  int64
	root      string

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]pendingEntry

	sparsity *sparsityController
	counter  int
	log      interface {
		Error(ctx context.Context, msg string, fields ...zap.Field)
		Warn(ctx context.Context, msg string, fields ...zap.Field)
	}
}

// NewWatcher builds a Watcher over root, rooted at folderID within
// libraryID.
func NewWatcher(p *Pipeline, libraryID, folderID int64, root string, sparsityFactor float64, onBattery BatteryStatusFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		pipeline:  p,
		libraryID: libraryID,
		folderID:  folderID,
		root:      root,
		fsw:       fsw,
		pending:   make(map[string]pendingEntry),
		sparsity:  newSparsityController(sparsityFactor, onBattery),
		log:       p.log,
	}, nil
}

// Run blocks, consuming fsnotify events and sweeping the pending map
// until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.onEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error(ctx, "ingest: watcher error", zap.Error(err))
		case <-sweep.C:
			start := time.Now()
			w.sweep(ctx)
			w.sparsity.RecordSync(time.Since(start))
		}
	}
}

func (w *Watcher) onEvent(event fsnotify.Event) {
	if !eligiblePath(event.Name) {
		return
	}
	now := time.Now()
	w.sparsity.RecordArrival(now)

	w.mu.Lock()
	defer w.mu.Unlock()
	if event.Op&fsnotify.Remove == fsnotify.Remove {
		delete(w.pending, event.Name)
		return
	}
	w.pending[event.Name] = pendingEntry{lastEventAt: now}
}

// sweep processes pending entries older than the quiescence window,
// applying adaptive sparsity: only every S-th eligible file is
// processed, the rest are dropped from pending without further retries.
func (w *Watcher) sweep(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var eligible []string
	for path, entry := range w.pending {
		if now.Sub(entry.lastEventAt) >= quiescenceWindow {
			eligible = append(eligible, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(eligible) == 0 {
		return
	}

	s := w.sparsity.S()
	for _, path := range eligible {
		w.counter++
		if w.counter%s != 0 {
			continue
		}
		if err := w.pipeline.processFile(ctx, w.libraryID, w.folderID, path); err != nil {
			w.log.Warn(ctx, "ingest: watch-triggered process failed", zap.String("path", path), zap.Error(err))
		}
	}
}
