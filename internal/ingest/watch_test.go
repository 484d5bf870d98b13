package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, p *Pipeline, libID, folderID int64, root string) *Watcher {
	t.Helper()
	w, err := NewWatcher(p, libID, folderID, root, 1.0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.fsw.Close() })
	return w
}

func TestWatcher_OnEvent_TracksEligiblePathsOnly(t *testing.T) {
	p, _, libID, folderID := newTestPipeline(t, nil)
	root := t.TempDir()
	w := newTestWatcher(t, p, libID, folderID, root)

	w.onEvent(fsnotify.Event{Name: root + "/shot.png", Op: fsnotify.Write})
	w.onEvent(fsnotify.Event{Name: root + "/notes.txt", Op: fsnotify.Write})

	require.Len(t, w.pending, 1)
	_, ok := w.pending[root+"/shot.png"]
	require.True(t, ok)
}

func TestWatcher_OnEvent_RemoveDropsPending(t *testing.T) {
	p, _, libID, folderID := newTestPipeline(t, nil)
	root := t.TempDir()
	w := newTestWatcher(t, p, libID, folderID, root)

	path := root + "/shot.png"
	w.onEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	require.Len(t, w.pending, 1)

	w.onEvent(fsnotify.Event{Name: path, Op: fsnotify.Remove})
	require.Empty(t, w.pending)
}

func TestWatcher_Sweep_ProcessesOnlyQuiescentEntries(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	root := t.TempDir()
	w := newTestWatcher(t, p, libID, folderID, root)

	path := writeTestFile(t, root, "shot.png", pngFixture())
	w.pending[path] = pendingEntry{lastEventAt: time.Now().Add(-3 * time.Second)}

	freshPath := writeTestFile(t, root, "fresh.png", pngFixture())
	w.pending[freshPath] = pendingEntry{lastEventAt: time.Now()}

	w.sweep(context.Background())

	require.NotContains(t, w.pending, path)
	require.Contains(t, w.pending, freshPath)

	_, err := store.GetEntityByFilepath(context.Background(), path)
	require.NoError(t, err)
}

func TestWatcher_Sweep_ProcessesEveryFileWhenSparsityIsOne(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	root := t.TempDir()
	w := newTestWatcher(t, p, libID, folderID, root)
	w.sparsity = newSparsityController(1.0, nil)
	w.sparsity.arrivals = nil
	w.sparsity.syncDurations = nil

	var paths []string
	for i := 0; i < 3; i++ {
		path := writeTestFile(t, root, string(rune('a'+i))+".png", pngFixture())
		paths = append(paths, path)
		w.pending[path] = pendingEntry{lastEventAt: time.Now().Add(-3 * time.Second)}
	}

	w.sweep(context.Background())

	count := 0
	for _, path := range paths {
		if _, err := store.GetEntityByFilepath(context.Background(), path); err == nil {
			count++
		}
	}
	require.Equal(t, 3, count)
}
