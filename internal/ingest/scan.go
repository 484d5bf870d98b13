package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// scanChunkSize is the number of paths batch-looked-up against existing
// entities per chunk.
const scanChunkSize = 200

// Scan walks root, ingesting every eligible file and then deleting
// catalog entities whose file disappeared.
func (p *Pipeline) Scan(ctx context.Context, libraryID, folderID int64, root string) error {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if eligiblePath(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest: walk %s: %w", root, err)
	}

	for i := 0; i < len(paths); i += scanChunkSize {
		end := i + scanChunkSize
		if end > len(paths) {
			end = len(paths)
		}
		if err := p.processChunk(ctx, libraryID, folderID, paths[i:end]); err != nil {
			return err
		}
	}

	deleted, err := p.store.DeleteByFilepathNotIn(ctx, folderID, paths)
	if err != nil {
		return fmt.Errorf("ingest: prune stale entities: %w", err)
	}
	if deleted > 0 {
		p.log.Info(ctx, "ingest: pruned stale entities", zap.Int64("count", deleted), zap.String("root", root))
	}
	return nil
}

// processChunk runs the per-file routine over a chunk of paths
// concurrently, bounded by the pipeline's semaphore. The chunk's existing
// entities are batch-looked-up once up front rather than one
// GetEntityByFilepath call per file.
func (p *Pipeline) processChunk(ctx context.Context, libraryID, folderID int64, paths []string) error {
	existing, err := p.store.GetEntitiesByFilepaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("ingest: batch lookup existing entities: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			errs[i] = p.processKnownFile(ctx, libraryID, folderID, path, existing[path], true)
		}(i, path)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			p.log.Error(ctx, "ingest: per-file routine failed", zap.String("path", paths[i]), zap.Error(err))
		}
	}
	return nil
}
