package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/gateway"
	"go.uber.org/zap"
)

// reindexBatchSize is the number of entities re-embedded per batch.
const reindexBatchSize = 4

// Reindex bumps last_scan_at on every entity in the catalog, marking them
// all eligible for the next search-index pass.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	const pageSize = 200
	now := time.Now()
	count := 0
	for offset := 0; ; offset += pageSize {
		entities, err := p.store.ListEntities(ctx, catalog.Filters{}, pageSize, offset)
		if err != nil {
			return count, fmt.Errorf("ingest: reindex list: %w", err)
		}
		if len(entities) == 0 {
			break
		}
		for _, e := range entities {
			if err := p.store.Touch(ctx, e.ID, now); err != nil {
				return count, err
			}
			count++
		}
		if len(entities) < pageSize {
			break
		}
	}
	return count, nil
}

// SearchIndex walks entities whose (fts_indexed_at, vec_indexed_at)
// precede last_scan_at (or force is set), re-embeds their metadata_text
// and rewrites both indexes, in batches of reindexBatchSize.
func (p *Pipeline) SearchIndex(ctx context.Context, embedder gateway.Embedder, force bool) (int, error) {
	const pageSize = 200
	reembedded := 0

	for offset := 0; ; offset += pageSize {
		entities, err := p.store.ListEntities(ctx, catalog.Filters{}, pageSize, offset)
		if err != nil {
			return reembedded, fmt.Errorf("ingest: search-index list: %w", err)
		}
		if len(entities) == 0 {
			break
		}

		var batch []catalog.Entity
		for _, e := range entities {
			if force || needsReindex(e) {
				batch = append(batch, e)
			}
			if len(batch) == reindexBatchSize {
				n, err := p.reembedBatch(ctx, embedder, batch)
				reembedded += n
				if err != nil {
					return reembedded, err
				}
				batch = batch[:0]
			}
		}
		if len(batch) > 0 {
			n, err := p.reembedBatch(ctx, embedder, batch)
			reembedded += n
			if err != nil {
				return reembedded, err
			}
		}

		if len(entities) < pageSize {
			break
		}
	}
	return reembedded, nil
}

// needsReindex reports whether e's indexes are stale relative to its most
// recent scan: either index has never been written, or was written
// before last_scan_at.
func needsReindex(e catalog.Entity) bool {
	if e.LastScanAt == nil {
		return false
	}
	if e.FTSIndexedAt == nil || e.VecIndexedAt == nil {
		return true
	}
	return e.FTSIndexedAt.Before(*e.LastScanAt) || e.VecIndexedAt.Before(*e.LastScanAt)
}

func (p *Pipeline) reembedBatch(ctx context.Context, embedder gateway.Embedder, batch []catalog.Entity) (int, error) {
	n := 0
	for _, e := range batch {
		entries, err := p.store.ListMetadata(ctx, e.ID)
		if err != nil {
			return n, err
		}
		text := catalog.MetadataText(entries)
		if err := p.store.IndexFTS(ctx, e.ID, text); err != nil {
			return n, err
		}
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			p.log.Warn(ctx, "ingest: embed failed during search-index", zap.Int64("entity_id", e.ID), zap.Error(err))
			continue
		}
		if err := p.store.IndexVec(ctx, e.ID, vec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// OrphanCleanup deletes index rows whose entity_id no longer exists in
// the entities table. The Catalog Store's DeleteEntity
// already keeps rows consistent on the delete path, so under normal
// operation this is a defensive sweep after external schema edits.
func (p *Pipeline) OrphanCleanup(ctx context.Context) error {
	db := p.store.DB()
	if _, err := db.ExecContext(ctx, `DELETE FROM entities_vec WHERE entity_id NOT IN (SELECT id FROM entities)`); err != nil {
		return fmt.Errorf("ingest: orphan vec cleanup: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM entities_fts WHERE rowid NOT IN (SELECT id FROM entities)`); err != nil {
		return fmt.Errorf("ingest: orphan fts cleanup: %w", err)
	}
	return nil
}
