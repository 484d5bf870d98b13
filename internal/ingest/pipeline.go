package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pipeline is the Ingestion Pipeline (component D): it reconciles files on
// disk with the Catalog Store and dispatches entity-ready events to
// plugins.
type Pipeline struct {
	store      *catalog.Store
	dispatcher *Dispatcher
	notifier   Notifier
	sem        *semaphore.Weighted
	log        *logging.Logger
}

// New builds a Pipeline bounded by maxConcurrent simultaneous per-file
// routines, enforced via a semaphore.
func New(store *catalog.Store, dispatcher *Dispatcher, maxConcurrent int, log *logging.Logger) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Pipeline{
		store:      store,
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		log:        log,
	}
}

// SetNotifier attaches an external event notifier (e.g. NATS), fired
// alongside in-process plugin dispatch. Nil by default.
func (p *Pipeline) SetNotifier(n Notifier) { p.notifier = n }

const perFileRetries = 3

// processFile runs the per-file routine shared by continuous watch and
// ad hoc single-file calls, looking up the file's existing entity itself.
// The batch scanner instead calls processKnownFile with a pre-fetched
// lookup to avoid one query per file.
func (p *Pipeline) processFile(ctx context.Context, libraryID, folderID int64, path string) error {
	return p.processKnownFile(ctx, libraryID, folderID, path, nil, false)
}

// processKnownFile is processFile for a caller that already resolved path's
// existing entity in a batch lookup: existing is nil when looked is true
// and no row was found. When looked is false, existing is ignored and
// processFileOnce performs its own single-row lookup.
func (p *Pipeline) processKnownFile(ctx context.Context, libraryID, folderID int64, path string, existing *catalog.Entity, looked bool) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= perFileRetries; attempt++ {
		lastErr = p.processFileOnce(ctx, libraryID, folderID, path, existing, looked)
		if lastErr == nil {
			return nil
		}
		if attempt < perFileRetries {
			p.log.Warn(ctx, "ingest: per-file routine failed, retrying",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
		}
	}
	return fmt.Errorf("ingest: process %s: %w", path, lastErr)
}

func (p *Pipeline) processFileOnce(ctx context.Context, libraryID, folderID int64, path string, existing *catalog.Entity, looked bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if !looked {
		e, lookupErr := p.store.GetEntityByFilepath(ctx, path)
		if lookupErr == nil {
			existing = e
		} else {
			existing = nil
		}
	}
	isNew := existing == nil

	if !isNew && !fileChanged(existing, info) {
		// Nothing on disk changed since the last scan: no re-upsert,
		// no FTS/plugin re-dispatch, no Touch. A scan over an
		// untouched folder must be a no-op.
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fileType, isImage := sniffFileType(data)

	entity := &catalog.Entity{
		LibraryID:          libraryID,
		FolderID:           folderID,
		Filepath:           path,
		Filename:           filepath.Base(path),
		Size:               info.Size(),
		FileType:           fileType,
		FileCreatedAt:      info.ModTime(),
		FileLastModifiedAt: info.ModTime(),
	}
	if isImage {
		entity.FileTypeGroup = catalog.FileTypeImage
	} else {
		entity.FileTypeGroup = catalog.FileTypeOther
	}

	var extra map[string]string
	var isThumbnail bool
	if isImage {
		if meta, mErr := MetadataFromContainer(path); mErr == nil {
			isThumbnail = meta.HasIsThumbnail()
			extra = meta.Extra
		}
	}

	if isThumbnail && !isNew {
		// Cosmetic rewrite: keep the existing entity's stat fields,
		// only merge whatever new metadata arrived.
		entity.FileCreatedAt = existing.FileCreatedAt
		entity.Size = existing.Size
	}

	entityID, err := p.store.UpsertEntity(ctx, entity)
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	if len(extra) > 0 {
		entries := make([]catalog.EntityMetadata, 0, len(extra))
		for k, v := range extra {
			entries = append(entries, catalog.EntityMetadata{
				EntityID: entityID, Key: k, Value: v,
				Source: string(catalog.SourceSystemGenerated), DataType: catalog.DataTypeText,
			})
		}
		if err := p.store.UpsertMetadata(ctx, entityID, entries); err != nil {
			return fmt.Errorf("merge metadata: %w", err)
		}
	}

	if err := p.reindexText(ctx, entityID); err != nil {
		return err
	}
	if err := p.store.Touch(ctx, entityID, time.Now()); err != nil {
		return err
	}

	event := EntityReady{EntityID: entityID, Filepath: path, IsNew: isNew}
	if p.dispatcher != nil {
		p.dispatcher.Dispatch(ctx, event,
			func(key, value string, dataType catalog.MetadataDataType) error {
				if dataType == "" {
					dataType = catalog.DataTypeText
				}
				return p.store.UpsertMetadata(ctx, entityID, []catalog.EntityMetadata{
					{EntityID: entityID, Key: key, Value: value, Source: string(catalog.SourcePluginGenerated), DataType: dataType},
				})
			},
			func(pluginName string, err error) {
				p.log.Warn(ctx, "ingest: plugin failed", zap.String("plugin", pluginName), zap.Error(err))
			})
	}
	if p.notifier != nil {
		p.notifier.Publish(ctx, event)
	}

	return nil
}

// fileChanged reports whether path's freshly-stat'd mtime or size differs
// from the catalog's record of existing, at the one-second resolution
// UpsertEntity stores timestamps at.
func fileChanged(existing *catalog.Entity, info os.FileInfo) bool {
	return existing.FileLastModifiedAt.Unix() != info.ModTime().Unix() || existing.Size != info.Size()
}

// reindexText rewrites the FTS projection for an entity from its
// current metadata, keeping FTS in sync with metadata_text.
func (p *Pipeline) reindexText(ctx context.Context, entityID int64) error {
	entries, err := p.store.ListMetadata(ctx, entityID)
	if err != nil {
		return err
	}
	return p.store.IndexFTS(ctx, entityID, catalog.MetadataText(entries))
}
