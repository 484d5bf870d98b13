package ingest

import (
	"context"

	"github.com/arkohut/screenmemory/internal/catalog"
)

// EntityReady is published whenever the per-file routine creates or
// updates an entity, so plugins can compute derived artifacts. This is
// an in-process adapter over the Model Gateway rather than an external
// message bus: plugins run in the same process as the pipeline.
type EntityReady struct {
	EntityID  int64
	Filepath  string
	IsNew     bool
}

// Plugin computes a derived artifact for an entity and returns the
// metadata patch to upsert: each plugin computes its artifact by
// calling the Model Gateway, then issues a metadata patch tagged with
// the catalog data type its value should be stored and queried as.
type Plugin interface {
	Name() string
	Handle(ctx context.Context, event EntityReady) (key, value string, dataType catalog.MetadataDataType, err error)
}

// Dispatcher hands EntityReady events to registered plugins in process,
// one plugin after another on the caller's goroutine — no external
// broker needed for a single-process deployment.
type Dispatcher struct {
	plugins []Plugin
}

// NewDispatcher builds a Dispatcher over the given plugins.
func NewDispatcher(plugins ...Plugin) *Dispatcher {
	return &Dispatcher{plugins: plugins}
}

// Dispatch runs every plugin against event, calling apply with each
// resulting metadata patch. Plugin errors are reported via onErr rather
// than aborting the remaining plugins.
func (d *Dispatcher) Dispatch(ctx context.Context, event EntityReady, apply func(key, value string, dataType catalog.MetadataDataType) error, onErr func(pluginName string, err error)) {
	for _, p := range d.plugins {
		key, value, dataType, err := p.Handle(ctx, event)
		if err != nil {
			if onErr != nil {
				onErr(p.Name(), err)
			}
			continue
		}
		if key == "" {
			continue
		}
		if err := apply(key, value, dataType); err != nil && onErr != nil {
			onErr(p.Name(), err)
		}
	}
}
