package main

import (
	"context"
	"fmt"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/config"
	"github.com/arkohut/screenmemory/internal/gateway"
	"github.com/arkohut/screenmemory/internal/ingest"
	"github.com/arkohut/screenmemory/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app bundles the dependencies every subcommand needs, built once from the
// loaded config.
type app struct {
	cfg   *config.Config
	log   *logging.Logger
	store *catalog.Store
	gw    *gateway.Gateway

	natsNotifier *ingest.NATSNotifier
}

// newApp loads configuration, opens the catalog and wires the Model
// Gateway. Callers must call close() when done.
func newApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		if lvl, lerr := zapcore.ParseLevel(cfg.Logging.Level); lerr == nil {
			logCfg.Level = lvl
		}
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	log, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := catalog.Open(cfg.DatabasePath, cfg.Embedding.NumDim, log.Underlying())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	return &app{cfg: cfg, log: log, store: store, gw: gw}, nil
}

func (a *app) close() {
	if a.natsNotifier != nil {
		a.natsNotifier.Close()
	}
	if a.gw != nil {
		_ = a.gw.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.log.Sync()
}

// pipeline builds an Ingestion Pipeline wired to the built-in OCR and
// caption plugins, bounded by
// cfg.BatchSize concurrent per-file routines.
func (a *app) pipeline() *ingest.Pipeline {
	dispatcher := ingest.NewDispatcher(
		ingest.NewOCRPlugin(a.gw.OCR),
		ingest.NewCaptionPlugin(a.gw.Captioner),
	)
	p := ingest.New(a.store, dispatcher, a.cfg.BatchSize, a.log)
	if a.cfg.NATS.URL != "" && a.natsNotifier == nil {
		notifier, err := ingest.DialNATS(a.cfg.NATS.URL, a.cfg.NATS.Subject, a.log)
		if err != nil {
			a.log.Warn(context.Background(), "nats notifier disabled", zap.Error(err))
		} else {
			a.natsNotifier = notifier
		}
	}
	if a.natsNotifier != nil {
		p.SetNotifier(a.natsNotifier)
	}
	return p
}

// resolveLibraryFolder finds (or, if allowCreate, creates) the library and
// folder backing path, returning their ids.
func (a *app) resolveLibraryFolder(libraryName, path string, allowCreate bool) (libraryID, folderID int64, err error) {
	libs, err := a.store.ListLibraries(context.Background())
	if err != nil {
		return 0, 0, err
	}
	var lib *catalog.Library
	for i := range libs {
		if libs[i].Name == libraryName {
			lib = &libs[i]
			break
		}
	}
	if lib == nil {
		if !allowCreate {
			return 0, 0, fmt.Errorf("library %q not found", libraryName)
		}
		created, cerr := a.store.CreateLibrary(context.Background(), libraryName)
		if cerr != nil {
			return 0, 0, cerr
		}
		lib = created
	}

	for _, f := range lib.Folders {
		if f.Path == path {
			return lib.ID, f.ID, nil
		}
	}
	if !allowCreate {
		return 0, 0, fmt.Errorf("folder %q not registered under library %q", path, libraryName)
	}
	folder, ferr := a.store.AddFolder(context.Background(), lib.ID, path, "screenshots")
	if ferr != nil {
		return 0, 0, ferr
	}
	return lib.ID, folder.ID, nil
}
