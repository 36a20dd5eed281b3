package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ShayCichocki/brigade/internal/config"
	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
)

// errNoPersistentStore is returned by commands that read jobs written by
// another process.
var errNoPersistentStore = errors.New("the memory store keeps no jobs between runs; set store.driver to sqlite")

// loadConfig loads --config when given, otherwise the layered defaults.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openedStore is a backend plus the optional change notifier that goes
// with it.
type openedStore struct {
	store.Backend
	notifier store.ChangeNotifier
	closers  []io.Closer
}

// Close releases the watcher and the backend.
func (o *openedStore) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openStore opens the configured backend under dir. With watch set and a
// SQLite backend, a file watcher reports changes made by any process.
func openStore(cfg *config.Config, dir string, watch bool) (*openedStore, error) {
	if cfg.Store.Driver == config.DriverMemory {
		mem := store.NewMemory()
		return &openedStore{Backend: mem, notifier: mem, closers: []io.Closer{mem}}, nil
	}

	path := cfg.StorePath(dir)
	db, err := store.OpenSQLite(path, cfg.Store.Driver)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	opened := &openedStore{Backend: db, closers: []io.Closer{db}}
	if watch {
		fw, err := store.WatchFile(path)
		if err != nil {
			log.Printf("warning: store change notifications unavailable, polling instead: %v", err)
		} else {
			opened.notifier = fw
			opened.closers = append(opened.closers, fw)
		}
	}
	return opened, nil
}

// openExistingStore opens a persistent store for read-only commands.
func openExistingStore(cfg *config.Config, dir string) (*openedStore, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return nil, errNoPersistentStore
	}
	path := cfg.StorePath(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no store at %s; run 'brigade run --plan <file>' first", path)
	}
	return openStore(cfg, dir, false)
}

// setupLogger opens the dispatch debug log and installs it package-wide.
func setupLogger(cfg *config.Config, dir string) *orchestrator.DebugLogger {
	path := cfg.Log.Path
	if path == "" {
		path = orchestrator.DefaultLogPath(dir)
	}
	logger, err := orchestrator.NewDebugLogger(path)
	if err != nil {
		log.Printf("warning: debug log disabled: %v", err)
		logger = orchestrator.NopLogger()
	}
	orchestrator.SetLogger(logger)
	return logger
}
