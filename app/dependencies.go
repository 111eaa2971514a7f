// Package app wires application dependencies. One Dependencies value is
// constructed at process start and handed to every caller; there is no
// ambient global state.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/config"
	"github.com/modelrelay/modelrelay/services/credentials"
	"github.com/modelrelay/modelrelay/services/dispatch"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/session"
	"github.com/modelrelay/modelrelay/services/usage"
)

// Dependencies is the central dependency-injection point.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Registry    *providers.Registry
	Credentials *credentials.FileStore
	Ledger      *usage.Ledger
	Sessions    *session.Store
	Dispatcher  *dispatch.Client
}

// NewDependencies builds and wires all services.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	entries := providers.DefaultCatalog()
	if cfg.Providers.CatalogPath != "" {
		loaded, err := providers.LoadCatalogFile(cfg.Providers.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider catalog: %w", err)
		}
		entries = loaded
		logger.Info("provider catalog overridden",
			zap.String("path", cfg.Providers.CatalogPath))
	}

	registry, err := providers.NewRegistry(entries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider registry: %w", err)
	}

	creds := credentials.NewFileStore(cfg.Credentials.Path)
	ledger := usage.NewLedger(cfg.Ledger.Path, cfg.Ledger.Debounce, logger)
	sessions := session.NewStore(cfg.Sessions.Path, cfg.Sessions.IdleTimeout, logger)

	dispatcher := dispatch.NewClient(registry, creds, ledger, sessions, dispatch.Config{
		RemoteTimeout:    cfg.Dispatch.RemoteTimeout,
		LocalHTTPTimeout: cfg.Dispatch.LocalHTTPTimeout,
		ProcessTimeout:   cfg.Dispatch.ProcessTimeout,
		MaxRetries:       cfg.Dispatch.MaxRetries,
		BaseDelay:        cfg.Dispatch.BaseDelay,
	}, logger)

	logger.Info("all dependencies initialized")
	return &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Credentials: creds,
		Ledger:      ledger,
		Sessions:    sessions,
		Dispatcher:  dispatcher,
	}, nil
}

// Close flushes durable state. Called on shutdown.
func (d *Dependencies) Close() {
	d.Ledger.Close()
	d.Sessions.Flush()
	d.Logger.Info("dependencies closed")
}
