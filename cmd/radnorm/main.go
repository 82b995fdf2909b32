// Command radnorm ingests radiology annotation exports, detects the parse
// case each file follows and normalises them into a searchable document
// store.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/radnorm/radnorm/internal/adapters/driven/caseconfig"
	"github.com/radnorm/radnorm/internal/adapters/driven/config/file"
	"github.com/radnorm/radnorm/internal/adapters/driven/storage/sqlite"
	"github.com/radnorm/radnorm/internal/adapters/driving/cli"
	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/services"
	"github.com/radnorm/radnorm/internal/logger"
	"github.com/radnorm/radnorm/internal/parsers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// closers collects resources opened during wiring, released after the
// command finishes.
var closers []func()

func run() error {
	cli.SetupLazy(wire)
	defer func() {
		for _, close := range closers {
			close()
		}
	}()
	return cli.Execute()
}

// wire builds the full service graph once the persistent flags are parsed.
func wire(dbDir, casesPath string) (*cli.Services, error) {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore(dbDir)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	loader := caseconfig.NewLoader()
	registry, err := buildRegistry(cfg, loader, casesPath)
	if err != nil {
		return nil, err
	}

	parserRegistry := parsers.NewDefaultRegistry()
	progress := services.NewProgressChannel()
	closers = append(closers, progress.Close)

	extractor := services.NewKeywordExtractor(store,
		services.WithMaxTerms(cfg.GetInt("keywords.max_terms")))

	orchestrator := services.NewOrchestrator(
		parserRegistry,
		registry,
		services.NewMapper(),
		extractor,
		store,
		progress,
		services.WithWorkers(cfg.GetInt("ingest.workers")),
		services.WithStoreTimeout(storeTimeout(cfg)),
	)

	documents := services.NewDocumentService(store)

	return &cli.Services{
		Ingestor:  orchestrator,
		Documents: documents,
		Export:    documents,
		Cases:     services.NewCaseService(registry, parserRegistry),
		Config:    cfg,
		Jobs:      store,
		Loader:    loader,
	}, nil
}

// buildRegistry seeds the case registry with the built-in definitions, any
// packs under the config directory's cases.d, and the --cases path.
func buildRegistry(cfg *file.ConfigStore, loader *caseconfig.Loader, casesPath string) (*services.CaseRegistry, error) {
	registry := services.NewCaseRegistry(
		services.WithThreshold(cfg.GetFloat("detect.threshold")))

	defaults, err := loader.Defaults()
	if err != nil {
		return nil, fmt.Errorf("loading built-in cases: %w", err)
	}
	if err := registerAll(registry, defaults); err != nil {
		return nil, err
	}

	packDir := filepath.Join(filepath.Dir(cfg.Path()), "cases.d")
	if _, err := os.Stat(packDir); err == nil {
		packs, err := loader.Load(packDir)
		if err != nil {
			return nil, fmt.Errorf("loading case packs from %s: %w", packDir, err)
		}
		if err := registerAll(registry, packs); err != nil {
			return nil, err
		}
	}

	if casesPath != "" {
		packs, err := loader.Load(casesPath)
		if err != nil {
			return nil, fmt.Errorf("loading case packs from %s: %w", casesPath, err)
		}
		if err := registerAll(registry, packs); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func registerAll(registry *services.CaseRegistry, cases []domain.ParseCase) error {
	for _, c := range cases {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("registering case %s: %w", c.Name, err)
		}
		logger.Debug("Registered parse case %s", c.Name)
	}
	return nil
}

// storeTimeout reads the per-item persistence timeout from configuration.
func storeTimeout(cfg *file.ConfigStore) time.Duration {
	raw := cfg.GetString("ingest.store_timeout")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("Invalid ingest.store_timeout %q, using default", raw)
		return 0
	}
	return d
}
