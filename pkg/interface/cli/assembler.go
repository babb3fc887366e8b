package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/WangYihang/url-dedup/pkg/application"
	"github.com/WangYihang/url-dedup/pkg/config"
	"github.com/WangYihang/url-dedup/pkg/dedup"
	"github.com/WangYihang/url-dedup/pkg/domain/repository"
	"github.com/WangYihang/url-dedup/pkg/infrastructure/storage"
	"github.com/WangYihang/url-dedup/pkg/normalize"
	"github.com/WangYihang/url-dedup/pkg/validate"
	"github.com/prometheus/client_golang/prometheus"
)

// Assembler assembles all components for the application
type Assembler struct {
	config *Config
	logger *slog.Logger
}

// App holds the assembled components. Close releases them.
type App struct {
	UseCase      *application.DedupUseCase
	Deduplicator *dedup.Deduplicator
	Persistence  *dedup.PersistenceManager // nil without --state-file
	Registry     *prometheus.Registry

	resultWriter repository.ResultWriter
	store        repository.URLStore
}

// NewAssembler creates a new assembler
func NewAssembler(config *Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{config: config, logger: logger}
}

// Assemble builds the use case with all dependencies
func (a *Assembler) Assemble() (_ *App, err error) {
	engine, err := config.Load(a.config.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := dedup.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Create domain services
	normalizer := normalize.New(a.logger)
	validator, err := validate.New(engine.Validation, a.logger)
	if err != nil {
		return nil, err
	}
	deduplicator, err := dedup.New(engine.Dedup,
		dedup.WithLogger(a.logger),
		dedup.WithMetrics(metrics),
		dedup.WithNormalizer(normalizer),
	)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(dedup.NewStatsCollector(deduplicator)); err != nil {
		return nil, fmt.Errorf("failed to register stats collector: %w", err)
	}

	app := &App{
		Deduplicator: deduplicator,
		Registry:     registry,
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// Restore previous state if exists
	if a.config.StateFile != "" {
		if err := deduplicator.LoadFromFile(a.config.StateFile); err != nil {
			return nil, fmt.Errorf("failed to load state file: %w", err)
		}
		app.Persistence = dedup.NewPersistenceManager(deduplicator, a.config.StateFile, a.config.SaveInterval)
	}

	// Create repositories
	taskQueue := storage.NewTaskQueue(a.config.QueueSize)
	resultQueue := storage.NewResultQueue(a.config.QueueSize)

	app.resultWriter, err = storage.NewResultWriter(a.config.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create result writer: %w", err)
	}

	if a.config.DBFile != "" {
		store, err := storage.OpenSQLiteStore(a.config.DBFile)
		if err != nil {
			return nil, err
		}
		app.store = store
	}

	app.UseCase = application.NewDedupUseCase(
		application.Config{
			NumWorkers: a.config.NumWorkers,
			BatchSize:  a.config.BatchSize,
		},
		validator,
		normalizer,
		deduplicator,
		taskQueue,
		resultQueue,
		app.resultWriter,
		app.store,
		a.logger,
	)

	return app, nil
}

// Close closes the result writer and the store
func (app *App) Close() error {
	var errs []error
	if app.resultWriter != nil {
		errs = append(errs, app.resultWriter.Close())
	}
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	return errors.Join(errs...)
}
