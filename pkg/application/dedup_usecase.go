package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/domain/repository"
	"github.com/WangYihang/url-dedup/pkg/domain/service"
	"github.com/WangYihang/url-dedup/pkg/input"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	metricsInterval = 500 * time.Millisecond
	storeBatchSize  = 256
)

// DedupUseCase streams URLs through validation and deduplication and writes
// one record per input URL
type DedupUseCase struct {
	config Config
	runID  string
	logger *slog.Logger

	// Services
	validator    service.URLValidator
	normalizer   service.URLNormalizer
	deduplicator service.URLDeduplicator

	// Repositories
	taskQueue    repository.TaskQueue
	resultQueue  repository.ResultQueue
	resultWriter repository.ResultWriter
	store        repository.URLStore

	// State
	workers          []*Worker
	startTime        time.Time
	tasksEnqueued    atomic.Int64
	tasksProcessed   atomic.Int64
	urlsRead         atomic.Int64
	urlsRejected     atomic.Int64
	urlsWritten      atomic.Int64
	storeErrors      atomic.Int64
	observersMu      sync.RWMutex
	metricsObservers []MetricsObserver
}

// Config holds the use case configuration
type Config struct {
	NumWorkers int
	BatchSize  int
}

// MetricsObserver observes metrics changes
type MetricsObserver interface {
	OnMetricsUpdate(metrics *entity.Metrics)
	AddURL(url string) // Notify when a new unique URL is found
}

// NewDedupUseCase creates a new dedup use case. store may be nil.
func NewDedupUseCase(
	config Config,
	validator service.URLValidator,
	normalizer service.URLNormalizer,
	deduplicator service.URLDeduplicator,
	taskQueue repository.TaskQueue,
	resultQueue repository.ResultQueue,
	resultWriter repository.ResultWriter,
	store repository.URLStore,
	logger *slog.Logger,
) *DedupUseCase {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.NewString()
	return &DedupUseCase{
		config:       config,
		runID:        runID,
		logger:       logger.With("component", "pipeline", "run_id", runID),
		validator:    validator,
		normalizer:   normalizer,
		deduplicator: deduplicator,
		taskQueue:    taskQueue,
		resultQueue:  resultQueue,
		resultWriter: resultWriter,
		store:        store,
	}
}

// RunID returns the id stamped on every record of this run
func (uc *DedupUseCase) RunID() string {
	return uc.runID
}

// RegisterMetricsObserver registers a metrics observer
func (uc *DedupUseCase) RegisterMetricsObserver(observer MetricsObserver) {
	uc.observersMu.Lock()
	defer uc.observersMu.Unlock()
	uc.metricsObservers = append(uc.metricsObservers, observer)
}

func (uc *DedupUseCase) observers() []MetricsObserver {
	uc.observersMu.RLock()
	defer uc.observersMu.RUnlock()
	return uc.metricsObservers
}

// notifyMetricsObservers notifies all registered observers
func (uc *DedupUseCase) notifyMetricsObservers() {
	metrics := uc.GetMetrics()
	for _, observer := range uc.observers() {
		observer.OnMetricsUpdate(metrics)
	}
}

func (uc *DedupUseCase) notifyUniqueURL(url string) {
	for _, observer := range uc.observers() {
		observer.AddURL(url)
	}
}

// Execute reads URLs from r until EOF and processes them. It returns once every
// record has been written, or with the first fatal error. Cancelling ctx stops
// reading; queued tasks are abandoned.
func (uc *DedupUseCase) Execute(ctx context.Context, r io.Reader) error {
	uc.startTime = time.Now()
	uc.logger.Info("pipeline started", "workers", uc.config.NumWorkers, "batch_size", uc.config.BatchSize)

	uc.workers = make([]*Worker, uc.config.NumWorkers)
	for i := range uc.workers {
		uc.workers[i] = &Worker{
			id:           i,
			useCase:      uc,
			taskQueue:    uc.taskQueue,
			resultQueue:  uc.resultQueue,
			validator:    uc.validator,
			normalizer:   uc.normalizer,
			deduplicator: uc.deduplicator,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	metricsDone := make(chan struct{})
	metricsStopped := make(chan struct{})
	go func() {
		defer close(metricsStopped)
		uc.updateMetricsPeriodically(metricsDone)
	}()
	defer func() {
		close(metricsDone)
		<-metricsStopped
		uc.notifyMetricsObservers()
	}()

	g.Go(func() error {
		defer uc.taskQueue.Close()
		return uc.produce(gctx, r)
	})

	var workersWG sync.WaitGroup
	for _, worker := range uc.workers {
		worker := worker
		workersWG.Add(1)
		g.Go(func() error {
			defer workersWG.Done()
			return worker.Run(gctx)
		})
	}
	g.Go(func() error {
		workersWG.Wait()
		uc.resultQueue.Close()
		return nil
	})

	g.Go(func() error {
		return uc.flushResults(gctx)
	})

	err := g.Wait()
	if flushErr := uc.resultWriter.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("failed to flush results: %w", flushErr)
	}

	uc.logger.Info("pipeline finished",
		"urls_read", uc.urlsRead.Load(),
		"urls_written", uc.urlsWritten.Load(),
		"duration", time.Since(uc.startTime),
		"error", err,
	)
	return err
}

// produce groups input lines into tasks
func (uc *DedupUseCase) produce(ctx context.Context, r io.Reader) error {
	batch := make([]string, 0, uc.config.BatchSize)
	offset := 0

	enqueue := func() error {
		if len(batch) == 0 {
			return nil
		}
		task := &entity.Task{URLs: batch, Offset: offset, CreatedAt: time.Now()}
		if err := uc.taskQueue.Enqueue(ctx, task); err != nil {
			return err
		}
		uc.tasksEnqueued.Add(1)
		offset += len(batch)
		batch = make([]string, 0, uc.config.BatchSize)
		return nil
	}

	// Cancellation is seen between lines. A reader blocked in Read, such as an
	// idle stdin, holds the producer until its next line or EOF.
	err := input.NewLoader().Each(r, func(url string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		uc.urlsRead.Add(1)
		batch = append(batch, url)
		if len(batch) >= uc.config.BatchSize {
			return enqueue()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return enqueue()
}

// flushResults writes every record and stores the ones that were checked
func (uc *DedupUseCase) flushResults(ctx context.Context) error {
	pending := make([]*entity.URLRecord, 0, storeBatchSize)

	saveStore := func() {
		if uc.store == nil || len(pending) == 0 {
			return
		}
		// Records already dequeued are saved even during shutdown.
		if err := uc.store.Save(context.WithoutCancel(ctx), pending); err != nil {
			uc.storeErrors.Add(1)
			uc.logger.Error("failed to save records", "count", len(pending), "error", err)
		}
		pending = pending[:0]
	}
	defer saveStore()

	for {
		record, ok := uc.resultQueue.Receive()
		if !ok {
			return nil
		}

		if err := uc.resultWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		uc.urlsWritten.Add(1)

		if uc.store != nil && record.Status != entity.StatusRejected {
			pending = append(pending, record)
			if len(pending) >= storeBatchSize {
				saveStore()
			}
		}
	}
}

// updateMetricsPeriodically notifies observers until done is closed
func (uc *DedupUseCase) updateMetricsPeriodically(done <-chan struct{}) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			uc.notifyMetricsObservers()
		}
	}
}

// GetMetrics returns the current metrics
func (uc *DedupUseCase) GetMetrics() *entity.Metrics {
	activeWorkers := 0
	for _, worker := range uc.workers {
		if worker != nil && worker.IsActive() {
			activeWorkers++
		}
	}

	return &entity.Metrics{
		QueueLength:    uc.taskQueue.Len(),
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   uc.config.NumWorkers,
		TasksEnqueued:  uc.tasksEnqueued.Load(),
		TasksProcessed: uc.tasksProcessed.Load(),
		URLsRead:       uc.urlsRead.Load(),
		URLsRejected:   uc.urlsRejected.Load(),
		URLsWritten:    uc.urlsWritten.Load(),
		StoreErrors:    uc.storeErrors.Load(),
		Dedup:          uc.deduplicator.GetStats(),
		StartTime:      uc.startTime,
		LastUpdateTime: time.Now(),
	}
}

// IsInterrupted reports whether err only signals cancellation
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
