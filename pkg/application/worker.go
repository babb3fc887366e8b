package application

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/WangYihang/url-dedup/pkg/dedup"
	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/domain/repository"
	"github.com/WangYihang/url-dedup/pkg/domain/service"
)

// Worker processes URL batches
type Worker struct {
	id           int
	useCase      *DedupUseCase
	taskQueue    repository.TaskQueue
	resultQueue  repository.ResultQueue
	validator    service.URLValidator
	normalizer   service.URLNormalizer
	deduplicator service.URLDeduplicator

	isActive atomic.Bool
}

// Run starts the worker processing loop
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, ok := w.taskQueue.Dequeue()
		if !ok {
			return nil
		}

		if err := w.processTask(ctx, task); err != nil {
			return err
		}
	}
}

// IsActive returns whether the worker is currently processing a task
func (w *Worker) IsActive() bool {
	return w.isActive.Load()
}

// processTask validates and deduplicates a batch, sending one record per URL
// in input order
func (w *Worker) processTask(ctx context.Context, task *entity.Task) error {
	w.isActive.Store(true)
	defer func() {
		w.isActive.Store(false)
		w.useCase.tasksProcessed.Add(1)
	}()

	now := time.Now().UTC()
	records := make([]*entity.URLRecord, len(task.URLs))
	valid := make([]string, 0, len(task.URLs))
	validIdx := make([]int, 0, len(task.URLs))

	for i, raw := range task.URLs {
		records[i] = &entity.URLRecord{
			RunID:     w.useCase.runID,
			URL:       raw,
			Timestamp: now,
		}

		result := w.validator.Validate(raw)
		if !result.IsValid {
			records[i].Status = entity.StatusRejected
			records[i].Reason = result.Reason
			w.useCase.urlsRejected.Add(1)
			continue
		}
		valid = append(valid, raw)
		validIdx = append(validIdx, i)
	}

	for j, result := range w.deduplicator.CheckBatch(valid) {
		record := records[validIdx[j]]
		record.NormalizedURL = result.NormalizedURL
		record.HashValue = result.HashValue
		record.Reason = result.Reason
		record.Status = statusOf(result)

		if domain, ok := w.normalizer.GetDomain(record.URL); ok {
			record.Domain = domain
		}
		if record.Status == entity.StatusUnique {
			w.useCase.notifyUniqueURL(result.NormalizedURL)
		}
	}

	for _, record := range records {
		if err := w.resultQueue.Send(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// statusOf maps a dedup result onto a record status
func statusOf(result entity.DeduplicationResult) string {
	switch {
	case !result.IsDuplicate:
		return entity.StatusUnique
	case result.Reason == dedup.ReasonInvalidURL:
		return entity.StatusInvalid
	case result.Reason == dedup.ReasonExactDuplicate:
		return entity.StatusDuplicate
	case strings.HasPrefix(result.Reason, "Error:"):
		return entity.StatusError
	default:
		return entity.StatusDuplicate
	}
}
