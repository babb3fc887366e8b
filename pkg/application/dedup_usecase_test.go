package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/WangYihang/url-dedup/pkg/dedup"
	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/infrastructure/storage"
	"github.com/WangYihang/url-dedup/pkg/normalize"
	"github.com/WangYihang/url-dedup/pkg/validate"
	mapset "github.com/deckarep/golang-set/v2"
)

type memWriter struct {
	mu      sync.Mutex
	records []*entity.URLRecord
	err     error
}

func (w *memWriter) Write(record *entity.URLRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, record)
	return nil
}

func (w *memWriter) Flush() error { return nil }
func (w *memWriter) Close() error { return nil }

type memStore struct {
	mu      sync.Mutex
	records []*entity.URLRecord
}

func (s *memStore) Save(_ context.Context, records []*entity.URLRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *memStore) Close() error { return nil }

type recordingObserver struct {
	mu      sync.Mutex
	urls    []string
	updates int
	last    *entity.Metrics
}

func (o *recordingObserver) OnMetricsUpdate(metrics *entity.Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates++
	o.last = metrics
}

func (o *recordingObserver) AddURL(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
}

func newTestUseCase(t *testing.T, workers int, writer *memWriter, store *memStore) *DedupUseCase {
	t.Helper()

	normalizer := normalize.New(nil)
	validator, err := validate.New(validate.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("validate.New() error = %v", err)
	}
	cfg := dedup.DefaultConfig()
	cfg.FilterCapacity = 10000
	deduplicator, err := dedup.New(cfg, dedup.WithNormalizer(normalizer))
	if err != nil {
		t.Fatalf("dedup.New() error = %v", err)
	}

	uc := NewDedupUseCase(
		Config{NumWorkers: workers, BatchSize: 2},
		validator,
		normalizer,
		deduplicator,
		storage.NewTaskQueue(4),
		storage.NewResultQueue(4),
		writer,
		nil,
		nil,
	)
	if store != nil {
		uc.store = store
	}
	return uc
}

const testInput = `
# seed list
https://example.com/a
https://www.example.com/a/
https://example.com/b?utm_source=x
ftp://example.com/file
https://facebook.com/page
https://en.m.example.org/wiki?b=2&a=1
https://en.example.org/wiki?a=1&b=2
https://example.com/report.pdf
`

func TestDedupUseCaseExecute(t *testing.T) {
	writer := &memWriter{}
	store := &memStore{}
	uc := newTestUseCase(t, 1, writer, store)
	observer := &recordingObserver{}
	uc.RegisterMetricsObserver(observer)

	if err := uc.Execute(context.Background(), strings.NewReader(testInput)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []struct {
		url    string
		status string
	}{
		{"https://example.com/a", entity.StatusUnique},
		{"https://www.example.com/a/", entity.StatusDuplicate},
		{"https://example.com/b?utm_source=x", entity.StatusUnique},
		{"ftp://example.com/file", entity.StatusRejected},
		{"https://facebook.com/page", entity.StatusRejected},
		{"https://en.m.example.org/wiki?b=2&a=1", entity.StatusUnique},
		{"https://en.example.org/wiki?a=1&b=2", entity.StatusDuplicate},
		{"https://example.com/report.pdf", entity.StatusRejected},
	}

	if len(writer.records) != len(want) {
		t.Fatalf("wrote %d records, want %d", len(writer.records), len(want))
	}
	for i, w := range want {
		got := writer.records[i]
		if got.URL != w.url || got.Status != w.status {
			t.Errorf("records[%d] = (%q, %q), want (%q, %q)", i, got.URL, got.Status, w.url, w.status)
		}
		if got.RunID != uc.RunID() {
			t.Errorf("records[%d].RunID = %q, want %q", i, got.RunID, uc.RunID())
		}
	}

	if got := writer.records[0]; got.Domain != "example.com" || got.HashValue == "" || got.NormalizedURL != "https://example.com/a" {
		t.Errorf("unique record = %+v", got)
	}
	if got := writer.records[3]; got.Reason != validate.ReasonInvalidScheme || got.HashValue != "" {
		t.Errorf("rejected record = %+v", got)
	}
	if got := writer.records[5]; got.Domain != "en.example.org" {
		t.Errorf("Domain = %q, want en.example.org", got.Domain)
	}

	if n, _ := store.Count(context.Background()); n != 5 {
		t.Errorf("stored %d records, want 5", n)
	}

	wantURLs := mapset.NewSet("https://example.com/a", "https://example.com/b", "https://en.example.org/wiki?a=1&b=2")
	if got := mapset.NewSet(observer.urls...); !got.Equal(wantURLs) {
		t.Errorf("observer URLs = %v, want %v", got, wantURLs)
	}

	if observer.updates == 0 || observer.last == nil {
		t.Fatal("observer received no metrics")
	}
	m := observer.last
	if m.URLsRead != 8 || m.URLsWritten != 8 || m.URLsRejected != 3 {
		t.Errorf("metrics = %+v", m)
	}
	if m.TasksEnqueued != 4 || m.TasksProcessed != 4 {
		t.Errorf("tasks enqueued %d, processed %d, want 4", m.TasksEnqueued, m.TasksProcessed)
	}
	if m.Dedup.UniqueURLs != 3 || m.Dedup.Duplicates != 2 {
		t.Errorf("dedup stats = %+v", m.Dedup)
	}
}

func TestDedupUseCaseConcurrentWorkers(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("https://example.com/item/")
		b.WriteString(strings.Repeat("x", i%50))
		b.WriteString("\n")
	}

	writer := &memWriter{}
	uc := newTestUseCase(t, 4, writer, nil)
	if err := uc.Execute(context.Background(), strings.NewReader(b.String())); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	counts := map[string]int{}
	for _, r := range writer.records {
		counts[r.Status]++
	}
	if counts[entity.StatusUnique] != 50 || counts[entity.StatusDuplicate] != 450 {
		t.Errorf("status counts = %v, want 50 unique and 450 duplicate", counts)
	}
}

func TestDedupUseCaseCancelled(t *testing.T) {
	uc := newTestUseCase(t, 2, &memWriter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := uc.Execute(ctx, strings.NewReader(testInput))
	if !IsInterrupted(err) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

// lineReader returns one line per Read and calls onRead before each one
type lineReader struct {
	lines  []string
	reads  int
	onRead func(n int)
}

func (r *lineReader) Read(p []byte) (int, error) {
	if r.reads >= len(r.lines) {
		return 0, io.EOF
	}
	r.onRead(r.reads)
	n := copy(p, r.lines[r.reads])
	r.reads++
	return n, nil
}

func TestDedupUseCaseCancelledWhileReading(t *testing.T) {
	uc := newTestUseCase(t, 2, &memWriter{}, nil)

	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("https://example.com/page/%d\n", i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &lineReader{lines: lines, onRead: func(n int) {
		if n == 1 {
			cancel()
		}
	}}

	err := uc.Execute(ctx, r)
	if !IsInterrupted(err) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if got := uc.GetMetrics().URLsRead; got != 1 {
		t.Errorf("URLsRead = %d, want 1", got)
	}
	if r.reads >= len(lines) {
		t.Errorf("input read to EOF after cancellation")
	}
}

func TestDedupUseCaseWriterError(t *testing.T) {
	boom := errors.New("disk full")
	uc := newTestUseCase(t, 2, &memWriter{err: boom}, nil)

	err := uc.Execute(context.Background(), strings.NewReader(testInput))
	if !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		result entity.DeduplicationResult
		status string
	}{
		{entity.DeduplicationResult{}, entity.StatusUnique},
		{entity.DeduplicationResult{IsDuplicate: true, Reason: dedup.ReasonExactDuplicate}, entity.StatusDuplicate},
		{entity.DeduplicationResult{IsDuplicate: true, Reason: dedup.ReasonInvalidURL}, entity.StatusInvalid},
		{entity.DeduplicationResult{IsDuplicate: true, Reason: "Error: boom"}, entity.StatusError},
	}

	for _, tt := range tests {
		if got := statusOf(tt.result); got != tt.status {
			t.Errorf("statusOf(%+v) = %q, want %q", tt.result, got, tt.status)
		}
	}
}
