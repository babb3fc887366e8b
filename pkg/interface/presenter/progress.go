package presenter

import (
	"io"
	"sync"
	"time"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/olekukonko/ts"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const defaultBarWidth = 80

// TerminalWidth returns the width of the terminal, or a default when it
// cannot be determined
func TerminalWidth() int {
	size, err := ts.GetSize()
	if err != nil || size.Col() <= 0 {
		return defaultBarWidth
	}
	return size.Col()
}

// ProgressBar is a console progress bar for runs without the dashboard. The
// total grows as URLs are read.
type ProgressBar struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	last     time.Time
	once     sync.Once
}

// NewProgressBar creates a progress bar writing to out
func NewProgressBar(out io.Writer) *ProgressBar {
	p := mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(max(TerminalWidth()/2, 20)),
	)

	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("urls", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
			),
		),
	)

	return &ProgressBar{progress: p, bar: bar, last: time.Now()}
}

// OnMetricsUpdate implements application.MetricsObserver
func (b *ProgressBar) OnMetricsUpdate(metrics *entity.Metrics) {
	b.bar.SetTotal(metrics.URLsRead, false)
	now := time.Now()
	b.bar.EwmaSetCurrent(metrics.URLsWritten, now.Sub(b.last))
	b.last = now
}

// AddURL implements application.MetricsObserver
func (b *ProgressBar) AddURL(string) {}

// Finish completes the bar and waits for it to render
func (b *ProgressBar) Finish() {
	b.once.Do(func() {
		b.bar.SetTotal(-1, true)
		b.progress.Wait()
	})
}
