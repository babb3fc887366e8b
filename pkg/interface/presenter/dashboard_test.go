package presenter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	tea "github.com/charmbracelet/bubbletea"
)

func TestDashboardView(t *testing.T) {
	d := NewDashboard()

	if got := d.View(); got != "Initializing..." {
		t.Errorf("View() before resize = %q", got)
	}

	d.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	d.OnMetricsUpdate(&entity.Metrics{
		TotalWorkers: 4,
		URLsRead:     10,
		URLsWritten:  9,
		Dedup: entity.Stats{
			TotalURLs:    10,
			UniqueURLs:   6,
			Duplicates:   4,
			CacheSize:    6,
			MaxCacheSize: 100,
			FilterMode:   "with_filter",
		},
	})
	d.AddURL("https://example.com/a")

	view := d.View()
	for _, want := range []string{"Deduplication", "Duplicate Rate:    40.0%", "6 / 100", "with_filter", "https://example.com/a"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestDashboardRecentURLsBounded(t *testing.T) {
	d := NewDashboard()
	for i := 0; i < maxRecentURLs+10; i++ {
		d.AddURL(fmt.Sprintf("https://example.com/%d", i))
	}

	if len(d.recentURLs) != maxRecentURLs {
		t.Fatalf("len(recentURLs) = %d, want %d", len(d.recentURLs), maxRecentURLs)
	}
	if d.recentURLs[0] != "https://example.com/10" {
		t.Errorf("oldest URL = %q, want https://example.com/10", d.recentURLs[0])
	}
}

func TestDashboardQuitKey(t *testing.T) {
	d := NewDashboard()
	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("Update(q) returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("Update(q) command did not quit")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
