package presenter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecentURLs = 50

// Dashboard is a TUI dashboard for dedup progress
type Dashboard struct {
	metrics    *entity.Metrics
	recentURLs []string
	cacheBar   progress.Model
	program    *tea.Program
	width      int
	height     int
	startTime  time.Time
	mu         sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard
func NewDashboard() *Dashboard {
	d := &Dashboard{
		metrics:   &entity.Metrics{},
		cacheBar:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		startTime: time.Now(),
	}
	d.program = tea.NewProgram(d, tea.WithAltScreen())
	return d
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		// Continue ticking to keep the display updating
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	var sections []string

	header := d.renderHeader()
	sections = append(sections, header)
	headerHeight := lipgloss.Height(header)

	footer := d.renderFooter()
	footerHeight := lipgloss.Height(footer)

	availableHeight := max(d.height-headerHeight-footerHeight, 0)
	halfHeight := availableHeight / 2

	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	// Row 1: Dedup Stats (Left) | Cache (Right)
	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderDedupStats(leftWidth, halfHeight),
		d.renderCacheStats(rightWidth, halfHeight),
	)
	sections = append(sections, row1)

	// Row 2: Pipeline Stats (Left) | Recent Unique URLs (Right)
	remainingHeight := availableHeight - halfHeight
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderPipelineStats(leftWidth, remainingHeight),
		d.renderRecentURLs(rightWidth, remainingHeight),
	)
	sections = append(sections, row2)

	sections = append(sections, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// OnMetricsUpdate implements application.MetricsObserver
func (d *Dashboard) OnMetricsUpdate(metrics *entity.Metrics) {
	d.mu.Lock()
	d.metrics = metrics
	d.mu.Unlock()
}

// AddURL adds a newly found unique URL to the recent list
func (d *Dashboard) AddURL(url string) {
	d.mu.Lock()
	d.recentURLs = append(d.recentURLs, url)
	if len(d.recentURLs) > maxRecentURLs {
		d.recentURLs = d.recentURLs[len(d.recentURLs)-maxRecentURLs:]
	}
	d.mu.Unlock()
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	now := time.Now().Format("15:04:05")
	title := titleStyle.Render("🔗 URL Dedup")
	timeInfo := timeStyle.Render(fmt.Sprintf(" Running: %s | Time: %s", formatElapsed(time.Since(d.startTime)), now))

	return title + timeInfo
}

func boxStyle(color string, width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(max(width-2, 0)).  // Adjust for border
		Height(max(height-2, 0)) // Adjust for border
}

func (d *Dashboard) renderDedupStats(width, height int) string {
	s := d.metrics.Dedup
	stats := []string{
		"📊 Deduplication",
		"",
		fmt.Sprintf("Checked:           %d", s.TotalURLs),
		fmt.Sprintf("Unique:            %d", s.UniqueURLs),
		fmt.Sprintf("Duplicates:        %d", s.Duplicates),
		fmt.Sprintf("Invalid:           %d", s.InvalidURLs),
		fmt.Sprintf("Errors:            %d", s.Errors),
	}

	if s.TotalURLs > 0 {
		stats = append(stats,
			"",
			fmt.Sprintf("Duplicate Rate:    %.1f%%", float64(s.Duplicates)/float64(s.TotalURLs)*100),
		)
	}

	return boxStyle("#874BFD", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderCacheStats(width, height int) string {
	s := d.metrics.Dedup

	fill := 0.0
	if s.MaxCacheSize > 0 {
		fill = float64(s.CacheSize) / float64(s.MaxCacheSize)
	}
	bar := d.cacheBar
	bar.Width = max(width-10, 10)

	stats := []string{
		"🗄  Cache",
		"",
		fmt.Sprintf("Size:              %d / %d", s.CacheSize, s.MaxCacheSize),
		bar.ViewAs(fill),
		fmt.Sprintf("Fill:              %.1f%%", fill*100),
		fmt.Sprintf("Evictions:         %d", s.CacheEvictions),
		fmt.Sprintf("Filter:            %s", s.FilterMode),
	}

	return boxStyle("#FF6B6B", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderPipelineStats(width, height int) string {
	m := d.metrics
	stats := []string{
		"⚙  Pipeline",
		"",
		fmt.Sprintf("Queue Length:      %d", m.QueueLength),
		fmt.Sprintf("Active Workers:    %d / %d", m.ActiveWorkers, m.TotalWorkers),
		fmt.Sprintf("Tasks:             %d / %d", m.TasksProcessed, m.TasksEnqueued),
		fmt.Sprintf("URLs Read:         %d", m.URLsRead),
		fmt.Sprintf("Rejected:          %d", m.URLsRejected),
		fmt.Sprintf("Written:           %d", m.URLsWritten),
		fmt.Sprintf("Store Errors:      %d", m.StoreErrors),
	}

	if elapsed := time.Since(d.startTime).Seconds(); elapsed > 0 {
		stats = append(stats,
			"",
			fmt.Sprintf("Rate:              %.1f urls/s", float64(m.URLsWritten)/elapsed),
		)
	}

	return boxStyle("#4ECDC4", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderRecentURLs(width, height int) string {
	lines := []string{
		fmt.Sprintf("🔍 Recent Unique URLs (Total: %d)", d.metrics.Dedup.UniqueURLs),
		"",
	}

	if len(d.recentURLs) == 0 {
		lines = append(lines, "No unique URLs yet...")
	} else {
		// Height - 2 (border) - 2 (padding) - 2 (title + empty line)
		maxShow := max(height-6, 0)
		start := max(len(d.recentURLs)-maxShow, 0)
		for _, url := range d.recentURLs[start:] {
			lines = append(lines, fmt.Sprintf("  • %s", url))
		}
	}

	return boxStyle("#04B575", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to quit")
}

func formatElapsed(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard and blocks until it exits
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

// Quit stops a running dashboard
func (d *Dashboard) Quit() {
	d.program.Quit()
}
