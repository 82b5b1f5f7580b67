// Package dashboard renders a live terminal view of a running advisord
// instance. It polls the daemon's stats endpoint on an interval and
// draws retrieval, bundle, cache, and layer health with sparklines and
// progress bars.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chriscantu/advisord/internal/memory"
	"github.com/chriscantu/advisord/internal/monitor"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	fetchTimeout = 5 * time.Second
)

// Model is the bubbletea model behind `advisorctl dashboard`.
type Model struct {
	serverURL  string
	interval   time.Duration
	client     *http.Client
	lastUpdate time.Time
	stats      monitor.AggregateMetrics
	history    history
	err        error
	quitting   bool

	cacheProgress    progress.Model
	coverageProgress progress.Model
}

// history holds the last N samples for the sparklines. Rates are derived
// from consecutive polls of the cumulative counters.
type history struct {
	rate      []float64
	latencyMS []float64
	relevance []float64
}

// k9s-ish palette.
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel builds a dashboard polling serverURL every interval.
func NewModel(serverURL string, interval time.Duration) Model {
	cacheProg := progress.New(
		progress.WithGradient("#00ff00", "#ffff00"),
		progress.WithWidth(40),
	)
	coverageProg := progress.New(
		progress.WithGradient("#00ffff", "#ff00ff"),
		progress.WithWidth(40),
	)

	return Model{
		serverURL:        serverURL,
		interval:         interval,
		client:           &http.Client{Timeout: fetchTimeout},
		cacheProgress:    cacheProg,
		coverageProgress: coverageProg,
		history: history{
			rate:      make([]float64, 0, historySize),
			latencyMS: make([]float64, 0, historySize),
			relevance: make([]float64, 0, historySize),
		},
	}
}

// latencyBadge grades the p95 against the retrieval deadline. Anything
// under a quarter second is healthy for an in-process engine.
func latencyBadge(p95MS float64) string {
	if p95MS < 250 {
		return healthyStyle.Render("[ok]")
	}
	if p95MS < 1000 {
		return warningStyle.Render("[slow]")
	}
	return errorStyle.Render("[degraded]")
}

func statusBadge(p95MS float64, writesFailed uint64) string {
	if writesFailed > 0 {
		return errorStyle.Render("WRITE FAILURES")
	}
	if p95MS < 250 {
		return healthyStyle.Render("HEALTHY")
	}
	if p95MS < 1000 {
		return warningStyle.Render("SLOW")
	}
	return errorStyle.Render("DEGRADED")
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func renderSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type statsMsg monitor.AggregateMetrics
type errMsg error

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.client, m.serverURL),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStats pulls one aggregate snapshot from the daemon.
func fetchStats(client *http.Client, serverURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/v1/stats", nil)
		if err != nil {
			return errMsg(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return errMsg(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("stats endpoint answered %s", resp.Status))
		}
		var stats monitor.AggregateMetrics
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return errMsg(fmt.Errorf("decoding stats: %w", err))
		}
		return statsMsg(stats)
	}
}

// Update handles key presses, poll ticks, and fetched snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.client, m.serverURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.client, m.serverURL),
		)

	case statsMsg:
		next := monitor.AggregateMetrics(msg)

		// Counters are cumulative since start or reset; the rate is the
		// delta between polls. The first sample and a reset both read as
		// zero rate rather than a spike.
		rate := 0.0
		if !m.lastUpdate.IsZero() && next.Retrievals >= m.stats.Retrievals && m.interval > 0 {
			rate = float64(next.Retrievals-m.stats.Retrievals) / m.interval.Minutes()
		}

		m.history.rate = appendToHistory(m.history.rate, rate)
		m.history.latencyMS = appendToHistory(m.history.latencyMS, next.LatencyP95MS)
		m.history.relevance = appendToHistory(m.history.relevance, next.MeanRelevance)

		m.stats = next
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard or the connection error screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render(" advisord monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("Cannot reach advisord") + "\n"
	content += "\n"
	content += dimStyle.Render("Server: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error:  ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Is the daemon running? Start it with: advisord") + "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("15:04:05")
	}

	content += headerStyle.Render(" advisord monitor ") + "\n"
	content += fmt.Sprintf("%s   %s %s   %s\n",
		statusBadge(m.stats.LatencyP95MS, m.stats.WritesFailed),
		dimStyle.Render("updated:"),
		valueStyle.Render(lastUpdateStr),
		dimStyle.Render(m.serverURL))

	// Retrievals
	content += "\n" + sectionStyle.Render("| Retrievals") + "\n"

	currentRate := 0.0
	if n := len(m.history.rate); n > 0 {
		currentRate = m.history.rate[n-1]
	}
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(currentRate)) +
		"   " + renderSparkline(m.history.rate) + "\n"

	content += labelStyle.Render("  Latency: ") +
		dimStyle.Render("p50=") + valueStyle.Render(FormatLatencyMS(m.stats.LatencyP50MS)) +
		dimStyle.Render("  p95=") + valueStyle.Render(FormatLatencyMS(m.stats.LatencyP95MS)) +
		" " + latencyBadge(m.stats.LatencyP95MS) +
		"   " + renderSparkline(m.history.latencyMS) + "\n"

	content += labelStyle.Render("  Served: ") +
		valueStyle.Render(FormatCount(m.stats.Retrievals)) +
		dimStyle.Render("  fallbacks=") + valueStyle.Render(FormatCount(m.stats.Fallbacks)) + "\n"

	// Bundles
	content += "\n" + sectionStyle.Render("| Bundles") + "\n"

	content += labelStyle.Render("  Relevance: ") +
		valueStyle.Render(FormatPercent(m.stats.MeanRelevance)) +
		"        " + renderSparkline(m.history.relevance) + "\n"

	coverage := memory.Clamp01(m.stats.MeanCoverage)
	content += labelStyle.Render("  Coverage: ") +
		m.coverageProgress.ViewAs(coverage) +
		" " + dimStyle.Render(FormatPercent(coverage)) + "\n"

	content += labelStyle.Render("  Fragments: ") +
		valueStyle.Render(FormatCount(m.stats.FragmentsReturned)) +
		dimStyle.Render("  payload=") + valueStyle.Render(FormatBytes(m.stats.BytesReturned)) + "\n"

	// Cache
	content += "\n" + sectionStyle.Render("| Cache") + "\n"

	hitRatio := 0.0
	if m.stats.Retrievals > 0 {
		hitRatio = float64(m.stats.CacheHits) / float64(m.stats.Retrievals)
	}
	content += labelStyle.Render("  Hits: ") +
		m.cacheProgress.ViewAs(hitRatio) +
		" " + dimStyle.Render(FormatPercent(hitRatio)) + "\n"
	content += labelStyle.Render("  Counts: ") +
		dimStyle.Render("hit=") + valueStyle.Render(FormatCount(m.stats.CacheHits)) +
		dimStyle.Render("  miss=") + valueStyle.Render(FormatCount(m.stats.CacheMisses)) + "\n"

	// Layer misses
	content += "\n" + sectionStyle.Render("| Layer misses") + "\n"
	for _, kind := range memory.LayerKinds {
		count := m.stats.LayerMisses[kind]
		rendered := dimStyle.Render("0")
		if count > 0 {
			rendered = warningStyle.Render(FormatCount(count))
		}
		content += labelStyle.Render(fmt.Sprintf("  %-15s ", kind)) + rendered + "\n"
	}

	// Outcomes
	content += "\n" + sectionStyle.Render("| Outcomes") + "\n"
	content += labelStyle.Render("  Recorded: ") +
		valueStyle.Render(FormatCount(m.stats.Outcomes)) + "\n"

	failures := dimStyle.Render("0")
	if m.stats.WritesFailed > 0 {
		failures = errorStyle.Render(FormatCount(m.stats.WritesFailed))
	}
	content += labelStyle.Render("  Writes: ") +
		dimStyle.Render("attempted=") + valueStyle.Render(FormatCount(m.stats.WritesAttempted)) +
		dimStyle.Render("  failed=") + failures + "\n"

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("auto: %v", m.interval))
	content += "\n" + footer

	return containerStyle.Render(content)
}
