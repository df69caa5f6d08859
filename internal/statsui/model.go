// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tunequiz/internal/model"
	"github.com/verte-zerg/tunequiz/internal/stats"
)

const (
	tabOverview = iota
	tabSongs
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// SnapshotSource provides the current per-song stats.
type SnapshotSource interface {
	Snapshot(ctx context.Context) model.Snapshot
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	ctx     context.Context
	source  SnapshotSource
	catalog []model.Song

	metrics stats.Metrics

	tabs      []string
	activeTab int
	overview  viewport.Model
	songTable table.Model

	width  int
	height int
}

// NewModel constructs a stats UI model.
func NewModel(ctx context.Context, source SnapshotSource, catalog []model.Song) *Model {
	m := &Model{
		ctx:       ctx,
		source:    source,
		catalog:   catalog,
		tabs:      []string{"Overview", "Songs"},
		overview:  viewport.New(0, 0),
		songTable: buildSongTable(nil, 0, 1),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.refresh()
			return m, nil
		case "g", "home":
			if m.activeTab == tabSongs {
				m.songTable.GotoTop()
			} else {
				m.overview.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSongs {
				m.songTable.GotoBottom()
			} else {
				m.overview.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabSongs {
				m.songTable, cmd = m.songTable.Update(msg)
				return m, cmd
			}
			m.overview, cmd = m.overview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight := m.layoutHeights()
	header := fitLines(m.renderTabs(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Reload: r  Quit: q"), m.width, 1)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) refresh() {
	m.metrics = stats.ComputeMetrics(m.catalog, m.source.Snapshot(m.ctx))
	m.songTable.SetRows(songRows(m.metrics.Songs))
	m.renderOverview()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X"))
	if headerHeight < 1 {
		headerHeight = 1
	}
	bodyHeight = m.height - headerHeight - 1
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.songTable.SetColumns(songColumns(m.width))
	m.songTable.SetWidth(m.width)
	m.songTable.SetHeight(max(1, bodyHeight-1))
	m.renderOverview()
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabSongs {
		m.songTable.Focus()
	} else {
		m.songTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderBody() string {
	if m.metrics.TotalPlays == 0 {
		return "No performance data yet. Play a few rounds first."
	}
	if m.activeTab == tabSongs {
		return tableMutedStyle.Render(m.songTable.View())
	}
	return m.overview.View()
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.metrics, width))
}

func renderOverview(metrics stats.Metrics, width int) string {
	if metrics.TotalPlays == 0 {
		return "No performance data yet."
	}
	cards := []string{
		metricCard("Plays", fmt.Sprintf("%d", metrics.TotalPlays)),
		metricCard("Correct", fmt.Sprintf("%d", metrics.TotalCorrect)),
		metricCard("Accuracy", fmt.Sprintf("%.1f%%", metrics.OverallAccuracy)),
		metricCard("Songs", fmt.Sprintf("%d", len(metrics.Songs))),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	lists := []string{
		renderRanking("Best songs", metrics.BestSongs, width),
		renderRanking("Worst songs", metrics.WorstSongs, width),
	}
	return strings.TrimRight(summary+"\n\n"+strings.Join(lists, "\n\n"), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderRanking(title string, songs []stats.SongMetric, width int) string {
	lines := []string{cardTitleStyle.Render(title)}
	if len(songs) == 0 {
		lines = append(lines, "  none yet")
	}
	for i, s := range songs {
		line := fmt.Sprintf("%d. %s  %.0f%% over %d plays", i+1, s.Title, s.Accuracy*100, s.PlayCount)
		lines = append(lines, "  "+runewidth.Truncate(line, max(1, width-2), "…"))
	}
	return strings.Join(lines, "\n")
}

func songColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Plays", Width: 5},
		{Title: "Accuracy", Width: 8},
		{Title: "Score", Width: 5},
		{Title: "Skips", Width: 5},
		{Title: "Ended", Width: 5},
		{Title: "Avg guess", Width: 9},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 1
	}
	flex := max(20, width-used-2)
	titleWidth := flex * 3 / 5
	cols := []table.Column{
		{Title: "Title", Width: titleWidth},
		{Title: "Album", Width: flex - titleWidth},
	}
	return append(cols, fixed...)
}

func songRows(songs []stats.SongMetric) []table.Row {
	rows := make([]table.Row, 0, len(songs))
	for _, s := range songs {
		avg := "-"
		if s.AvgCorrectTimeMs > 0 {
			avg = fmt.Sprintf("%.1fs", s.AvgCorrectTimeMs/1000)
		}
		rows = append(rows, table.Row{
			s.Title,
			s.Album,
			fmt.Sprintf("%d", s.PlayCount),
			fmt.Sprintf("%.1f%%", s.Accuracy*100),
			fmt.Sprintf("%.0f", s.Score),
			fmt.Sprintf("%d", s.SkipCount),
			fmt.Sprintf("%d", s.EndedCount),
			avg,
		})
	}
	return rows
}

func buildSongTable(songs []stats.SongMetric, width, height int) table.Model {
	t := table.New(
		table.WithColumns(songColumns(width)),
		table.WithRows(songRows(songs)),
		table.WithHeight(max(1, height-1)),
	)
	t.SetStyles(songTableStyles())
	return t
}

func songTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
