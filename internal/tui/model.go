// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tunequiz/internal/game"
	"github.com/verte-zerg/tunequiz/internal/model"
)

// Engine is the part of the round engine the interface drives.
type Engine interface {
	Dispatch(ctx context.Context, cmd game.Command) error
	Status() game.Status
}

type dispatchErrMsg struct {
	err error
}

// Model implements the Bubble Tea quiz UI.
type Model struct {
	ctx    context.Context
	engine Engine
	notes  Notifications
	opts   game.Options
	logger zerolog.Logger
	input  textinput.Model

	width  int
	height int

	state     game.State
	score     int
	round     int
	maxRounds int
	song      model.Song
	hasSong   bool
	revealed  bool
	paused    bool
	feedback  string
	lastRound model.RoundRecord
	errMsg    string
	summary   *game.Summary
}

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	albumStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	hiddenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	endedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle     = incorrectStyle.Bold(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

func chipStyle(status model.RoundStatus) lipgloss.Style {
	switch status {
	case model.StatusCorrect:
		return correctStyle
	case model.StatusSkipped:
		return skippedStyle
	case model.StatusEnded:
		return endedStyle
	default:
		return incorrectStyle
	}
}

// NewModel constructs a quiz TUI model. The first session starts on Init with opts.
func NewModel(ctx context.Context, engine Engine, notes Notifications, opts game.Options, logger zerolog.Logger) *Model {
	input := textinput.New()
	input.Placeholder = "Type the song title"
	input.Prompt = "› "
	input.CharLimit = 120
	input.Focus()
	return &Model{
		ctx:    ctx,
		engine: engine,
		notes:  notes,
		opts:   opts,
		logger: logger.With().Str("component", "tui").Logger(),
		input:  input,
		state:  game.StateIdle,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForNotification(m.notes),
		m.dispatch(game.StartGameCommand(m.opts)),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, m.contentWidth()-4)
		return m, nil
	case notificationMsg:
		m.apply(game.Notification(msg))
		return m, waitForNotification(m.notes)
	case dispatchErrMsg:
		m.errMsg = msg.err.Error()
		m.state = m.engine.Status().State
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if quitsOnKey(m.state, key) {
		if m.state != game.StateIdle && m.state != game.StateGameOver {
			if err := m.engine.Dispatch(m.ctx, game.Command{Kind: game.CmdEndGame}); err != nil {
				m.logger.Warn().Err(err).Msg("failed to end game")
			}
		}
		return m, tea.Quit
	}
	if cmd, ok := commandForKey(m.state, key, m.input.Value(), m.opts); ok {
		switch cmd.Kind {
		case game.CmdSubmitGuess:
			m.input.Reset()
		case game.CmdStartGame:
			m.summary = nil
			m.errMsg = ""
		}
		return m, m.dispatch(cmd)
	}
	if m.state != game.StatePlaying {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch runs cmd off the UI goroutine; clip loading may block.
func (m *Model) dispatch(cmd game.Command) tea.Cmd {
	return func() tea.Msg {
		if err := m.engine.Dispatch(m.ctx, cmd); err != nil {
			m.logger.Debug().Err(err).Stringer("command", cmd.Kind).Msg("command failed")
			return dispatchErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) apply(n game.Notification) {
	switch n.Kind {
	case game.NotifyRoundChanged:
		m.round = n.Round
		m.maxRounds = n.MaxRounds
		m.state = game.StateLoading
		m.revealed = false
		m.paused = false
		m.feedback = ""
		m.errMsg = ""
		m.input.Reset()
	case game.NotifySongLoaded:
		m.song = n.Song
		m.hasSong = true
		m.revealed = false
		m.state = game.StatePlaying
	case game.NotifyRoundResolved:
		m.song = n.Song
		m.hasSong = true
		m.revealed = true
		m.lastRound = n.Record
		m.feedback = feedbackText(n.Record)
		m.state = game.StateRoundOver
	case game.NotifyScoreChanged:
		m.score = n.Score
	case game.NotifyPaused:
		m.paused = true
	case game.NotifyResumed:
		m.paused = false
	case game.NotifyGameOver:
		summary := n.Summary
		m.summary = &summary
		m.score = summary.Score
		m.state = game.StateGameOver
	case game.NotifyError:
		m.errMsg = n.Message
		m.state = m.engine.Status().State
	}
}

func feedbackText(rec model.RoundRecord) string {
	switch rec.Status {
	case model.StatusCorrect:
		secs := 0.0
		if rec.TimeToGuessMs != nil {
			secs = float64(*rec.TimeToGuessMs) / 1000
		}
		return fmt.Sprintf("Correct! +%d points in %.1fs", rec.Points, secs)
	case model.StatusSkipped:
		return "Skipped."
	case model.StatusEnded:
		return "Time's up!"
	default:
		return "Not quite."
	}
}

func (m *Model) contentWidth() int {
	w := int(float64(m.width) * 0.70)
	if w < 1 {
		return 1
	}
	return w
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.summary != nil {
		content = m.renderSummary()
	} else {
		content = m.renderRound()
	}
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter()
	}
	content = lipgloss.NewStyle().Width(m.contentWidth()).Render(content)
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderHeader() string {
	segments := []string{}
	if m.maxRounds > 0 {
		segments = append(segments, fmt.Sprintf("Round %d/%d", m.round, m.maxRounds))
	}
	segments = append(segments, fmt.Sprintf("Score %d", m.score))
	segments = append(segments, game.DescribeMode(m.opts))
	return headerStyle.Render(strings.Join(segments, " · "))
}

func (m *Model) renderRound() string {
	width := m.contentWidth()
	if m.width == 0 {
		width = 60
	}
	lines := []string{m.renderHeader(), ""}

	switch {
	case m.revealed && m.hasSong:
		lines = append(lines, titleStyle.Render(runewidth.Truncate(m.song.Title, width, "…")))
		if m.song.Album != "" {
			lines = append(lines, albumStyle.Render(runewidth.Truncate(m.song.Album, width, "…")))
		}
	case m.state == game.StateLoading:
		lines = append(lines, hiddenStyle.Render("Loading…"))
	case m.state == game.StatePlaying && m.paused:
		lines = append(lines, hiddenStyle.Render("Paused"))
	case m.state == game.StatePlaying:
		lines = append(lines, hiddenStyle.Render("♪ Listening…"))
	default:
		lines = append(lines, "")
	}

	if m.feedback != "" {
		lines = append(lines, "", chipStyle(m.lastRound.Status).Render(m.feedback))
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	if m.state == game.StatePlaying {
		lines = append(lines, "", m.input.View())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSummary() string {
	s := m.summary
	width := m.contentWidth()
	if m.width == 0 {
		width = 60
	}
	lines := []string{
		headerStyle.Render("Game over"),
		"",
		titleStyle.Render(fmt.Sprintf("Final score %d", s.Score)),
		albumStyle.Render(fmt.Sprintf("%d of %d rounds guessed · %s", s.Correct(), s.RoundsPlayed, s.Mode)),
	}
	if len(s.History) > 0 {
		lines = append(lines, "", wrapChunks(buildHistoryChunks(s.History), width))
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	return footerStyle.Render(helpFor(m.state, m.paused))
}
