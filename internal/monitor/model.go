// Package monitor provides the Bubble Tea live view of a reading session.
package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/readaid/internal/fusion"
	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/session"
)

// UpdateMsg carries a session update into the program.
type UpdateMsg session.Update

// DoneMsg reports that the session has finished.
type DoneMsg struct {
	Err error
}

// Model implements the Bubble Tea monitor.
type Model struct {
	sessionID string
	dismiss   func()

	width  int
	height int

	update    session.Update
	hasUpdate bool
	updates   int
	triggers  int

	spinner spinner.Model
	done    bool
	err     error
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	regionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	normalStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	cautionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	confusedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#69B1FF"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs a monitor. dismiss is called when the reader presses d
// and must be safe to call from the UI goroutine.
func NewModel(sessionID string, dismiss func()) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle
	return &Model{sessionID: sessionID, dismiss: dismiss, spinner: sp}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "d":
			if m.dismiss != nil && m.update.State.Kind == model.AssistanceSuggesting {
				m.dismiss()
			}
		}
		return m, nil
	case UpdateMsg:
		m.applyUpdate(session.Update(msg))
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m *Model) applyUpdate(u session.Update) {
	if u.State.Kind == model.AssistanceSuggesting && m.update.State.Kind != model.AssistanceSuggesting {
		m.triggers++
	}
	m.update = u
	m.hasUpdate = true
	m.updates++
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := m.width - 4
	if m.width == 0 {
		contentWidth = 76
	}
	if contentWidth < 20 {
		contentWidth = 20
	}

	lines := []string{titleStyle.Render("readaid") + mutedStyle.Render(" · session "+shortID(m.sessionID)), ""}
	if !m.hasUpdate {
		lines = append(lines, mutedStyle.Render("Waiting for gaze..."))
	} else {
		lines = append(lines, m.renderRegion(contentWidth)...)
		lines = append(lines, "", m.renderState())
		lines = append(lines, m.renderSuggestion(contentWidth)...)
		if m.update.Pending && !m.done {
			lines = append(lines, m.spinner.View()+mutedStyle.Render(" analyzing"))
		}
	}
	if m.done {
		status := "Replay finished."
		if m.err != nil {
			status = errorStyle.Render("Session ended: " + m.err.Error())
		}
		lines = append(lines, "", status)
	}

	body := strings.Join(lines, "\n")
	footer := m.renderFooter()
	if m.height < 3 || m.width == 0 {
		return body + "\n" + footer
	}
	bodyHeight := m.height - 1
	placed := lipgloss.Place(m.width, bodyHeight, lipgloss.Left, lipgloss.Top, lipgloss.NewStyle().Padding(0, 2).Render(body))
	return placed + "\n" + lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
}

func (m *Model) renderRegion(width int) []string {
	if m.update.RegionID == "" {
		return []string{mutedStyle.Render("Not reading any region.")}
	}
	out := []string{mutedStyle.Render("Reading " + m.update.RegionID)}
	for _, line := range wrapWords(m.update.Text, width) {
		out = append(out, regionStyle.Render(line))
	}
	return out
}

func (m *Model) renderState() string {
	return fmt.Sprintf("State %s  Emotion %s", strings.ToUpper(m.update.State.Kind.String()), emotionStyle(m.update.Emotion).Render(m.update.Emotion))
}

func (m *Model) renderSuggestion(width int) []string {
	st := m.update.State
	if st.Kind != model.AssistanceSuggesting {
		return nil
	}
	out := []string{suggestionStyle.Render(truncate(st.Explanation, width))}
	if st.SimplifiedText != "" {
		for _, line := range wrapWords("Simplified: "+st.SimplifiedText, width) {
			out = append(out, suggestionStyle.Render(line))
		}
	}
	if m.update.Overlay == nil {
		out = append(out, mutedStyle.Render("(no overlay: page geometry unknown)"))
	}
	return out
}

func (m *Model) renderFooter() string {
	segments := []string{
		fmt.Sprintf("t=%.1fs", float64(m.update.At)/1000),
		fmt.Sprintf("Updates %d", m.updates),
		fmt.Sprintf("Triggers %d", m.triggers),
	}
	if m.update.State.Kind == model.AssistanceSuggesting {
		segments = append(segments, "d dismiss")
	}
	segments = append(segments, "q quit")
	return footerStyle.Render(strings.Join(segments, "  "))
}

func emotionStyle(emotion string) lipgloss.Style {
	switch emotion {
	case fusion.EmotionConfused:
		return confusedStyle
	case fusion.EmotionCaution:
		return cautionStyle
	default:
		return normalStyle
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
