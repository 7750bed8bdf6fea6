package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

const pollInterval = 2 * time.Second

// ConsoleUI is the BubbleTea model that runs the approval console.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config         *ConsoleConfig
	client         *http.Client
	listViewport   viewport.Model
	detailViewport viewport.Model
	approvals      []*turn.PendingApproval
	selected       int
	preview        *action.ExecutionResult
	ready          bool
	width          int
	height         int
	err            error
	status         string

	// Quit confirmation state
	showQuitModal bool
}

type approvalsLoadedMsg struct {
	approvals []*turn.PendingApproval
	err       error
}

type previewLoadedMsg struct {
	id     string
	result *action.ExecutionResult
	err    error
}

type resolvedMsg struct {
	id   string
	verb string
	err  error
}

type pollTickMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	destructiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")). // red
				Bold(true)

	feedbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	listVp := viewport.New(50, 20)
	listVp.MouseWheelEnabled = true
	detailVp := viewport.New(50, 20)

	return ConsoleUI{
		config:         cfg,
		client:         client,
		listViewport:   listVp,
		detailViewport: detailVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.fetchApprovals(), pollTick())
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m ConsoleUI) fetchApprovals() tea.Cmd {
	client, baseURL := m.client, m.config.APIBaseURL
	return func() tea.Msg {
		approvals, err := listApprovals(client, baseURL)
		return approvalsLoadedMsg{approvals: approvals, err: err}
	}
}

func (m ConsoleUI) fetchPreview(id string) tea.Cmd {
	client, baseURL := m.client, m.config.APIBaseURL
	return func() tea.Msg {
		result, err := previewApproval(client, baseURL, id)
		return previewLoadedMsg{id: id, result: result, err: err}
	}
}

func (m ConsoleUI) resolve(id string, verb string) tea.Cmd {
	client, baseURL := m.client, m.config.APIBaseURL
	return func() tea.Msg {
		err := resolveApproval(client, baseURL, id, verb)
		return resolvedMsg{id: id, verb: verb, err: err}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listWidth := m.width / 2
		m.listViewport.Width = listWidth
		m.listViewport.Height = m.height - 4
		m.detailViewport.Width = m.width - listWidth - 1
		m.detailViewport.Height = m.height - 4
		m.ready = true
		m.refreshViews()
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(m.fetchApprovals(), pollTick())

	case approvalsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.approvals = msg.approvals
			if m.selected >= len(m.approvals) {
				m.selected = len(m.approvals) - 1
			}
			if m.selected < 0 {
				m.selected = 0
			}
		}
		m.refreshViews()
		return m, nil

	case previewLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.preview = msg.result
			m.status = "Preview refreshed"
		}
		m.refreshViews()
		return m, nil

	case resolvedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.preview = nil
			m.status = fmt.Sprintf("Request %s %sd", msg.id[:8], msg.verb)
		}
		return m, m.fetchApprovals()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		switch msg.String() {
		case "y", "Y", "enter":
			return m, tea.Quit
		default:
			m.showQuitModal = false
			return m, nil
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.showQuitModal = true
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
			m.preview = nil
			m.refreshViews()
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.approvals)-1 {
			m.selected++
			m.preview = nil
			m.refreshViews()
		}
		return m, nil

	case "r":
		return m, m.fetchApprovals()

	case "p":
		if cur := m.current(); cur != nil {
			m.status = "Loading preview..."
			m.refreshViews()
			return m, m.fetchPreview(cur.ID)
		}
		return m, nil

	case "a":
		if cur := m.current(); cur != nil {
			return m, m.resolve(cur.ID, "approve")
		}
		return m, nil

	case "d":
		if cur := m.current(); cur != nil {
			return m, m.resolve(cur.ID, "decline")
		}
		return m, nil

	case "c":
		if cur := m.current(); cur != nil {
			data, err := json.MarshalIndent(cur, "", "  ")
			if err == nil {
				if err := clipboard.WriteAll(string(data)); err == nil {
					m.status = "Copied to clipboard"
				} else {
					m.err = err
				}
				m.refreshViews()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m *ConsoleUI) current() *turn.PendingApproval {
	if m.selected < 0 || m.selected >= len(m.approvals) {
		return nil
	}
	return m.approvals[m.selected]
}

func (m *ConsoleUI) refreshViews() {
	m.listViewport.SetContent(m.renderList())
	m.detailViewport.SetContent(m.renderDetail())
}

func (m *ConsoleUI) renderList() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("PENDING APPROVALS") + "\n\n")

	if len(m.approvals) == 0 {
		sb.WriteString("Nothing waiting for approval.\n")
		return sb.String()
	}

	for i, p := range m.approvals {
		line := fmt.Sprintf("%s  %s -> %s", p.Title, p.SourceName, p.TargetName)
		if p.TargetName == "" {
			line = fmt.Sprintf("%s  %s", p.Title, p.SourceName)
		}
		if p.Destructive {
			line += " " + destructiveStyle.Render("[destructive]")
		}
		if i == m.selected {
			sb.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

func (m *ConsoleUI) renderDetail() string {
	cur := m.current()
	if cur == nil {
		return ""
	}

	width := m.detailViewport.Width - 2
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("DETAILS") + "\n\n")
	sb.WriteString(fmt.Sprintf("Action: %s\n", cur.ActionID))
	sb.WriteString(fmt.Sprintf("Source: %s (%d)\n", cur.SourceName, cur.SourceCharacterID))
	if cur.TargetCharacterID != nil {
		sb.WriteString(fmt.Sprintf("Target: %s (%d)\n", cur.TargetName, *cur.TargetCharacterID))
	}
	if len(cur.Args) > 0 {
		sb.WriteString("Arguments:\n")
		for k, v := range cur.Args {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}
	sb.WriteString(fmt.Sprintf("Queued: %s\n", cur.CreatedAt.Format(time.Kitchen)))
	sb.WriteString("\n" + separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if m.preview != nil {
		if m.preview.Success {
			if m.preview.Feedback != nil {
				sb.WriteString(feedbackStyle.Render(wordwrap.String(m.preview.Feedback.Message, width)) + "\n")
			} else {
				sb.WriteString("Preview produced no feedback.\n")
			}
		} else {
			sb.WriteString(errorStyle.Render(wordwrap.String(m.preview.Error, width)) + "\n")
		}
	} else if cur.PreviewFeedback != "" {
		sb.WriteString(feedbackStyle.Render(wordwrap.String(cur.PreviewFeedback, width)) + "\n")
	} else {
		sb.WriteString(helpStyle.Render("Press p to preview this action.") + "\n")
	}
	return sb.String()
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showQuitModal {
		modal := modalStyle.Render(titleStyle.Render("Quit?") + "\n\nPress y to quit, any other key to stay.")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.listViewport.View(),
		separatorStyle.Render("│"),
		m.detailViewport.View(),
	)

	statusLine := ""
	if m.err != nil {
		statusLine = errorStyle.Render("Error: " + m.err.Error())
	} else if m.status != "" {
		statusLine = statusStyle.Render(m.status)
	}

	help := helpStyle.Render("↑/↓ select • p preview • a approve • d decline • c copy • r refresh • q quit")

	return panes + "\n" + statusLine + "\n" + help
}
