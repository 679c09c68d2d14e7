// Package tui is the interactive chat front-end: a transcript of
// sender-labelled messages over the RAG flow, with a /reload command
// that drops and re-ingests the textbook collection.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Assistant answers one query; errors surface as answer text.
type Assistant interface {
	Answer(ctx context.Context, query string) string
}

// Reloader drops a collection and re-ingests it from path.
type Reloader interface {
	Reload(ctx context.Context, collection, path string, progress func(done, total int)) error
}

type message struct {
	sender string
	text   string
}

type answerMsg struct {
	text string
}

type reloadProgressMsg struct {
	done  int
	total int
}

type reloadDoneMsg struct {
	err error
}

// Model is the Bubble Tea model for the assistant.
type Model struct {
	assistant  Assistant
	reloader   Reloader
	collection string
	bookPath   string

	input    textinput.Model
	viewport viewport.Model
	messages []message
	status   string
	busy     bool
	ready    bool

	reloadCh chan tea.Msg
}

// New creates the chat model. collection and bookPath feed the /reload
// command.
func New(assistant Assistant, reloader Reloader, collection, bookPath string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the trading book, or /reload to re-ingest it"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant:  assistant,
		reloader:   reloader,
		collection: collection,
		bookPath:   bookPath,
		input:      ti,
		viewport:   vp,
		status:     "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - fh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.busy {
			return m.submit()
		}

	case answerMsg:
		m.busy = false
		m.status = "Ready."
		m.append("Assistant", msg.text)
		return m, nil

	case reloadProgressMsg:
		m.status = fmt.Sprintf("Re-ingesting book... %d/%d chunks", msg.done, msg.total)
		return m, m.waitReload()

	case reloadDoneMsg:
		m.busy = false
		m.reloadCh = nil
		if msg.err != nil {
			m.status = "Reload failed: " + msg.err.Error()
		} else {
			m.status = "Book re-ingested."
			m.append("Assistant", "Book reloaded.")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if text == "/reload" {
		m.busy = true
		m.status = "Re-ingesting book..."
		return m, m.startReload()
	}

	m.append("You", text)
	m.busy = true
	m.status = "Thinking..."
	assistant := m.assistant
	return m, func() tea.Msg {
		return answerMsg{text: assistant.Answer(context.Background(), text)}
	}
}

// startReload runs the reload off the update loop; progress callbacks
// are forwarded as messages through a channel the model drains.
func (m *Model) startReload() tea.Cmd {
	ch := make(chan tea.Msg, 16)
	m.reloadCh = ch
	reloader, collection, path := m.reloader, m.collection, m.bookPath
	go func() {
		err := reloader.Reload(context.Background(), collection, path, func(done, total int) {
			ch <- reloadProgressMsg{done: done, total: total}
		})
		ch <- reloadDoneMsg{err: err}
		close(ch)
	}()
	return m.waitReload()
}

func (m Model) waitReload() tea.Cmd {
	ch := m.reloadCh
	return func() tea.Msg { return <-ch }
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Trading RAG Assistant")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) append(sender, text string) {
	m.messages = append(m.messages, message{sender: sender, text: text})
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return "No messages yet. Ask something about the trading book."
	}
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := assistantLabelStyle
		if msg.sender == "You" {
			label = userLabelStyle
		}
		b.WriteString(label.Render(msg.sender+":") + " " + msg.text)
	}
	return b.String()
}

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	transcriptStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
