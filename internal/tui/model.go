// Package tui renders the interactive chat interface. It is a thin view over
// the chat client: protocol events are forwarded into the bubbletea program
// as messages, and user input flows back out through the chat client.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/agentwire/agentwire/internal/chat"
	"github.com/agentwire/agentwire/internal/logger"
	"github.com/agentwire/agentwire/internal/protocol"
	"github.com/agentwire/agentwire/internal/wsclient"
)

const inputPlaceholder = "Type a message... (Enter to send, Ctrl+N for new session, Ctrl+C to quit)"

// chatEventMsg carries a protocol event from the connection goroutine into
// the bubbletea update loop.
type chatEventMsg struct {
	event chat.Event
}

// connStateMsg reports a connection state change for the footer.
type connStateMsg struct {
	state wsclient.State
	err   error
}

// message is one rendered line group in the transcript.
type message struct {
	role    string
	content string
}

type Model struct {
	client *chat.Client

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	messages  []message
	streaming string // partial assistant answer for the turn in flight
	waiting   bool

	connState wsclient.State
	lastErr   error

	width  int
	height int
	ready  bool

	log *logger.Logger
}

// NewModel builds the initial model over an existing chat client. The current
// session's history is preloaded into the transcript.
func NewModel(client *chat.Client) *Model {
	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.Focus()
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		client:    client,
		textarea:  ta,
		spinner:   sp,
		connState: client.Conn().State(),
		log:       logger.Global().WithPrefix("tui"),
	}
	for _, msg := range client.History() {
		m.messages = append(m.messages, message{role: msg.Role, content: msg.Content})
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chromeHeight := m.textarea.Height() + 4 // header, footer, spacing
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlN:
			m.client.NewSession()
			m.messages = nil
			m.streaming = ""
			m.waiting = false
			m.lastErr = nil
			m.refreshViewport()
			return m, nil
		case tea.KeyEnter:
			return m, m.submit()
		}

	case chatEventMsg:
		m.applyEvent(msg.event)
		m.refreshViewport()

	case connStateMsg:
		m.connState = msg.state
		if msg.err != nil {
			m.lastErr = msg.err
		}
		if msg.state == wsclient.StateOpen {
			m.lastErr = nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)

	return m, tea.Batch(cmds...)
}

// submit sends the current input as a user message.
func (m *Model) submit() tea.Cmd {
	content := strings.TrimSpace(m.textarea.Value())
	if content == "" {
		return nil
	}

	if err := m.client.SendMessage(content); err != nil {
		m.lastErr = err
		return nil
	}

	m.textarea.Reset()
	m.messages = append(m.messages, message{role: protocol.RoleUser, content: content})
	m.streaming = ""
	m.waiting = true
	m.lastErr = nil
	m.refreshViewport()
	return nil
}

// applyEvent folds one protocol event into the transcript.
func (m *Model) applyEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventChunk:
		m.streaming += ev.Content

	case chat.EventAssistantMessage:
		m.streaming = ""
		m.waiting = false
		if ev.Content != "" {
			m.messages = append(m.messages, message{role: protocol.RoleAssistant, content: ev.Content})
		}

	case chat.EventToolCall:
		label := ev.ToolName
		if len(ev.ToolArgs) > 0 {
			label += " " + string(ev.ToolArgs)
		}
		m.messages = append(m.messages, message{role: "tool", content: "→ " + label})

	case chat.EventToolResult:
		m.messages = append(m.messages, message{role: "tool", content: ev.ToolOutput})

	case chat.EventTurnError:
		m.streaming = ""
		m.waiting = false
		m.lastErr = ev.Err
	}
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	wrapWidth := m.viewport.Width - 2
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg, wrapWidth))
	}
	if m.streaming != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(assistantLabelStyle.Render("Agent"))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(m.streaming, wrapWidth))
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(b.String())
	if atBottom || m.waiting || m.streaming != "" {
		m.viewport.GotoBottom()
	}
}

func renderMessage(msg message, wrapWidth int) string {
	switch msg.role {
	case protocol.RoleUser:
		return userLabelStyle.Render("You") + "\n" + wordwrap.String(msg.content, wrapWidth)
	case protocol.RoleAssistant:
		return assistantLabelStyle.Render("Agent") + "\n" + wordwrap.String(msg.content, wrapWidth)
	case "tool":
		return toolStyle.Render(wordwrap.String(msg.content, wrapWidth))
	default:
		return wordwrap.String(msg.content, wrapWidth)
	}
}

func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("agentwire"))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

// footer renders the connection status segment and any pending error.
func (m *Model) footer() string {
	var status string
	switch m.connState {
	case wsclient.StateOpen:
		status = connectedStyle.Render("● connected")
	case wsclient.StateConnecting:
		status = statusStyle.Render("● connecting...")
	case wsclient.StateReconnectScheduled:
		status = disconnectedStyle.Render("● reconnecting...")
	default:
		status = disconnectedStyle.Render("● offline")
	}

	line := statusStyle.Render(fmt.Sprintf("session %.8s", m.client.SessionID())) + "  " + status
	if m.waiting {
		line += "  " + m.spinner.View()
	}
	if m.lastErr != nil {
		line += "\n" + errorStyle.Render(m.lastErr.Error())
	}
	return line
}

// Run starts the interactive UI over a connected chat client and blocks until
// the user quits. Protocol and connection events are pumped into the program
// from the connection's goroutines.
func Run(client *chat.Client) error {
	m := NewModel(client)
	p := tea.NewProgram(m, tea.WithAltScreen())

	client.OnEvent(func(ev chat.Event) {
		p.Send(chatEventMsg{event: ev})
	})
	conn := client.Conn()
	conn.OnOpen(func() {
		p.Send(connStateMsg{state: wsclient.StateOpen})
	})
	conn.OnClose(func(err error) {
		p.Send(connStateMsg{state: conn.State(), err: err})
	})

	conn.Connect()
	defer conn.Disconnect()

	_, err := p.Run()
	return err
}
