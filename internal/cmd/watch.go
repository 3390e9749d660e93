package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xcawolfe-amzn/agentd/internal/codec"
	"github.com/xcawolfe-amzn/agentd/internal/style"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: GroupDiag,
	Short:   "Connect to a running daemon and stream its events in a terminal dashboard",
	Long: `watch is a minimal client: it authenticates with the daemon's shared
token and renders every app-server-event and terminal-output notification
it receives in a scrolling viewport, newest at the bottom.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	listen := flagListen
	if listen == "" {
		listen = "127.0.0.1:4732"
	}
	conn, err := net.Dial("tcp", listen)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", listen, err)
	}

	m := newWatchModel(conn, resolveToken())
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	_ = conn.Close()
	return err
}

// watchLine is one rendered row of the dashboard's scrolling event log.
type watchLine struct {
	at      time.Time
	method  string
	summary string
}

// watchKeyMap mirrors the teacher's feed TUI key.Binding/help.KeyMap
// convention (internal/tui/feed/model.go), reduced to this client's two
// actions.
type watchKeyMap struct {
	Quit key.Binding
	Top  key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Top, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Top, k.Quit}}
}

var watchKeys = watchKeyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Top:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "scroll to top")),
}

type watchModel struct {
	conn   net.Conn
	r      *codec.Reader
	w      *codec.Writer
	token  string
	authed bool
	lines  []watchLine
	status string
	nextID uint64

	width, height int
	viewport      viewport.Model
	help          help.Model
	ready         bool
}

func newWatchModel(conn net.Conn, token string) *watchModel {
	return &watchModel{
		conn:   conn,
		r:      codec.NewReader(conn),
		w:      codec.NewWriter(conn),
		token:  token,
		status: "connecting...",
		help:   help.New(),
	}
}

type watchMsg struct {
	raw json.RawMessage
	err error
}

func (m *watchModel) readOne() tea.Cmd {
	return func() tea.Msg {
		raw, err := m.r.ReadMessage()
		return watchMsg{raw: raw, err: err}
	}
}

func (m *watchModel) Init() tea.Cmd {
	m.nextID++
	_ = m.w.Write(map[string]any{
		"id":     m.nextID,
		"method": "auth",
		"params": map[string]string{"token": m.token},
	})
	return m.readOne()
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := 2
		footerHeight := 2
		vpHeight := m.height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.renderViewport()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, watchKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, watchKeys.Top):
			m.viewport.GotoTop()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case watchMsg:
		if msg.err != nil {
			m.status = "disconnected: " + msg.err.Error()
			return m, nil
		}
		m.handleLine(msg.raw)
		return m, m.readOne()
	}
	return m, nil
}

func (m *watchModel) handleLine(raw json.RawMessage) {
	var env struct {
		ID     *uint64         `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	switch {
	case env.Method == "" && env.Result != nil:
		m.authed = true
		m.status = "authenticated"
	case env.Method == "" && env.Error != nil:
		m.status = "auth failed: " + env.Error.Message
	case env.Method != "":
		m.lines = append(m.lines, watchLine{
			at:      time.Now(),
			method:  env.Method,
			summary: summarizeParams(env.Params),
		})
		if len(m.lines) > 500 {
			m.lines = m.lines[len(m.lines)-500:]
		}
	}
	if m.ready {
		m.renderViewport()
		m.viewport.GotoBottom()
	}
}

func (m *watchModel) renderViewport() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(style.Dim.Render(l.at.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(style.Info.Render(l.method))
		b.WriteString(" ")
		b.WriteString(l.summary)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func summarizeParams(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	s := string(raw)
	if len(s) > 160 {
		s = s[:160] + "…"
	}
	return s
}

func (m *watchModel) View() string {
	if !m.ready {
		return "initializing..."
	}
	header := style.Bold.Render("agentd watch") + "  " + style.Dim.Render(m.status)
	return header + "\n\n" + m.viewport.View() + "\n" + m.help.View(watchKeys)
}
