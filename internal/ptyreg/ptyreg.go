// Package ptyreg implements spec.md §4.E: a per-(workspace, terminal)
// interactive shell registry. PTYs are allocated with creack/pty, the
// same library re-cinq-detergent uses to give a subprocess a real
// terminal (internal/engine/engine.go's invokeAgent); here the PTY is
// interactive rather than a one-shot log sink, so both ends (master
// read/write, child stdin/stdout/stderr) stay live for the session.
package ptyreg

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// OutputSink receives decoded terminal output chunks for a session.
type OutputSink func(data string)

// Session is one interactive shell: a PTY master paired with a child
// shell process, and the decoder that keeps multi-byte UTF-8 sequences
// from splitting across reads.
type Session struct {
	WorkspaceID string
	TerminalID  string

	master *os.File
	cmd    *exec.Cmd

	writeMu sync.Mutex
	done    chan struct{}
}

type key struct {
	workspaceID string
	terminalID  string
}

// Registry is the (workspace_id, terminal_id) → Session map.
type Registry struct {
	mu       sync.Mutex
	sessions map[key]*Session
}

// New creates an empty PTY registry.
func New() *Registry {
	return &Registry{sessions: make(map[key]*Session)}
}

// Open creates a PTY of the requested geometry and starts shell as an
// interactive child, or returns the existing session for this key if one
// is already open (idempotent, per spec.md §4.E).
func (r *Registry) Open(workspaceID, terminalID, shell, dir string, cols, rows uint16, sink OutputSink) (*Session, error) {
	k := key{workspaceID, terminalID}

	r.mu.Lock()
	if existing, ok := r.sessions[k]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	if cols == 0 || rows == 0 {
		cols, rows = fallbackSize()
	}

	cmd := exec.Command(shell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"LANG="+resolveLocale(),
		"LC_ALL="+resolveLocale(),
		"LC_CTYPE="+resolveLocale(),
	)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("ptyreg: start %s: %w", shell, err)
	}

	s := &Session{
		WorkspaceID: workspaceID,
		TerminalID:  terminalID,
		master:      master,
		cmd:         cmd,
		done:        make(chan struct{}),
	}

	r.mu.Lock()
	// Re-check under the lock: a concurrent Open for the same key may
	// have won the race while this one was spawning a PTY.
	if existing, ok := r.sessions[k]; ok {
		r.mu.Unlock()
		close(s.done) // readLoop never started for s; Close waits on done
		_ = s.Close()
		return existing, nil
	}
	r.sessions[k] = s
	r.mu.Unlock()

	go s.readLoop(sink, func() { r.remove(k) })

	return s, nil
}

// Write forwards bytes into the PTY master.
func (r *Registry) Write(workspaceID, terminalID string, data []byte) error {
	s, ok := r.get(workspaceID, terminalID)
	if !ok {
		return fmt.Errorf("ptyreg: no terminal %s/%s", workspaceID, terminalID)
	}
	return s.Write(data)
}

// Resize sets new PTY geometry.
func (r *Registry) Resize(workspaceID, terminalID string, cols, rows uint16) error {
	s, ok := r.get(workspaceID, terminalID)
	if !ok {
		return fmt.Errorf("ptyreg: no terminal %s/%s", workspaceID, terminalID)
	}
	return pty.Setsize(s.master, &pty.Winsize{Cols: cols, Rows: rows})
}

// Close removes the (workspace, terminal) session and kills its child.
func (r *Registry) Close(workspaceID, terminalID string) error {
	k := key{workspaceID, terminalID}
	r.mu.Lock()
	s, ok := r.sessions[k]
	if ok {
		delete(r.sessions, k)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

func (r *Registry) get(workspaceID, terminalID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key{workspaceID, terminalID}]
	return s, ok
}

func (r *Registry) remove(k key) {
	r.mu.Lock()
	delete(r.sessions, k)
	r.mu.Unlock()
}

// Write sends data to the PTY master.
func (s *Session) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.master.Write(data)
	return err
}

// Close kills the child shell and closes the PTY master.
func (s *Session) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.master.Close()
	<-s.done
	return err
}

// readLoop is the blocking reader thread described in spec.md §4.E: it
// decodes UTF-8 incrementally and emits each decoded chunk via sink.
// onExit is called once, after the PTY read loop ends, so the owning
// registry can drop this session even if the client never calls Close.
func (s *Session) readLoop(sink OutputSink, onExit func()) {
	defer close(s.done)
	defer onExit()

	var dec utf8Decoder
	buf := make([]byte, 32*1024)
	for {
		n, err := s.master.Read(buf)
		if n > 0 {
			if text := dec.Feed(buf[:n]); text != "" && sink != nil {
				sink(text)
			}
		}
		if err != nil {
			return
		}
	}
}

// fallbackSize returns the daemon's own terminal size, or 80x24 if stdout
// isn't a terminal.
func fallbackSize() (cols, rows uint16) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return uint16(w), uint16(h)
}
