// Package transport implements spec.md §4.C: a JSON-RPC-like dialect
// spoken over the stdio of one child agent process per workspace.
//
// Session/Process shapes are grounded in dmora-agentrun's Engine/Process
// abstraction (engine/acp/process.go, engine/acp/conn.go): a pending-request
// map guarded by a mutex, a dedicated reader goroutine that both resolves
// replies and dispatches notifications, and disconnect semantics that drain
// every pending call with a sentinel error. Adapted from dmora-agentrun's
// multi-backend Process interface down to a single stdio-JSON-RPC child,
// since every agentd backend is the same codex-like binary.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/xcawolfe-amzn/agentd/internal/codec"
)

// NotificationSink receives agent-originated notifications. The public
// sink receives every notification that isn't claimed by a background
// thread callback; a private sink (registered via SetThreadCallback)
// receives only notifications whose threadId/thread_id matches.
type NotificationSink func(Notification)

// SpawnOptions configures a child agent process.
type SpawnOptions struct {
	WorkspaceID string
	Bin         string
	Args        []string
	Dir         string
	Env         []string
	Sink        NotificationSink
}

// Session is a live agent subprocess: piped stdio framed as newline-JSON,
// a monotonic request id space, and a one-shot reply channel per in-flight
// request. See spec.md §3's "Agent session" for the field-level contract.
type Session struct {
	WorkspaceID string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	w     *codec.Writer
	sink  NotificationSink

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan Reply

	bgMu       sync.Mutex
	background map[string]NotificationSink

	done       chan struct{}
	closeOnce  sync.Once
	disconnect atomic.Pointer[error]
}

// Spawn locates nothing itself — callers resolve the binary via
// ResolveBinary first — and starts opts.Bin with piped stdio, installing
// the stdout reader and stderr drain described in spec.md §4.C.
func Spawn(opts SpawnOptions) (*Session, error) {
	cmd := exec.Command(opts.Bin, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start %s: %w", opts.Bin, err)
	}

	s := &Session{
		WorkspaceID: opts.WorkspaceID,
		cmd:         cmd,
		stdin:       stdin,
		w:           codec.NewWriter(stdin),
		sink:        opts.Sink,
		pending:     make(map[uint64]chan Reply),
		background:  make(map[string]NotificationSink),
		done:        make(chan struct{}),
	}

	go s.readLoop(stdout)
	go drainStderr(stderr)

	return s, nil
}

// drainStderr discards the child's stderr so the pipe never fills and
// blocks the child; the daemon has no use for an agent's stderr chatter.
func drainStderr(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

// SetThreadCallback registers a private notification sink for threadID,
// used by background turns (commit messages, auto-memory) that must not
// leak their notifications to normal UI subscribers.
func (s *Session) SetThreadCallback(threadID string, sink NotificationSink) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	s.background[threadID] = sink
}

// ClearThreadCallback removes a private notification sink.
func (s *Session) ClearThreadCallback(threadID string) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	delete(s.background, threadID)
}

// SendRequest allocates the next request id, writes {id,method,params} to
// the child's stdin, and blocks until a matching reply arrives, ctx is
// done, or the session disconnects.
func (s *Session) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := s.disconnectErr(); err != nil {
		return nil, err
	}

	id := s.nextID.Add(1)
	ch := make(chan Reply, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	if err := s.w.Write(outboundRequest{ID: id, Method: method, Params: params}); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		s.markDisconnected(ErrDisconnected)
		return nil, ErrDisconnected
	}

	select {
	case reply := <-ch:
		return reply.Result, reply.Err
	case <-s.done:
		// The reply may have raced the disconnect; prefer it if present.
		select {
		case reply := <-ch:
			return reply.Result, reply.Err
		default:
			return nil, ErrDisconnected
		}
	case <-ctx.Done():
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// SendResponse writes a response correlated to a server-originated request
// (the agent called the daemon and is awaiting a reply).
func (s *Session) SendResponse(id uint64, result any) error {
	if err := s.disconnectErr(); err != nil {
		return err
	}
	if err := s.w.Write(outboundResponse{ID: id, Result: result}); err != nil {
		s.markDisconnected(ErrDisconnected)
		return ErrDisconnected
	}
	return nil
}

// Close kills the child and waits for the reader goroutine to observe EOF.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.stdin.Close()
	})
	<-s.done
	return nil
}

// Done returns a channel closed once the child has exited and the reader
// loop has finished draining.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) disconnectErr() error {
	if p := s.disconnect.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Session) markDisconnected(err error) {
	s.disconnect.CompareAndSwap(nil, &err)
}

// readLoop is the single dedicated task that reads the child's stdout
// line-by-line, routes replies to pending requests, and fans out
// notifications to the public sink or a registered background callback.
func (s *Session) readLoop(stdout io.Reader) {
	defer s.finish()

	r := codec.NewReader(stdout)
	for {
		raw, err := r.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch {
		case env.ID != nil && env.Method == "":
			s.routeReply(*env.ID, env)
		case env.Method != "":
			s.routeNotification(env)
		}
	}
}

func (s *Session) routeReply(id uint64, env envelope) {
	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	reply := Reply{Result: env.Result}
	if env.Error != nil {
		reply.Err = fmt.Errorf("%s", env.Error.Message)
	}
	ch <- reply
}

func (s *Session) routeNotification(env envelope) {
	threadID := extractThreadID(env.Params)
	notif := Notification{
		WorkspaceID: s.WorkspaceID,
		ThreadID:    threadID,
		Method:      env.Method,
		Params:      env.Params,
		RequestID:   env.ID,
	}

	if threadID != "" {
		s.bgMu.Lock()
		sink, ok := s.background[threadID]
		s.bgMu.Unlock()
		if ok {
			sink(notif)
			return
		}
	}
	if s.sink != nil {
		s.sink(notif)
	}
}

// finish runs once stdout EOFs or errors: it marks the session
// disconnected, waits for the child to exit, resolves every still-pending
// request with ErrDisconnected, and closes done.
func (s *Session) finish() {
	s.markDisconnected(ErrDisconnected)
	_ = s.cmd.Wait()

	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[uint64]chan Reply)
	s.pendingMu.Unlock()

	for id, ch := range pending {
		ch <- Reply{Err: ErrDisconnected}
		close(ch)
		_ = id
	}

	close(s.done)
}
