// Package rpcserver implements spec.md §4.H: the daemon's client-facing TCP
// socket. Grounded in the line-JSON accept-loop shape of catherdd's
// internal/daemon (net.Listen, per-connection goroutine, bufio.Scanner
// request loop) adapted to this daemon's per-connection auth gate and
// event-forwarder task rather than catherdd's synchronous request/response.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/xcawolfe-amzn/agentd/internal/applog"
	"github.com/xcawolfe-amzn/agentd/internal/codec"
	"github.com/xcawolfe-amzn/agentd/internal/eventbus"
)

// Request is one client request line: {id?, method, params}. A missing id
// marks a notification, which is handled but never elicits a response.
type Request struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is {id, result} or {id, error:{message}} per spec.md §6.
type Response struct {
	ID     uint64      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// RPCError carries a human-readable message, never a structured code:
// spec.md §7 has handlers "surface errors as {id, error:{message}} strings".
type RPCError struct {
	Message string `json:"message"`
}

// Handler dispatches one authenticated request to spec.md §4.I's RPC
// table. It is supplied by the caller so rpcserver stays independent of
// the dispatch table's contents.
type Handler func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

// Server accepts client connections on a TCP listener.
type Server struct {
	Addr    string
	Token   string // empty Token, or NoAuth set, means dev mode: no auth required
	NoAuth  bool
	Bus     *eventbus.Bus
	Handler Handler

	mu       sync.Mutex
	listener net.Listener
	log      *applog.Logger
}

// authRequired reports whether an unauthenticated connection must present
// a token before any other method is served.
func (s *Server) authRequired() bool {
	return !s.NoAuth && s.Token != ""
}

// Serve binds Addr and accepts connections until ctx is done or Close is
// called. It blocks; run it in its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("rpcserver: listen %s: %w", s.Addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.log = applog.New("rpcserver")
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	s.log.Printf("listening on %s", s.Addr)
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("rpcserver: accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// conn holds one client connection's read/write halves and auth state.
type conn struct {
	s          *Server
	netConn    net.Conn
	w          *codec.Writer
	writeCh    chan any
	authed     bool
	cancelFwd  context.CancelFunc
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	c := &conn{
		s:       s,
		netConn: nc,
		w:       codec.NewWriter(nc),
		writeCh: make(chan any, 256),
		authed:  !s.authRequired(),
	}
	defer nc.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	if c.authed {
		c.startEventForwarder(connCtx)
	}

	r := codec.NewReader(nc)
	for {
		raw, err := r.ReadMessage()
		if err != nil {
			break
		}
		var req Request
		if json.Unmarshal(raw, &req) != nil {
			continue
		}
		c.handleRequest(connCtx, req)
	}

	if c.cancelFwd != nil {
		c.cancelFwd()
	}
	close(c.writeCh)
	wg.Wait()
}

func (c *conn) writeLoop() {
	for v := range c.writeCh {
		if err := c.w.Write(v); err != nil {
			return
		}
	}
}

// send enqueues v for the write loop; it never blocks the reader on a slow
// client beyond the channel's buffer, dropping silently once the
// connection is already tearing down.
func (c *conn) send(v any) {
	select {
	case c.writeCh <- v:
	default:
	}
}

func (c *conn) handleRequest(ctx context.Context, req Request) {
	if !c.authed {
		if req.Method != "auth" {
			c.respondUnauthorized(req)
			return
		}
		c.handleAuth(ctx, req)
		return
	}

	if c.s.Handler == nil {
		c.respondError(req, fmt.Errorf("unknown method: %s", req.Method))
		return
	}
	result, err := c.s.Handler(ctx, req.Method, req.Params)
	if err != nil {
		c.respondError(req, err)
		return
	}
	if req.ID != nil {
		c.send(Response{ID: *req.ID, Result: result})
	}
}

type authParams struct {
	Token string `json:"token"`
}

func (c *conn) handleAuth(ctx context.Context, req Request) {
	var p authParams
	_ = json.Unmarshal(req.Params, &p)

	if c.s.authRequired() && p.Token != c.s.Token {
		c.respondError(req, fmt.Errorf("unauthorized"))
		return
	}
	c.authed = true
	c.startEventForwarder(ctx)
	if req.ID != nil {
		c.send(Response{ID: *req.ID, Result: map[string]bool{"ok": true}})
	}
}

func (c *conn) respondUnauthorized(req Request) {
	c.respondError(req, fmt.Errorf("unauthorized"))
}

func (c *conn) respondError(req Request, err error) {
	if req.ID == nil {
		return
	}
	c.send(Response{ID: *req.ID, Error: &RPCError{Message: err.Error()}})
}

// startEventForwarder subscribes to the bus and streams every event as a
// {method, params} notification (no id) to this client, per spec.md §4.H
// step 3. Runs until fwdCtx is cancelled (connection closing) or the bus
// closes.
func (c *conn) startEventForwarder(ctx context.Context) {
	if c.s.Bus == nil {
		return
	}
	fwdCtx, cancel := context.WithCancel(ctx)
	c.cancelFwd = cancel
	sub := c.s.Bus.Subscribe()

	go func() {
		for {
			event, lagged, err := sub.Recv(fwdCtx)
			if err != nil {
				return
			}
			if lagged > 0 && c.s.log != nil {
				c.s.log.Printf("subscriber lagged by %d events", lagged)
			}
			c.send(struct {
				Method string `json:"method"`
				Params any    `json:"params"`
			}{Method: event.Method(), Params: event})
		}
	}()
}
