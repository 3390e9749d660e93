package rpcserver

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/agentd/internal/eventbus"
	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func startTestServer(t *testing.T, s *Server) (addr string, stop func()) {
	t.Helper()
	s.Addr = "127.0.0.1:0"
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go s.handleConn(ctx, conn)
		}
	}()
	return l.Addr().String(), func() {
		cancel()
		l.Close()
	}
}

func readLine(t *testing.T, conn net.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(buf[:n], &v); err != nil {
		t.Fatalf("unmarshal %q: %v", buf[:n], err)
	}
	return v
}

func TestUnauthenticatedNonAuthRequestIsRejected(t *testing.T) {
	s := &Server{Token: "secret"}
	addr, stop := startTestServer(t, s)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"id":1,"method":"list_workspaces"}` + "\n"))
	resp := readLine(t, conn)
	if resp["error"] == nil {
		t.Fatalf("expected unauthorized error, got %+v", resp)
	}
}

func TestAuthThenHandlerInvoked(t *testing.T) {
	var gotMethod string
	s := &Server{
		Token: "secret",
		Handler: func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
			gotMethod = method
			return map[string]string{"ok": "yes"}, nil
		},
	}
	addr, stop := startTestServer(t, s)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"id":1,"method":"auth","params":{"token":"secret"}}` + "\n"))
	authResp := readLine(t, conn)
	if authResp["error"] != nil {
		t.Fatalf("auth failed: %+v", authResp)
	}

	conn.Write([]byte(`{"id":2,"method":"list_workspaces"}` + "\n"))
	resp := readLine(t, conn)
	if resp["error"] != nil {
		t.Fatalf("expected success, got %+v", resp)
	}
	if gotMethod != "list_workspaces" {
		t.Fatalf("handler saw method %q", gotMethod)
	}
}

func TestNoAuthModeSkipsGate(t *testing.T) {
	s := &Server{
		NoAuth: true,
		Handler: func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
			return "ok", nil
		},
	}
	addr, stop := startTestServer(t, s)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"id":1,"method":"list_workspaces"}` + "\n"))
	resp := readLine(t, conn)
	if resp["error"] != nil {
		t.Fatalf("expected success in no-auth mode, got %+v", resp)
	}
}

func TestEventForwarderStreamsAfterAuth(t *testing.T) {
	bus := eventbus.New(16)
	s := &Server{NoAuth: true, Bus: bus}
	addr, stop := startTestServer(t, s)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond) // let the forwarder subscribe
	bus.Publish(model.Event{Kind: model.EventAppServer, WorkspaceID: "ws-1"})

	notif := readLine(t, conn)
	if notif["method"] != string(model.EventAppServer) {
		t.Fatalf("notif = %+v", notif)
	}
}
