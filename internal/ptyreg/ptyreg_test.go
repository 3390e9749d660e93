package ptyreg

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestOpenWriteEchoesOutput(t *testing.T) {
	r := New()

	var mu sync.Mutex
	var got strings.Builder
	sink := func(data string) {
		mu.Lock()
		defer mu.Unlock()
		got.WriteString(data)
	}

	s, err := r.Open("ws-1", "term-1", "/bin/sh", t.TempDir(), 80, 24, sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close("ws-1", "term-1")

	if err := s.Write([]byte("echo hello-pty\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		seen := strings.Contains(got.String(), "hello-pty")
		mu.Unlock()
		if seen {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("did not observe echoed output, got %q", got.String())
}

func TestOpenIsIdempotent(t *testing.T) {
	r := New()
	s1, err := r.Open("ws-1", "term-1", "/bin/sh", t.TempDir(), 80, 24, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close("ws-1", "term-1")

	s2, err := r.Open("ws-1", "term-1", "/bin/sh", t.TempDir(), 80, 24, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s1 != s2 {
		t.Fatal("expected the second Open to return the existing session")
	}
}

func TestWriteUnknownTerminalErrors(t *testing.T) {
	r := New()
	if err := r.Write("ws-1", "missing", []byte("x")); err == nil {
		t.Fatal("expected an error for an unknown terminal")
	}
}

func TestCloseRemovesSession(t *testing.T) {
	r := New()
	if _, err := r.Open("ws-1", "term-1", "/bin/sh", t.TempDir(), 80, 24, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Close("ws-1", "term-1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := r.get("ws-1", "term-1"); ok {
		t.Fatal("session should have been removed")
	}
}
