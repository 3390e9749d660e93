package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestReaderSkipsBlankAndMalformedLines(t *testing.T) {
	input := "\n   \nnot json at all\n{\"a\":1}\n{\"b\":2}\n"
	r := NewReader(strings.NewReader(input))

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != `{"a":1}` {
		t.Fatalf("got %s", msg)
	}

	msg, err = r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != `{"b":2}` {
		t.Fatalf("got %s", msg)
	}

	if _, err := r.ReadMessage(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(map[string]int{"x": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != `{"x":1}`+"\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestWriterSerializesConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Write(map[string]int{"n": i})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 50 {
		t.Fatalf("got %d lines, want 50", len(lines))
	}
	for _, line := range lines {
		var v map[string]int
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			t.Fatalf("line %q did not parse as a whole JSON value: %v", line, err)
		}
	}
}
