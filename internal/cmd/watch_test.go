package cmd

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSummarizeParamsEmpty(t *testing.T) {
	if got := summarizeParams(nil); got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestSummarizeParamsTruncates(t *testing.T) {
	raw := json.RawMessage(`"` + strings.Repeat("x", 300) + `"`)
	got := summarizeParams(raw)
	const wantLen = 160 + len("…") // 160 raw bytes kept, plus the 3-byte ellipsis rune
	if len(got) != wantLen {
		t.Fatalf("got length %d, want %d", len(got), wantLen)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("got %q, want a truncated string ending in an ellipsis", got)
	}
}

func TestSummarizeParamsShortPassesThrough(t *testing.T) {
	raw := json.RawMessage(`{"a":1}`)
	if got := summarizeParams(raw); got != `{"a":1}` {
		t.Fatalf("got %q, want the raw JSON untouched", got)
	}
}

func TestWatchKeyMapHelp(t *testing.T) {
	short := watchKeys.ShortHelp()
	if len(short) != 2 {
		t.Fatalf("got %d bindings, want 2", len(short))
	}
	full := watchKeys.FullHelp()
	if len(full) != 1 || len(full[0]) != 2 {
		t.Fatalf("got %#v, want a single row of 2 bindings", full)
	}
}
