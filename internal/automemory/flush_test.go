package automemory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/transport"
)

func deltaNotification(t *testing.T, text string) transport.Notification {
	t.Helper()
	params, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		t.Fatal(err)
	}
	return transport.Notification{Method: "item/agentMessage/delta", Params: params}
}

func TestParseSummaryValidJSON(t *testing.T) {
	got := parseSummary([]byte(`{"no_reply":false,"title":"t","tags":["x"],"daily_markdown":"d","curated_markdown":"c"}`))
	if got.NoReply {
		t.Fatal("no_reply should be false")
	}
	if got.Title != "t" || got.DailyMarkdown != "d" || got.CuratedMarkdown != "c" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseSummaryInvalidJSONDegradesGracefully(t *testing.T) {
	got := parseSummary([]byte("not json at all"))
	if got.DailyMarkdown != "not json at all" {
		t.Fatalf("got %q", got.DailyMarkdown)
	}
	if len(got.Tags) == 0 || got.Tags[0] != "auto_memory_parse_error" {
		t.Fatalf("expected a parse-error tag, got %v", got.Tags)
	}
}

func TestRunSummarizerTurnCollectsDeltasUntilCompleted(t *testing.T) {
	sink := make(chan transport.Notification, 8)
	sink <- deltaNotification(t, `{"no_reply":false,`)
	sink <- deltaNotification(t, `"title":"t","tags":[],"daily_markdown":"d","curated_markdown":""}`)
	sink <- transport.Notification{Method: "turn/completed"}

	result, err := runSummarizerTurn(context.Background(), sink)
	if err != nil {
		t.Fatalf("runSummarizerTurn: %v", err)
	}
	if result.Title != "t" || result.DailyMarkdown != "d" {
		t.Fatalf("got %+v", result)
	}
}

func TestRunSummarizerTurnPropagatesTurnError(t *testing.T) {
	sink := make(chan transport.Notification, 1)
	sink <- transport.Notification{Method: "turn/error", Params: []byte(`{"message":"boom"}`)}

	_, err := runSummarizerTurn(context.Background(), sink)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseTokenUsage(t *testing.T) {
	total, window, ok := ParseTokenUsage([]byte(`{"total_tokens":5000,"model_context_window":32000}`))
	if !ok || total != 5000 || window != 32000 {
		t.Fatalf("got total=%d window=%d ok=%v", total, window, ok)
	}
	if _, _, ok := ParseTokenUsage([]byte(`not json`)); ok {
		t.Fatal("expected ok=false for invalid JSON")
	}
}
