package automemory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/transport"
)

// flushTimeout is spec.md §9's "60-second timeout" for the background
// summarization turn.
const flushTimeout = 60 * time.Second

// Wire methods spoken to the agent for the summarization turn, namespaced
// the same way as the notifications spec.md §3/§4.G already names
// (thread/tokenUsage/updated, item/agentMessage/delta, turn/completed,
// turn/error).
const (
	methodThreadResume = "thread/resume"
	methodTurnStart    = "turn/start"
)

// SnapshotBuilder assembles the context handed to the summarizer: recent
// turns (bounded to MaxTurns), optionally an abbreviated git status and
// tool-output tail (bounded to MaxSnapshotChars). Supplied by the caller
// so automemory stays independent of gitutil and the workspace layout.
type SnapshotBuilder func(ctx context.Context, workspaceID, threadID string, settings model.AutoMemorySettings) (string, error)

// MemoryWriter persists the summarizer's output to the external memory
// store (spec.md §4.G step 6).
type MemoryWriter interface {
	AppendDaily(ctx context.Context, workspaceID string, markdown string, tags []string) error
	AppendCurated(ctx context.Context, workspaceID string, markdown string, tags []string) error
}

// summaryResult is the strict JSON object the summarizer turn is asked to
// produce (spec.md §4.G step 2).
type summaryResult struct {
	NoReply         bool     `json:"no_reply"`
	Title           string   `json:"title"`
	Tags            []string `json:"tags"`
	DailyMarkdown   string   `json:"daily_markdown"`
	CuratedMarkdown string   `json:"curated_markdown"`
}

// tokenUsageParams is the notification payload from thread/tokenUsage/updated.
type tokenUsageParams struct {
	TotalTokens        int `json:"total_tokens"`
	ModelContextWindow int `json:"model_context_window"`
}

// ParseTokenUsage extracts (total_tokens, model_context_window) from a
// thread/tokenUsage/updated notification's params.
func ParseTokenUsage(params json.RawMessage) (totalTokens, modelContextWindow int, ok bool) {
	var p tokenUsageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return 0, 0, false
	}
	return p.TotalTokens, p.ModelContextWindow, true
}

// Flusher runs the spec.md §4.G flush procedure for one claimed
// (workspace, thread) flush.
type Flusher struct {
	Snapshot SnapshotBuilder
	Memory   MemoryWriter
}

// Flush resumes threadID's recent history, starts a fresh helper thread
// with approval policy "never", runs a summarization turn, and writes
// the result to the memory store. Errors are returned to the caller, who
// per spec.md §9 must log and never propagate them to the triggering
// event.
func (f *Flusher) Flush(parent context.Context, session *transport.Session, workspaceID, threadID string, settings model.AutoMemorySettings) error {
	ctx, cancel := context.WithTimeout(parent, flushTimeout)
	defer cancel()

	snapshot := ""
	if f.Snapshot != nil {
		s, err := f.Snapshot(ctx, workspaceID, threadID, settings)
		if err != nil {
			return fmt.Errorf("automemory: snapshot: %w", err)
		}
		snapshot = s
	}

	helperThreadID, sink, err := f.startHelperThread(ctx, session, threadID, snapshot, settings)
	if err != nil {
		return fmt.Errorf("automemory: start helper thread: %w", err)
	}
	defer session.ClearThreadCallback(helperThreadID)

	result, err := runSummarizerTurn(ctx, sink)
	if err != nil {
		return fmt.Errorf("automemory: summarizer turn: %w", err)
	}

	if result.NoReply {
		return nil
	}

	tags := append([]string{"auto_memory", "workspace:" + workspaceID, "thread:" + threadID}, result.Tags...)
	if settings.WriteDaily && result.DailyMarkdown != "" && f.Memory != nil {
		if err := f.Memory.AppendDaily(ctx, workspaceID, result.DailyMarkdown, tags); err != nil {
			return fmt.Errorf("automemory: append daily: %w", err)
		}
	}
	if settings.WriteCurated && result.CuratedMarkdown != "" && f.Memory != nil {
		if err := f.Memory.AppendCurated(ctx, workspaceID, result.CuratedMarkdown, tags); err != nil {
			return fmt.Errorf("automemory: append curated: %w", err)
		}
	}
	return nil
}

// startHelperThread resumes threadID to fetch recent turns, then starts a
// fresh thread in the same workspace with approval policy "never" and
// registers a private sink so its notifications never reach UI
// subscribers.
func (f *Flusher) startHelperThread(ctx context.Context, session *transport.Session, threadID, snapshot string, settings model.AutoMemorySettings) (string, chan transport.Notification, error) {
	resumeParams := map[string]any{
		"threadId": threadID,
		"maxTurns": settings.MaxTurns,
	}
	if _, err := session.SendRequest(ctx, methodThreadResume, resumeParams); err != nil {
		return "", nil, err
	}

	startParams := map[string]any{
		"approvalPolicy": "never",
		"snapshot":       snapshot,
		"prompt": "Summarize this thread's recent activity. Respond with a strict JSON " +
			`object {"no_reply","title","tags","daily_markdown","curated_markdown"} and nothing else.`,
	}
	raw, err := session.SendRequest(ctx, methodTurnStart, startParams)
	if err != nil {
		return "", nil, err
	}

	var started struct {
		ThreadID string `json:"threadId"`
	}
	if err := json.Unmarshal(raw, &started); err != nil || started.ThreadID == "" {
		return "", nil, fmt.Errorf("automemory: turn/start returned no threadId")
	}

	sink := make(chan transport.Notification, 64)
	session.SetThreadCallback(started.ThreadID, func(n transport.Notification) {
		select {
		case sink <- n:
		default:
			// Drop rather than block the reader loop; the collector below
			// only needs delta text and a terminal signal.
		}
	})

	return started.ThreadID, sink, nil
}

// runSummarizerTurn collects item/agentMessage/delta text from sink until
// turn/completed or turn/error arrives, or ctx is done.
func runSummarizerTurn(ctx context.Context, sink <-chan transport.Notification) (summaryResult, error) {
	var buf []byte
	for {
		select {
		case n := <-sink:
			switch n.Method {
			case "item/agentMessage/delta":
				var delta struct {
					Text string `json:"text"`
				}
				if json.Unmarshal(n.Params, &delta) == nil {
					buf = append(buf, delta.Text...)
				}
			case "turn/completed":
				return parseSummary(buf), nil
			case "turn/error":
				var e struct {
					Message string `json:"message"`
				}
				_ = json.Unmarshal(n.Params, &e)
				return summaryResult{}, fmt.Errorf("turn/error: %s", e.Message)
			}
		case <-ctx.Done():
			return summaryResult{}, ctx.Err()
		}
	}
}

// parseSummary parses the summarizer's buffered output as JSON; on parse
// failure it synthesizes a result recording the raw text, per spec.md
// §4.G step 5.
func parseSummary(buf []byte) summaryResult {
	var result summaryResult
	if err := json.Unmarshal(buf, &result); err != nil {
		return summaryResult{
			DailyMarkdown: string(buf),
			Tags:          []string{"auto_memory_parse_error"},
		}
	}
	return result
}
