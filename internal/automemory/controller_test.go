package automemory

import (
	"testing"
	"time"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

// TestWorkedExample reproduces spec.md §8's worked example verbatim:
// feeding the sequence 15000 → 21000 → 8000 → 21000 into a controller
// configured with window=32000, reserve=10000, soft=2000 must claim
// exactly two flushes, at the second and fourth observations.
func TestWorkedExample(t *testing.T) {
	c := New()
	settings := model.AutoMemorySettings{
		ReserveTokensFloor:  10000,
		SoftThresholdTokens: 2000,
		MinIntervalSeconds:  0,
	}
	now := time.Now()

	seq := []int{15000, 21000, 8000, 21000}
	wantClaims := []bool{false, true, false, true}

	for i, tokens := range seq {
		got := c.Observe("ws", "thread", tokens, 32000, settings, now.Add(time.Duration(i)*time.Second))
		if got != wantClaims[i] {
			t.Fatalf("observation %d (tokens=%d): claimed=%v, want %v", i, tokens, got, wantClaims[i])
		}
	}

	st, ok := c.State("ws", "thread")
	if !ok {
		t.Fatal("expected state to be recorded")
	}
	if st.LastCompactionEpoch != 1 {
		t.Fatalf("epoch = %d, want 1", st.LastCompactionEpoch)
	}
	if st.LastFlushEpoch != 1 {
		t.Fatalf("last flush epoch = %d, want 1", st.LastFlushEpoch)
	}
}

func TestZeroTokensOrWindowIsIgnored(t *testing.T) {
	c := New()
	settings := model.AutoMemorySettings{ReserveTokensFloor: 100, SoftThresholdTokens: 10}
	if c.Observe("ws", "t", 0, 1000, settings, time.Now()) {
		t.Fatal("zero tokens must never claim a flush")
	}
	if c.Observe("ws", "t", 500, 0, settings, time.Now()) {
		t.Fatal("zero context window must never claim a flush")
	}
	if _, ok := c.State("ws", "t"); ok {
		t.Fatal("an ignored observation must not create state")
	}
}

func TestMinIntervalBlocksRepeatFlushWithinSameEpoch(t *testing.T) {
	c := New()
	settings := model.AutoMemorySettings{
		ReserveTokensFloor:  0,
		SoftThresholdTokens: 0,
		MinIntervalSeconds:  600,
	}
	now := time.Now()
	if !c.Observe("ws", "t", 1000, 1000, settings, now) {
		t.Fatal("expected the first trigger to claim a flush")
	}
	if c.Observe("ws", "t", 1000, 1000, settings, now.Add(time.Second)) {
		t.Fatal("a repeat trigger within min_interval_seconds and the same epoch must not claim again")
	}
}

func TestDistinctThreadsAreIndependent(t *testing.T) {
	c := New()
	settings := model.AutoMemorySettings{ReserveTokensFloor: 0, SoftThresholdTokens: 0}
	now := time.Now()
	if !c.Observe("ws", "thread-a", 1000, 1000, settings, now) {
		t.Fatal("expected thread-a to claim")
	}
	if !c.Observe("ws", "thread-b", 1000, 1000, settings, now) {
		t.Fatal("expected thread-b to claim independently of thread-a")
	}
}
