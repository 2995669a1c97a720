package e2e

import (
	"context"
	"strings"
	"testing"

	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/mockserver"
	"github.com/bc-dunia/codecoach/internal/scoring"
	"github.com/bc-dunia/codecoach/internal/telemetry"
)

func TestSubmitScoreAndExplainFlow(t *testing.T) {
	f := newFixture(t)

	out := f.session.Submit(context.Background())
	if out.State != scoring.StateCompleted {
		t.Fatalf("State = %s, err %v", out.State, out.Err)
	}
	if out.Score == nil || out.Score.Overall != 92 {
		t.Fatalf("Score = %+v", out.Score)
	}
	if out.UsedExecFallback || out.UsedScoreFallback {
		t.Errorf("unexpected fallback: %+v", out)
	}

	// Every backend leg fired exactly once, follow-up chat included.
	stats := f.srv.Stats()
	if stats.ExecuteCalls != 1 || stats.ScoreCalls != 1 || stats.SubmitCalls != 1 || stats.ChatCalls != 1 {
		t.Errorf("backend calls = %+v", stats)
	}

	// The follow-up turn is a system-initiated question quoting the score,
	// answered by the streamed tutor reply.
	msgs := f.session.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript = %d messages, want 2", len(msgs))
	}
	if !msgs[0].SystemInitiated || !strings.Contains(msgs[0].Text, "92") {
		t.Errorf("follow-up question = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Text == "" {
		t.Errorf("follow-up reply = %+v", msgs[1])
	}

	snap := f.session.Store().Snapshot()
	if snap.RunCount != 1 || snap.SuccessfulRuns != 1 || snap.ErrorCount != 0 {
		t.Errorf("run counters = %+v", snap)
	}
	if snap.CompletedQuestions != 1 {
		t.Errorf("CompletedQuestions = %d", snap.CompletedQuestions)
	}
	if snap.LastScore == nil || snap.LastScore.Overall != 92 {
		t.Errorf("LastScore = %+v", snap.LastScore)
	}
	if len(snap.ScoreHistory) != 1 {
		t.Errorf("ScoreHistory = %v", snap.ScoreHistory)
	}

	var sawScoreLine bool
	for _, line := range f.status.Lines() {
		if strings.Contains(line, "Score: 92/100") {
			sawScoreLine = true
		}
	}
	if !sawScoreLine {
		t.Errorf("status lines = %v", f.status.Lines())
	}
}

func TestSecondSubmissionCarriesPreviousScoreContext(t *testing.T) {
	f := newFixture(t)

	f.session.Submit(context.Background())
	f.code.Set(`print("Hello, Python!")  # tidied`)
	f.session.Submit(context.Background())

	body := f.srv.Stats().LastChatBody
	if body["last_score"] == nil {
		t.Error("follow-up chat request lacks last_score context")
	}
	stats, ok := body["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats = %T", body["stats"])
	}
	if stats["run_count"].(float64) != 2 {
		t.Errorf("run_count in chat context = %v", stats["run_count"])
	}
}

func TestAskThenSubmitSharesTranscript(t *testing.T) {
	f := newFixture(t)

	if _, err := f.session.Ask(context.Background(), "What does print do?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	f.session.Submit(context.Background())

	msgs := f.session.Transcript().Messages()
	if len(msgs) != 4 {
		t.Fatalf("transcript = %d messages, want question, reply, follow-up, reply", len(msgs))
	}
	if msgs[0].SystemInitiated || !msgs[2].SystemInitiated {
		t.Errorf("system-initiated flags wrong: %+v", msgs)
	}
}

func TestBelowThresholdDoesNotComplete(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.Score = &telemetry.ScoreResult{Overall: 60, TimeComplexity: 5, SpaceComplexity: 6, Readability: 7, Stability: 6}
	f.srv.SetBehavior(b)

	out := f.session.Submit(context.Background())
	if out.State != scoring.StateCompleted {
		t.Fatalf("State = %s", out.State)
	}
	snap := f.session.Store().Snapshot()
	if snap.CompletedQuestions != 0 {
		t.Errorf("question completed at score %d", out.Score.Overall)
	}
}
