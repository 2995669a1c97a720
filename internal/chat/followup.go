package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

const followupTemplate = "My submission scored %d/100 " +
	"(time complexity %d/10, space complexity %d/10, readability %d/10, stability %d/10). " +
	"Please explain what these scores mean and how I can improve."

// TurnRunner performs one chat turn end to end: insert the user message,
// call the inference service, and stream the reply into the transcript.
// SystemInitiated turns carry no override prompt.
type TurnRunner interface {
	RunTurn(ctx context.Context, message string, systemInitiated bool) (MessageID, error)
}

// Followup chains the automatic "explain my score" question after every
// scoring round. It rides the ordinary turn path with its own stream session
// and message ids, so it can overlap a user-initiated turn.
type Followup struct {
	runner TurnRunner
	log    *slog.Logger
}

func NewFollowup(runner TurnRunner, log *slog.Logger) *Followup {
	if log == nil {
		log = slog.Default()
	}
	return &Followup{runner: runner, log: log}
}

// FollowupQuestion renders the canned question for a score.
func FollowupQuestion(score *telemetry.ScoreResult) string {
	return fmt.Sprintf(followupTemplate,
		score.Overall,
		score.TimeComplexity,
		score.SpaceComplexity,
		score.Readability,
		score.Stability,
	)
}

// ExplainScore fires the follow-up turn. Failures are logged; the scoring
// flow that triggered the follow-up never observes them.
func (f *Followup) ExplainScore(ctx context.Context, score *telemetry.ScoreResult) {
	if score == nil {
		return
	}
	if _, err := f.runner.RunTurn(ctx, FollowupQuestion(score), true); err != nil {
		f.log.Warn("followup_failed", "overall", score.Overall, "error", err)
	}
}
