package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bc-dunia/codecoach/internal/analysis"
	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/client"
	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// PassThreshold is the overall score at which a question counts as completed.
const PassThreshold = 85

// Sandbox runs student code remotely.
type Sandbox interface {
	Run(ctx context.Context, code string, inputs []string) (string, error)
}

// Scorer evaluates code against its output.
type Scorer interface {
	Score(ctx context.Context, req client.ScoreRequest) (*telemetry.ScoreResult, error)
}

// Persister records accepted scores with the backend.
type Persister interface {
	SubmitScore(ctx context.Context, req client.SubmitRequest) error
}

// Chainer fires the automatic score follow-up.
type Chainer interface {
	ExplainScore(ctx context.Context, score *telemetry.ScoreResult)
}

// StatusSink receives display updates. The orchestrator never assumes any
// particular UI exists behind it.
type StatusSink interface {
	ShowStatus(text string)
	ShowScore(score *telemetry.ScoreResult)
}

// NopStatus discards display updates.
type NopStatus struct{}

func (NopStatus) ShowStatus(string) {}

func (NopStatus) ShowScore(*telemetry.ScoreResult) {}

// Question is the problem the student is solving.
type Question struct {
	ID             string
	Statement      string
	ExpectedOutput string
	Inputs         []string
}

// Outcome is the terminal result of one scoring invocation. Score is set on
// both paths: remote on success, locally estimated on failure.
type Outcome struct {
	State             State
	Score             *telemetry.ScoreResult
	Output            string
	UsedExecFallback  bool
	UsedScoreFallback bool
	Err               error
}

// Orchestrator owns the scoring flow.
type Orchestrator struct {
	sandbox   Sandbox
	scorer    Scorer
	persister Persister
	chainer   Chainer
	store     *telemetry.Store
	status    StatusSink
	log       *slog.Logger
	studentID string
}

func NewOrchestrator(
	sandbox Sandbox,
	scorer Scorer,
	persister Persister,
	chainer Chainer,
	store *telemetry.Store,
	status StatusSink,
	log *slog.Logger,
	studentID string,
) *Orchestrator {
	if status == nil {
		status = NopStatus{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sandbox:   sandbox,
		scorer:    scorer,
		persister: persister,
		chainer:   chainer,
		store:     store,
		status:    status,
		log:       log,
		studentID: studentID,
	}
}

type run struct {
	state State
	log   *slog.Logger
}

func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		r.log.Error("invalid_scoring_transition", "from", string(r.state), "to", string(next))
	}
	r.state = next
}

// Submit runs the full flow for one invocation. Validation failures surface
// before any network call; every other failure ends in StateFailed with a
// locally estimated score so the caller always has a number to show.
func (o *Orchestrator) Submit(ctx context.Context, q *Question, code string) *Outcome {
	r := &run{state: StateCreated, log: o.log}
	out := &Outcome{}

	if q == nil || q.ID == "" {
		return o.reject(r, out, client.NewValidationError(client.CodeMissingQuestion, "no question selected"))
	}
	if strings.TrimSpace(code) == "" {
		return o.reject(r, out, client.NewValidationError(client.CodeEmptyCode, "no code to submit"))
	}

	// Executing
	r.to(StateExecuting)
	o.status.ShowStatus("Running your code...")
	output, err := o.sandbox.Run(ctx, code, q.Inputs)
	execOK := err == nil
	if !execOK {
		o.log.Warn("sandbox_unreachable", "question_id", q.ID, "error", err)
		output = client.LocalEval(code)
		out.UsedExecFallback = true
	}
	out.Output = output

	// Requesting
	r.to(StateRequesting)
	o.status.ShowStatus("Waiting for AI evaluation...")
	snap := o.store.Snapshot()
	rc := chat.BuildContext(code, output, snap.LastScore, snap, chat.WithQuestion(q.Statement))
	score, err := o.scorer.Score(ctx, client.ScoreRequest{
		Code:           rc.Code,
		Output:         rc.Output,
		ExpectedOutput: q.ExpectedOutput,
		Question:       rc.Question,
		OverridePrompt: rc.OverridePrompt,
	})
	if err != nil {
		return o.fail(ctx, r, out, q, code, output, err)
	}

	// Applying
	r.to(StateApplying)
	o.store.RecordRun(execOK)
	o.store.AppendScore(score.Overall)
	o.store.SetLastScore(score, code, output)
	if score.Overall >= PassThreshold {
		o.store.RecordCompleted()
	}
	out.Score = score

	if submitErr := o.persister.SubmitScore(ctx, client.SubmitRequest{
		StudentID:      o.studentID,
		QuestionID:     q.ID,
		Score:          score.Overall,
		Code:           code,
		DetailedScores: score,
	}); submitErr != nil {
		// Persistence failure never blocks the score display or follow-up.
		o.log.Warn("score_submit_failed", "question_id", q.ID, "error", submitErr)
	}

	o.status.ShowScore(score)
	o.status.ShowStatus(fmt.Sprintf("Score: %d/100", score.Overall))

	// Chaining
	r.to(StateChaining)
	o.chainer.ExplainScore(ctx, score)

	r.to(StateCompleted)
	out.State = r.state
	return out
}

// reject handles pre-flight validation failures: no execution was attempted,
// so no run is recorded and no fallback score is invented.
func (o *Orchestrator) reject(r *run, out *Outcome, err *client.CoachError) *Outcome {
	r.to(StateFailed)
	out.State = r.state
	out.Err = err
	o.status.ShowStatus(err.Message)
	return out
}

// fail ends the invocation after a scoring failure. The run (and its error)
// is recorded exactly once, and a similarity-based estimate stands in for the
// remote score.
func (o *Orchestrator) fail(ctx context.Context, r *run, out *Outcome, q *Question, code, output string, err error) *Outcome {
	r.to(StateFailed)
	o.store.RecordRun(false)

	overall := analysis.SimilarityScore(output, q.ExpectedOutput)
	sub := overall / 10
	fallback := &telemetry.ScoreResult{
		Overall:         overall,
		TimeComplexity:  sub,
		SpaceComplexity: sub,
		Readability:     sub,
		Stability:       sub,
	}
	o.store.AppendScore(overall)
	o.store.SetLastScore(fallback, code, output)

	o.log.Warn("scoring_fallback", "question_id", q.ID, "estimated", overall, "error", err)
	o.status.ShowScore(fallback)
	o.status.ShowStatus(fmt.Sprintf("AI scoring unavailable; estimated score %d/100", overall))

	out.State = r.state
	out.Score = fallback
	out.UsedScoreFallback = true
	out.Err = err
	return out
}
