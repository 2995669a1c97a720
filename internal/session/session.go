// Package session wires the coaching client together for one page-load
// lifetime: telemetry ticking, chat turns, and scoring rounds share one
// store and one transcript here.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/codecoach/internal/analysis"
	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/client"
	"github.com/bc-dunia/codecoach/internal/config"
	"github.com/bc-dunia/codecoach/internal/events"
	"github.com/bc-dunia/codecoach/internal/otel"
	"github.com/bc-dunia/codecoach/internal/sched"
	"github.com/bc-dunia/codecoach/internal/scoring"
	"github.com/bc-dunia/codecoach/internal/stream"
	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// apologyReply is shown when the inference service cannot be reached; the
// transcript never ends a turn in a pending state.
const apologyReply = "Sorry, I can't reach the AI tutor right now. Please try again in a moment."

// CodeSource is the external editor surface.
type CodeSource interface {
	GetCode() string
}

// QuestionSource is the external question catalog. GetCurrentQuestion may
// return nil when no question is selected.
type QuestionSource interface {
	GetCurrentQuestion() *scoring.Question
}

// Options collects the session's collaborators. Config, Inference, Sandbox,
// Persistence, Code and Questions are required; the rest default sensibly.
type Options struct {
	Config      *config.Config
	Inference   *client.Inference
	Sandbox     *client.Sandbox
	Persistence *client.Persistence
	Code        CodeSource
	Questions   QuestionSource

	Store      *telemetry.Store
	Transcript *chat.Transcript
	Status     scoring.StatusSink
	Events     *events.EventLogger
	Tracer     *otel.Tracer
	Metrics    *otel.Metrics
	Clock      sched.Clock
	Sampler    *telemetry.Sampler
}

// Session is the live client state.
type Session struct {
	cfg        *config.Config
	store      *telemetry.Store
	transcript *chat.Transcript
	inference  *client.Inference
	consumer   *stream.Consumer
	orch       *scoring.Orchestrator
	followup   *chat.Followup
	scheduler  *sched.Scheduler
	sampler    *telemetry.Sampler
	events     *events.EventLogger
	tracer     *otel.Tracer
	metrics    *otel.Metrics
	log        *slog.Logger
	code       CodeSource
	questions  QuestionSource

	mu         sync.Mutex
	lastOutput string
}

// New builds a session from its collaborators.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("session: config is required")
	}
	if opts.Inference == nil || opts.Sandbox == nil || opts.Persistence == nil {
		return nil, fmt.Errorf("session: all endpoint clients are required")
	}
	if opts.Code == nil || opts.Questions == nil {
		return nil, fmt.Errorf("session: code and question sources are required")
	}

	if opts.Store == nil {
		opts.Store = telemetry.NewStore()
	}
	if opts.Transcript == nil {
		opts.Transcript = chat.NewTranscript()
	}
	if opts.Events == nil {
		opts.Events = events.NewEventLogger("", opts.Config.StudentID)
	}
	if opts.Tracer == nil {
		tr, err := otel.NewTracer(context.Background(), nil)
		if err != nil {
			return nil, err
		}
		opts.Tracer = tr
	}
	if opts.Metrics == nil {
		m, err := otel.NewMetrics(context.Background(), nil)
		if err != nil {
			return nil, err
		}
		opts.Metrics = m
	}

	s := &Session{
		cfg:        opts.Config,
		store:      opts.Store,
		transcript: opts.Transcript,
		inference:  opts.Inference,
		consumer:   stream.NewConsumer(opts.Events.Logger()),
		sampler:    opts.Sampler,
		events:     opts.Events,
		tracer:     opts.Tracer,
		metrics:    opts.Metrics,
		log:        opts.Events.Logger(),
		code:       opts.Code,
		questions:  opts.Questions,
		scheduler:  sched.New(opts.Clock),
	}

	s.followup = chat.NewFollowup(s, s.log)
	s.orch = scoring.NewOrchestrator(
		opts.Sandbox,
		opts.Inference,
		opts.Persistence,
		s.followup,
		opts.Store,
		opts.Status,
		s.log,
		opts.Config.StudentID,
	)
	return s, nil
}

// Start runs the periodic tasks (telemetry tick, health sampling) until ctx
// is cancelled.
func (s *Session) Start(ctx context.Context) {
	s.scheduler.Every("telemetry_tick", s.cfg.TickInterval(), func(time.Time) {
		s.store.Tick()
	})
	if s.sampler != nil {
		s.scheduler.Every("health_sample", s.cfg.HealthInterval(), func(time.Time) {
			s.events.LogHealth(s.sampler.Sample())
		})
	}
	s.scheduler.Start(ctx)
}

// Store exposes the telemetry store for input-event collaborators.
func (s *Session) Store() *telemetry.Store { return s.store }

// Transcript exposes the message log for rendering.
func (s *Session) Transcript() *chat.Transcript { return s.transcript }

// Ask runs a user-initiated chat turn.
func (s *Session) Ask(ctx context.Context, message string) (chat.MessageID, error) {
	return s.RunTurn(ctx, message, false)
}

// RunTurn performs one chat turn: insert the user message, call the
// inference endpoint, and reconcile the reply. Service failures surface as
// an apology message in the transcript instead of an error; only validation
// problems and cancellation are returned to the caller.
func (s *Session) RunTurn(ctx context.Context, message string, systemInitiated bool) (chat.MessageID, error) {
	if strings.TrimSpace(message) == "" {
		return "", client.NewValidationError(client.CodeEmptyCode, "empty message")
	}

	ctx, span := s.tracer.StartTurn(ctx, systemInitiated)
	defer span.End()

	if systemInitiated {
		s.transcript.UpsertSystem("", chat.RoleUser, message)
	} else {
		s.transcript.Upsert("", chat.RoleUser, message)
	}

	req := s.buildChatRequest(message)
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
	defer cancel()

	resp, err := s.inference.Chat(reqCtx, req)
	if err != nil {
		return s.apologize(ctx, systemInitiated, err)
	}

	res, err := s.consumer.Consume(reqCtx, resp, s.transcript)
	if err != nil {
		if reqCtx.Err() != nil && ctx.Err() != nil {
			// Caller cancelled: discard without a terminal message.
			return "", err
		}
		return s.apologize(ctx, systemInitiated, err)
	}

	s.metrics.RecordTurn(ctx, time.Since(start), res.Streaming, res.Deltas, res.TimeToFirstDelta)
	s.events.LogStreamEnd(string(res.MessageID), res.Deltas, res.Streaming, res.TimeToFirstDelta.Milliseconds())
	return res.MessageID, nil
}

func (s *Session) buildChatRequest(message string) client.ChatRequest {
	snap := s.store.Snapshot()

	var opts []chat.ContextOption
	if q := s.questions.GetCurrentQuestion(); q != nil {
		opts = append(opts, chat.WithQuestion(q.Statement))
	}
	rc := chat.BuildContext(s.code.GetCode(), s.LastOutput(), snap.LastScore, snap, opts...)

	return client.ChatRequest{
		Message:         message,
		Question:        rc.Question,
		CurrentCode:     rc.Code,
		CurrentOutput:   rc.Output,
		LastScore:       rc.LastScore,
		LastScoreCode:   snap.LastScoreCode,
		LastScoreOutput: snap.LastScoreOutput,
		Stats:           client.StatsFromSnapshot(rc.Stats),
		OverridePrompt:  rc.OverridePrompt,
	}
}

func (s *Session) apologize(ctx context.Context, systemInitiated bool, cause error) (chat.MessageID, error) {
	s.events.LogChatFailure(systemInitiated, cause)
	s.metrics.RecordFallback(ctx, "chat")
	id := s.transcript.Upsert("", chat.RoleAssistant, apologyReply)
	return id, nil
}

// Submit runs one scoring round for the current question and remembers its
// execution output for later chat context.
func (s *Session) Submit(ctx context.Context) *scoring.Outcome {
	q := s.questions.GetCurrentQuestion()
	questionID := ""
	if q != nil {
		questionID = q.ID
	}

	ctx, span := s.tracer.StartScoring(ctx, questionID)
	defer span.End()

	out := s.orch.Submit(ctx, q, s.code.GetCode())

	if out.Output != "" || out.State == scoring.StateCompleted {
		s.mu.Lock()
		s.lastOutput = out.Output
		s.mu.Unlock()
	}

	if out.Err == nil || out.Score != nil {
		s.events.LogRun(questionID, !out.UsedExecFallback, out.UsedExecFallback, len(out.Output))
	}
	if out.UsedExecFallback {
		s.metrics.RecordFallback(ctx, "exec")
	}
	if out.UsedScoreFallback {
		s.metrics.RecordFallback(ctx, "score")
	}
	if out.Score != nil {
		s.metrics.RecordScore(ctx, out.Score.Overall, out.UsedScoreFallback)
		s.events.LogScore(questionID, out.Score.Overall, out.UsedScoreFallback, out.State == scoring.StateCompleted)
	}
	return out
}

// Weaknesses derives the current weakness percentages from accumulated
// telemetry and the present code.
func (s *Session) Weaknesses() analysis.DerivedMetrics {
	return analysis.ComputeWeaknesses(s.store.Snapshot(), s.code.GetCode(), time.Now())
}

// LastOutput returns the most recent execution output.
func (s *Session) LastOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput
}

// Reset clears telemetry and the transcript. Test/debug use only.
func (s *Session) Reset() {
	s.store.Reset()
	s.transcript.Clear()
	s.mu.Lock()
	s.lastOutput = ""
	s.mu.Unlock()
}
