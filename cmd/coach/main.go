// Package main provides the codecoach CLI binary, a headless client for the
// learning platform: it runs the student's code against a question, gets it
// scored by the AI service and holds the coaching conversation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/client"
	"github.com/bc-dunia/codecoach/internal/config"
	"github.com/bc-dunia/codecoach/internal/events"
	"github.com/bc-dunia/codecoach/internal/otel"
	"github.com/bc-dunia/codecoach/internal/scoring"
	"github.com/bc-dunia/codecoach/internal/session"
	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// fileCode re-reads the code file on every access so edits between turns are
// picked up.
type fileCode struct{ path string }

func (f *fileCode) GetCode() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	return string(data)
}

type staticQuestion struct{ q *scoring.Question }

func (s *staticQuestion) GetCurrentQuestion() *scoring.Question { return s.q }

// consoleStatus prints orchestrator progress to stdout.
type consoleStatus struct{}

func (consoleStatus) ShowStatus(text string) { fmt.Println(text) }

func (consoleStatus) ShowScore(score *telemetry.ScoreResult) {
	if score == nil {
		return
	}
	fmt.Printf("  time complexity %d/10  space complexity %d/10  readability %d/10  stability %d/10\n",
		score.TimeComplexity, score.SpaceComplexity, score.Readability, score.Stability)
}

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (defaults apply when empty)")
	codeFile := flag.String("code-file", "", "Path to the student's code file (required)")
	questionID := flag.String("question-id", "", "Question identifier")
	question := flag.String("question", "", "Question statement")
	expected := flag.String("expected-output", "", "Expected program output")
	ask := flag.String("ask", "", "Send a chat message to the AI tutor")
	submit := flag.Bool("submit", false, "Execute and score the code, then ask for an explanation")
	html := flag.Bool("html", false, "Print the conversation as sanitized HTML instead of plain text")
	flag.Parse()

	if *codeFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --code-file is required")
		os.Exit(1)
	}
	if !*submit && *ask == "" {
		fmt.Fprintln(os.Stderr, "Error: nothing to do; pass --submit and/or --ask")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:      cfg.Otel.Enabled,
		ServiceName:  cfg.Otel.ServiceName,
		ExporterType: otel.ExporterType(cfg.Otel.ExporterType),
		OTLPEndpoint: cfg.Otel.Endpoint,
		OTLPInsecure: cfg.Otel.Insecure,
		SampleRate:   1.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing tracing: %v\n", err)
		os.Exit(1)
	}
	defer tracer.Shutdown(context.Background())

	metrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:      cfg.Otel.Enabled,
		ServiceName:  cfg.Otel.ServiceName,
		ExporterType: otel.ExporterType(cfg.Otel.ExporterType),
		OTLPEndpoint: cfg.Otel.Endpoint,
		OTLPInsecure: cfg.Otel.Insecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing metrics: %v\n", err)
		os.Exit(1)
	}
	defer metrics.Shutdown(context.Background())

	httpc := client.NewHTTPClient(nil, client.RetryPolicy{
		MaxRetries:      cfg.Retry.MaxRetries,
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
	})

	var q *scoring.Question
	if *questionID != "" {
		q = &scoring.Question{
			ID:             *questionID,
			Statement:      *question,
			ExpectedOutput: *expected,
		}
	}

	sampler, err := telemetry.NewSampler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: health sampling unavailable: %v\n", err)
	}

	sess, err := session.New(session.Options{
		Config:      cfg,
		Inference:   client.NewInference(httpc, cfg.Endpoints.Inference),
		Sandbox:     client.NewSandbox(httpc, cfg.Endpoints.Execution),
		Persistence: client.NewPersistence(httpc, cfg.Endpoints.Persistence),
		Code:        &fileCode{path: *codeFile},
		Questions:   &staticQuestion{q: q},
		Status:      consoleStatus{},
		Events:      events.NewEventLogger(uuid.NewString(), cfg.StudentID),
		Tracer:      tracer,
		Metrics:     metrics,
		Sampler:     sampler,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building session: %v\n", err)
		os.Exit(1)
	}
	sess.Start(ctx)

	if *submit {
		out := sess.Submit(ctx)
		if out.Err != nil && out.Score == nil {
			fmt.Fprintf(os.Stderr, "Submission failed: %v\n", out.Err)
			os.Exit(1)
		}
		w := sess.Weaknesses()
		fmt.Printf("Weaknesses: syntax errors %d%%  coding speed %d%%  naming %d%%\n",
			w.SyntaxErrorRate, w.CodingSpeedDensity, w.NamingIssueDensity)
	}
	if *ask != "" {
		if _, err := sess.Ask(ctx, *ask); err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			os.Exit(1)
		}
	}

	printTranscript(sess.Transcript().Messages(), *html)
}

func printTranscript(msgs []chat.Message, asHTML bool) {
	if len(msgs) == 0 {
		return
	}
	fmt.Println("\n--- conversation ---")
	for _, m := range msgs {
		if asHTML {
			fmt.Println(chat.RenderHTML(m))
			continue
		}
		label := "You"
		if m.Role == chat.RoleAssistant {
			label = "Tutor"
		} else if m.SystemInitiated {
			label = "You (auto)"
		}
		fmt.Printf("%s: %s\n", label, m.Text)
	}
}
