// Package e2e exercises the full client stack against the in-process mock
// backend: real HTTP, real SSE streams, real retry and fallback paths.
package e2e

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bc-dunia/codecoach/internal/client"
	"github.com/bc-dunia/codecoach/internal/config"
	"github.com/bc-dunia/codecoach/internal/events"
	"github.com/bc-dunia/codecoach/internal/mockserver"
	"github.com/bc-dunia/codecoach/internal/scoring"
	"github.com/bc-dunia/codecoach/internal/session"
	"github.com/bc-dunia/codecoach/internal/telemetry"
)

type codeSource struct {
	mu   sync.Mutex
	code string
}

func (c *codeSource) GetCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *codeSource) Set(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
}

type questionSource struct{ q *scoring.Question }

func (s *questionSource) GetCurrentQuestion() *scoring.Question { return s.q }

// statusRecorder captures orchestrator status lines for assertions.
type statusRecorder struct {
	mu     sync.Mutex
	lines  []string
	scores []*telemetry.ScoreResult
}

func (r *statusRecorder) ShowStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
}

func (r *statusRecorder) ShowScore(score *telemetry.ScoreResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, score)
}

func (r *statusRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type fixture struct {
	srv     *mockserver.Server
	session *session.Session
	code    *codeSource
	status  *statusRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv, cleanup := mockserver.StartTestServer()
	t.Cleanup(cleanup)

	cfg := config.Default()
	cfg.StudentID = "e2e-student"
	cfg.Endpoints = config.Endpoints{
		Inference:   srv.URL(),
		Execution:   srv.URL(),
		Persistence: srv.URL(),
	}

	httpc := client.NewHTTPClient(&http.Client{}, client.RetryPolicy{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	code := &codeSource{code: `print("Hello, Python!")`}
	status := &statusRecorder{}

	sess, err := session.New(session.Options{
		Config:      cfg,
		Inference:   client.NewInference(httpc, srv.URL()),
		Sandbox:     client.NewSandbox(httpc, srv.URL()),
		Persistence: client.NewPersistence(httpc, srv.URL()),
		Code:        code,
		Questions: &questionSource{q: &scoring.Question{
			ID:             "hello-python",
			Statement:      "Print the greeting exactly.",
			ExpectedOutput: "Hello, Python!",
		}},
		Status: status,
		Events: events.NewEventLoggerWithWriter("e2e", "e2e-student", io.Discard),
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	return &fixture{srv: srv, session: sess, code: code, status: status}
}
