// Package mockserver provides an in-process learning-platform backend for
// tests: the chat, scoring, execution and score-submission endpoints with
// controllable behavior, including both chat response protocols and failure
// injection.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// Behavior controls how the mock backend responds.
type Behavior struct {
	// Streaming selects SSE replies on /api/ai/chat; off means single-shot
	// JSON.
	Streaming bool
	// ReplyText is the full chat reply, split into DeltaSize-rune chunks
	// when streaming.
	ReplyText string
	// DeltaSize is the characters per streamed delta (default 8).
	DeltaSize int
	// ChunkDelay is the pause between streamed events.
	ChunkDelay time.Duration
	// InjectMalformedLine emits one unparsable data: line mid-stream.
	InjectMalformedLine bool
	// OmitDoneSentinel ends the stream without the terminator line.
	OmitDoneSentinel bool

	// Score is returned from /api/ai/check.
	Score *telemetry.ScoreResult
	// ExecuteOutput is returned from /api/execute.
	ExecuteOutput string

	FailChat    bool
	FailScore   bool
	FailExecute bool
	FailSubmit  bool
	// FailMessage is the error string for injected failures.
	FailMessage string
}

// DefaultBehavior is a healthy streaming backend.
func DefaultBehavior() Behavior {
	return Behavior{
		Streaming:     true,
		ReplyText:     "Nice work so far. Try extracting a helper function next.",
		DeltaSize:     8,
		Score:         &telemetry.ScoreResult{Overall: 92, TimeComplexity: 9, SpaceComplexity: 8, Readability: 10, Stability: 9},
		ExecuteOutput: "Hello, Python!",
		FailMessage:   "service unavailable",
	}
}

// Stats counts handled requests and keeps the most recent bodies for
// assertions.
type Stats struct {
	ChatCalls    int
	ScoreCalls   int
	ExecuteCalls int
	SubmitCalls  int

	LastChatBody   map[string]any
	LastScoreBody  map[string]any
	LastSubmitBody map[string]any
}

// Server is the mock backend.
type Server struct {
	mu       sync.Mutex
	behavior Behavior
	stats    Stats

	listener net.Listener
	httpSrv  *http.Server
}

// New creates a mock server with the given behavior.
func New(behavior Behavior) *Server {
	if behavior.DeltaSize <= 0 {
		behavior.DeltaSize = 8
	}
	return &Server{behavior: behavior}
}

// StartTestServer starts a server with default behavior and returns cleanup.
func StartTestServer() (*Server, func()) {
	srv := New(DefaultBehavior())
	if err := srv.Start(); err != nil {
		panic(fmt.Sprintf("mockserver: %v", err))
	}
	return srv, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}
}

// Start begins listening on a random loopback port.
func (s *Server) Start() error {
	return s.StartOn("127.0.0.1:0")
}

// StartOn begins listening on the given address.
func (s *Server) StartOn(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/chat", s.handleChat)
	mux.HandleFunc("/api/ai/check", s.handleScore)
	mux.HandleFunc("/api/execute", s.handleExecute)
	mux.HandleFunc("/api/scores/submit", s.handleSubmit)

	s.httpSrv = &http.Server{Handler: mux}
	go s.httpSrv.Serve(ln)
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if s.httpSrv != nil {
		s.httpSrv.Shutdown(ctx)
	}
}

// URL is the server's base URL.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// SetBehavior swaps the behavior between requests.
func (s *Server) SetBehavior(b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.DeltaSize <= 0 {
		b.DeltaSize = 8
	}
	s.behavior = b
}

// Stats returns a copy of the request counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Server) snapshotBehavior() Behavior {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behavior
}

func (s *Server) recordBody(r *http.Request, count *int, last *map[string]any) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	*count++
	*last = body
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.recordBody(r, &s.stats.ChatCalls, &s.stats.LastChatBody)
	b := s.snapshotBehavior()

	if b.FailChat {
		writeJSON(w, map[string]any{"success": false, "error": b.FailMessage})
		return
	}

	if !b.Streaming {
		writeJSON(w, map[string]any{"success": true, "reply": b.ReplyText})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	runes := []rune(b.ReplyText)
	half := (len(runes)/b.DeltaSize + 1) / 2
	for i, n := 0, 0; i < len(runes); i += b.DeltaSize {
		end := i + b.DeltaSize
		if end > len(runes) {
			end = len(runes)
		}
		payload, _ := json.Marshal(map[string]string{"text": string(runes[i:end])})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flush()

		n++
		if b.InjectMalformedLine && n == half {
			fmt.Fprint(w, "data: {oops not json\n\n")
			flush()
		}
		if b.ChunkDelay > 0 {
			time.Sleep(b.ChunkDelay)
		}
	}
	if !b.OmitDoneSentinel {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flush()
	}
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	s.recordBody(r, &s.stats.ScoreCalls, &s.stats.LastScoreBody)
	b := s.snapshotBehavior()

	if b.FailScore || b.Score == nil {
		writeJSON(w, map[string]any{"success": false, "error": b.FailMessage})
		return
	}
	writeJSON(w, map[string]any{"success": true, "analysis": b.Score})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var none map[string]any
	s.recordBody(r, &s.stats.ExecuteCalls, &none)
	b := s.snapshotBehavior()

	if b.FailExecute {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"success": false, "error": b.FailMessage})
		return
	}
	writeJSON(w, map[string]any{"success": true, "output": b.ExecuteOutput})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.recordBody(r, &s.stats.SubmitCalls, &s.stats.LastSubmitBody)
	b := s.snapshotBehavior()

	if b.FailSubmit {
		writeJSON(w, map[string]any{"success": false, "error": b.FailMessage})
		return
	}
	writeJSON(w, map[string]any{"success": true})
}
