package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

const (
	scorePath = "/api/ai/check"
	chatPath  = "/api/ai/chat"

	acceptJSON = "application/json"
	acceptBoth = "application/json, text/event-stream"
)

// Inference calls the remote scoring and chat endpoints.
type Inference struct {
	http    *HTTPClient
	baseURL string
}

func NewInference(http *HTTPClient, baseURL string) *Inference {
	return &Inference{http: http, baseURL: baseURL}
}

// ScoreRequest is the body of POST /api/ai/check.
type ScoreRequest struct {
	Code           string `json:"code"`
	Output         string `json:"output"`
	ExpectedOutput string `json:"expected_output"`
	Question       string `json:"question"`
	OverridePrompt string `json:"override_prompt,omitempty"`
}

type scoreResponse struct {
	Success  bool                   `json:"success"`
	Analysis *telemetry.ScoreResult `json:"analysis"`
	Error    string                 `json:"error"`
}

// ChatStats is the telemetry summary sent with every chat turn.
type ChatStats struct {
	RunCount      int `json:"run_count"`
	ErrorCount    int `json:"error_count"`
	SuccessRate   int `json:"success_rate"`
	Modifications int `json:"modifications"`
}

// StatsFromSnapshot reduces a telemetry snapshot to the wire stats shape.
func StatsFromSnapshot(snap telemetry.Snapshot) ChatStats {
	return ChatStats{
		RunCount:      snap.RunCount,
		ErrorCount:    snap.ErrorCount,
		SuccessRate:   snap.SuccessRate,
		Modifications: snap.Modifications,
	}
}

// ChatRequest is the body of POST /api/ai/chat.
type ChatRequest struct {
	Message         string                 `json:"message"`
	Question        string                 `json:"question,omitempty"`
	CurrentCode     string                 `json:"current_code"`
	CurrentOutput   string                 `json:"current_output"`
	LastScore       *telemetry.ScoreResult `json:"last_score,omitempty"`
	LastScoreCode   string                 `json:"last_score_code,omitempty"`
	LastScoreOutput string                 `json:"last_score_output,omitempty"`
	Stats           ChatStats              `json:"stats"`
	OverridePrompt  string                 `json:"override_prompt,omitempty"`
}

// Score submits code plus its output for a one-shot AI evaluation.
func (c *Inference) Score(ctx context.Context, req ScoreRequest) (*telemetry.ScoreResult, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+scorePath, req, acceptJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, Classify(err)
	}

	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewProtocolError(fmt.Sprintf("parse score response: %v", err))
	}
	if !parsed.Success || parsed.Analysis == nil {
		msg := parsed.Error
		if msg == "" {
			msg = "scoring service reported failure"
		}
		return nil, &CoachError{Type: ErrorTypeTransport, Code: CodeServiceError, Message: msg}
	}
	return parsed.Analysis, nil
}

// Chat opens a chat turn. The response may be a single JSON document or an
// SSE stream; it is returned unread for the stream consumer to dispatch on.
// The caller owns the body.
func (c *Inference) Chat(ctx context.Context, req ChatRequest) (*http.Response, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+chatPath, req, acceptBoth)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, ClassifyHTTPStatus(resp.StatusCode)
	}
	return resp, nil
}
