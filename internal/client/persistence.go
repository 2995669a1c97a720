package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

const submitPath = "/api/scores/submit"

// Persistence records accepted scores with the platform backend. Failures
// here are logged by callers and never block the scoring flow.
type Persistence struct {
	http    *HTTPClient
	baseURL string
}

func NewPersistence(http *HTTPClient, baseURL string) *Persistence {
	return &Persistence{http: http, baseURL: baseURL}
}

// SubmitRequest is the body of POST /api/scores/submit.
type SubmitRequest struct {
	StudentID      string                 `json:"student_id"`
	QuestionID     string                 `json:"question_id"`
	Score          int                    `json:"score"`
	Code           string                 `json:"code"`
	DetailedScores *telemetry.ScoreResult `json:"detailed_scores,omitempty"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SubmitScore persists one score record.
func (p *Persistence) SubmitScore(ctx context.Context, req SubmitRequest) error {
	resp, err := p.http.PostJSON(ctx, p.baseURL+submitPath, req, acceptJSON)
	if err != nil {
		return &CoachError{Type: ErrorTypePersistence, Code: CodeSubmitRejected, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &CoachError{
			Type:    ErrorTypePersistence,
			Code:    CodeSubmitRejected,
			Message: fmt.Sprintf("submit returned HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return &CoachError{Type: ErrorTypePersistence, Code: CodeSubmitRejected, Message: err.Error()}
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &CoachError{Type: ErrorTypePersistence, Code: CodeSubmitRejected, Message: err.Error()}
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "submission rejected"
		}
		return &CoachError{Type: ErrorTypePersistence, Code: CodeSubmitRejected, Message: msg}
	}
	return nil
}
