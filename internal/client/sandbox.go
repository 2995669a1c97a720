package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const executePath = "/api/execute"

// Sandbox runs student code in the remote execution service.
type Sandbox struct {
	http    *HTTPClient
	baseURL string
}

func NewSandbox(http *HTTPClient, baseURL string) *Sandbox {
	return &Sandbox{http: http, baseURL: baseURL}
}

type executeRequest struct {
	Code   string   `json:"code"`
	Inputs []string `json:"inputs"`
}

type executeResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

// Run executes code remotely and returns its stdout. Inputs are fed to the
// program's stdin reads in order.
func (s *Sandbox) Run(ctx context.Context, code string, inputs []string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", NewValidationError(CodeEmptyCode, "no code to execute")
	}
	if inputs == nil {
		inputs = []string{}
	}

	resp, err := s.http.PostJSON(ctx, s.baseURL+executePath, executeRequest{Code: code, Inputs: inputs}, acceptJSON)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ClassifyHTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", Classify(err)
	}

	var parsed executeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", NewProtocolError(fmt.Sprintf("parse execute response: %v", err))
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "execution failed"
		}
		return "", &CoachError{Type: ErrorTypeTransport, Code: CodeServiceError, Message: msg}
	}
	return parsed.Output, nil
}

// LocalEval is the offline fallback when the sandbox is unreachable. It does
// a line-oriented scan for print statements with a single string literal and
// returns what they would have written. Anything more dynamic produces no
// output.
func LocalEval(code string) string {
	var out []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "print(") || !strings.HasSuffix(line, ")") {
			continue
		}
		arg := strings.TrimSpace(line[len("print(") : len(line)-1])
		if lit, ok := stringLiteral(arg); ok {
			out = append(out, lit)
		}
	}
	return strings.Join(out, "\n")
}

func stringLiteral(arg string) (string, bool) {
	if len(arg) < 2 {
		return "", false
	}
	quote := arg[0]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	if arg[len(arg)-1] != quote {
		return "", false
	}
	inner := arg[1 : len(arg)-1]
	// Reject literals whose closing quote is not actually the end, e.g.
	// print("a" + name).
	if strings.ContainsRune(inner, rune(quote)) {
		return "", false
	}
	return inner, true
}
