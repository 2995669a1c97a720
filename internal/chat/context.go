package chat

import "github.com/bc-dunia/codecoach/internal/telemetry"

// RequestContext bundles everything the inference service needs to answer a
// turn. Constructed fresh per request and never mutated afterwards; the
// telemetry snapshot insulates the request from concurrent store updates.
type RequestContext struct {
	Code      string
	Output    string
	Question  string
	LastScore *telemetry.ScoreResult
	Stats     telemetry.Snapshot

	// OverridePrompt replaces the service's default instruction when set.
	// It travels as its own field so the service decides which to honor;
	// it is never merged into the default prompt client-side.
	OverridePrompt string
}

// ContextOption tweaks an otherwise fully-defaulted request context.
type ContextOption func(*RequestContext)

// WithQuestion attaches the current question statement.
func WithQuestion(question string) ContextOption {
	return func(rc *RequestContext) { rc.Question = question }
}

// WithOverridePrompt attaches a replacement prompt template.
func WithOverridePrompt(prompt string) ContextOption {
	return func(rc *RequestContext) { rc.OverridePrompt = prompt }
}

// BuildContext assembles a request context from current editor state and a
// telemetry snapshot. No side effects.
func BuildContext(code, output string, lastScore *telemetry.ScoreResult, snap telemetry.Snapshot, opts ...ContextOption) RequestContext {
	rc := RequestContext{
		Code:      code,
		Output:    output,
		LastScore: lastScore,
		Stats:     snap,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}
