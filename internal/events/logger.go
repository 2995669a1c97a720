// Package events provides structured logging for key session events.
package events

import (
	"io"
	"log/slog"
	"os"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// EventLogger emits JSON event records tagged with the session and student.
type EventLogger struct {
	logger    *slog.Logger
	sessionID string
	studentID string
}

// NewEventLogger creates an EventLogger with JSON output to stdout.
func NewEventLogger(sessionID, studentID string) *EventLogger {
	return NewEventLoggerWithWriter(sessionID, studentID, os.Stdout)
}

// NewEventLoggerWithWriter creates an EventLogger with JSON output to a
// custom writer. Useful for testing or redirecting output.
func NewEventLoggerWithWriter(sessionID, studentID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler).With(
		"session_id", sessionID,
		"student_id", studentID,
	)
	return &EventLogger{
		logger:    logger,
		sessionID: sessionID,
		studentID: studentID,
	}
}

// Logger exposes the underlying slog.Logger for components that take one.
func (el *EventLogger) Logger() *slog.Logger {
	return el.logger
}

// LogRun logs one code execution.
// Attributes: question_id, success, fallback, output_bytes
func (el *EventLogger) LogRun(questionID string, success, fallback bool, outputBytes int) {
	el.logger.Info("run",
		"question_id", questionID,
		"success", success,
		"fallback", fallback,
		"output_bytes", outputBytes,
	)
}

// LogScore logs one scoring result.
// Attributes: question_id, overall, fallback, persisted
func (el *EventLogger) LogScore(questionID string, overall int, fallback, persisted bool) {
	el.logger.Info("score",
		"question_id", questionID,
		"overall", overall,
		"fallback", fallback,
		"persisted", persisted,
	)
}

// LogStreamEnd logs the end of one chat stream.
// Attributes: message_id, deltas, streaming, ttfd_ms
func (el *EventLogger) LogStreamEnd(messageID string, deltas int, streaming bool, ttfdMs int64) {
	el.logger.Info("stream_end",
		"message_id", messageID,
		"deltas", deltas,
		"streaming", streaming,
		"ttfd_ms", ttfdMs,
	)
}

// LogChatFailure logs a failed chat turn.
func (el *EventLogger) LogChatFailure(systemInitiated bool, err error) {
	el.logger.Warn("chat_failure",
		"system_initiated", systemInitiated,
		"error", err.Error(),
	)
}

// LogHealth logs a process health sample.
func (el *EventLogger) LogHealth(h *telemetry.Health) {
	el.logger.Info("health",
		"cpu_percent", h.CPUPercent,
		"rss_bytes", h.RSSBytes,
		"system_mem_used_percent", h.SystemMemUsed,
	)
}
