// Package stream consumes inference responses. A response is either one JSON
// document or a Server-Sent-Events stream of text deltas; the consumer
// dispatches on content type and reconciles both into a single transcript
// message.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/client"
)

const (
	contentTypeSSE = "text/event-stream"
	dataPrefix     = "data: "
	doneSentinel   = "[DONE]"

	readChunkSize = 4096
)

// Sink receives the reconciled message. Each call carries the full
// accumulated text, never an isolated delta.
type Sink interface {
	Upsert(id chat.MessageID, role chat.Role, text string) chat.MessageID
}

// Result summarizes one consumed response.
type Result struct {
	MessageID        chat.MessageID
	Text             string
	Streaming        bool
	Deltas           int
	TimeToFirstDelta time.Duration
}

// Consumer turns HTTP responses into transcript updates.
type Consumer struct {
	log *slog.Logger
	now func() time.Time
}

func NewConsumer(log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{log: log, now: time.Now}
}

// Consume reads resp to completion and applies it to sink. The response body
// is always closed. On ctx cancellation mid-stream the session is discarded:
// no terminal message is written and ctx.Err() is returned.
func (c *Consumer) Consume(ctx context.Context, resp *http.Response, sink Sink) (*Result, error) {
	defer resp.Body.Close()

	if isSSEContentType(resp.Header.Get("Content-Type")) {
		return c.consumeStream(ctx, resp.Body, sink)
	}
	return c.consumeJSON(resp.Body, sink)
}

// session is the per-request state of one streamed response: the message
// being patched, the accumulated text, and the carry-over for a line split
// across two chunks.
type session struct {
	id    chat.MessageID
	buf   strings.Builder
	carry string
}

// deltaPayload is one `data:` line's JSON body.
type deltaPayload struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (c *Consumer) consumeStream(ctx context.Context, body io.Reader, sink Sink) (*Result, error) {
	sess := &session{}
	res := &Result{Streaming: true}
	start := c.now()

	chunk := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, readErr := body.Read(chunk)
		if n > 0 {
			text := sess.carry + string(chunk[:n])
			lines := strings.Split(text, "\n")
			sess.carry = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				done, err := c.applyLine(line, sess, sink, res, start)
				if err != nil {
					return nil, err
				}
				if done {
					return c.finish(sess, res), nil
				}
			}
		}

		if readErr == io.EOF {
			// A final line without a trailing newline is still one event.
			if sess.carry != "" {
				if _, err := c.applyLine(sess.carry, sess, sink, res, start); err != nil {
					return nil, err
				}
				sess.carry = ""
			}
			return c.finish(sess, res), nil
		}
		if readErr != nil {
			return nil, client.Classify(readErr)
		}
	}
}

// applyLine processes one complete line. Only `data: `-prefixed lines carry
// payloads; everything else (blank separators, comments) is ignored.
func (c *Consumer) applyLine(line string, sess *session, sink Sink, res *Result, start time.Time) (done bool, err error) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return false, nil
	}
	payload := line[len(dataPrefix):]

	if payload == doneSentinel {
		return true, nil
	}

	var delta deltaPayload
	if jsonErr := json.Unmarshal([]byte(payload), &delta); jsonErr != nil {
		// Malformed payloads must not abort the stream.
		c.log.Warn("skipping_malformed_sse_payload", "payload", payload, "error", jsonErr)
		return false, nil
	}

	if delta.Error != "" {
		return false, &client.CoachError{
			Type:    client.ErrorTypeTransport,
			Code:    client.CodeServiceError,
			Message: delta.Error,
		}
	}
	if delta.Text == "" {
		return false, nil
	}

	if res.Deltas == 0 {
		res.TimeToFirstDelta = c.now().Sub(start)
	}
	sess.buf.WriteString(delta.Text)
	sess.id = sink.Upsert(sess.id, chat.RoleAssistant, sess.buf.String())
	res.Deltas++
	return false, nil
}

func (c *Consumer) finish(sess *session, res *Result) *Result {
	res.MessageID = sess.id
	res.Text = sess.buf.String()
	return res
}

type singleShotResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply"`
	Error   string `json:"error"`
}

func (c *Consumer) consumeJSON(body io.Reader, sink Sink) (*Result, error) {
	raw, err := io.ReadAll(io.LimitReader(body, 8*1024*1024))
	if err != nil {
		return nil, client.Classify(err)
	}

	var parsed singleShotResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, client.NewProtocolError(fmt.Sprintf("parse chat response: %v", err))
	}

	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "chat service reported failure"
		}
		return nil, &client.CoachError{
			Type:    client.ErrorTypeTransport,
			Code:    client.CodeServiceError,
			Message: msg,
		}
	}

	id := sink.Upsert("", chat.RoleAssistant, parsed.Reply)
	return &Result{MessageID: id, Text: parsed.Reply, Deltas: 1}, nil
}

func isSSEContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), contentTypeSSE)
}
