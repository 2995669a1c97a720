package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bc-dunia/codecoach/internal/chat"
	"github.com/bc-dunia/codecoach/internal/client"
)

// chunkedBody delivers a body split at exactly the given chunk boundaries.
type chunkedBody struct {
	chunks []string
	idx    int
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.idx >= len(b.chunks) {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[b.idx])
	if n < len(b.chunks[b.idx]) {
		b.chunks[b.idx] = b.chunks[b.idx][n:]
	} else {
		b.idx++
	}
	return n, nil
}

func (b *chunkedBody) Close() error { return nil }

// recordingSink captures every upsert so tests can check ordering and
// accumulation.
type recordingSink struct {
	tr      *chat.Transcript
	upserts []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{tr: chat.NewTranscript()}
}

func (s *recordingSink) Upsert(id chat.MessageID, role chat.Role, text string) chat.MessageID {
	s.upserts = append(s.upserts, text)
	return s.tr.Upsert(id, role, text)
}

func sseResponse(chunks ...string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       &chunkedBody{chunks: chunks},
	}
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestStreamingReconcilesDeltas(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"Hi\"}\n\ndata: {\"text\":\" there\"}\n\ndata: [DONE]\n\n"),
		sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != "Hi there" {
		t.Errorf("Text = %q, want %q", res.Text, "Hi there")
	}
	if res.Deltas != 2 {
		t.Errorf("Deltas = %d, want 2", res.Deltas)
	}
	if !res.Streaming {
		t.Error("Streaming = false, want true")
	}

	msg, ok := sink.tr.Get(res.MessageID)
	if !ok || msg.Text != "Hi there" {
		t.Errorf("reconciled message = %+v, want text %q", msg, "Hi there")
	}
	if sink.tr.Len() != 1 {
		t.Errorf("transcript len = %d, want exactly one message", sink.tr.Len())
	}
}

func TestEverySplitPointReconcilesIdentically(t *testing.T) {
	transcript := "data: {\"text\":\"Hi\"}\n\ndata: {\"text\":\" there\"}\n\ndata: [DONE]\n\n"
	const want = "Hi there"

	for i := 0; i <= len(transcript); i++ {
		sink := newRecordingSink()
		res, err := NewConsumer(nil).Consume(context.Background(),
			sseResponse(transcript[:i], transcript[i:]), sink)
		if err != nil {
			t.Fatalf("split at %d: %v", i, err)
		}
		if res.Text != want {
			t.Fatalf("split at %d: Text = %q, want %q", i, res.Text, want)
		}
	}
}

func TestDeltaAccumulationIsOrderedAndLossless(t *testing.T) {
	deltas := []string{"The ", "answer ", "is ", "a ", "loop."}
	var b strings.Builder
	for _, d := range deltas {
		b.WriteString("data: {\"text\":\"" + d + "\"}\n\n")
	}
	b.WriteString("data: [DONE]\n\n")

	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(), sseResponse(b.String()), sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != strings.Join(deltas, "") {
		t.Errorf("Text = %q, want concatenation of all deltas", res.Text)
	}

	// Each upsert must carry a strictly growing prefix of the final text.
	prev := ""
	for i, u := range sink.upserts {
		if !strings.HasPrefix(u, prev) || len(u) <= len(prev) {
			t.Errorf("upsert %d = %q does not extend %q", i, u, prev)
		}
		prev = u
	}
}

func TestSentinelEmitsNoEmptyDelta(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"done.\"}\n\ndata: [DONE]\n\ndata: {\"text\":\"late\"}\n\n"),
		sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Deltas != 1 || res.Text != "done." {
		t.Errorf("got %d deltas, text %q; sentinel must stop further emission", res.Deltas, res.Text)
	}
	for _, u := range sink.upserts {
		if u == "" {
			t.Error("empty delta was upserted")
		}
	}
}

func TestMalformedPayloadIsSkipped(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"a\"}\n\ndata: {not json!!\n\ndata: {\"text\":\"b\"}\n\ndata: [DONE]\n\n"),
		sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != "ab" {
		t.Errorf("Text = %q, want %q (valid lines after a bad one must apply)", res.Text, "ab")
	}
}

func TestNonDataLinesIgnored(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse(": keepalive\n\nevent: ping\n\ndata: {\"text\":\"x\"}\n\ndata: [DONE]\n\n"),
		sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != "x" || res.Deltas != 1 {
		t.Errorf("Text = %q deltas = %d, want x/1", res.Text, res.Deltas)
	}
}

func TestStreamErrorPayloadFailsTurn(t *testing.T) {
	sink := newRecordingSink()
	_, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"part\"}\n\ndata: {\"error\":\"quota exceeded\"}\n\n"),
		sink)
	var ce *client.CoachError
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "quota exceeded") {
		t.Fatalf("err = %v, want CoachError carrying the service message", err)
	}
}

func TestCRLFLineEndings(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"Hi\"}\r\n\r\ndata: [DONE]\r\n\r\n"),
		sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != "Hi" {
		t.Errorf("Text = %q, want Hi", res.Text)
	}
}

func TestStreamWithoutTrailingNewline(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		sseResponse("data: {\"text\":\"tail\"}"), sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Text != "tail" {
		t.Errorf("Text = %q, want tail", res.Text)
	}
}

func TestCancellationDiscardsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newRecordingSink()
	_, err := NewConsumer(nil).Consume(ctx,
		sseResponse("data: {\"text\":\"never\"}\n\n"), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(sink.upserts) != 0 {
		t.Errorf("upserts after cancellation = %v, want none", sink.upserts)
	}
}

func TestSingleShotSuccess(t *testing.T) {
	sink := newRecordingSink()
	res, err := NewConsumer(nil).Consume(context.Background(),
		jsonResponse(`{"success": true, "reply": "Use a for loop."}`), sink)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Streaming {
		t.Error("Streaming = true for a JSON response")
	}
	if res.Text != "Use a for loop." || res.Deltas != 1 {
		t.Errorf("got %q / %d deltas, want single reply delta", res.Text, res.Deltas)
	}
	if msg, ok := sink.tr.Get(res.MessageID); !ok || msg.Role != chat.RoleAssistant {
		t.Errorf("reply not reconciled as assistant message: %+v", msg)
	}
}

func TestSingleShotFailureCarriesErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"explicit error", `{"success": false, "error": "model offline"}`, "model offline"},
		{"missing error", `{"success": false}`, "chat service reported failure"},
		{"malformed body", `{"success": tru`, "parse chat response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newRecordingSink()
			_, err := NewConsumer(nil).Consume(context.Background(), jsonResponse(tt.body), sink)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want message containing %q", err, tt.want)
			}
			if sink.tr.Len() != 0 {
				t.Error("failed single-shot turn still wrote a message")
			}
		})
	}
}

func TestContentTypeDispatch(t *testing.T) {
	// Same SSE-shaped body, JSON content type: must be treated as a broken
	// JSON document, not silently streamed.
	sink := newRecordingSink()
	_, err := NewConsumer(nil).Consume(context.Background(),
		jsonResponse("data: {\"text\":\"Hi\"}\n\n"), sink)
	if err == nil {
		t.Fatal("expected protocol error for SSE body under JSON content type")
	}

	// Content type with parameters still selects streaming mode.
	sink = newRecordingSink()
	resp := sseResponse("data: {\"text\":\"Hi\"}\n\ndata: [DONE]\n\n")
	resp.Header.Set("Content-Type", "text/event-stream; charset=utf-8")
	res, err := NewConsumer(nil).Consume(context.Background(), resp, sink)
	if err != nil || res.Text != "Hi" {
		t.Errorf("res = %+v err = %v, want streamed Hi", res, err)
	}
}
