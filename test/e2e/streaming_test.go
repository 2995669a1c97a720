package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bc-dunia/codecoach/internal/mockserver"
)

func TestStreamedReplyReassembled(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.ReplyText = "A loop repeats a block of code until its condition turns false."
	b.DeltaSize = 3
	b.ChunkDelay = time.Millisecond
	f.srv.SetBehavior(b)

	id, err := f.session.Ask(context.Background(), "What is a loop?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	msg, ok := f.session.Transcript().Get(id)
	if !ok || msg.Text != b.ReplyText {
		t.Fatalf("reassembled reply = %q", msg.Text)
	}
}

func TestStreamSurvivesMalformedEvent(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.InjectMalformedLine = true
	f.srv.SetBehavior(b)

	id, err := f.session.Ask(context.Background(), "still there?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	msg, _ := f.session.Transcript().Get(id)
	if msg.Text != b.ReplyText {
		t.Errorf("reply with malformed event in stream = %q, want %q", msg.Text, b.ReplyText)
	}
}

func TestStreamWithoutDoneSentinelStillCompletes(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.OmitDoneSentinel = true
	f.srv.SetBehavior(b)

	id, err := f.session.Ask(context.Background(), "abrupt end")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	msg, _ := f.session.Transcript().Get(id)
	if msg.Text != b.ReplyText {
		t.Errorf("reply = %q, want full text despite missing terminator", msg.Text)
	}
}

func TestSingleShotProtocol(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.Streaming = false
	b.ReplyText = "Indentation defines the block."
	f.srv.SetBehavior(b)

	id, err := f.session.Ask(context.Background(), "Why the spaces?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	msg, _ := f.session.Transcript().Get(id)
	if msg.Text != "Indentation defines the block." {
		t.Errorf("single-shot reply = %q", msg.Text)
	}
}

func TestChatFailureApologizesInsteadOfErroring(t *testing.T) {
	f := newFixture(t)
	b := mockserver.DefaultBehavior()
	b.FailChat = true
	b.FailMessage = "model offline"
	f.srv.SetBehavior(b)

	id, err := f.session.Ask(context.Background(), "hello?")
	if err != nil {
		t.Fatalf("Ask must swallow service failures, got %v", err)
	}
	msg, _ := f.session.Transcript().Get(id)
	if !strings.Contains(msg.Text, "Sorry") {
		t.Errorf("expected apology, got %q", msg.Text)
	}
}
