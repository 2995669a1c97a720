// Package chat holds the conversation model: the ordered transcript, the
// request context sent with every AI call, and the automatic score
// follow-up.
package chat

import (
	"sync"

	"github.com/google/uuid"
)

// MessageID identifies one message in the transcript. Empty means "not yet
// created".
type MessageID string

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Assistant text grows monotonically while
// its stream is open; user text is fixed at insertion.
type Message struct {
	ID              MessageID `json:"id"`
	Role            Role      `json:"role"`
	Text            string    `json:"text"`
	SystemInitiated bool      `json:"system_initiated,omitempty"`
}

// Transcript is the append-only ordered message log. Messages are never
// removed except by Clear. Upserts for different ids may arrive from
// concurrent streams; the lock serializes them.
type Transcript struct {
	mu    sync.Mutex
	msgs  []Message
	index map[MessageID]int
}

func NewTranscript() *Transcript {
	return &Transcript{index: make(map[MessageID]int)}
}

// Upsert appends a new message when id is empty or unknown and returns the
// generated id. When id exists, the message text is replaced in full (callers
// pass the whole accumulated buffer, not a delta) and the same id returned.
func (t *Transcript) Upsert(id MessageID, role Role, text string) MessageID {
	return t.upsert(id, role, text, false)
}

// UpsertSystem is Upsert for messages the client itself authors, such as the
// automatic score follow-up question.
func (t *Transcript) UpsertSystem(id MessageID, role Role, text string) MessageID {
	return t.upsert(id, role, text, true)
}

func (t *Transcript) upsert(id MessageID, role Role, text string, system bool) MessageID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id != "" {
		if i, ok := t.index[id]; ok {
			t.msgs[i].Text = text
			return id
		}
	}

	if id == "" {
		id = MessageID(uuid.NewString())
	}
	t.index[id] = len(t.msgs)
	t.msgs = append(t.msgs, Message{
		ID:              id,
		Role:            role,
		Text:            text,
		SystemInitiated: system,
	})
	return id
}

// Messages returns a copy of the ordered transcript.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Get returns the message with the given id.
func (t *Transcript) Get(id MessageID) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return Message{}, false
	}
	return t.msgs[i], true
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Clear drops the whole history. The only way any message is ever removed.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = nil
	t.index = make(map[MessageID]int)
}
