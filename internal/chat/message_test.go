package chat

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestUpsertAppendsAndPatches(t *testing.T) {
	tr := NewTranscript()

	userID := tr.Upsert("", RoleUser, "how do loops work?")
	if userID == "" {
		t.Fatal("expected a generated id")
	}

	asstID := tr.Upsert("", RoleAssistant, "Loops")
	if got := tr.Upsert(asstID, RoleAssistant, "Loops repeat"); got != asstID {
		t.Errorf("patch returned id %q, want %q", got, asstID)
	}
	tr.Upsert(asstID, RoleAssistant, "Loops repeat a block")

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2 (patching must not append)", len(msgs))
	}
	if msgs[0].ID != userID || msgs[0].Text != "how do loops work?" {
		t.Errorf("user message altered: %+v", msgs[0])
	}
	if msgs[1].Text != "Loops repeat a block" {
		t.Errorf("assistant text = %q, want full replacement", msgs[1].Text)
	}
}

func TestUpsertUnknownIDAppends(t *testing.T) {
	tr := NewTranscript()
	id := tr.Upsert("no-such-id", RoleAssistant, "hi")
	if id != "no-such-id" {
		t.Errorf("id = %q, want the provided id kept", id)
	}
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestUpsertSystemTagsMessage(t *testing.T) {
	tr := NewTranscript()
	id := tr.UpsertSystem("", RoleUser, "explain my score")
	m, ok := tr.Get(id)
	if !ok || !m.SystemInitiated {
		t.Errorf("message = %+v, want system-initiated user message", m)
	}
}

func TestConcurrentStreamsTargetDistinctMessages(t *testing.T) {
	tr := NewTranscript()
	a := tr.Upsert("", RoleAssistant, "")
	b := tr.Upsert("", RoleAssistant, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.Upsert(a, RoleAssistant, strings.Repeat("a", i+1))
		}(i)
		go func(i int) {
			defer wg.Done()
			tr.Upsert(b, RoleAssistant, strings.Repeat("b", i+1))
		}(i)
	}
	wg.Wait()

	ma, _ := tr.Get(a)
	mb, _ := tr.Get(b)
	if strings.ContainsRune(ma.Text, 'b') || strings.ContainsRune(mb.Text, 'a') {
		t.Errorf("streams interleaved into one message: %q / %q", ma.Text, mb.Text)
	}
	if tr.Len() != 2 {
		t.Errorf("len = %d, want 2", tr.Len())
	}
}

func TestClearDropsHistory(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 3; i++ {
		tr.Upsert("", RoleUser, fmt.Sprintf("msg %d", i))
	}
	tr.Clear()
	if tr.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", tr.Len())
	}
	id := tr.Upsert("", RoleUser, "fresh")
	if _, ok := tr.Get(id); !ok {
		t.Error("transcript unusable after clear")
	}
}
