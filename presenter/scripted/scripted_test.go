package scripted

import (
	"context"
	"errors"
	"testing"

	"vnscript-editor/story"
)

func TestTranscriptAndChoices(t *testing.T) {
	p := New([]int{1})
	ctx := context.Background()

	_ = p.ResetScene(ctx)
	_ = p.DisplayText(ctx, "hi", "")
	choice, err := p.PresentChoice(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if choice != 1 {
		t.Errorf("Expected choice 1, got %d", choice)
	}

	if _, err := p.PresentChoice(ctx, []string{"a"}); !errors.Is(err, ErrChoicesExhausted) {
		t.Errorf("Expected ErrChoicesExhausted, got %v", err)
	}

	tr := p.Transcript()
	if len(tr) != 3 || tr[1].String() != "hi" || tr[2].Choice != 1 {
		t.Errorf("Unexpected transcript: %v", tr)
	}
	if p.Remaining() != 0 {
		t.Errorf("Expected no remaining choices, got %d", p.Remaining())
	}
}

func TestInvalidChoice(t *testing.T) {
	p := New([]int{3})
	if _, err := p.PresentChoice(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("Expected error for out of range choice")
	}
}

func TestSpeakerEntry(t *testing.T) {
	p := New(nil)
	_ = p.DisplayText(context.Background(), "ciao", "Alice")
	_ = p.AddCharacter(context.Background(), story.NewCharacter("alice", "Alice"),
		&story.Outfit{ID: "casual"}, &story.Expression{ID: "smile"}, story.Location("left"))

	tr := p.Transcript()
	if tr[0].String() != "Alice: ciao" {
		t.Errorf("Expected 'Alice: ciao', got %q", tr[0].String())
	}
	if tr[1].Text != "alice casual/smile left" {
		t.Errorf("Unexpected enter entry: %q", tr[1].Text)
	}
}
