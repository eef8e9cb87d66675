package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"vnscript-editor/presenter"
	"vnscript-editor/story"
)

func TestDisplayAndAdvance(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("\n"), &out, presenter.Pacer{})
	ctx := context.Background()

	if err := p.DisplayText(ctx, "Ciao!", "Alice"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := p.WaitForAdvance(ctx); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := p.WaitForAdvance(ctx); err != io.EOF {
		t.Errorf("Expected io.EOF at end of input, got %v", err)
	}
	if !strings.Contains(out.String(), "Alice: Ciao!\n") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestPresentChoiceRetriesInvalidInput(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("x\n5\n2\n"), &out, presenter.Pacer{})

	choice, err := p.PresentChoice(context.Background(), []string{"Resta", "Vai"})
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if choice != 1 {
		t.Errorf("Expected choice 1, got %d", choice)
	}
	if n := strings.Count(out.String(), "scelta non valida"); n != 2 {
		t.Errorf("Expected 2 retries, got %d", n)
	}
}

func TestSceneOutput(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader(""), &out, presenter.Pacer{})
	ctx := context.Background()
	c := story.NewCharacter("alice", "Alice")

	_ = p.ChangeBackdrop(ctx, &story.Backdrop{ID: "park"})
	_ = p.MoveCharacter(ctx, c, story.Location("left"))

	if !strings.Contains(out.String(), "park") || !strings.Contains(out.String(), "Alice si sposta a left") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}
