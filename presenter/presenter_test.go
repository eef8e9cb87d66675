package presenter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"vnscript-editor/presenter"
	_ "vnscript-editor/presenter/console"
	_ "vnscript-editor/presenter/scripted"
)

// ============================================
// Test: registro
// ============================================

func TestRegistry(t *testing.T) {
	names := presenter.GetAvailablePresenters()
	if strings.Join(names, ",") != "console,scripted" {
		t.Errorf("Expected console,scripted, got %v", names)
	}
	if !presenter.IsPresenterRegistered("Console") {
		t.Error("Expected lookup to ignore case")
	}
	if p := presenter.GetRegisteredPresenter("missing", presenter.Options{}); p != nil {
		t.Errorf("Expected nil for unknown presenter, got %T", p)
	}
	if p := presenter.GetRegisteredPresenter("scripted", presenter.Options{Choices: []int{0}}); p == nil {
		t.Error("Expected scripted presenter")
	}
	t.Logf("✅ Presenter registrati: %v", names)
}

// ============================================
// Test: rivelazione del testo
// ============================================

func TestRevealWithoutPacing(t *testing.T) {
	var chunks []string
	err := presenter.Pacer{}.Reveal(context.Background(), "ciao", func(c string) error {
		chunks = append(chunks, c)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "ciao" {
		t.Errorf("Expected a single chunk, got %v", chunks)
	}
}

func TestRevealCharByChar(t *testing.T) {
	var chunks []string
	err := presenter.Pacer{PerChar: time.Millisecond}.Reveal(context.Background(), "però", func(c string) error {
		chunks = append(chunks, c)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(chunks) != 4 || chunks[3] != "ò" {
		t.Errorf("Expected one chunk per rune, got %v", chunks)
	}
}

func TestRevealSkip(t *testing.T) {
	skip := make(chan struct{})
	close(skip)

	var b strings.Builder
	err := presenter.Pacer{PerChar: time.Hour}.Reveal(context.Background(), "testo lungo", func(c string) error {
		b.WriteString(c)
		return nil
	}, skip)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if b.String() != "testo lungo" {
		t.Errorf("Expected full text after skip, got %q", b.String())
	}
}

func TestRevealCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := presenter.Pacer{PerChar: time.Hour}.Reveal(ctx, "abc", func(string) error { return nil }, nil)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
