package validator

import (
	"context"
	"strings"
	"testing"

	"vnscript-editor/parser"
	"vnscript-editor/story"
)

func validate(t *testing.T, src string, assets parser.AssetChecker) []story.Diagnostic {
	t.Helper()
	files := parser.MapLoader{"main.vns": src}
	proj, err := parser.New(files, nil).Load(context.Background(), "main.vns")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(proj.Diagnostics()) != 0 {
		t.Fatalf("Unexpected syntax diagnostics: %v", proj.Diagnostics())
	}
	return New(assets).Validate(context.Background(), proj)
}

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

// ============================================
// Test: riferimenti
// ============================================

func TestValidStoryHasNoDiagnostics(t *testing.T) {
	src := lines(
		`define character alice "Alice"`,
		`  outfit casual`,
		`    expression smile "smile.png"`,
		`  variable $mood is "ok"`,
		`define cast variable $hp is 3`,
		`define global variable $gold is 0`,
		`define global variable $alias is $gold`,
		`define backdrop park "park.png"`,
		`define passage start`,
		`  display park`,
		`  alice enters left`,
		`  alice wears casual looking smile`,
		`  alice checks if $hp is greater than 1`,
		`    alice sets $mood to "felice"`,
		`  add 1 to $gold`,
		`  go to start`,
	)

	diags := validate(t, src, nil)
	if len(diags) != 0 {
		t.Fatalf("Expected no diagnostics, got %v", diags)
	}
	t.Log("✅ Storia valida")
}

func TestDanglingReferences(t *testing.T) {
	src := lines(
		`define backdrop park "park.png"`,
		`define passage start`,
		`  display prak`,
		`  play rain`,
		`  go to strat`,
	)

	diags := validate(t, src, nil)
	if len(diags) != 3 {
		t.Fatalf("Expected 3 diagnostics, got %d: %v", len(diags), diags)
	}

	if diags[0].Range.Row != 2 || diags[0].Range.Start != 10 || diags[0].Range.End != 14 {
		t.Errorf("Expected diagnostic on the backdrop id, got %+v", diags[0].Range)
	}
	if !strings.Contains(diags[0].Message, "forse intendevi 'park'") {
		t.Errorf("Expected did-you-mean hint, got: %s", diags[0].Message)
	}
	if !strings.Contains(diags[2].Message, "forse intendevi 'start'") {
		t.Errorf("Expected hint for passage, got: %s", diags[2].Message)
	}
	for _, d := range diags {
		if d.Kind != story.DiagnosticSemantic {
			t.Errorf("Expected semantic diagnostic, got %v", d.Kind)
		}
	}
}

// ============================================
// Test: scope delle variabili
// ============================================

func TestVariableScopes(t *testing.T) {
	src := lines(
		`define character alice "Alice"`,
		`define cast variable $hp is 3`,
		`define global variable $gold is 0`,
		`define passage start`,
		`  set $hp to 1`,
		`  alice sets $gold to 1`,
		`  alice sets $hp to $gold`,
		`  check if $missing is 1`,
	)

	diags := validate(t, src, nil)
	if len(diags) != 4 {
		t.Fatalf("Expected 4 diagnostics, got %d: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, "variabile cast") {
		t.Errorf("Expected narrator/cast mismatch, got: %s", diags[0].Message)
	}
	if !strings.Contains(diags[1].Message, "variabile globale") {
		t.Errorf("Expected character/global mismatch, got: %s", diags[1].Message)
	}
	// Il riferimento nell'operando è segnalato sul suo intervallo
	if diags[2].Range.Row != 6 || diags[2].Range.Start != 20 {
		t.Errorf("Expected diagnostic on the operand, got %+v", diags[2].Range)
	}
	if diags[3].Range.Row != 7 {
		t.Errorf("Expected diagnostic on row 7, got %+v", diags[3].Range)
	}
}

func TestAddToMapRequiresKey(t *testing.T) {
	src := lines(
		`define global variable $inv is empty map`,
		`define global variable $alias is $inv`,
		`define passage start`,
		`  add 1 to $inv`,
		`  add 1 to $alias`,
		`  add 1 to $inv at "spada"`,
	)

	diags := validate(t, src, nil)
	if len(diags) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %d: %v", len(diags), diags)
	}
	if diags[0].Range.Start != 11 || diags[0].Range.End != 15 {
		t.Errorf("Expected diagnostic on the variable, got %+v", diags[0].Range)
	}
}

func TestCharacterSubDefinitions(t *testing.T) {
	src := lines(
		`define character alice "Alice"`,
		`  outfit casual`,
		`    expression smile "smile.png"`,
		`define passage start`,
		`  alice looks sad`,
		`  alice wears formal`,
		`  alice wears casual looking angry`,
	)

	diags := validate(t, src, nil)
	if len(diags) != 3 {
		t.Fatalf("Expected 3 diagnostics, got %d: %v", len(diags), diags)
	}
	if diags[2].Range.Start != 29 {
		t.Errorf("Expected diagnostic on the expression after 'looking', got %+v", diags[2].Range)
	}
}

// ============================================
// Test: asset
// ============================================

func TestMissingAssets(t *testing.T) {
	src := lines(
		`define backdrop park "img/park.png"`,
		`define sound rain "rain.ogg"`,
		`define passage start`,
		`  end`,
	)
	assets := parser.MapLoader{"img/park.png": ""}

	diags := validate(t, src, assets)
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
	if diags[0].Range.Row != 1 || !strings.Contains(diags[0].Message, "rain.ogg") {
		t.Errorf("Unexpected diagnostic: %v", diags[0])
	}
}

func TestClosest(t *testing.T) {
	if got := closest("strt", []string{"end", "start"}); got != "start" {
		t.Errorf("Expected 'start', got '%s'", got)
	}
	if got := closest("xyz", []string{"start"}); got != "" {
		t.Errorf("Expected no suggestion, got '%s'", got)
	}
}

func TestCheckMergesSyntaxAndSemantic(t *testing.T) {
	files := parser.MapLoader{"main.vns": lines(
		`define passage start`,
		`  go to nowhere`,
		`  narrate`,
	)}

	proj, diags, err := Check(context.Background(), files, "main.vns")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if proj == nil || len(diags) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %v", diags)
	}
	if diags[0].Kind != story.DiagnosticSemantic || diags[1].Kind != story.DiagnosticSyntax {
		t.Errorf("Expected diagnostics sorted by row, got %v", diags)
	}

	if _, _, err := Check(context.Background(), files, "missing.vns"); err == nil {
		t.Error("Expected a load error for a missing entry")
	}
}
