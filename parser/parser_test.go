package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

const sampleStory = `define character alice "Alice"
  outfit casual
    expression smile "img/alice_smile.png"
    expression sad "img/alice_sad.png"
  variable $mood is "ok"
define backdrop park "img/park.png"
define sound rain "audio/rain.ogg"
define global variable $gold is 10
define cast variable $hp is 3
define passage start
  display park
  alice enters left
  alice says "Ciao $gold"
  option "Vai"
    go to next
  option "Resta"
    check if $gold is greater than 5
      narrate "ricco"
    end
define passage next
  end
`

func loadProject(t *testing.T, files map[string]string, entry string) *Project {
	t.Helper()
	proj, err := New(MapLoader(files), nil).Load(context.Background(), entry)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	return proj
}

func source(lines ...string) string {
	return strings.Join(lines, "\n")
}

// ============================================
// Test: definizioni
// ============================================

func TestParseDefinitions(t *testing.T) {
	proj := loadProject(t, map[string]string{"main.vns": sampleStory}, "main.vns")
	def := proj.Story

	if diags := proj.Diagnostics(); len(diags) != 0 {
		t.Fatalf("Expected no diagnostics, got %v", diags)
	}

	alice, ok := def.Characters["alice"]
	if !ok {
		t.Fatal("Expected character 'alice'")
	}
	if alice.Name != "Alice" {
		t.Errorf("Expected name 'Alice', got '%s'", alice.Name)
	}
	casual, ok := alice.Outfits["casual"]
	if !ok || len(casual.ExpressionOrder) != 2 {
		t.Fatalf("Expected outfit 'casual' with 2 expressions")
	}
	if casual.Expressions["smile"].Image != "img/alice_smile.png" {
		t.Errorf("Unexpected image: %s", casual.Expressions["smile"].Image)
	}
	if v := alice.Variables["mood"]; v == nil || v.Scope != story.ScopeCharacter || v.Character != "alice" {
		t.Errorf("Expected character variable 'mood', got %+v", v)
	}

	if def.Globals["gold"].Initial != story.Number(10) {
		t.Errorf("Expected $gold = 10, got %v", def.Globals["gold"].Initial)
	}
	if def.Cast["hp"].Type != story.KindNumber {
		t.Errorf("Expected cast $hp number")
	}
	if def.Backdrops["park"] == nil || def.Sounds["rain"] == nil {
		t.Error("Expected backdrop and sound definitions")
	}
	if len(def.PassageOrder) != 2 || def.PassageOrder[0] != "start" {
		t.Errorf("Unexpected passage order: %v", def.PassageOrder)
	}

	t.Logf("✅ Definizioni: %d personaggi, %d passaggi", len(def.Characters), len(def.Passages))
}

// ============================================
// Test: azioni e annidamento
// ============================================

func TestParsePassageActions(t *testing.T) {
	proj := loadProject(t, map[string]string{"main.vns": sampleStory}, "main.vns")
	start := proj.Story.Passages["start"]

	if len(start.Actions) != 5 {
		t.Fatalf("Expected 5 actions, got %d", len(start.Actions))
	}

	display, ok := start.Actions[0].(*story.BackdropAction)
	if !ok || display.Backdrop != "park" {
		t.Fatalf("Expected display park, got %#v", start.Actions[0])
	}
	r := display.Range()
	if r.Row != 10 || r.Start != 2 || r.End != 14 {
		t.Errorf("Expected statement range 10:[2,14), got %d:[%d,%d)", r.Row, r.Start, r.End)
	}

	enter, ok := start.Actions[1].(*story.EnterAction)
	if !ok || enter.Character != "alice" || enter.Location != story.LocationLeft {
		t.Errorf("Expected alice enters left, got %#v", start.Actions[1])
	}

	resta, ok := start.Actions[4].(*story.OptionAction)
	if !ok || resta.Text != "Resta" {
		t.Fatalf("Expected option 'Resta', got %#v", start.Actions[4])
	}
	if len(resta.Actions) != 2 {
		t.Fatalf("Expected 2 nested actions, got %d", len(resta.Actions))
	}
	check, ok := resta.Actions[0].(*story.CheckAction)
	if !ok {
		t.Fatalf("Expected check, got %#v", resta.Actions[0])
	}
	if check.Comparison != story.CompareGreater || check.Operand.Value != story.Number(5) {
		t.Errorf("Unexpected check: %v %v", check.Comparison, check.Operand.Value)
	}
	if len(check.Actions) != 1 {
		t.Errorf("Expected 1 action in check body, got %d", len(check.Actions))
	}
	if _, ok := resta.Actions[1].(*story.EndAction); !ok {
		t.Errorf("Expected end after check body, got %#v", resta.Actions[1])
	}

	t.Log("✅ Azioni e corpi annidati corretti")
}

func TestParseMutations(t *testing.T) {
	src := source(
		`define global variable $inv is empty map`,
		`define global variable $n is 1`,
		`define passage p`,
		`  add 1 to $inv at "spada"`,
		`  subtract $n from $n`,
		`  check if $n is not less than 3`,
		`    set $inv to empty list`,
	)
	proj := loadProject(t, map[string]string{"p.vns": src}, "p.vns")
	if len(proj.Diagnostics()) != 0 {
		t.Fatalf("Unexpected diagnostics: %v", proj.Diagnostics())
	}

	actions := proj.Story.Passages["p"].Actions
	add := actions[0].(*story.AddAction)
	if add.Key == nil || add.Key.Value != story.String("spada") {
		t.Errorf("Expected key 'spada', got %+v", add.Key)
	}
	sub := actions[1].(*story.SubtractAction)
	if sub.Value.Value != story.Reference("n") {
		t.Errorf("Expected reference to $n, got %v", sub.Value.Value)
	}
	check := actions[2].(*story.CheckAction)
	if check.Comparison != story.CompareGreaterOrEqual {
		t.Errorf("Expected >=, got %v", check.Comparison)
	}
	if check.ComparisonRange.Start != 14 || check.ComparisonRange.End != 30 {
		t.Errorf("Unexpected comparison range: %+v", check.ComparisonRange)
	}
	set := check.Actions[0].(*story.SetAction)
	if !story.Equal(set.Value.Value, story.List{}) {
		t.Errorf("Expected empty list, got %v", set.Value.Value)
	}
}

// ============================================
// Test: diagnostiche di sintassi
// ============================================

func TestTrailingTokenYieldsOneDiagnostic(t *testing.T) {
	src := source(
		`define passage start`,
		`  narrate "hi" x y`,
		`  end`,
	)
	proj := loadProject(t, map[string]string{"s.vns": src}, "s.vns")

	diags := proj.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
	d := diags[0]
	if d.Kind != story.DiagnosticSyntax || d.Range.Row != 1 || d.Range.Start != 15 || d.Range.End != 16 {
		t.Errorf("Unexpected diagnostic: %+v", d)
	}
	if d.Message != "atteso fine riga, trovato 'x'" {
		t.Errorf("Unexpected message: %s", d.Message)
	}

	// La riga successiva viene comunque analizzata
	if n := len(proj.Story.Passages["start"].Actions); n != 1 {
		t.Errorf("Expected only 'end' to be parsed, got %d actions", n)
	}

	formatted := proj.FormatDiagnostic(d)
	if !strings.Contains(formatted, "s.vns:2:16") || !strings.HasSuffix(formatted, "^") {
		t.Errorf("Unexpected formatted diagnostic:\n%s", formatted)
	}

	t.Logf("✅ Diagnostica:\n%s", formatted)
}

func TestUnknownCharacterIsNarratorError(t *testing.T) {
	src := source(
		`define passage start`,
		`  bob says "ciao"`,
	)
	proj := loadProject(t, map[string]string{"s.vns": src}, "s.vns")

	diags := proj.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(diags))
	}
	if !strings.Contains(diags[0].Message, "trovato 'bob'") {
		t.Errorf("Unexpected message: %s", diags[0].Message)
	}
}

func TestRedefinitionKeepsBodyDetached(t *testing.T) {
	src := source(
		`define passage a`,
		`  end`,
		`define passage a`,
		`  narrate "doppione"`,
		`define passage b`,
		`  end`,
	)
	proj := loadProject(t, map[string]string{"s.vns": src}, "s.vns")

	diags := proj.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
	if diags[0].Range.Row != 2 || diags[0].Range.Start != 15 {
		t.Errorf("Expected diagnostic on the duplicate id, got %+v", diags[0].Range)
	}
	if n := len(proj.Story.Passages["a"].Actions); n != 1 {
		t.Errorf("Expected original passage to keep 1 action, got %d", n)
	}
	if len(proj.Story.PassageOrder) != 2 {
		t.Errorf("Unexpected passage order: %v", proj.Story.PassageOrder)
	}
}

func TestReservedCharacterID(t *testing.T) {
	src := source(
		`define character end "Fine"`,
		`  variable $hp is 1`,
		`define passage start`,
		`  end`,
	)
	proj := loadProject(t, map[string]string{"s.vns": src}, "s.vns")

	diags := proj.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d: %v", len(diags), diags)
	}
	if diags[0].Range.Row != 0 || diags[0].Range.Start != 17 || diags[0].Range.End != 20 {
		t.Errorf("Expected diagnostic on the reserved id, got %+v", diags[0].Range)
	}
	if _, ok := proj.Story.Characters["end"]; ok {
		t.Error("Expected character 'end' not to be registered")
	}
	if n := len(proj.Story.Passages["start"].Actions); n != 1 {
		t.Errorf("Expected 'end' to stay a narrator action, got %d actions", n)
	}
	t.Log("✅ Id riservato rifiutato")
}

func TestVeryLongLineKeepsFollowingLines(t *testing.T) {
	long := `  narrate "` + strings.Repeat("a", 1100*1024) + `"`
	src := source(
		`define passage start`,
		long,
		`define passage after`,
		`  end`,
	)
	proj := loadProject(t, map[string]string{"s.vns": src}, "s.vns")

	if diags := proj.Diagnostics(); len(diags) != 0 {
		t.Fatalf("Expected no diagnostics, got %v", diags)
	}
	f, _ := proj.File("s.vns")
	if len(f.Lines) != 4 {
		t.Errorf("Expected 4 lines, got %d", len(f.Lines))
	}
	if len(proj.Story.PassageOrder) != 2 || proj.Story.PassageOrder[1] != "after" {
		t.Fatalf("Expected passage 'after' after the long line, got %v", proj.Story.PassageOrder)
	}
	narr, ok := proj.Story.Passages["start"].Actions[0].(*story.NarrateAction)
	if !ok || len(narr.Text) != 1100*1024 {
		t.Errorf("Expected the full narration text, got %T", proj.Story.Passages["start"].Actions[0])
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\nb\n", []string{"a", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		got := SplitLines(tt.text)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("SplitLines(%q) = %q, expected %q", tt.text, got, tt.want)
		}
	}
}

// ============================================
// Test: include
// ============================================

func TestIncludeRelativeAndGuarded(t *testing.T) {
	files := map[string]string{
		"main.vns": source(
			`include "chars/cast.vns"`,
			`define passage start`,
			`  bob enters right`,
		),
		"chars/cast.vns": source(
			`define character bob "Bob"`,
			`define backdrop sky "sky.png"`,
			`include "../main.vns"`,
		),
	}
	proj := loadProject(t, files, "main.vns")

	if len(proj.Order) != 2 || proj.Order[1] != "chars/cast.vns" {
		t.Fatalf("Unexpected file order: %v", proj.Order)
	}
	if len(proj.Diagnostics()) != 0 {
		t.Fatalf("Unexpected diagnostics: %v", proj.Diagnostics())
	}
	if _, ok := proj.Story.Passages["start"].Actions[0].(*story.EnterAction); !ok {
		t.Error("Expected character action for the included character")
	}
	if img := proj.Story.Backdrops["sky"].Image; img != "chars/sky.png" {
		t.Errorf("Expected asset relative to the including file, got %s", img)
	}
}

func TestMissingIncludeAbortsLoad(t *testing.T) {
	files := map[string]string{"main.vns": `include "assente.vns"`}

	_, err := New(MapLoader(files), nil).Load(context.Background(), "main.vns")
	if err == nil {
		t.Fatal("Expected load error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// ============================================
// Test: token e contesto
// ============================================

func TestTokenAnnotations(t *testing.T) {
	proj := loadProject(t, map[string]string{"main.vns": sampleStory}, "main.vns")
	file := proj.Files["main.vns"]

	toks := file.TokensOnRow(12)
	if len(toks) != 4 {
		t.Fatalf("Expected 4 tokens on row 12, got %d", len(toks))
	}
	if toks[0].SubType != story.EntityCharacter || toks[0].Text != "alice" {
		t.Errorf("Unexpected first token: %+v", toks[0])
	}
	interp := toks[3]
	if interp.Kind != scanner.KindVariable || !interp.Interpolated || interp.Character != "alice" || interp.Scope != story.ScopeCharacter {
		t.Errorf("Unexpected interpolation token: %+v", interp)
	}

	def := file.TokensOnRow(7)
	if len(def) < 4 || !def[3].Definition || def[3].Scope != story.ScopeGlobal {
		t.Errorf("Expected global variable definition token, got %+v", def)
	}

	frames := file.FramesAt(17, 6)
	if _, ok := frames[len(frames)-1].(*ContainerFrame); !ok || len(frames) != 3 {
		t.Errorf("Expected 3 frames ending in a container, got %d", len(frames))
	}
	frames = file.FramesAt(17, 2)
	if _, ok := frames[len(frames)-1].(*PassageFrame); !ok || len(frames) != 1 {
		t.Errorf("Expected passage frame only, got %d frames", len(frames))
	}
}

func TestDecodeValueLenient(t *testing.T) {
	tok := scanner.Token{Kind: scanner.KindString, Text: `"aperta`}
	if DecodeValue(tok) != story.String("aperta") {
		t.Errorf("Expected raw body for unterminated string")
	}
	if DecodeValue(scanner.Token{Kind: scanner.KindKeyword, Text: "null"}) != (story.Null{}) {
		t.Error("Expected null")
	}
}

func TestOverlayLoader(t *testing.T) {
	base := MapLoader{"a.vns": "define passage a"}
	overlay := NewOverlayLoader(base)
	overlay.Set("a.vns", "define passage b")

	text, err := overlay.Load(context.Background(), "a.vns")
	if err != nil || text != "define passage b" {
		t.Errorf("Expected overlay content, got %q (%v)", text, err)
	}
	overlay.Clear("a.vns")
	text, _ = overlay.Load(context.Background(), "a.vns")
	if text != "define passage a" {
		t.Errorf("Expected base content, got %q", text)
	}
	if !overlay.Exists(context.Background(), "a.vns") {
		t.Error("Expected base file to exist")
	}
}
