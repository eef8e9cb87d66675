package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"vnscript-editor/parser"
	"vnscript-editor/story"
)

// recorder registra le chiamate al presenter e sceglie le opzioni da una lista fissa
type recorder struct {
	calls   []string
	choices []int
	asked   [][]string
}

func (r *recorder) ResetScene(ctx context.Context) error {
	r.calls = append(r.calls, "reset")
	return nil
}

func (r *recorder) ChangeBackdrop(ctx context.Context, b *story.Backdrop) error {
	r.calls = append(r.calls, "backdrop "+b.ID)
	return nil
}

func (r *recorder) PlaySound(ctx context.Context, s *story.Sound) error {
	r.calls = append(r.calls, "sound "+s.ID)
	return nil
}

func (r *recorder) AddCharacter(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression, loc story.Location) error {
	r.calls = append(r.calls, fmt.Sprintf("add %s %s/%s %s", c.ID, o.ID, e.ID, loc))
	return nil
}

func (r *recorder) RemoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	r.calls = append(r.calls, fmt.Sprintf("remove %s %s", c.ID, loc))
	return nil
}

func (r *recorder) MoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	r.calls = append(r.calls, fmt.Sprintf("move %s %s", c.ID, loc))
	return nil
}

func (r *recorder) ChangeCharacterSprite(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression) error {
	r.calls = append(r.calls, fmt.Sprintf("sprite %s %s/%s", c.ID, o.ID, e.ID))
	return nil
}

func (r *recorder) DisplayText(ctx context.Context, text, speaker string) error {
	if speaker == "" {
		r.calls = append(r.calls, "text "+text)
	} else {
		r.calls = append(r.calls, "text "+speaker+": "+text)
	}
	return nil
}

func (r *recorder) PresentChoice(ctx context.Context, options []string) (int, error) {
	r.asked = append(r.asked, options)
	if len(r.choices) == 0 {
		return 0, errors.New("nessuna scelta disponibile")
	}
	choice := r.choices[0]
	r.choices = r.choices[1:]
	return choice, nil
}

func (r *recorder) WaitForAdvance(ctx context.Context) error {
	return nil
}

func compile(t *testing.T, lines ...string) *story.Definition {
	t.Helper()
	files := parser.MapLoader{"main.vns": strings.Join(lines, "\n")}
	proj, err := parser.New(files, nil).Load(context.Background(), "main.vns")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(proj.Diagnostics()) != 0 {
		t.Fatalf("Unexpected diagnostics: %v", proj.Diagnostics())
	}
	return proj.Story
}

// ============================================
// Test: esecuzione di base
// ============================================

func TestNarrateAddEnd(t *testing.T) {
	def := compile(t,
		`define global variable $x is 0`,
		`define passage start`,
		`  narrate "hi"`,
		`  add 1 to $x`,
		`  end`,
	)
	rec := &recorder{}

	sc, err := New(def, rec).Run(context.Background())
	if !IsEnded(err) {
		t.Fatalf("Expected end of story, got %v", err)
	}

	if len(rec.calls) != 2 || rec.calls[1] != "text hi" {
		t.Errorf("Expected reset and 'hi', got %v", rec.calls)
	}
	if v := sc.Current.Globals["x"]; !story.Equal(v, story.Number(1)) {
		t.Errorf("Expected $x = 1, got %v", v)
	}
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.Diagnostic.Range.Row != 4 {
		t.Errorf("Expected runtime diagnostic on the end line, got %v", err)
	}
	t.Log("✅ narrate/add/end eseguiti")
}

func TestFallingOffPassageEndsNormally(t *testing.T) {
	def := compile(t,
		`define passage start`,
		`  narrate "uno"`,
		`define passage other`,
		`  narrate "due"`,
	)

	_, err := New(def, &recorder{}).Run(context.Background())
	if err != nil {
		t.Errorf("Expected normal completion, got %v", err)
	}
}

func TestContinueAndGotoPushHistory(t *testing.T) {
	def := compile(t,
		`define global variable $visits is 0`,
		`define passage start`,
		`  add 1 to $visits`,
		`  continue`,
		`define passage middle`,
		`  add 1 to $visits`,
		`  check if $visits is less than 4`,
		`    go to start`,
		`  end`,
	)

	sc, err := New(def, &recorder{}).Run(context.Background())
	if !IsEnded(err) {
		t.Fatalf("Expected end of story, got %v", err)
	}

	var passages []string
	for _, s := range sc.History {
		passages = append(passages, s.Passage)
	}
	if got := strings.Join(passages, ","); got != "start,middle,start" {
		t.Errorf("Expected history start,middle,start, got %s", got)
	}
	if sc.Current.Passage != "middle" {
		t.Errorf("Expected to end in middle, got %s", sc.Current.Passage)
	}
	if v := sc.Current.Globals["visits"]; !story.Equal(v, story.Number(4)) {
		t.Errorf("Expected 4 visits, got %v", v)
	}
	// La cronologia conserva gli stati precedenti
	if v := sc.History[0].Globals["visits"]; !story.Equal(v, story.Number(1)) {
		t.Errorf("Expected history snapshot with 1 visit, got %v", v)
	}
}

func TestContinueWithoutNextPassage(t *testing.T) {
	def := compile(t,
		`define passage start`,
		`  continue`,
	)

	_, err := New(def, &recorder{}).Run(context.Background())
	var rt *RuntimeError
	if !errors.As(err, &rt) || !errors.Is(err, ErrUndefined) {
		t.Fatalf("Expected runtime error, got %v", err)
	}
	if rt.Diagnostic.Kind != story.DiagnosticRuntime || rt.Diagnostic.Range.Row != 1 {
		t.Errorf("Unexpected diagnostic: %+v", rt.Diagnostic)
	}
}

// ============================================
// Test: opzioni e personaggi
// ============================================

func TestOptionsAreGrouped(t *testing.T) {
	def := compile(t,
		`define global variable $name is "Bob"`,
		`define passage start`,
		`  option "Ciao $name"`,
		`    narrate "scelto uno"`,
		`  option "Addio"`,
		`    narrate "scelto due"`,
		`    end`,
		`  narrate "dopo"`,
	)
	rec := &recorder{choices: []int{1}}

	_, err := New(def, rec).Run(context.Background())
	if !IsEnded(err) {
		t.Fatalf("Expected end of story, got %v", err)
	}
	if len(rec.asked) != 1 || len(rec.asked[0]) != 2 {
		t.Fatalf("Expected one choice with 2 options, got %v", rec.asked)
	}
	if rec.asked[0][0] != "Ciao Bob" {
		t.Errorf("Expected interpolated option, got %q", rec.asked[0][0])
	}
	if last := rec.calls[len(rec.calls)-1]; last != "text scelto due" {
		t.Errorf("Expected second body to run, got %v", rec.calls)
	}
}

func TestCharacterActions(t *testing.T) {
	def := compile(t,
		`define character alice "Alice"`,
		`  outfit casual`,
		`    expression smile "smile.png"`,
		`    expression sad "sad.png"`,
		`  outfit formal`,
		`    expression sad "formal_sad.png"`,
		`    expression proud "proud.png"`,
		`  variable $mood is "ok"`,
		`define passage start`,
		`  alice enters left`,
		`  alice looks sad`,
		`  alice wears formal`,
		`  alice wears casual looking smile`,
		`  alice moves to right`,
		`  alice says "umore $mood"`,
		`  alice exits right`,
	)
	rec := &recorder{}

	sc, err := New(def, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	expected := []string{
		"reset",
		"add alice casual/smile left",
		"sprite alice casual/sad",
		"sprite alice formal/sad",
		"sprite alice casual/smile",
		"move alice right",
		"text Alice: umore ok",
		"remove alice right",
	}
	if strings.Join(rec.calls, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected calls %v, got %v", expected, rec.calls)
	}
	cs := sc.Current.Character("alice")
	if cs.OnStage || cs.Location != "right" {
		t.Errorf("Unexpected character state: %+v", cs)
	}
}

// ============================================
// Test: variabili e confronti
// ============================================

func TestComparisonTypeMismatch(t *testing.T) {
	def := compile(t,
		`define global variable $x is "a"`,
		`define passage start`,
		`  check if $x is greater than 0`,
		`    end`,
	)

	_, err := New(def, &recorder{}).Run(context.Background())
	var rt *RuntimeError
	if !errors.As(err, &rt) || !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Expected type mismatch, got %v", err)
	}
	// "is greater than" occupa le colonne [14, 29)
	r := rt.Diagnostic.Range
	if r.Row != 2 || r.Start != 14 || r.End != 29 {
		t.Errorf("Expected diagnostic on the comparison, got %+v", r)
	}
}

func TestAddSubtractMapKeyRestores(t *testing.T) {
	def := compile(t,
		`define global variable $inv is empty map`,
		`define passage start`,
		`  add 1 to $inv at "spada"`,
		`  subtract "spada" from $inv`,
	)

	sc, err := New(def, &recorder{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if v := sc.Current.Globals["inv"]; !story.Equal(v, story.Map{}) {
		t.Errorf("Expected empty map, got %v", v)
	}
}

func TestListAndStringMutations(t *testing.T) {
	def := compile(t,
		`define global variable $bag is empty list`,
		`define global variable $msg is "ciao"`,
		`define passage start`,
		`  add "mela" to $bag`,
		`  add "pera" to $bag`,
		`  add "mela" to $bag`,
		`  subtract "mela" from $bag`,
		`  add " mondo" to $msg`,
		`  check if $bag contains "pera"`,
		`    check if $msg contains "mondo"`,
		`      end`,
	)

	sc, err := New(def, &recorder{}).Run(context.Background())
	if !IsEnded(err) {
		t.Fatalf("Expected end of story, got %v", err)
	}
	if v := sc.Current.Globals["bag"]; !story.Equal(v, story.List{story.String("pera")}) {
		t.Errorf("Expected [pera], got %v", v)
	}
	if v := sc.Current.Globals["msg"]; !story.Equal(v, story.String("ciao mondo")) {
		t.Errorf("Expected 'ciao mondo', got %v", v)
	}
}

func TestCharacterScopeFallsBackToCast(t *testing.T) {
	def := compile(t,
		`define character alice "Alice"`,
		`define character bob "Bob"`,
		`define cast variable $hp is 3`,
		`define passage start`,
		`  alice subtracts 1 from $hp`,
		`  bob checks if $hp is 3`,
		`    end`,
	)

	sc, err := New(def, &recorder{}).Run(context.Background())
	if !IsEnded(err) {
		t.Fatalf("Expected bob to keep the cast default, got %v", err)
	}
	if v, _ := sc.Current.Lookup(def, "alice", "hp"); !story.Equal(v, story.Number(2)) {
		t.Errorf("Expected alice hp = 2, got %v", v)
	}
}

func TestAliasWritesThrough(t *testing.T) {
	def := compile(t,
		`define global variable $gold is 1`,
		`define global variable $alias is $gold`,
		`define passage start`,
		`  add 2 to $alias`,
	)

	sc, err := New(def, &recorder{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if v := sc.Current.Globals["gold"]; !story.Equal(v, story.Number(3)) {
		t.Errorf("Expected $gold = 3, got %v", v)
	}
}

func TestResolveStopsAfterMaxHops(t *testing.T) {
	def := compile(t,
		`define global variable $a is $b`,
		`define global variable $b is $a`,
		`define passage start`,
		`  end`,
	)

	v, err := Resolve(def, NewState(), "", story.Reference("a"), story.Range{})
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	// dopo 100 salti (numero pari) il ciclo è tornato al riferimento a $a
	if !story.Equal(v, story.Reference("a")) {
		t.Errorf("Expected the last value to be returned, got %v", v)
	}
}

func TestCompareTable(t *testing.T) {
	tests := []struct {
		op          story.Comparison
		left, right story.Value
		want        bool
		wantErr     bool
	}{
		{story.CompareEqual, story.Number(1), story.Number(1), true, false},
		{story.CompareNotEqual, story.String("a"), story.String("b"), true, false},
		{story.CompareEqual, story.Null{}, story.Number(1), false, false},
		{story.CompareEqual, story.String("1"), story.Number(1), false, true},
		{story.CompareLessOrEqual, story.Number(2), story.Number(2), true, false},
		{story.CompareGreaterOrEqual, story.Number(1), story.Number(2), false, false},
		{story.CompareContains, story.List{story.Number(1)}, story.Number(1), true, false},
		{story.CompareNotContains, story.Map{"k": story.Boolean(true)}, story.Boolean(true), false, false},
		{story.CompareContains, story.Number(1), story.Number(1), false, true},
	}

	for _, tt := range tests {
		got, err := Compare(tt.op, tt.left, tt.right, story.Range{})
		if (err != nil) != tt.wantErr {
			t.Errorf("%v %v %v: unexpected error %v", tt.left, tt.op, tt.right, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v %v %v: expected %v, got %v", tt.left, tt.op, tt.right, tt.want, got)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	def := compile(t,
		`define passage start`,
		`  narrate "mai"`,
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(def, &recorder{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
