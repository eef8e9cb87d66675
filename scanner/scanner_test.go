package scanner

import (
	"testing"
)

// ============================================
// Test: indentazione e spazi
// ============================================

func TestIndentationSpacesAndTabs(t *testing.T) {
	s := New([]string{"  \tnarrate"})

	width := s.Indentation()
	if width != 2+TabWidth {
		t.Errorf("Expected indentation %d, got %d", 2+TabWidth, width)
	}
	if s.Col() != 3 {
		t.Errorf("Expected cursor at column 3, got %d", s.Col())
	}

	tok, ok := s.Keyword("narrate")
	if !ok {
		t.Fatal("Expected keyword after indentation")
	}
	if tok.Start != 3 || tok.End != 10 {
		t.Errorf("Expected range [3,10), got [%d,%d)", tok.Start, tok.End)
	}

	t.Logf("✅ Indentazione: %d colonne", width)
}

func TestWordBoundary(t *testing.T) {
	line := "go to$x"

	cases := []struct {
		col  int
		want bool
	}{
		{0, true},
		{1, false},
		{2, true},
		{5, true},
		{6, true},
		{7, true},
		{-1, true},
	}

	for _, c := range cases {
		if got := IsWordBoundary(line, c.col); got != c.want {
			t.Errorf("Expected boundary(%d) = %v, got %v", c.col, c.want, got)
		}
	}
}

// ============================================
// Test: token
// ============================================

func TestNextPriorityOrder(t *testing.T) {
	s := New([]string{`$gold 12.5 "ciao" go to start ? `})

	expected := []struct {
		kind Kind
		text string
	}{
		{KindVariable, "$gold"},
		{KindNumber, "12.5"},
		{KindString, `"ciao"`},
		{KindKeyword, "go to"},
		{KindIdentifier, "start"},
		{KindUnknown, "?"},
		{KindEndOfLine, ""},
	}

	for i, want := range expected {
		tok, _ := s.Next("go to")
		if tok.Kind != want.kind || tok.Text != want.text {
			t.Errorf("Token %d: expected %s '%s', got %s '%s'", i, want.kind, want.text, tok.Kind, tok.Text)
		}
		s.SkipWhitespace()
	}

	t.Log("✅ Ordine di priorità rispettato")
}

func TestKeywordRequiresWordBoundary(t *testing.T) {
	s := New([]string{"endless"})

	if _, ok := s.Keyword("end"); ok {
		t.Error("Expected 'end' not to match inside 'endless'")
	}
	if s.Col() != 0 {
		t.Errorf("Expected cursor not to move, got %d", s.Col())
	}

	tok, _ := s.Next("end")
	if tok.Kind != KindIdentifier || tok.Text != "endless" {
		t.Errorf("Expected identifier 'endless', got %s '%s'", tok.Kind, tok.Text)
	}
}

func TestNumberSingleDot(t *testing.T) {
	s := New([]string{"1.2.3"})

	tok, ok := s.Number()
	if !ok {
		t.Fatal("Expected number")
	}
	if tok.Text != "1.2" {
		t.Errorf("Expected '1.2', got '%s'", tok.Text)
	}

	// "1." senza cifre non consuma il punto
	s = New([]string{"1."})
	tok, _ = s.Number()
	if tok.Text != "1" {
		t.Errorf("Expected '1', got '%s'", tok.Text)
	}
}

func TestQuotedStringInterpolation(t *testing.T) {
	s := New([]string{`say "hai $gold monete e $name_2!" x`})
	s.SetCursor(0, 4)

	tok, extra, ok := s.QuotedString()
	if !ok {
		t.Fatal("Expected string token")
	}
	if tok.Text != `"hai $gold monete e $name_2!"` {
		t.Errorf("Unexpected string text: %s", tok.Text)
	}
	if len(extra) != 2 {
		t.Fatalf("Expected 2 interpolation tokens, got %d", len(extra))
	}
	if extra[0].Text != "$gold" || extra[0].Start != 9 || extra[0].End != 14 {
		t.Errorf("Unexpected first interpolation: %+v", extra[0])
	}
	if !extra[1].Interpolated || extra[1].Name() != "name_2" {
		t.Errorf("Unexpected second interpolation: %+v", extra[1])
	}

	t.Logf("✅ Interpolazioni trovate: %d", len(extra))
}

func TestQuotedStringEscapeAndUnterminated(t *testing.T) {
	s := New([]string{`"a \" b" rest`})
	tok, _, _ := s.QuotedString()
	if tok.Text != `"a \" b"` {
		t.Errorf("Expected escaped quote to be skipped, got %s", tok.Text)
	}

	s = New([]string{`"aperta`})
	tok, _, _ = s.QuotedString()
	if tok.End != 7 {
		t.Errorf("Expected unterminated string to end at EOL, got %d", tok.End)
	}
	if !s.AtEOL() {
		t.Error("Expected cursor at end of line")
	}
}

func TestEndOfLineToken(t *testing.T) {
	s := New([]string{"end"})
	s.Next("end")

	tok, _ := s.Next()
	if tok.Kind != KindEndOfLine {
		t.Errorf("Expected eol, got %s", tok.Kind)
	}
	if tok.Describe() != "fine riga" {
		t.Errorf("Expected 'fine riga', got '%s'", tok.Describe())
	}
}

// ============================================
// Test: decodifica
// ============================================

func TestDecodeString(t *testing.T) {
	cases := map[string]string{
		`"ciao"`:          "ciao",
		`"a \"b\""`:       `a "b"`,
		`"riga\nnuova"`:   "riga\nnuova",
		`"sconosciuto\q"`: `sconosciuto\q`,
		`"aperta`:         "aperta",
	}

	for in, want := range cases {
		if got := DecodeString(in); got != want {
			t.Errorf("DecodeString(%s): expected %q, got %q", in, want, got)
		}
	}
}

func TestDecodeNumberLenient(t *testing.T) {
	if DecodeNumber("3.25") != 3.25 {
		t.Error("Expected 3.25")
	}
	if DecodeNumber("x") != 0 {
		t.Error("Expected malformed number to decode as 0")
	}
}

func TestFindVariables(t *testing.T) {
	spans := FindVariables("$a costa $ $bb")
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[1] != [2]int{11, 14} {
		t.Errorf("Unexpected span: %v", spans[1])
	}
}
