package scanner

import (
	"strconv"
	"strings"
)

// TabWidth è il numero di colonne di indentazione di un tab
const TabWidth = 8

// Scanner produce token su richiesta a partire da un cursore (riga, colonna)
type Scanner struct {
	lines []string
	row   int
	col   int
}

// New crea uno scanner posizionato all'inizio della prima riga
func New(lines []string) *Scanner {
	return &Scanner{lines: lines}
}

// Clone restituisce una copia indipendente per guardare avanti senza consumare
func (s *Scanner) Clone() *Scanner {
	c := *s
	return &c
}

// SetCursor sposta il cursore
func (s *Scanner) SetCursor(row, col int) {
	s.row = row
	s.col = col
}

// Row restituisce la riga corrente
func (s *Scanner) Row() int { return s.row }

// Col restituisce la colonna corrente
func (s *Scanner) Col() int { return s.col }

// Line restituisce il testo della riga corrente
func (s *Scanner) Line() string {
	if s.row < 0 || s.row >= len(s.lines) {
		return ""
	}
	return s.lines[s.row]
}

// AtEOL verifica se il cursore è a fine riga
func (s *Scanner) AtEOL() bool {
	return s.col >= len(s.Line())
}

// ============================================
// Classificatori di caratteri
// ============================================

func IsWhitespace(c byte) bool { return c == ' ' || c == '\t' }
func IsAlpha(c byte) bool      { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func IsDigit(c byte) bool      { return c >= '0' && c <= '9' }
func IsIdentChar(c byte) bool  { return IsAlpha(c) || IsDigit(c) || c == '_' }

// IsWordBoundary: fuori dai limiti oppure cambio di "identificatore-ità"
// rispetto al carattere precedente
func IsWordBoundary(line string, col int) bool {
	if col <= 0 || col >= len(line) {
		return true
	}
	return IsIdentChar(line[col]) != IsIdentChar(line[col-1])
}

// Indentation consuma gli spazi iniziali e restituisce la larghezza
// (spazio = 1 colonna, tab = TabWidth colonne). Il primo carattere
// non bianco non viene consumato.
func (s *Scanner) Indentation() int {
	line := s.Line()
	width := 0
	for s.col < len(line) && IsWhitespace(line[s.col]) {
		if line[s.col] == '\t' {
			width += TabWidth
		} else {
			width++
		}
		s.col++
	}
	return width
}

// SkipWhitespace salta spazi e tab
func (s *Scanner) SkipWhitespace() {
	line := s.Line()
	for s.col < len(line) && IsWhitespace(line[s.col]) {
		s.col++
	}
}

func (s *Scanner) token(kind Kind, start, end int) Token {
	return Token{Kind: kind, Row: s.row, Start: start, End: end, Text: s.Line()[start:end]}
}

// ============================================
// Token
// ============================================

// EndOfLine restituisce il token di fine riga se il cursore è a fine riga
func (s *Scanner) EndOfLine() (Token, bool) {
	if !s.AtEOL() {
		return Token{}, false
	}
	n := len(s.Line())
	return Token{Kind: KindEndOfLine, Row: s.row, Start: n, End: n}, true
}

// Variable riconosce $ seguito da almeno un carattere di identificatore
func (s *Scanner) Variable() (Token, bool) {
	line := s.Line()
	if s.col >= len(line) || line[s.col] != '$' {
		return Token{}, false
	}
	end := s.col + 1
	for end < len(line) && IsIdentChar(line[end]) {
		end++
	}
	if end == s.col+1 {
		return Token{}, false
	}
	tok := s.token(KindVariable, s.col, end)
	s.col = end
	return tok, true
}

// Number riconosce cifre, con un eventuale singolo punto seguito da cifre
func (s *Scanner) Number() (Token, bool) {
	line := s.Line()
	start := s.col
	end := start
	for end < len(line) && IsDigit(line[end]) {
		end++
	}
	if end == start {
		return Token{}, false
	}
	if end+1 < len(line) && line[end] == '.' && IsDigit(line[end+1]) {
		end++
		for end < len(line) && IsDigit(line[end]) {
			end++
		}
	}
	tok := s.token(KindNumber, start, end)
	s.col = end
	return tok, true
}

// QuotedString riconosce una stringa tra virgolette fino alla prossima
// virgoletta non preceduta da \ oppure fino a fine riga. Restituisce anche
// i token variabile per ogni $nome trovato nel corpo (interpolazione).
func (s *Scanner) QuotedString() (Token, []Token, bool) {
	line := s.Line()
	if s.col >= len(line) || line[s.col] != '"' {
		return Token{}, nil, false
	}
	start := s.col
	end := start + 1
	for end < len(line) {
		if line[end] == '\\' && end+1 < len(line) {
			end += 2
			continue
		}
		if line[end] == '"' {
			end++
			break
		}
		end++
	}
	if end > len(line) {
		end = len(line)
	}
	tok := s.token(KindString, start, end)

	var interpolations []Token
	for _, span := range FindVariables(line[start+1 : end]) {
		v := s.token(KindVariable, start+1+span[0], start+1+span[1])
		v.Interpolated = true
		interpolations = append(interpolations, v)
	}

	s.col = end
	return tok, interpolations, true
}

// Keyword riconosce esattamente il letterale indicato, che deve iniziare e
// finire su un confine di parola
func (s *Scanner) Keyword(literal string) (Token, bool) {
	line := s.Line()
	end := s.col + len(literal)
	if literal == "" || end > len(line) || line[s.col:end] != literal {
		return Token{}, false
	}
	if !IsWordBoundary(line, s.col) || !IsWordBoundary(line, end) {
		return Token{}, false
	}
	tok := s.token(KindKeyword, s.col, end)
	s.col = end
	return tok, true
}

// Identifier riconosce la sequenza più lunga di caratteri di identificatore
func (s *Scanner) Identifier() (Token, bool) {
	line := s.Line()
	end := s.col
	for end < len(line) && IsIdentChar(line[end]) {
		end++
	}
	if end == s.col {
		return Token{}, false
	}
	tok := s.token(KindIdentifier, s.col, end)
	s.col = end
	return tok, true
}

// Unknown consuma un singolo carattere non classificabile
func (s *Scanner) Unknown() Token {
	end := s.col + 1
	if end > len(s.Line()) {
		end = len(s.Line())
	}
	tok := s.token(KindUnknown, s.col, end)
	s.col = end
	return tok
}

// Next classifica la posizione corrente provando, in ordine: fine riga,
// variabile, numero, stringa, i letterali indicati dal chiamante,
// identificatore e infine un carattere sconosciuto. Per le stringhe
// restituisce anche i token di interpolazione.
func (s *Scanner) Next(literals ...string) (Token, []Token) {
	if tok, ok := s.EndOfLine(); ok {
		return tok, nil
	}
	if tok, ok := s.Variable(); ok {
		return tok, nil
	}
	if tok, ok := s.Number(); ok {
		return tok, nil
	}
	if tok, extra, ok := s.QuotedString(); ok {
		return tok, extra
	}
	for _, lit := range literals {
		if tok, ok := s.Keyword(lit); ok {
			return tok, nil
		}
	}
	if tok, ok := s.Identifier(); ok {
		return tok, nil
	}
	return s.Unknown(), nil
}

// ============================================
// Utility
// ============================================

// FindVariables restituisce gli intervalli [inizio, fine) di ogni $nome nel testo
func FindVariables(text string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(text); i++ {
		if text[i] != '$' {
			continue
		}
		end := i + 1
		for end < len(text) && IsIdentChar(text[end]) {
			end++
		}
		if end > i+1 {
			spans = append(spans, [2]int{i, end})
			i = end - 1
		}
	}
	return spans
}

// DecodeNumber converte il testo di un numero; in caso di testo malformato restituisce 0
func DecodeNumber(text string) float64 {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return n
}

// DecodeString rimuove le virgolette e interpreta gli escape \" \\ \n \t.
// Una stringa non terminata restituisce il corpo grezzo, gli escape
// sconosciuti restano invariati.
func DecodeString(text string) string {
	body := strings.TrimPrefix(text, `"`)
	if strings.HasSuffix(body, `"`) && !strings.HasSuffix(body, `\"`) {
		body = body[:len(body)-1]
	} else if strings.HasSuffix(body, `\\"`) {
		body = body[:len(body)-1]
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
