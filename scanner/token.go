package scanner

import "vnscript-editor/story"

// Kind classifica un token
type Kind int

const (
	KindVariable Kind = iota
	KindNumber
	KindString
	KindKeyword
	KindIdentifier
	KindUnknown
	// KindEndOfLine è un token vuoto che segnala la fine della riga
	KindEndOfLine
)

// String restituisce il nome del tipo di token
func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindKeyword:
		return "keyword"
	case KindIdentifier:
		return "identifier"
	case KindUnknown:
		return "unknown"
	case KindEndOfLine:
		return "eol"
	}
	return "?"
}

// Token è un frammento di sorgente classificato.
// Start e End sono colonne (byte) semiaperte sulla riga Row.
type Token struct {
	Kind  Kind   `json:"kind"`
	Row   int    `json:"row"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`

	// Annotazioni impostate dal parser
	SubType      story.Entity        `json:"sub_type,omitempty"`
	Definition   bool                `json:"definition,omitempty"`
	Character    string              `json:"character,omitempty"`
	Scope        story.VariableScope `json:"scope"`
	Interpolated bool                `json:"interpolated,omitempty"`
}

// Range restituisce l'intervallo del token nel file indicato
func (t Token) Range(file string) story.Range {
	return story.Range{File: file, Row: t.Row, Start: t.Start, End: t.End}
}

// Contains verifica se la posizione cade nel token
func (t Token) Contains(row, col int) bool {
	return t.Row == row && col >= t.Start && col < t.End
}

// Name restituisce il nome della variabile senza il prefisso $
func (t Token) Name() string {
	if t.Kind == KindVariable && len(t.Text) > 0 {
		return t.Text[1:]
	}
	return t.Text
}

// Describe descrive il token per i messaggi d'errore
func (t Token) Describe() string {
	if t.Kind == KindEndOfLine {
		return "fine riga"
	}
	return "'" + t.Text + "'"
}
