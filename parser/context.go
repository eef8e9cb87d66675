package parser

import (
	"sort"

	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// ============================================
// Frame: stati di annidamento
// ============================================

// Frame è uno stato della pila di annidamento. Le implementazioni sono
// CharacterFrame, OutfitFrame, PassageFrame e ContainerFrame.
type Frame interface {
	// Indent è l'indentazione della riga che ha aperto il frame
	Indent() int
	isFrame()
}

type level struct {
	Level int
}

func (l level) Indent() int { return l.Level }
func (level) isFrame()      {}

// CharacterFrame: corpo di define character, prima di qualsiasi outfit
type CharacterFrame struct {
	level
	Character *story.Character
}

// OutfitFrame: corpo di un outfit
type OutfitFrame struct {
	level
	Character *story.Character
	Outfit    *story.Outfit
}

// PassageFrame: corpo di define passage
type PassageFrame struct {
	level
	Passage *story.Passage
}

// ContainerFrame: corpo di option o check
type ContainerFrame struct {
	level
	Passage *story.Passage
	Owner   story.Action
	Actions *[]story.Action
}

func popFrames(frames []Frame, indent int) []Frame {
	for len(frames) > 0 && frames[len(frames)-1].Indent() >= indent {
		frames = frames[:len(frames)-1]
	}
	return frames
}

// ============================================
// FileContext
// ============================================

// LineState ricorda l'indentazione di una riga e la pila di frame dopo averla analizzata
type LineState struct {
	Indent int
	Blank  bool
	Frames []Frame
}

// FileContext è il risultato dell'analisi di un file: righe, token e diagnostiche.
// Dopo Parser.Load è di sola lettura.
type FileContext struct {
	Path        string             `json:"path"`
	Lines       []string           `json:"-"`
	Tokens      []scanner.Token    `json:"tokens"`
	Diagnostics []story.Diagnostic `json:"diagnostics"`
	LineStates  []LineState        `json:"-"`
}

// Line restituisce il testo della riga (stringa vuota fuori dai limiti)
func (f *FileContext) Line(row int) string {
	if row < 0 || row >= len(f.Lines) {
		return ""
	}
	return f.Lines[row]
}

// TokensOnRow restituisce i token della riga in ordine di colonna
func (f *FileContext) TokensOnRow(row int) []scanner.Token {
	start := sort.Search(len(f.Tokens), func(i int) bool { return f.Tokens[i].Row >= row })
	var out []scanner.Token
	for i := start; i < len(f.Tokens) && f.Tokens[i].Row == row; i++ {
		out = append(out, f.Tokens[i])
	}
	return out
}

// FramesAt ricostruisce la pila di frame valida per una riga con l'indentazione
// indicata, partendo dall'ultima riga non vuota precedente
func (f *FileContext) FramesAt(row, indent int) []Frame {
	if row > len(f.LineStates) {
		row = len(f.LineStates)
	}
	for r := row - 1; r >= 0; r-- {
		st := f.LineStates[r]
		if st.Blank {
			continue
		}
		frames := append([]Frame(nil), st.Frames...)
		return popFrames(frames, indent)
	}
	return nil
}

// ============================================
// Project
// ============================================

// Project raccoglie la definizione della storia e tutti i file analizzati
type Project struct {
	Entry string                  `json:"entry"`
	Story *story.Definition       `json:"story"`
	Files map[string]*FileContext `json:"files"`
	// Order elenca i file nell'ordine in cui sono stati analizzati
	Order []string `json:"order"`
}

// File restituisce il contesto di un file
func (p *Project) File(name string) (*FileContext, bool) {
	f, ok := p.Files[name]
	return f, ok
}

// Diagnostics restituisce le diagnostiche di sintassi di tutti i file
func (p *Project) Diagnostics() []story.Diagnostic {
	var out []story.Diagnostic
	for _, name := range p.Order {
		out = append(out, p.Files[name].Diagnostics...)
	}
	return out
}

// FormatDiagnostic formatta una diagnostica con l'estratto della riga del file a cui si riferisce
func (p *Project) FormatDiagnostic(d story.Diagnostic) string {
	if f, ok := p.Files[d.Range.File]; ok {
		return d.Format(f.Line(d.Range.Row))
	}
	return d.Error()
}
