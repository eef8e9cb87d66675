package langservice

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"vnscript-editor/grammar"
	"vnscript-editor/parser"
	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// lineContext è la riga fino al cursore, già suddivisa secondo la grammatica
type lineContext struct {
	root      *grammar.Node
	prefix    []scanner.Token
	partial   scanner.Token
	hasPart   bool
	character string
}

// rootFor sceglie la radice della grammatica valida per una riga a partire
// dalla pila di frame delle righe precedenti
func (s *Service) rootFor(f *parser.FileContext, row, indent int) (*grammar.Node, string) {
	frames := f.FramesAt(row, indent)
	if len(frames) == 0 {
		return s.grammar.TopLevel, ""
	}
	switch fr := frames[len(frames)-1].(type) {
	case *parser.CharacterFrame:
		return s.grammar.CharacterBody, fr.Character.ID
	case *parser.OutfitFrame:
		return s.grammar.OutfitBody, fr.Character.ID
	}
	return s.grammar.PassageBody, ""
}

// scanLine suddivide la riga fino a col. A ogni passo lo scanner riceve solo
// le keyword che la grammatica accetta dopo i token già letti. Se l'ultimo
// token arriva fino al cursore è la parola in corso di digitazione.
func (s *Service) scanLine(f *parser.FileContext, row, col int) lineContext {
	line := f.Line(row)
	if col > len(line) {
		col = len(line)
	}
	if col < 0 {
		col = 0
	}
	text := line[:col]

	sc := scanner.New([]string{text})
	indent := sc.Indentation()
	lc := lineContext{}
	lc.root, lc.character = s.rootFor(f, row, indent)

	for {
		leaves, _ := s.grammar.ExpectedContinuations(lc.root, lc.prefix)
		tok, _ := sc.Next(keywordsOf(leaves)...)
		if tok.Kind == scanner.KindEndOfLine {
			break
		}
		if sc.AtEOL() {
			lc.partial, lc.hasPart = tok, true
			break
		}
		lc.prefix = append(lc.prefix, tok)
		sc.SkipWhitespace()
	}

	// In un passaggio un personaggio iniziale porta le azioni nel suo scope
	if lc.root == s.grammar.PassageBody && len(lc.prefix) > 0 && lc.prefix[0].Kind == scanner.KindIdentifier {
		if _, ok := s.proj.Story.Characters[lc.prefix[0].Text]; ok {
			lc.character = lc.prefix[0].Text
		}
	}
	return lc
}

func keywordsOf(leaves []*grammar.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, leaf := range leaves {
		if leaf.Kind == grammar.NodeKeyword && !seen[leaf.Text] {
			seen[leaf.Text] = true
			out = append(out, leaf.Text)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Completion propone le continuazioni valide della riga alla posizione.
// I suggerimenti sono filtrati e ordinati rispetto alla parola in digitazione.
func (s *Service) Completion(pos Position) ([]grammar.Suggestion, error) {
	f, ok := s.proj.File(pos.File)
	if !ok {
		return nil, ErrNoToken
	}
	lc := s.scanLine(f, pos.Row, pos.Col)
	if lc.hasPart && lc.partial.Kind == scanner.KindString {
		return nil, nil
	}

	leaves, _ := s.grammar.ExpectedContinuations(lc.root, lc.prefix)
	ctx := grammar.SuggestContext{Story: s.proj.Story, Character: lc.character}

	seen := make(map[string]bool)
	var items []grammar.Suggestion
	for _, leaf := range leaves {
		for _, sg := range grammar.Suggestions(leaf, ctx) {
			if !seen[sg.Label] {
				seen[sg.Label] = true
				items = append(items, sg)
			}
		}
	}

	if !lc.hasPart {
		return items, nil
	}
	return filter(items, lc.partial.Text), nil
}

// filter tiene i suggerimenti che contengono la parola come sottosequenza,
// dal più vicino al più lontano
func filter(items []grammar.Suggestion, word string) []grammar.Suggestion {
	labels := make([]string, len(items))
	byLabel := make(map[string]grammar.Suggestion, len(items))
	for i, it := range items {
		labels[i] = it.Label
		byLabel[it.Label] = it
	}

	ranks := fuzzy.RankFindFold(word, labels)
	sort.Stable(ranks)

	out := make([]grammar.Suggestion, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, byLabel[r.Target])
	}
	return out
}

// ============================================
// Signature help
// ============================================

// SignatureInfo descrive la firma attiva sulla riga del cursore
type SignatureInfo struct {
	Label      string   `json:"label"`
	Doc        string   `json:"documentation"`
	Parameters []string `json:"parameters"`
	// Index è l'indice della firma tra tutte quelle della radice
	Index int `json:"index"`
	// Active è il parametro atteso alla posizione del cursore
	Active int `json:"active_parameter"`
}

// SignatureHelp restituisce la firma che meglio corrisponde ai token della
// riga fino al cursore; false se nessuna firma corrisponde
func (s *Service) SignatureHelp(pos Position) (SignatureInfo, bool) {
	f, ok := s.proj.File(pos.File)
	if !ok {
		return SignatureInfo{}, false
	}
	lc := s.scanLine(f, pos.Row, pos.Col)
	sig, index, active, ok := s.signature(lc)
	if !ok {
		return SignatureInfo{}, false
	}
	return SignatureInfo{
		Label:      sig.Label(),
		Doc:        sig.Statement.Doc(),
		Parameters: sig.Params,
		Index:      index,
		Active:     active,
	}, true
}

func (s *Service) signatureAt(f *parser.FileContext, row, col int) (grammar.Signature, bool) {
	sig, _, _, ok := s.signature(s.scanLine(f, row, col))
	return sig, ok
}

// signature cerca la firma della riga. Una parola ancora incompleta che non
// corrisponde a nessuna firma viene ignorata: si sta digitando il parametro
// successivo al prefisso.
func (s *Service) signature(lc lineContext) (grammar.Signature, int, int, bool) {
	tokens := append([]scanner.Token(nil), lc.prefix...)
	if lc.hasPart {
		if sig, index, active, ok := s.grammar.SignatureHelp(lc.root, append(tokens, lc.partial)); ok {
			return sig, index, active, true
		}
	}
	return s.grammar.SignatureHelp(lc.root, tokens)
}

// ============================================
// Diagnostiche
// ============================================

// FormattedDiagnostic è una diagnostica con l'estratto del sorgente già formattato
type FormattedDiagnostic struct {
	story.Diagnostic
	Label     string `json:"label"`
	Severity  string `json:"severity"`
	Formatted string `json:"formatted"`
}

// Diagnostics elenca le diagnostiche indicate con l'estratto del file a cui si riferiscono
func (s *Service) Diagnostics(diags []story.Diagnostic) []FormattedDiagnostic {
	out := make([]FormattedDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = FormattedDiagnostic{
			Diagnostic: d,
			Label:      d.Kind.String(),
			Severity:   "error",
			Formatted:  s.proj.FormatDiagnostic(d),
		}
	}
	return out
}
