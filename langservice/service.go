package langservice

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"vnscript-editor/grammar"
	"vnscript-editor/logging"
	"vnscript-editor/parser"
	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

var (
	// ErrNoToken indica che alla posizione richiesta non c'è alcun token
	ErrNoToken = errors.New("nessun token alla posizione indicata")
	// ErrNoReferent indica un token che non si riferisce ad alcuna entità
	ErrNoReferent = errors.New("il token non si riferisce a un'entità")
	// ErrNotRenamable indica un token di vocabolario fisso o un letterale
	ErrNotRenamable = errors.New("il token non può essere rinominato")
	// ErrInvalidName indica un nuovo nome non valido o già in uso
	ErrInvalidName = errors.New("nome non valido")
)

// Position è una posizione nel sorgente, con riga e colonna a base zero
type Position struct {
	File string `json:"file"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

// Referent identifica l'entità a cui un token si riferisce. Le espressioni
// sono identificate da personaggio e nome: lo stesso nome in outfit diversi
// è un'unica entità.
type Referent struct {
	Entity    story.Entity        `json:"entity"`
	Scope     story.VariableScope `json:"scope"`
	Character string              `json:"character,omitempty"`
	Name      string              `json:"name"`
}

// Service risponde alle richieste dell'editor su un progetto già analizzato
type Service struct {
	proj    *parser.Project
	grammar *grammar.Grammar
	log     *slog.Logger
}

// New crea il servizio per un progetto; con g nil usa la grammatica predefinita
func New(proj *parser.Project, g *grammar.Grammar) *Service {
	if g == nil {
		g = grammar.New()
	}
	return &Service{proj: proj, grammar: g, log: logging.WithComponent("langservice")}
}

// TokenAt restituisce il token che contiene la posizione
func (s *Service) TokenAt(pos Position) (scanner.Token, bool) {
	f, ok := s.proj.File(pos.File)
	if !ok {
		return scanner.Token{}, false
	}
	// I token di interpolazione stanno dentro la stringa: hanno la precedenza
	var found scanner.Token
	var hit bool
	for _, tok := range f.TokensOnRow(pos.Row) {
		if tok.Contains(pos.Row, pos.Col) {
			if !hit || tok.Interpolated {
				found, hit = tok, true
			}
		}
	}
	return found, hit
}

// Resolve restituisce l'entità a cui il token si riferisce
func (s *Service) Resolve(tok scanner.Token) (Referent, bool) {
	def := s.proj.Story

	switch tok.Kind {
	case scanner.KindVariable:
		name := tok.Name()
		switch tok.Scope {
		case story.ScopeCast:
			return Referent{Entity: story.EntityVariable, Scope: story.ScopeCast, Name: name}, true
		case story.ScopeCharacter:
			local := tok.Definition
			if c, ok := def.Characters[tok.Character]; ok {
				_, local = c.Variables[name]
				local = local || tok.Definition
			}
			if _, isCast := def.Cast[name]; isCast && !local {
				return Referent{Entity: story.EntityVariable, Scope: story.ScopeCast, Name: name}, true
			}
			return Referent{Entity: story.EntityVariable, Scope: story.ScopeCharacter, Character: tok.Character, Name: name}, true
		}
		return Referent{Entity: story.EntityVariable, Scope: story.ScopeGlobal, Name: name}, true

	case scanner.KindIdentifier:
		switch tok.SubType {
		case story.EntityOutfit, story.EntityExpression:
			return Referent{Entity: tok.SubType, Character: tok.Character, Name: tok.Text}, true
		case story.EntityNone:
			return Referent{}, false
		}
		return Referent{Entity: tok.SubType, Name: tok.Text}, true
	}
	return Referent{}, false
}

// ReferentAt restituisce il token alla posizione e l'entità a cui si riferisce
func (s *Service) ReferentAt(pos Position) (scanner.Token, Referent, error) {
	tok, ok := s.TokenAt(pos)
	if !ok {
		return scanner.Token{}, Referent{}, ErrNoToken
	}
	ref, ok := s.Resolve(tok)
	if !ok {
		return tok, Referent{}, ErrNoReferent
	}
	return tok, ref, nil
}

// References restituisce gli intervalli di tutti i token, in tutti i file, che
// si riferiscono alla stessa entità del token alla posizione (definizioni comprese)
func (s *Service) References(pos Position) ([]story.Range, error) {
	_, ref, err := s.ReferentAt(pos)
	if err != nil {
		return nil, err
	}
	return s.occurrences(ref), nil
}

func (s *Service) occurrences(ref Referent) []story.Range {
	var out []story.Range
	for _, name := range s.proj.Order {
		f := s.proj.Files[name]
		for _, tok := range f.Tokens {
			if other, ok := s.Resolve(tok); ok && other == ref {
				out = append(out, tok.Range(name))
			}
		}
	}
	return out
}

// Definition restituisce gli intervalli di definizione dell'entità alla posizione.
// Un'espressione può averne più d'uno, uno per ogni outfit che la dichiara.
func (s *Service) Definition(pos Position) ([]story.Range, error) {
	_, ref, err := s.ReferentAt(pos)
	if err != nil {
		return nil, err
	}
	ranges := s.definitions(ref)
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%s '%s': %w", ref.Entity, ref.Name, ErrNoReferent)
	}
	return ranges, nil
}

func (s *Service) definitions(ref Referent) []story.Range {
	def := s.proj.Story

	switch ref.Entity {
	case story.EntityCharacter:
		if c, ok := def.Characters[ref.Name]; ok {
			return []story.Range{c.IDRange}
		}
	case story.EntityOutfit:
		if c, ok := def.Characters[ref.Character]; ok {
			if o, ok := c.Outfits[ref.Name]; ok {
				return []story.Range{o.IDRange}
			}
		}
	case story.EntityExpression:
		if c, ok := def.Characters[ref.Character]; ok {
			var out []story.Range
			for _, o := range c.OutfitsWithExpression(ref.Name) {
				out = append(out, o.Expressions[ref.Name].IDRange)
			}
			return out
		}
	case story.EntityBackdrop:
		if b, ok := def.Backdrops[ref.Name]; ok {
			return []story.Range{b.IDRange}
		}
	case story.EntitySound:
		if snd, ok := def.Sounds[ref.Name]; ok {
			return []story.Range{snd.IDRange}
		}
	case story.EntityPassage:
		if p, ok := def.Passages[ref.Name]; ok {
			return []story.Range{p.IDRange}
		}
	case story.EntityVariable:
		if v, ok := s.variable(ref); ok {
			return []story.Range{v.IDRange}
		}
	}
	return nil
}

func (s *Service) variable(ref Referent) (*story.Variable, bool) {
	def := s.proj.Story
	var v *story.Variable
	var ok bool
	switch ref.Scope {
	case story.ScopeGlobal:
		v, ok = def.Globals[ref.Name]
	case story.ScopeCast:
		v, ok = def.Cast[ref.Name]
	case story.ScopeCharacter:
		if c, found := def.Characters[ref.Character]; found {
			v, ok = c.Variables[ref.Name]
		}
	}
	return v, ok
}

// ============================================
// Rename
// ============================================

// Edit sostituisce il testo di un intervallo
type Edit struct {
	Range   story.Range `json:"range"`
	NewText string      `json:"new_text"`
}

// Rename calcola le modifiche che rinominano in tutti i file l'entità alla
// posizione. Keyword, letterali e vocabolario fisso non sono rinominabili.
func (s *Service) Rename(pos Position, newName string) ([]Edit, error) {
	tok, ok := s.TokenAt(pos)
	if !ok {
		return nil, ErrNoToken
	}
	if tok.Kind != scanner.KindVariable && tok.Kind != scanner.KindIdentifier {
		return nil, fmt.Errorf("'%s': %w", tok.Text, ErrNotRenamable)
	}
	if grammar.IsFixedVocabulary(tok.Text) {
		return nil, fmt.Errorf("'%s': %w", tok.Text, ErrNotRenamable)
	}
	ref, ok := s.Resolve(tok)
	if !ok {
		return nil, fmt.Errorf("'%s': %w", tok.Text, ErrNotRenamable)
	}

	name := strings.TrimPrefix(newName, "$")
	if err := s.checkName(ref, name); err != nil {
		return nil, err
	}

	text := name
	if ref.Entity == story.EntityVariable {
		text = "$" + name
	}

	ranges := s.occurrences(ref)
	edits := make([]Edit, len(ranges))
	for i, r := range ranges {
		edits[i] = Edit{Range: r, NewText: text}
	}
	s.log.Info("✏️ rinomina", slog.String("entity", ref.Entity.String()), slog.String("from", ref.Name), slog.String("to", name), slog.Int("edits", len(edits)))
	return edits, nil
}

// checkName verifica che il nuovo nome sia un identificatore valido, non sia
// una parola riservata e non sia già usato nello stesso spazio dei nomi
func (s *Service) checkName(ref Referent, name string) error {
	if name == "" || scanner.IsDigit(name[0]) {
		return fmt.Errorf("'%s': %w", name, ErrInvalidName)
	}
	for i := 0; i < len(name); i++ {
		if !scanner.IsIdentChar(name[i]) {
			return fmt.Errorf("'%s': %w", name, ErrInvalidName)
		}
	}
	if grammar.IsFixedVocabulary(name) || s.isKeyword(name) {
		return fmt.Errorf("'%s' è una parola riservata: %w", name, ErrInvalidName)
	}
	if name == ref.Name {
		return nil
	}

	taken := ref
	taken.Name = name
	if len(s.definitions(taken)) > 0 {
		return fmt.Errorf("%s '%s' già definito: %w", ref.Entity, name, ErrInvalidName)
	}
	return nil
}

func (s *Service) isKeyword(word string) bool {
	for _, root := range s.grammar.Roots() {
		for _, sig := range s.grammar.Signatures(root) {
			for _, leaf := range sig.Leaves {
				if leaf.Kind == grammar.NodeKeyword && leaf.Text == word {
					return true
				}
			}
		}
	}
	return false
}

// ============================================
// Hover
// ============================================

// Hover è il contenuto mostrato al passaggio del mouse
type Hover struct {
	Range    story.Range `json:"range"`
	Contents string      `json:"contents"`
}

// Hover descrive il token alla posizione: l'entità per identificatori e
// variabili, la documentazione dell'istruzione per le keyword
func (s *Service) Hover(pos Position) (Hover, error) {
	tok, ok := s.TokenAt(pos)
	if !ok {
		return Hover{}, ErrNoToken
	}
	r := tok.Range(pos.File)

	if tok.Kind == scanner.KindKeyword {
		f, _ := s.proj.File(pos.File)
		if sig, ok := s.signatureAt(f, pos.Row, len(f.Line(pos.Row))); ok {
			return Hover{Range: r, Contents: fmt.Sprintf("`%s`\n\n%s", sig.Label(), sig.Statement.Doc())}, nil
		}
		return Hover{Range: r, Contents: "`" + tok.Text + "`"}, nil
	}

	ref, ok := s.Resolve(tok)
	if !ok {
		return Hover{}, ErrNoReferent
	}
	return Hover{Range: r, Contents: s.describe(ref)}, nil
}

func (s *Service) describe(ref Referent) string {
	def := s.proj.Story
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`", ref.Entity, ref.Name)

	switch ref.Entity {
	case story.EntityCharacter:
		c, ok := def.Characters[ref.Name]
		if !ok {
			b.WriteString("\n\nnon definito")
			break
		}
		fmt.Fprintf(&b, " \"%s\"", c.Name)
		if len(c.OutfitOrder) > 0 {
			fmt.Fprintf(&b, "\n\noutfit: %s", strings.Join(c.OutfitOrder, ", "))
		}
		if len(c.Variables) > 0 {
			fmt.Fprintf(&b, "\n\nvariabili: $%s", strings.Join(sortedKeys(c.Variables), ", $"))
		}

	case story.EntityOutfit:
		fmt.Fprintf(&b, " di `%s`", ref.Character)
		if c, ok := def.Characters[ref.Character]; ok {
			if o, ok := c.Outfits[ref.Name]; ok {
				fmt.Fprintf(&b, "\n\nespressioni: %s", strings.Join(o.ExpressionOrder, ", "))
			}
		}

	case story.EntityExpression:
		fmt.Fprintf(&b, " di `%s`", ref.Character)
		if c, ok := def.Characters[ref.Character]; ok {
			for _, o := range c.OutfitsWithExpression(ref.Name) {
				fmt.Fprintf(&b, "\n\n- %s: %s", o.ID, o.Expressions[ref.Name].Image)
			}
		}

	case story.EntityBackdrop:
		if bd, ok := def.Backdrops[ref.Name]; ok {
			fmt.Fprintf(&b, "\n\nimmagine: %s", bd.Image)
		}

	case story.EntitySound:
		if snd, ok := def.Sounds[ref.Name]; ok {
			fmt.Fprintf(&b, "\n\naudio: %s", snd.Audio)
		}

	case story.EntityPassage:
		if p, ok := def.Passages[ref.Name]; ok {
			fmt.Fprintf(&b, "\n\n%d azioni, definito in %s", len(p.Actions), p.IDRange)
		}

	case story.EntityVariable:
		b.Reset()
		fmt.Fprintf(&b, "**variabile %s** `$%s`", ref.Scope, ref.Name)
		if ref.Character != "" {
			fmt.Fprintf(&b, " di `%s`", ref.Character)
		}
		if v, ok := s.variable(ref); ok {
			fmt.Fprintf(&b, "\n\ntipo %s, valore iniziale `%s`", v.Type, v.Initial)
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
