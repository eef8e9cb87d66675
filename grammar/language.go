package grammar

import (
	"vnscript-editor/story"
)

// Grammar contiene le radici della grammatica del linguaggio, una per ogni
// contesto di annidamento, e le firme precalcolate di ciascuna radice
type Grammar struct {
	// TopLevel: define ... e include (nessun contesto aperto)
	TopLevel *Node
	// CharacterBody: outfit e variabili del personaggio
	CharacterBody *Node
	// OutfitBody: espressioni dell'outfit
	OutfitBody *Node
	// NarratorActions: azioni di un passaggio nello scope del narratore
	NarratorActions *Node
	// CharacterActions: <personaggio> seguito da un'azione del personaggio
	CharacterActions *Node
	// PassageBody unisce le azioni del narratore e quelle dei personaggi
	PassageBody *Node

	signatures map[*Node][]Signature
	reserved   map[string]bool
}

// New costruisce la grammatica del linguaggio
func New() *Grammar {
	g := &Grammar{}

	g.TopLevel = Alternative(
		Sequence(
			Keyword("define"),
			Alternative(
				statement(StmtDefineCharacter,
					Keyword("character"),
					Identifier(story.EntityCharacter, true).As(FieldID),
					String().Labeled("nome").As(FieldName)),
				statement(StmtDefineBackdrop,
					Keyword("backdrop"),
					Identifier(story.EntityBackdrop, true).As(FieldID),
					String().Labeled("immagine").As(FieldAsset)),
				statement(StmtDefineSound,
					Keyword("sound"),
					Identifier(story.EntitySound, true).As(FieldID),
					String().Labeled("audio").As(FieldAsset)),
				statement(StmtDefineGlobal,
					Keyword("global"), Keyword("variable"),
					Variable(true).As(FieldID),
					Keyword("is"), value()),
				statement(StmtDefineCast,
					Keyword("cast"), Keyword("variable"),
					Variable(true).As(FieldID),
					Keyword("is"), value()),
				statement(StmtDefinePassage,
					Keyword("passage"),
					Identifier(story.EntityPassage, true).As(FieldID)),
			).Labeled("tipo di definizione"),
		),
		statement(StmtInclude,
			Keyword("include"),
			String().Labeled("percorso").As(FieldPath)),
	).Labeled("'define' o 'include'")

	g.CharacterBody = Alternative(
		statement(StmtOutfit,
			Keyword("outfit"),
			Identifier(story.EntityOutfit, true).As(FieldID)),
		statement(StmtCharacterVariable,
			Keyword("variable"),
			Variable(true).As(FieldID),
			Keyword("is"), value()),
	).Labeled("'outfit' o 'variable'")

	g.OutfitBody = Alternative(
		statement(StmtExpression,
			Keyword("expression"),
			Identifier(story.EntityExpression, true).As(FieldID),
			String().Labeled("immagine").As(FieldAsset)),
	).Labeled("'expression'")

	narrator := []*Node{
		statement(StmtContinue, Keyword("continue")),
		statement(StmtGoto, Keyword("go to"), Identifier(story.EntityPassage, false).As(FieldTarget)),
		statement(StmtEnd, Keyword("end")),
		statement(StmtDisplay, Keyword("display"), Identifier(story.EntityBackdrop, false).As(FieldTarget)),
		statement(StmtPlay, Keyword("play"), Identifier(story.EntitySound, false).As(FieldTarget)),
		statement(StmtNarrate, Keyword("narrate"), String().As(FieldText)),
		statement(StmtOption, Keyword("option"), String().As(FieldText)),
		statement(StmtCheck, Keyword("check"), Keyword("if"),
			Variable(false).As(FieldVariable), comparison(), value()),
		statement(StmtSet, Keyword("set"),
			Variable(false).As(FieldVariable), Keyword("to"), value()),
		statement(StmtAdd, Keyword("add"), value(), Keyword("to"),
			Variable(false).As(FieldVariable), atKey()),
		statement(StmtSubtract, Keyword("subtract"), value(), Keyword("from"),
			Variable(false).As(FieldVariable)),
	}
	g.NarratorActions = Alternative(narrator...).Labeled("azione")

	g.CharacterActions = Sequence(
		Identifier(story.EntityCharacter, false).As(FieldCharacter),
		Alternative(
			statement(StmtEnter, Keyword("enters"), location()),
			statement(StmtExit, Keyword("exits"), location()),
			statement(StmtMove, Keyword("moves to"), location()),
			statement(StmtSay, Keyword("says"), String().As(FieldText)),
			statement(StmtLook, Keyword("looks"), Identifier(story.EntityExpression, false).As(FieldTarget)),
			statement(StmtWear, Keyword("wears"),
				Identifier(story.EntityOutfit, false).As(FieldTarget),
				Optional(Sequence(
					Keyword("looking"),
					Identifier(story.EntityExpression, false).As(FieldExpression)))),
			statement(StmtCharacterCheck, Keyword("checks"), Keyword("if"),
				Variable(false).As(FieldVariable), comparison(), value()),
			statement(StmtCharacterSet, Keyword("sets"),
				Variable(false).As(FieldVariable), Keyword("to"), value()),
			statement(StmtCharacterAdd, Keyword("adds"), value(), Keyword("to"),
				Variable(false).As(FieldVariable), atKey()),
			statement(StmtCharacterSubtract, Keyword("subtracts"), value(), Keyword("from"),
				Variable(false).As(FieldVariable)),
		).Labeled("azione del personaggio"),
	)

	g.PassageBody = Alternative(append(append([]*Node{}, narrator...), g.CharacterActions)...).Labeled("azione")

	g.signatures = make(map[*Node][]Signature)
	for _, root := range g.Roots() {
		g.signatures[root] = AllSignatures(root)
	}
	g.reserved = make(map[string]bool)
	for _, kw := range Keywords(g.NarratorActions) {
		g.reserved[kw] = true
	}
	return g
}

// IsReserved indica se il testo è una keyword che apre un'azione del
// narratore: un personaggio con questo id non potrebbe mai agire
func (g *Grammar) IsReserved(text string) bool {
	return g.reserved[text]
}

// Roots restituisce tutte le radici della grammatica
func (g *Grammar) Roots() []*Node {
	return []*Node{g.TopLevel, g.CharacterBody, g.OutfitBody, g.NarratorActions, g.CharacterActions, g.PassageBody}
}

// Signatures restituisce le firme precalcolate di una radice
func (g *Grammar) Signatures(root *Node) []Signature {
	if sigs, ok := g.signatures[root]; ok {
		return sigs
	}
	return AllSignatures(root)
}

// ============================================
// Foglie condivise
// ============================================

func value() *Node {
	children := make([]*Node, 0, len(story.LiteralValues)+3)
	for _, lit := range story.LiteralValues {
		children = append(children, Keyword(lit))
	}
	children = append(children, Number(), String(), Variable(false))
	return Alternative(children...).Labeled("valore").As(FieldValue)
}

func comparison() *Node {
	children := make([]*Node, len(story.ComparisonPhrases))
	for i, p := range story.ComparisonPhrases {
		children[i] = Keyword(p.Phrase)
	}
	return Alternative(children...).Labeled("confronto").As(FieldComparison)
}

func location() *Node {
	children := make([]*Node, len(story.Locations))
	for i, loc := range story.Locations {
		children[i] = Keyword(string(loc))
	}
	return Alternative(children...).Labeled("posizione").As(FieldLocation)
}

func atKey() *Node {
	return Optional(Sequence(
		Keyword("at"),
		Alternative(String(), Variable(false)).Labeled("chiave").As(FieldKey),
	))
}

// IsFixedVocabulary indica se il testo è una keyword di posizione, di confronto
// o un valore letterale
func IsFixedVocabulary(text string) bool {
	for _, loc := range story.Locations {
		if string(loc) == text {
			return true
		}
	}
	for _, p := range story.ComparisonPhrases {
		if p.Phrase == text {
			return true
		}
	}
	for _, lit := range story.LiteralValues {
		if lit == text {
			return true
		}
	}
	return false
}
