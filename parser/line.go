package parser

import (
	"vnscript-editor/grammar"
	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// lineParser analizza una singola riga guidato da un nodo della grammatica
type lineParser struct {
	path string
	sc   *scanner.Scanner

	tokens    []scanner.Token
	captured  map[string]scanner.Token
	statement grammar.Statement
}

func newLineParser(path string, lines []string, row, col int) *lineParser {
	sc := scanner.New(lines)
	sc.SetCursor(row, col)
	return &lineParser{path: path, sc: sc, captured: make(map[string]scanner.Token)}
}

// lookahead è un token letto su una copia dello scanner, non ancora consumato
type lookahead struct {
	tok   scanner.Token
	extra []scanner.Token
	sc    *scanner.Scanner
}

func (lp *lineParser) peek(n *grammar.Node) lookahead {
	clone := lp.sc.Clone()
	tok, extra := clone.Next(grammar.Keywords(n)...)
	return lookahead{tok: tok, extra: extra, sc: clone}
}

func (lp *lineParser) consume(la lookahead, leaf *grammar.Node, field string) {
	tok := la.tok
	switch leaf.Kind {
	case grammar.NodeIdentifier, grammar.NodeVariable:
		tok.SubType = leaf.SubType
		tok.Definition = leaf.IsDefinition
	}
	if tok.Kind != scanner.KindEndOfLine {
		lp.tokens = append(lp.tokens, tok)
	}
	for _, v := range la.extra {
		v.SubType = story.EntityVariable
		lp.tokens = append(lp.tokens, v)
	}
	if field != "" {
		lp.captured[field] = tok
	}
	lp.sc = la.sc
	lp.sc.SkipWhitespace()
}

// unexpected registra il token inatteso e restituisce la diagnostica di sintassi
func (lp *lineParser) unexpected(n *grammar.Node, la lookahead) story.Diagnostic {
	if la.tok.Kind != scanner.KindEndOfLine {
		lp.tokens = append(lp.tokens, la.tok)
	}
	return story.NewDiagnostic(story.DiagnosticSyntax, la.tok.Range(lp.path),
		"atteso %s, trovato %s", grammar.Describe(n), la.tok.Describe())
}

// walk percorre il nodo consumando i token della riga. Il campo di cattura si
// eredita attraverso alternative e optional.
func (lp *lineParser) walk(n *grammar.Node, field string) *story.Diagnostic {
	if n.Field != "" {
		field = n.Field
	}

	switch n.Kind {
	case grammar.NodeSequence:
		if n.Statement != grammar.StmtNone {
			lp.statement = n.Statement
		}
		for _, child := range n.Children {
			if d := lp.walk(child, ""); d != nil {
				return d
			}
		}
		return nil

	case grammar.NodeAlternative:
		la := lp.peek(n)
		for _, child := range n.Children {
			if grammar.Matches(child, la.tok) {
				return lp.walk(child, field)
			}
		}
		d := lp.unexpected(n, la)
		return &d

	case grammar.NodeOptional:
		la := lp.peek(n)
		if grammar.Matches(n.Children[0], la.tok) {
			return lp.walk(n.Children[0], field)
		}
		return nil
	}

	la := lp.peek(n)
	if !grammar.MatchLeaf(n, la.tok) {
		d := lp.unexpected(n, la)
		return &d
	}
	lp.consume(la, n, field)
	return nil
}

// has indica se il campo è stato catturato
func (lp *lineParser) has(field string) bool {
	_, ok := lp.captured[field]
	return ok
}

func (lp *lineParser) token(field string) scanner.Token {
	return lp.captured[field]
}

func (lp *lineParser) rangeOf(field string) story.Range {
	return lp.captured[field].Range(lp.path)
}

// statementRange copre tutti i token consumati sulla riga
func (lp *lineParser) statementRange() story.Range {
	if len(lp.tokens) == 0 {
		return story.Range{File: lp.path, Row: lp.sc.Row()}
	}
	r := lp.tokens[0].Range(lp.path)
	for _, tok := range lp.tokens[1:] {
		r = r.Cover(tok.Range(lp.path))
	}
	return r
}

// annotate imposta scope e personaggio sui token variabile, outfit ed espressione
func (lp *lineParser) annotate(character string, scope story.VariableScope) {
	for i := range lp.tokens {
		tok := &lp.tokens[i]
		switch {
		case tok.Kind == scanner.KindVariable:
			tok.SubType = story.EntityVariable
			tok.Scope = scope
			tok.Character = character
		case tok.SubType == story.EntityOutfit || tok.SubType == story.EntityExpression:
			tok.Character = character
		}
	}
}

// DecodeValue converte il token di un valore nel Value corrispondente.
// Una variabile in posizione di valore diventa un riferimento indiretto.
func DecodeValue(tok scanner.Token) story.Value {
	switch tok.Kind {
	case scanner.KindNumber:
		return story.Number(scanner.DecodeNumber(tok.Text))
	case scanner.KindString:
		return story.String(scanner.DecodeString(tok.Text))
	case scanner.KindVariable:
		return story.Reference(tok.Name())
	}
	switch tok.Text {
	case "true":
		return story.Boolean(true)
	case "false":
		return story.Boolean(false)
	case "empty list":
		return story.List{}
	case "empty map":
		return story.Map{}
	}
	return story.Null{}
}
