package grammar

import (
	"sort"

	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// NodeKind è il tipo di un nodo della grammatica
type NodeKind int

const (
	NodeKeyword NodeKind = iota
	NodeVariable
	NodeIdentifier
	NodeNumber
	NodeString
	NodeSequence
	NodeAlternative
	NodeOptional
	NodeEndOfLine
)

// Node è un nodo dell'albero della grammatica.
// Le foglie (keyword, variable, identifier, number, string, end-of-line)
// corrispondono a un singolo token; sequence, alternative e optional le combinano.
type Node struct {
	Kind NodeKind
	// Text è il letterale di una keyword
	Text string
	// SubType è l'entità a cui si riferisce un identificatore
	SubType story.Entity
	// IsDefinition indica che la foglia introduce un nuovo nome
	IsDefinition bool
	Children     []*Node
	// Label è il nome leggibile mostrato nei suggerimenti e nelle firme
	Label string
	// Field è il nome con cui il parser cattura il token consumato
	Field string
	// Statement identifica la forma di istruzione di una sequenza completa
	Statement Statement
	// Suggest sostituisce il generatore di suggerimenti predefinito della foglia
	Suggest SuggestFunc
}

// ============================================
// Costruttori
// ============================================

func Keyword(text string) *Node {
	return &Node{Kind: NodeKeyword, Text: text, Label: text}
}

func Variable(isDefinition bool) *Node {
	return &Node{Kind: NodeVariable, IsDefinition: isDefinition, SubType: story.EntityVariable, Label: "$variabile"}
}

func Identifier(subType story.Entity, isDefinition bool) *Node {
	return &Node{Kind: NodeIdentifier, SubType: subType, IsDefinition: isDefinition, Label: subType.String()}
}

func Number() *Node {
	return &Node{Kind: NodeNumber, Label: "numero"}
}

func String() *Node {
	return &Node{Kind: NodeString, Label: "testo"}
}

func EndOfLine() *Node {
	return &Node{Kind: NodeEndOfLine, Label: "fine riga"}
}

func Sequence(children ...*Node) *Node {
	return &Node{Kind: NodeSequence, Children: children}
}

func Alternative(children ...*Node) *Node {
	return &Node{Kind: NodeAlternative, Children: children}
}

func Optional(child *Node) *Node {
	return &Node{Kind: NodeOptional, Children: []*Node{child}}
}

// statement completa una sequenza con la forma di istruzione e la fine riga obbligatoria
func statement(st Statement, children ...*Node) *Node {
	n := Sequence(append(children, EndOfLine())...)
	n.Statement = st
	return n
}

// As imposta il campo di cattura
func (n *Node) As(field string) *Node {
	n.Field = field
	return n
}

// Labeled imposta l'etichetta leggibile
func (n *Node) Labeled(label string) *Node {
	n.Label = label
	return n
}

// WithSuggest imposta un generatore di suggerimenti personalizzato
func (n *Node) WithSuggest(f SuggestFunc) *Node {
	n.Suggest = f
	return n
}

// IsLeaf indica se il nodo corrisponde a un singolo token
func (n *Node) IsLeaf() bool {
	switch n.Kind {
	case NodeSequence, NodeAlternative, NodeOptional:
		return false
	}
	return true
}

// ============================================
// Operazioni strutturali
// ============================================

// MatchLeaf verifica se una foglia accetta il token
func MatchLeaf(n *Node, tok scanner.Token) bool {
	switch n.Kind {
	case NodeKeyword:
		return tok.Kind == scanner.KindKeyword && tok.Text == n.Text
	case NodeVariable:
		return tok.Kind == scanner.KindVariable
	case NodeIdentifier:
		return tok.Kind == scanner.KindIdentifier
	case NodeNumber:
		return tok.Kind == scanner.KindNumber
	case NodeString:
		return tok.Kind == scanner.KindString
	case NodeEndOfLine:
		return tok.Kind == scanner.KindEndOfLine
	}
	return false
}

// Matches verifica, senza consumare input, se il token può iniziare il nodo
func Matches(n *Node, tok scanner.Token) bool {
	switch n.Kind {
	case NodeSequence:
		for _, child := range n.Children {
			if Matches(child, tok) {
				return true
			}
			if !Nullable(child) {
				return false
			}
		}
		return false
	case NodeAlternative:
		for _, child := range n.Children {
			if Matches(child, tok) {
				return true
			}
		}
		return false
	case NodeOptional:
		return Matches(n.Children[0], tok)
	}
	return MatchLeaf(n, tok)
}

// Nullable indica se il nodo può non consumare alcun token
func Nullable(n *Node) bool {
	switch n.Kind {
	case NodeOptional:
		return true
	case NodeSequence:
		for _, child := range n.Children {
			if !Nullable(child) {
				return false
			}
		}
		return true
	case NodeAlternative:
		for _, child := range n.Children {
			if Nullable(child) {
				return true
			}
		}
	}
	return false
}

// Keywords restituisce i letterali delle keyword che possono iniziare il nodo,
// dal più lungo al più corto, pronti per scanner.Scanner.Next
func Keywords(n *Node) []string {
	seen := make(map[string]bool)
	var out []string
	var collect func(*Node)
	collect = func(n *Node) {
		switch n.Kind {
		case NodeKeyword:
			if !seen[n.Text] {
				seen[n.Text] = true
				out = append(out, n.Text)
			}
		case NodeSequence:
			for _, child := range n.Children {
				collect(child)
				if !Nullable(child) {
					return
				}
			}
		case NodeAlternative, NodeOptional:
			for _, child := range n.Children {
				collect(child)
			}
		}
	}
	collect(n)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Describe restituisce la descrizione del nodo usata nei messaggi "atteso ..."
func Describe(n *Node) string {
	switch n.Kind {
	case NodeKeyword:
		return "'" + n.Text + "'"
	case NodeSequence:
		for _, child := range n.Children {
			if !Nullable(child) {
				return Describe(child)
			}
		}
		return "fine riga"
	case NodeAlternative:
		if n.Label != "" {
			return n.Label
		}
		if len(n.Children) == 1 {
			return Describe(n.Children[0])
		}
		return "istruzione"
	case NodeOptional:
		return Describe(n.Children[0])
	}
	return n.Label
}
