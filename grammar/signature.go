package grammar

import (
	"strings"

	"vnscript-editor/scanner"
)

// Signature è una sequenza concreta di foglie accettata dalla grammatica
type Signature struct {
	Statement Statement `json:"-"`
	Leaves    []*Node   `json:"-"`
	// Params contiene l'etichetta di ogni foglia: il testo per le keyword,
	// "<gruppo>" per le foglie dentro un gruppo etichettato
	Params []string `json:"parameters"`
}

// Label restituisce la firma leggibile, ad esempio "go to <passaggio>"
func (s Signature) Label() string {
	return strings.Join(s.Params, " ")
}

type flatLeaf struct {
	node  *Node
	param string
}

type flatSig struct {
	statement Statement
	leaves    []flatLeaf
}

// AllSignatures appiattisce l'albero in tutte le sequenze di foglie che accetta.
// Alternative e optional vengono espanse; la fine riga non compare nelle firme.
func AllSignatures(root *Node) []Signature {
	flat := flatten(root, "")
	out := make([]Signature, 0, len(flat))
	for _, f := range flat {
		sig := Signature{Statement: f.statement}
		for _, l := range f.leaves {
			sig.Leaves = append(sig.Leaves, l.node)
			sig.Params = append(sig.Params, l.param)
		}
		out = append(out, sig)
	}
	return out
}

func flatten(n *Node, group string) []flatSig {
	switch n.Kind {
	case NodeEndOfLine:
		return []flatSig{{}}
	case NodeOptional:
		return append([]flatSig{{}}, flatten(n.Children[0], group)...)
	case NodeAlternative:
		if n.Label != "" && n.Field != "" {
			group = n.Label
		}
		var out []flatSig
		for _, child := range n.Children {
			out = append(out, flatten(child, group)...)
		}
		return out
	case NodeSequence:
		acc := []flatSig{{statement: n.Statement}}
		for _, child := range n.Children {
			tails := flatten(child, group)
			next := make([]flatSig, 0, len(acc)*len(tails))
			for _, head := range acc {
				for _, tail := range tails {
					leaves := make([]flatLeaf, 0, len(head.leaves)+len(tail.leaves))
					leaves = append(leaves, head.leaves...)
					leaves = append(leaves, tail.leaves...)
					st := head.statement
					if tail.statement != StmtNone {
						st = tail.statement
					}
					next = append(next, flatSig{statement: st, leaves: leaves})
				}
			}
			acc = next
		}
		return acc
	}
	return []flatSig{{leaves: []flatLeaf{{node: n, param: paramLabel(n, group)}}}}
}

func paramLabel(n *Node, group string) string {
	if group != "" {
		return "<" + group + ">"
	}
	if n.Kind == NodeKeyword {
		return n.Text
	}
	return "<" + n.Label + ">"
}

// matchedPrefix conta quanti token iniziali della riga corrispondono alla firma
func matchedPrefix(sig Signature, prefix []scanner.Token) int {
	k := 0
	for k < len(prefix) && k < len(sig.Leaves) && MatchLeaf(sig.Leaves[k], prefix[k]) {
		k++
	}
	return k
}

// ExpectedContinuations restituisce le foglie che possono estendere
// validamente i token già presenti sulla riga. complete è true se il prefisso
// è già un'istruzione completa (la fine riga è ammessa).
func (g *Grammar) ExpectedContinuations(root *Node, prefix []scanner.Token) (leaves []*Node, complete bool) {
	seen := make(map[*Node]bool)
	for _, sig := range g.Signatures(root) {
		if matchedPrefix(sig, prefix) != len(prefix) {
			continue
		}
		if len(sig.Leaves) == len(prefix) {
			complete = true
			continue
		}
		if len(sig.Leaves) > len(prefix) {
			next := sig.Leaves[len(prefix)]
			if !seen[next] {
				seen[next] = true
				leaves = append(leaves, next)
			}
		}
	}
	return leaves, complete
}

// SignatureHelp sceglie, tra le firme coerenti con tutti i token della riga,
// quella che ne corrisponde di più (a parità vince quella con indice minore) e
// restituisce l'indice del parametro atteso, limitato all'ultimo parametro
// della firma. Se nessuna firma accetta l'intero prefisso ok è false.
func (g *Grammar) SignatureHelp(root *Node, prefix []scanner.Token) (sig Signature, index, active int, ok bool) {
	sigs := g.Signatures(root)
	best, bestMatched := -1, -1
	for i, s := range sigs {
		m := matchedPrefix(s, prefix)
		if m > bestMatched {
			best, bestMatched = i, m
		}
	}
	if best < 0 || bestMatched == 0 || bestMatched < len(prefix) {
		return Signature{}, -1, 0, false
	}
	sig = sigs[best]
	active = bestMatched
	if active > len(sig.Leaves)-1 {
		active = len(sig.Leaves) - 1
	}
	return sig, best, active, true
}
