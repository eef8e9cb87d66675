package story

// Comparison è l'operatore di confronto usato da check
type Comparison int

const (
	CompareEqual Comparison = iota
	CompareNotEqual
	CompareLess
	CompareLessOrEqual
	CompareGreater
	CompareGreaterOrEqual
	CompareContains
	CompareNotContains
)

// ComparisonPhrase associa la frase del sorgente all'operatore
type ComparisonPhrase struct {
	Phrase   string
	Operator Comparison
}

// ComparisonPhrases elenca le frasi dalla più lunga alla più corta, così che
// "is not less than" venga provata prima di "is not" e di "is".
var ComparisonPhrases = []ComparisonPhrase{
	{"is not greater than or equal to", CompareLess},
	{"is not less than or equal to", CompareGreater},
	{"is greater than or equal to", CompareGreaterOrEqual},
	{"is less than or equal to", CompareLessOrEqual},
	{"is not greater than", CompareLessOrEqual},
	{"is not less than", CompareGreaterOrEqual},
	{"is greater than", CompareGreater},
	{"is less than", CompareLess},
	{"does not contain", CompareNotContains},
	{"contains", CompareContains},
	{"is not", CompareNotEqual},
	{"is", CompareEqual},
}

// ComparisonFromPhrase restituisce l'operatore per una frase
func ComparisonFromPhrase(phrase string) (Comparison, bool) {
	for _, p := range ComparisonPhrases {
		if p.Phrase == phrase {
			return p.Operator, true
		}
	}
	return CompareEqual, false
}

// String restituisce il simbolo dell'operatore
func (c Comparison) String() string {
	switch c {
	case CompareEqual:
		return "=="
	case CompareNotEqual:
		return "!="
	case CompareLess:
		return "<"
	case CompareLessOrEqual:
		return "<="
	case CompareGreater:
		return ">"
	case CompareGreaterOrEqual:
		return ">="
	case CompareContains:
		return "contains"
	case CompareNotContains:
		return "does not contain"
	}
	return "?"
}

// Location è la posizione sul palco di un personaggio
type Location string

const (
	LocationLeft   Location = "left"
	LocationCenter Location = "center"
	LocationRight  Location = "right"
)

// Locations elenca le posizioni valide
var Locations = []Location{LocationLeft, LocationCenter, LocationRight}

// LiteralValues elenca le parole chiave che rappresentano valori letterali
var LiteralValues = []string{"true", "false", "null", "empty list", "empty map"}
