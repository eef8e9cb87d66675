package story

// MaxIndirection è il numero massimo di salti seguiti risolvendo un Reference
const MaxIndirection = 100

// Entity identifica il tipo di entità a cui un identificatore si riferisce
type Entity int

const (
	EntityNone Entity = iota
	EntityCharacter
	EntityOutfit
	EntityExpression
	EntityBackdrop
	EntitySound
	EntityPassage
	EntityVariable
)

// String restituisce il nome italiano dell'entità
func (e Entity) String() string {
	switch e {
	case EntityCharacter:
		return "personaggio"
	case EntityOutfit:
		return "outfit"
	case EntityExpression:
		return "espressione"
	case EntityBackdrop:
		return "sfondo"
	case EntitySound:
		return "suono"
	case EntityPassage:
		return "passaggio"
	case EntityVariable:
		return "variabile"
	}
	return "entità"
}

// VariableScope è lo spazio dei nomi di una variabile
type VariableScope int

const (
	ScopeGlobal VariableScope = iota
	ScopeCast
	ScopeCharacter
)

// String restituisce il nome dello scope come appare nel sorgente
func (s VariableScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeCast:
		return "cast"
	case ScopeCharacter:
		return "character"
	}
	return "unknown"
}

// Variable è la definizione di una variabile con il suo valore iniziale
type Variable struct {
	ID        string        `json:"id"`
	Scope     VariableScope `json:"scope"`
	Character string        `json:"character,omitempty"`
	Type      ValueKind     `json:"type"`
	Initial   Value         `json:"-"`
	IDRange   Range         `json:"id_range"`
	// ValueRange copre il letterale del valore iniziale
	ValueRange Range `json:"value_range"`
	Range      Range `json:"range"`
}

// Expression è un'immagine del personaggio all'interno di un outfit
type Expression struct {
	ID         string `json:"id"`
	Image      string `json:"image"`
	IDRange    Range  `json:"id_range"`
	ImageRange Range  `json:"image_range"`
	Range      Range  `json:"range"`
}

// Outfit raggruppa le espressioni di un personaggio
type Outfit struct {
	ID              string                 `json:"id"`
	Expressions     map[string]*Expression `json:"expressions"`
	ExpressionOrder []string               `json:"expression_order"`
	IDRange         Range                  `json:"id_range"`
	Range           Range                  `json:"range"`
}

// DefaultExpression restituisce la prima espressione dichiarata
func (o *Outfit) DefaultExpression() (*Expression, bool) {
	if len(o.ExpressionOrder) == 0 {
		return nil, false
	}
	return o.Expressions[o.ExpressionOrder[0]], true
}

// Character è la definizione di un personaggio
type Character struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Outfits     map[string]*Outfit   `json:"outfits"`
	OutfitOrder []string             `json:"outfit_order"`
	Variables   map[string]*Variable `json:"variables"`
	IDRange     Range                `json:"id_range"`
	Range       Range                `json:"range"`
}

// NewCharacter crea un personaggio vuoto
func NewCharacter(id, name string) *Character {
	return &Character{
		ID:        id,
		Name:      name,
		Outfits:   make(map[string]*Outfit),
		Variables: make(map[string]*Variable),
	}
}

// DefaultOutfit restituisce il primo outfit dichiarato
func (c *Character) DefaultOutfit() (*Outfit, bool) {
	if len(c.OutfitOrder) == 0 {
		return nil, false
	}
	return c.Outfits[c.OutfitOrder[0]], true
}

// OutfitsWithExpression restituisce, in ordine di dichiarazione, gli outfit che definiscono l'espressione
func (c *Character) OutfitsWithExpression(expression string) []*Outfit {
	var found []*Outfit
	for _, id := range c.OutfitOrder {
		if _, ok := c.Outfits[id].Expressions[expression]; ok {
			found = append(found, c.Outfits[id])
		}
	}
	return found
}

// Backdrop è uno sfondo
type Backdrop struct {
	ID         string `json:"id"`
	Image      string `json:"image"`
	IDRange    Range  `json:"id_range"`
	ImageRange Range  `json:"image_range"`
	Range      Range  `json:"range"`
}

// Sound è un effetto sonoro o una musica
type Sound struct {
	ID         string `json:"id"`
	Audio      string `json:"audio"`
	IDRange    Range  `json:"id_range"`
	AudioRange Range  `json:"audio_range"`
	Range      Range  `json:"range"`
}

// Passage è una sequenza ordinata di azioni
type Passage struct {
	ID      string   `json:"id"`
	Actions []Action `json:"-"`
	IDRange Range    `json:"id_range"`
	Range   Range    `json:"range"`
}

// Definition contiene tutto ciò che un progetto dichiara
type Definition struct {
	Characters   map[string]*Character `json:"characters"`
	Backdrops    map[string]*Backdrop  `json:"backdrops"`
	Sounds       map[string]*Sound     `json:"sounds"`
	Passages     map[string]*Passage   `json:"passages"`
	PassageOrder []string              `json:"passage_order"`
	Globals      map[string]*Variable  `json:"globals"`
	Cast         map[string]*Variable  `json:"cast"`
}

// NewDefinition crea una definizione vuota
func NewDefinition() *Definition {
	return &Definition{
		Characters: make(map[string]*Character),
		Backdrops:  make(map[string]*Backdrop),
		Sounds:     make(map[string]*Sound),
		Passages:   make(map[string]*Passage),
		Globals:    make(map[string]*Variable),
		Cast:       make(map[string]*Variable),
	}
}

// NextPassage restituisce il passaggio dichiarato subito dopo id
func (d *Definition) NextPassage(id string) (string, bool) {
	for i, p := range d.PassageOrder {
		if p == id && i+1 < len(d.PassageOrder) {
			return d.PassageOrder[i+1], true
		}
	}
	return "", false
}

// LookupVariable cerca una variabile visibile nello scope indicato:
// character == "" è lo scope del narratore (solo globali),
// altrimenti variabili del personaggio e poi variabili cast.
func (d *Definition) LookupVariable(character, name string) (*Variable, bool) {
	if character == "" {
		v, ok := d.Globals[name]
		return v, ok
	}
	if c, ok := d.Characters[character]; ok {
		if v, ok := c.Variables[name]; ok {
			return v, true
		}
	}
	v, ok := d.Cast[name]
	return v, ok
}

// DeclaredType restituisce il tipo dichiarato di una variabile seguendo
// i riferimenti tra definizioni fino a MaxIndirection salti
func (d *Definition) DeclaredType(character, name string) (ValueKind, bool) {
	v, ok := d.LookupVariable(character, name)
	if !ok {
		return KindNull, false
	}
	for i := 0; i < MaxIndirection && v.Type == KindReference; i++ {
		ref, isRef := v.Initial.(Reference)
		if !isRef {
			break
		}
		next, found := d.LookupVariable(character, string(ref))
		if !found {
			return KindReference, true
		}
		v = next
	}
	return v.Type, true
}
