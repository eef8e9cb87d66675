package story

// Action è una singola istruzione eseguibile di un passaggio.
// Le implementazioni sono i tipi *XxxAction di questo file.
type Action interface {
	// Range copre l'intera istruzione
	Range() Range
	isAction()
}

// Stmt porta l'intervallo sorgente di ogni azione
type Stmt struct {
	Source Range `json:"range"`
}

func (s Stmt) Range() Range { return s.Source }
func (Stmt) isAction()      {}

// Actor indica il personaggio che esegue un'azione.
// Character vuoto significa scope del narratore.
type Actor struct {
	Character      string `json:"character,omitempty"`
	CharacterRange Range  `json:"character_range"`
}

// Scope restituisce il personaggio in scope ("" per il narratore)
func (a Actor) Scope() string { return a.Character }

// Operand è un valore letterale o un riferimento a variabile con la sua posizione
type Operand struct {
	Value Value `json:"-"`
	Range Range `json:"range"`
}

// ============================================
// Effetti di presentazione
// ============================================

// BackdropAction: display <backdrop>
type BackdropAction struct {
	Stmt
	Backdrop      string
	BackdropRange Range
}

// SoundAction: play <sound>
type SoundAction struct {
	Stmt
	Sound      string
	SoundRange Range
}

// NarrateAction: narrate "testo"
type NarrateAction struct {
	Stmt
	Text      string
	TextRange Range
}

// EnterAction: <character> enters <location>
type EnterAction struct {
	Stmt
	Actor
	Location      Location
	LocationRange Range
}

// ExitAction: <character> exits <location>
type ExitAction struct {
	Stmt
	Actor
	Location      Location
	LocationRange Range
}

// MoveAction: <character> moves to <location>
type MoveAction struct {
	Stmt
	Actor
	Location      Location
	LocationRange Range
}

// SpeakAction: <character> says "testo"
type SpeakAction struct {
	Stmt
	Actor
	Text      string
	TextRange Range
}

// ExpressionAction: <character> looks <expression>
type ExpressionAction struct {
	Stmt
	Actor
	Expression      string
	ExpressionRange Range
}

// OutfitAction: <character> wears <outfit> [looking <expression>]
type OutfitAction struct {
	Stmt
	Actor
	Outfit      string
	OutfitRange Range
	// Expression è vuota se l'istruzione non la specifica
	Expression      string
	ExpressionRange Range
}

// ============================================
// Controllo di flusso
// ============================================

// OptionAction: option "testo" con il corpo indentato
type OptionAction struct {
	Stmt
	Text      string
	TextRange Range
	Actions   []Action
}

// CheckAction: [<character>] check(s) if $var <comparison> <value> con il corpo indentato
type CheckAction struct {
	Stmt
	Actor
	Variable        string
	VariableRange   Range
	Comparison      Comparison
	ComparisonRange Range
	Operand         Operand
	Actions         []Action
}

// ContinueAction: continue
type ContinueAction struct {
	Stmt
}

// GotoAction: go to <passage>
type GotoAction struct {
	Stmt
	Passage      string
	PassageRange Range
}

// EndAction: end
type EndAction struct {
	Stmt
}

// ============================================
// Mutazione di variabili
// ============================================

// SetAction: [<character>] set(s) $var to <value>
type SetAction struct {
	Stmt
	Actor
	Variable      string
	VariableRange Range
	Value         Operand
}

// AddAction: [<character>] add(s) <value> to $var [at <key>]
type AddAction struct {
	Stmt
	Actor
	Variable      string
	VariableRange Range
	Value         Operand
	// Key è nil se l'istruzione non specifica "at"
	Key *Operand
}

// SubtractAction: [<character>] subtract(s) <value> from $var
type SubtractAction struct {
	Stmt
	Actor
	Variable      string
	VariableRange Range
	Value         Operand
}

// Walk visita ricorsivamente le azioni, entrando nei corpi di option e check
func Walk(actions []Action, visit func(Action)) {
	for _, a := range actions {
		visit(a)
		switch act := a.(type) {
		case *OptionAction:
			Walk(act.Actions, visit)
		case *CheckAction:
			Walk(act.Actions, visit)
		}
	}
}
