package grammar

// Statement identifica una forma di istruzione del linguaggio
type Statement int

const (
	StmtNone Statement = iota

	// Definizioni di primo livello
	StmtDefineCharacter
	StmtDefineBackdrop
	StmtDefineSound
	StmtDefineGlobal
	StmtDefineCast
	StmtDefinePassage
	StmtInclude

	// Corpo del personaggio e dell'outfit
	StmtOutfit
	StmtCharacterVariable
	StmtExpression

	// Azioni del narratore
	StmtContinue
	StmtGoto
	StmtEnd
	StmtDisplay
	StmtPlay
	StmtNarrate
	StmtOption
	StmtCheck
	StmtSet
	StmtAdd
	StmtSubtract

	// Azioni dei personaggi
	StmtEnter
	StmtExit
	StmtMove
	StmtSay
	StmtLook
	StmtWear
	StmtCharacterCheck
	StmtCharacterSet
	StmtCharacterAdd
	StmtCharacterSubtract
)

var statementDocs = map[Statement]string{
	StmtDefineCharacter:   "Definisce un personaggio con il nome mostrato a schermo",
	StmtDefineBackdrop:    "Definisce uno sfondo e l'immagine associata",
	StmtDefineSound:       "Definisce un suono e il file audio associato",
	StmtDefineGlobal:      "Definisce una variabile globale",
	StmtDefineCast:        "Definisce una variabile condivisa da tutti i personaggi",
	StmtDefinePassage:     "Definisce un passaggio: le azioni seguono indentate",
	StmtInclude:           "Include un altro file del progetto",
	StmtOutfit:            "Definisce un outfit del personaggio",
	StmtCharacterVariable: "Definisce una variabile del personaggio",
	StmtExpression:        "Definisce un'espressione dell'outfit",
	StmtContinue:          "Prosegue con il passaggio dichiarato subito dopo",
	StmtGoto:              "Salta al passaggio indicato",
	StmtEnd:               "Termina la storia",
	StmtDisplay:           "Cambia lo sfondo",
	StmtPlay:              "Riproduce un suono",
	StmtNarrate:           "Mostra un testo del narratore",
	StmtOption:            "Aggiunge una scelta: le azioni indentate vengono eseguite se scelta",
	StmtCheck:             "Esegue le azioni indentate se il confronto è vero",
	StmtSet:               "Assegna un valore a una variabile globale",
	StmtAdd:               "Aggiunge un valore a una variabile globale",
	StmtSubtract:          "Sottrae un valore da una variabile globale",
	StmtEnter:             "Il personaggio entra in scena",
	StmtExit:              "Il personaggio esce di scena",
	StmtMove:              "Il personaggio si sposta",
	StmtSay:               "Il personaggio parla",
	StmtLook:              "Cambia l'espressione del personaggio",
	StmtWear:              "Cambia l'outfit del personaggio",
	StmtCharacterCheck:    "Esegue le azioni indentate se il confronto sulle variabili del personaggio è vero",
	StmtCharacterSet:      "Assegna un valore a una variabile del personaggio",
	StmtCharacterAdd:      "Aggiunge un valore a una variabile del personaggio",
	StmtCharacterSubtract: "Sottrae un valore da una variabile del personaggio",
}

// Doc restituisce la descrizione dell'istruzione
func (s Statement) Doc() string {
	return statementDocs[s]
}

// IsContainer indica se l'istruzione apre un corpo di azioni indentato
func (s Statement) IsContainer() bool {
	return s == StmtOption || s == StmtCheck || s == StmtCharacterCheck
}

// IsCharacterAction indica se l'istruzione inizia con un personaggio
func (s Statement) IsCharacterAction() bool {
	return s >= StmtEnter && s <= StmtCharacterSubtract
}

// Nomi dei campi catturati dal parser
const (
	FieldID         = "id"
	FieldName       = "name"
	FieldAsset      = "asset"
	FieldPath       = "path"
	FieldValue      = "value"
	FieldVariable   = "variable"
	FieldComparison = "comparison"
	FieldCharacter  = "character"
	FieldTarget     = "target"
	FieldExpression = "expression"
	FieldText       = "text"
	FieldLocation   = "location"
	FieldKey        = "key"
)
