package interpreter

import (
	"context"

	"vnscript-editor/story"
)

// Presenter è il livello di presentazione invocato dall'interprete.
// Ogni metodo viene atteso prima di passare all'azione successiva: è il
// presenter a decidere i tempi (rivelazione del testo, transizioni) e a
// sospendersi finché l'utente non avanza o sceglie.
type Presenter interface {
	// ResetScene svuota palco, sfondo e testo
	ResetScene(ctx context.Context) error
	// ChangeBackdrop mostra uno sfondo; nil rimuove quello corrente
	ChangeBackdrop(ctx context.Context, backdrop *story.Backdrop) error
	PlaySound(ctx context.Context, sound *story.Sound) error
	AddCharacter(ctx context.Context, character *story.Character, outfit *story.Outfit, expression *story.Expression, location story.Location) error
	RemoveCharacter(ctx context.Context, character *story.Character, location story.Location) error
	MoveCharacter(ctx context.Context, character *story.Character, location story.Location) error
	ChangeCharacterSprite(ctx context.Context, character *story.Character, outfit *story.Outfit, expression *story.Expression) error
	// DisplayText mostra un testo; speaker è vuoto per il narratore.
	// L'implementazione deve supportare il salto della rivelazione progressiva.
	DisplayText(ctx context.Context, text, speaker string) error
	// PresentChoice mostra le opzioni e restituisce l'indice scelto
	PresentChoice(ctx context.Context, options []string) (int, error)
	WaitForAdvance(ctx context.Context) error
}
