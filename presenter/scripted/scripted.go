package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vnscript-editor/interpreter"
	"vnscript-editor/presenter"
	"vnscript-editor/story"
)

// ErrChoicesExhausted è restituito quando la storia chiede una scelta non prevista
var ErrChoicesExhausted = errors.New("scelte predefinite esaurite")

func init() {
	presenter.RegisterPresenter("scripted", func(opts presenter.Options) interpreter.Presenter {
		return New(opts.Choices)
	})
}

// Entry è un evento registrato nella trascrizione
type Entry struct {
	Kind    string   `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Speaker string   `json:"speaker,omitempty"`
	Options []string `json:"options,omitempty"`
	Choice  int      `json:"choice,omitempty"`
}

func (e Entry) String() string {
	switch e.Kind {
	case "text":
		if e.Speaker != "" {
			return e.Speaker + ": " + e.Text
		}
		return e.Text
	case "choice":
		return fmt.Sprintf("[%d] %v", e.Choice, e.Options)
	}
	return e.Kind + " " + e.Text
}

// Presenter esegue una storia senza interazione: le scelte arrivano da una
// lista fissa e ogni effetto viene registrato nella trascrizione
type Presenter struct {
	mu         sync.Mutex
	choices    []int
	transcript []Entry
}

// New crea un presenter che risponde alle scelte nell'ordine indicato
func New(choices []int) *Presenter {
	return &Presenter{choices: append([]int(nil), choices...)}
}

// Transcript restituisce una copia degli eventi registrati
func (p *Presenter) Transcript() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entry(nil), p.transcript...)
}

// Remaining restituisce quante scelte predefinite non sono ancora state usate
func (p *Presenter) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.choices)
}

func (p *Presenter) record(e Entry) error {
	p.mu.Lock()
	p.transcript = append(p.transcript, e)
	p.mu.Unlock()
	return nil
}

func (p *Presenter) ResetScene(ctx context.Context) error {
	return p.record(Entry{Kind: "reset"})
}

func (p *Presenter) ChangeBackdrop(ctx context.Context, b *story.Backdrop) error {
	if b == nil {
		return p.record(Entry{Kind: "backdrop"})
	}
	return p.record(Entry{Kind: "backdrop", Text: b.ID})
}

func (p *Presenter) PlaySound(ctx context.Context, s *story.Sound) error {
	return p.record(Entry{Kind: "sound", Text: s.ID})
}

func (p *Presenter) AddCharacter(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression, loc story.Location) error {
	return p.record(Entry{Kind: "enter", Text: fmt.Sprintf("%s %s/%s %s", c.ID, o.ID, e.ID, loc)})
}

func (p *Presenter) RemoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.record(Entry{Kind: "exit", Text: fmt.Sprintf("%s %s", c.ID, loc)})
}

func (p *Presenter) MoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.record(Entry{Kind: "move", Text: fmt.Sprintf("%s %s", c.ID, loc)})
}

func (p *Presenter) ChangeCharacterSprite(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression) error {
	return p.record(Entry{Kind: "sprite", Text: fmt.Sprintf("%s %s/%s", c.ID, o.ID, e.ID)})
}

func (p *Presenter) DisplayText(ctx context.Context, text, speaker string) error {
	return p.record(Entry{Kind: "text", Text: text, Speaker: speaker})
}

func (p *Presenter) PresentChoice(ctx context.Context, options []string) (int, error) {
	p.mu.Lock()
	if len(p.choices) == 0 {
		p.mu.Unlock()
		return 0, ErrChoicesExhausted
	}
	choice := p.choices[0]
	p.choices = p.choices[1:]
	p.mu.Unlock()

	if choice < 0 || choice >= len(options) {
		return 0, fmt.Errorf("scelta %d non valida: %d opzioni disponibili", choice, len(options))
	}
	return choice, p.record(Entry{Kind: "choice", Options: options, Choice: choice})
}

func (p *Presenter) WaitForAdvance(ctx context.Context) error {
	return ctx.Err()
}
