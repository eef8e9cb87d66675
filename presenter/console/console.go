package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"vnscript-editor/interpreter"
	"vnscript-editor/presenter"
	"vnscript-editor/story"
)

func init() {
	presenter.RegisterPresenter("console", func(opts presenter.Options) interpreter.Presenter {
		return New(opts.In, opts.Out, presenter.Pacer{PerChar: opts.RevealPerChar})
	})
}

// Presenter mostra la storia su un terminale: il testo viene rivelato
// progressivamente e Invio salta la rivelazione, avanza o conferma una scelta
type Presenter struct {
	in    io.Reader
	out   io.Writer
	pacer presenter.Pacer

	once  sync.Once
	lines chan string
}

// New crea un presenter da terminale. Reader e writer nil usano stdin e stdout.
func New(in io.Reader, out io.Writer, pacer presenter.Pacer) *Presenter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Presenter{in: in, out: out, pacer: pacer}
}

// input legge le righe in una goroutine, così da poterle attendere insieme al contesto
func (p *Presenter) input() <-chan string {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			sc := bufio.NewScanner(p.in)
			for sc.Scan() {
				p.lines <- strings.TrimSpace(sc.Text())
			}
		}()
	})
	return p.lines
}

func (p *Presenter) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.input():
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (p *Presenter) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(p.out, format, args...)
	return err
}

func (p *Presenter) ResetScene(ctx context.Context) error {
	return p.printf("\n════════════════════════════\n")
}

func (p *Presenter) ChangeBackdrop(ctx context.Context, b *story.Backdrop) error {
	if b == nil {
		return p.printf("🖼️  (nessuno sfondo)\n")
	}
	return p.printf("🖼️  %s\n", b.ID)
}

func (p *Presenter) PlaySound(ctx context.Context, s *story.Sound) error {
	return p.printf("🔊 %s\n", s.ID)
}

func (p *Presenter) AddCharacter(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression, loc story.Location) error {
	return p.printf("➡️  %s entra (%s, %s/%s)\n", c.Name, loc, o.ID, e.ID)
}

func (p *Presenter) RemoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.printf("⬅️  %s esce (%s)\n", c.Name, loc)
}

func (p *Presenter) MoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.printf("↔️  %s si sposta a %s\n", c.Name, loc)
}

func (p *Presenter) ChangeCharacterSprite(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression) error {
	return p.printf("🎭 %s: %s/%s\n", c.Name, o.ID, e.ID)
}

// DisplayText rivela il testo; una riga letta durante la rivelazione la completa subito
func (p *Presenter) DisplayText(ctx context.Context, text, speaker string) error {
	if speaker != "" {
		if err := p.printf("%s: ", speaker); err != nil {
			return err
		}
	}

	var skip chan struct{}
	done := make(chan struct{})
	if p.pacer.PerChar > 0 {
		skip = make(chan struct{})
		go func() {
			select {
			case <-p.input():
				close(skip)
			case <-done:
			}
		}()
	}

	err := p.pacer.Reveal(ctx, text, func(chunk string) error {
		_, werr := io.WriteString(p.out, chunk)
		return werr
	}, skip)
	close(done)
	if err != nil {
		return err
	}
	return p.printf("\n")
}

func (p *Presenter) PresentChoice(ctx context.Context, options []string) (int, error) {
	for i, opt := range options {
		if err := p.printf("  %d) %s\n", i+1, opt); err != nil {
			return 0, err
		}
	}

	for {
		if err := p.printf("> "); err != nil {
			return 0, err
		}
		line, err := p.readLine(ctx)
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		if err := p.printf("scelta non valida, inserisci un numero tra 1 e %d\n", len(options)); err != nil {
			return 0, err
		}
	}
}

func (p *Presenter) WaitForAdvance(ctx context.Context) error {
	_, err := p.readLine(ctx)
	return err
}
