package presenter

import (
	"context"
	"time"
)

// Pacer rivela un testo un carattere alla volta
type Pacer struct {
	PerChar time.Duration
}

// Reveal passa il testo a emit un carattere alla volta, aspettando PerChar tra
// l'uno e l'altro. Quando skip riceve un valore (o viene chiuso) il resto del
// testo viene emesso in un colpo solo. Un skip nil non scatta mai.
func (p Pacer) Reveal(ctx context.Context, text string, emit func(chunk string) error, skip <-chan struct{}) error {
	runes := []rune(text)
	if p.PerChar <= 0 || len(runes) <= 1 {
		return emit(text)
	}

	ticker := time.NewTicker(p.PerChar)
	defer ticker.Stop()

	for i, r := range runes {
		if err := emit(string(r)); err != nil {
			return err
		}
		if i == len(runes)-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-skip:
			return emit(string(runes[i+1:]))
		case <-ticker.C:
		}
	}
	return nil
}
