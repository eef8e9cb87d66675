package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vnscript-editor/interpreter"
	"vnscript-editor/presenter"
	"vnscript-editor/story"
)

// ============================================
// Esecuzione interattiva via WebSocket
// ============================================

// playMessage è un messaggio inviato dal client durante l'esecuzione:
// "skip" completa la rivelazione del testo, "advance" prosegue dopo un
// testo, "choice" sceglie l'opzione Index
type playMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// wsPresenter mostra la storia sul client collegato al socket
type wsPresenter struct {
	client  *wsClient
	pacer   presenter.Pacer
	skip    chan struct{}
	advance chan struct{}
	choices chan int
}

func newWSPresenter(client *wsClient, pacer presenter.Pacer) *wsPresenter {
	return &wsPresenter{
		client:  client,
		pacer:   pacer,
		skip:    make(chan struct{}, 1),
		advance: make(chan struct{}, 1),
		choices: make(chan int, 1),
	}
}

// listen legge i messaggi del client finché la connessione resta aperta
func (p *wsPresenter) listen(cancel context.CancelFunc) {
	defer cancel()
	for {
		var msg playMessage
		if err := p.client.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "skip":
			signal(p.skip)
		case "advance":
			signal(p.advance)
		case "choice":
			select {
			case p.choices <- msg.Index:
			default:
			}
		default:
			p.client.send(gin.H{"type": "error", "error": "messaggio sconosciuto: " + msg.Type})
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func (p *wsPresenter) ResetScene(ctx context.Context) error {
	return p.client.send(gin.H{"type": "reset"})
}

func (p *wsPresenter) ChangeBackdrop(ctx context.Context, b *story.Backdrop) error {
	if b == nil {
		return p.client.send(gin.H{"type": "backdrop"})
	}
	return p.client.send(gin.H{"type": "backdrop", "id": b.ID, "image": b.Image})
}

func (p *wsPresenter) PlaySound(ctx context.Context, snd *story.Sound) error {
	return p.client.send(gin.H{"type": "sound", "id": snd.ID, "audio": snd.Audio})
}

func (p *wsPresenter) AddCharacter(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression, loc story.Location) error {
	return p.client.send(gin.H{
		"type":       "add_character",
		"character":  c.ID,
		"name":       c.Name,
		"outfit":     o.ID,
		"expression": e.ID,
		"image":      e.Image,
		"location":   loc,
	})
}

func (p *wsPresenter) RemoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.client.send(gin.H{"type": "remove_character", "character": c.ID, "location": loc})
}

func (p *wsPresenter) MoveCharacter(ctx context.Context, c *story.Character, loc story.Location) error {
	return p.client.send(gin.H{"type": "move_character", "character": c.ID, "location": loc})
}

func (p *wsPresenter) ChangeCharacterSprite(ctx context.Context, c *story.Character, o *story.Outfit, e *story.Expression) error {
	return p.client.send(gin.H{
		"type":       "sprite",
		"character":  c.ID,
		"outfit":     o.ID,
		"expression": e.ID,
		"image":      e.Image,
	})
}

// DisplayText invia il testo a pezzi secondo il pacer; uno "skip" invia subito il resto
func (p *wsPresenter) DisplayText(ctx context.Context, text, speaker string) error {
	if err := p.client.send(gin.H{"type": "text_start", "speaker": speaker}); err != nil {
		return err
	}
	drain(p.skip)
	err := p.pacer.Reveal(ctx, text, func(chunk string) error {
		return p.client.send(gin.H{"type": "text_chunk", "chunk": chunk})
	}, p.skip)
	if err != nil {
		return err
	}
	return p.client.send(gin.H{"type": "text_end", "text": text, "speaker": speaker})
}

// PresentChoice scarta le scelte arrivate quando nessuna era in attesa
func (p *wsPresenter) PresentChoice(ctx context.Context, options []string) (int, error) {
	select {
	case <-p.choices:
	default:
	}
	if err := p.client.send(gin.H{"type": "choice", "options": options}); err != nil {
		return 0, err
	}
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case index := <-p.choices:
			if index >= 0 && index < len(options) {
				return index, nil
			}
			if err := p.client.send(gin.H{"type": "error", "error": "scelta non valida: " + strconv.Itoa(index)}); err != nil {
				return 0, err
			}
		}
	}
}

func (p *wsPresenter) WaitForAdvance(ctx context.Context) error {
	drain(p.advance)
	if err := p.client.send(gin.H{"type": "wait"}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.advance:
		return nil
	}
}

// handlePlay esegue il progetto corrente sul socket a partire dal passaggio
// indicato in ?passage= (il primo se assente). ?reveal_ms= cambia la velocità
// di rivelazione del testo.
func (s *Server) handlePlay(c *gin.Context) {
	proj, diags, ok := s.requireProject(c)
	if !ok {
		return
	}
	if len(diags) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":     false,
			"error":       "il progetto contiene errori",
			"diagnostics": s.service(proj).Diagnostics(diags),
		})
		return
	}

	start := c.Query("passage")
	if start == "" && len(proj.Story.PassageOrder) > 0 {
		start = proj.Story.PassageOrder[0]
	}
	pacer := presenter.Pacer{PerChar: s.revealPerChar}
	if ms, err := strconv.Atoi(c.Query("reveal_ms")); err == nil && ms >= 0 {
		pacer.PerChar = time.Duration(ms) * time.Millisecond
	}

	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("Errore upgrade WebSocket", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &wsClient{conn: conn}
	p := newWSPresenter(client, pacer)
	go p.listen(cancel)

	s.log.Info("▶️ esecuzione interattiva", slog.String("passage", start))
	sc, runErr := interpreter.New(proj.Story, p).RunFrom(ctx, start)

	result := gin.H{"type": "finished", "passage": sc.Current.Passage, "steps": len(sc.History) + 1}
	var rt *interpreter.RuntimeError
	switch {
	case runErr == nil:
		result["outcome"] = "finished"
	case interpreter.IsEnded(runErr):
		result["outcome"] = "end"
	case errors.Is(runErr, context.Canceled):
		// Il client si è disconnesso
		return
	default:
		result["outcome"] = "error"
		result["error"] = runErr.Error()
		if errors.As(runErr, &rt) {
			result["diagnostic"] = s.service(proj).Diagnostics([]story.Diagnostic{rt.Diagnostic})[0]
		}
	}
	client.send(result)
}
