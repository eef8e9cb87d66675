package interpreter

import (
	"context"
	"fmt"
	"log/slog"

	"vnscript-editor/logging"
	"vnscript-editor/story"
)

// Interpreter esegue una storia validata pilotando un Presenter.
// Non conserva stato tra un'esecuzione e l'altra: ogni Run parte da uno stato nuovo.
type Interpreter struct {
	def       *story.Definition
	presenter Presenter
	log       *slog.Logger
}

// New crea un interprete per la definizione indicata
func New(def *story.Definition, presenter Presenter) *Interpreter {
	return &Interpreter{
		def:       def,
		presenter: presenter,
		log:       logging.WithComponent("interpreter"),
	}
}

// run è lo stato di una singola esecuzione
type run struct {
	*Interpreter
	sc *StoryContext
}

// Run esegue la storia dal primo passaggio dichiarato.
// Restituisce sempre il contesto finale; l'errore è nil se l'esecuzione arriva
// in fondo a un passaggio, soddisfa IsEnded dopo un end ed è un *RuntimeError
// per gli errori della storia.
func (in *Interpreter) Run(ctx context.Context) (*StoryContext, error) {
	if len(in.def.PassageOrder) == 0 {
		return &StoryContext{Current: NewState()}, fail(ErrUndefined, story.Range{}, "nessun passaggio definito")
	}
	return in.RunFrom(ctx, in.def.PassageOrder[0])
}

// RunFrom esegue la storia a partire dal passaggio indicato
func (in *Interpreter) RunFrom(ctx context.Context, passage string) (*StoryContext, error) {
	r := &run{Interpreter: in, sc: &StoryContext{Current: NewState()}}

	if _, ok := in.def.Passages[passage]; !ok {
		return r.sc, fail(ErrUndefined, story.Range{}, "passaggio '%s' non definito", passage)
	}
	if err := in.presenter.ResetScene(ctx); err != nil {
		return r.sc, fmt.Errorf("reset della scena: %w", err)
	}

	r.sc.Current = r.sc.Current.WithPassage(passage)
	err := r.loop(ctx)

	switch {
	case err == nil:
		in.log.Info("🏁 storia conclusa", slog.String("passage", r.sc.Current.Passage), slog.Int("steps", len(r.sc.History)+1))
	case IsEnded(err):
		in.log.Info("🏁 storia terminata con end", slog.String("passage", r.sc.Current.Passage))
	default:
		in.log.Warn("⚠️ esecuzione interrotta", slog.String("passage", r.sc.Current.Passage), slog.Any("error", err))
	}
	return r.sc, err
}

// loop esegue i passaggi uno dopo l'altro: continue e go to restituiscono il
// prossimo passaggio invece di annidare le chiamate
func (r *run) loop(ctx context.Context) error {
	for {
		id := r.sc.Current.Passage
		r.log.Debug("📜 passaggio", slog.String("passage", id))

		next, err := r.execute(ctx, r.def.Passages[id].Actions)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		r.sc.push(r.sc.Current.WithPassage(next))
	}
}

// execute esegue una sequenza di azioni. Restituisce il passaggio successivo
// quando un continue o un go to trasferisce il controllo.
func (r *run) execute(ctx context.Context, actions []story.Action) (string, error) {
	for i := 0; i < len(actions); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if _, ok := actions[i].(*story.OptionAction); ok {
			var options []*story.OptionAction
			for ; i < len(actions); i++ {
				opt, isOption := actions[i].(*story.OptionAction)
				if !isOption {
					break
				}
				options = append(options, opt)
			}
			i--

			next, err := r.choose(ctx, options)
			if err != nil || next != "" {
				return next, err
			}
			continue
		}

		next, err := r.step(ctx, actions[i])
		if err != nil || next != "" {
			return next, err
		}
	}
	return "", nil
}

// choose presenta un gruppo di opzioni consecutive ed esegue il corpo di quella scelta
func (r *run) choose(ctx context.Context, options []*story.OptionAction) (string, error) {
	texts := make([]string, len(options))
	for i, opt := range options {
		texts[i] = Interpolate(r.def, r.sc.Current, "", opt.Text)
	}

	choice, err := r.presenter.PresentChoice(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("scelta: %w", err)
	}
	if choice < 0 || choice >= len(options) {
		return "", fail(ErrUndefined, options[0].Range(), "scelta %d fuori intervallo (%d opzioni)", choice, len(options))
	}
	return r.execute(ctx, options[choice].Actions)
}

func (r *run) step(ctx context.Context, a story.Action) (string, error) {
	def := r.def
	p := r.presenter

	switch act := a.(type) {
	case *story.BackdropAction:
		b, ok := def.Backdrops[act.Backdrop]
		if !ok {
			return "", fail(ErrUndefined, act.BackdropRange, "sfondo '%s' non definito", act.Backdrop)
		}
		return "", p.ChangeBackdrop(ctx, b)

	case *story.SoundAction:
		s, ok := def.Sounds[act.Sound]
		if !ok {
			return "", fail(ErrUndefined, act.SoundRange, "suono '%s' non definito", act.Sound)
		}
		return "", p.PlaySound(ctx, s)

	case *story.NarrateAction:
		if err := p.DisplayText(ctx, Interpolate(def, r.sc.Current, "", act.Text), ""); err != nil {
			return "", err
		}
		return "", p.WaitForAdvance(ctx)

	case *story.SpeakAction:
		c, err := r.character(act.Actor)
		if err != nil {
			return "", err
		}
		if err := p.DisplayText(ctx, Interpolate(def, r.sc.Current, c.ID, act.Text), c.Name); err != nil {
			return "", err
		}
		return "", p.WaitForAdvance(ctx)

	case *story.EnterAction:
		return "", r.enter(ctx, act)

	case *story.ExitAction:
		c, err := r.character(act.Actor)
		if err != nil {
			return "", err
		}
		cs := r.sc.Current.Character(c.ID)
		cs.OnStage = false
		r.sc.Current = r.sc.Current.WithCharacter(c.ID, cs)
		return "", p.RemoveCharacter(ctx, c, act.Location)

	case *story.MoveAction:
		c, err := r.character(act.Actor)
		if err != nil {
			return "", err
		}
		cs := r.sc.Current.Character(c.ID)
		cs.Location = act.Location
		r.sc.Current = r.sc.Current.WithCharacter(c.ID, cs)
		return "", p.MoveCharacter(ctx, c, act.Location)

	case *story.ExpressionAction:
		return "", r.looks(ctx, act)

	case *story.OutfitAction:
		return "", r.wears(ctx, act)

	case *story.CheckAction:
		ok, err := r.check(act)
		if err != nil || !ok {
			return "", err
		}
		return r.execute(ctx, act.Actions)

	case *story.ContinueAction:
		next, ok := def.NextPassage(r.sc.Current.Passage)
		if !ok {
			return "", fail(ErrUndefined, act.Range(), "nessun passaggio dopo '%s'", r.sc.Current.Passage)
		}
		return next, nil

	case *story.GotoAction:
		if _, ok := def.Passages[act.Passage]; !ok {
			return "", fail(ErrUndefined, act.PassageRange, "passaggio '%s' non definito", act.Passage)
		}
		return act.Passage, nil

	case *story.EndAction:
		return "", fail(ErrStoryEnded, act.Range(), "fine della storia")

	case *story.SetAction:
		return "", r.set(act)
	case *story.AddAction:
		return "", r.add(act)
	case *story.SubtractAction:
		return "", r.subtract(act)
	}
	return "", fail(ErrUndefined, a.Range(), "azione sconosciuta %T", a)
}

// ============================================
// Personaggi
// ============================================

func (r *run) character(actor story.Actor) (*story.Character, error) {
	c, ok := r.def.Characters[actor.Character]
	if !ok {
		return nil, fail(ErrUndefined, actor.CharacterRange, "personaggio '%s' non definito", actor.Character)
	}
	return c, nil
}

// sprite risolve outfit ed espressione correnti del personaggio, usando i
// default dichiarati quando lo stato non ne ha ancora
func (r *run) sprite(c *story.Character, at story.Range) (*story.Outfit, *story.Expression, error) {
	cs := r.sc.Current.Character(c.ID)

	outfit, ok := c.Outfits[cs.Outfit]
	if !ok {
		if outfit, ok = c.DefaultOutfit(); !ok {
			return nil, nil, fail(ErrUndefined, at, "'%s' non ha outfit definiti", c.ID)
		}
	}
	expr, ok := outfit.Expressions[cs.Expression]
	if !ok {
		if expr, ok = outfit.DefaultExpression(); !ok {
			return nil, nil, fail(ErrUndefined, at, "l'outfit '%s' di '%s' non ha espressioni", outfit.ID, c.ID)
		}
	}
	return outfit, expr, nil
}

func (r *run) enter(ctx context.Context, act *story.EnterAction) error {
	c, err := r.character(act.Actor)
	if err != nil {
		return err
	}
	outfit, expr, err := r.sprite(c, act.CharacterRange)
	if err != nil {
		return err
	}

	cs := r.sc.Current.Character(c.ID)
	cs.OnStage = true
	cs.Location = act.Location
	cs.Outfit = outfit.ID
	cs.Expression = expr.ID
	r.sc.Current = r.sc.Current.WithCharacter(c.ID, cs)
	return r.presenter.AddCharacter(ctx, c, outfit, expr, act.Location)
}

func (r *run) looks(ctx context.Context, act *story.ExpressionAction) error {
	c, err := r.character(act.Actor)
	if err != nil {
		return err
	}
	outfit, _, err := r.sprite(c, act.CharacterRange)
	if err != nil {
		return err
	}
	expr, ok := outfit.Expressions[act.Expression]
	if !ok {
		return fail(ErrUndefined, act.ExpressionRange, "espressione '%s' non definita nell'outfit '%s'", act.Expression, outfit.ID)
	}

	cs := r.sc.Current.Character(c.ID)
	cs.Outfit = outfit.ID
	cs.Expression = expr.ID
	r.sc.Current = r.sc.Current.WithCharacter(c.ID, cs)
	return r.presenter.ChangeCharacterSprite(ctx, c, outfit, expr)
}

func (r *run) wears(ctx context.Context, act *story.OutfitAction) error {
	c, err := r.character(act.Actor)
	if err != nil {
		return err
	}
	outfit, ok := c.Outfits[act.Outfit]
	if !ok {
		return fail(ErrUndefined, act.OutfitRange, "outfit '%s' non definito per '%s'", act.Outfit, c.ID)
	}

	cs := r.sc.Current.Character(c.ID)
	var expr *story.Expression
	if act.Expression != "" {
		if expr, ok = outfit.Expressions[act.Expression]; !ok {
			return fail(ErrUndefined, act.ExpressionRange, "espressione '%s' non definita nell'outfit '%s'", act.Expression, outfit.ID)
		}
	} else if expr, ok = outfit.Expressions[cs.Expression]; !ok {
		if expr, ok = outfit.DefaultExpression(); !ok {
			return fail(ErrUndefined, act.OutfitRange, "l'outfit '%s' di '%s' non ha espressioni", outfit.ID, c.ID)
		}
	}

	cs.Outfit = outfit.ID
	cs.Expression = expr.ID
	r.sc.Current = r.sc.Current.WithCharacter(c.ID, cs)
	return r.presenter.ChangeCharacterSprite(ctx, c, outfit, expr)
}

// ============================================
// Variabili
// ============================================

// value restituisce il valore corrente risolto di una variabile
func (r *run) value(character, name string, at story.Range) (story.Value, error) {
	v, ok := r.sc.Current.Lookup(r.def, character, name)
	if !ok {
		return nil, fail(ErrUndefined, at, "variabile '$%s' non definita", name)
	}
	return Resolve(r.def, r.sc.Current, character, v, at)
}

func (r *run) operand(character string, op story.Operand) (story.Value, error) {
	return Resolve(r.def, r.sc.Current, character, op.Value, op.Range)
}

func (r *run) assign(character, name string, v story.Value) {
	if character == "" {
		r.sc.Current = r.sc.Current.WithGlobal(name, v)
		return
	}
	r.sc.Current = r.sc.Current.WithCharacterVariable(character, name, v)
}

// target segue la catena di alias a partire da name e restituisce la variabile
// che contiene davvero il valore: add e subtract scrivono attraverso gli alias
func (r *run) target(character, name string) string {
	for i := 0; i < story.MaxIndirection; i++ {
		v, ok := r.sc.Current.Lookup(r.def, character, name)
		if !ok {
			return name
		}
		ref, isRef := v.(story.Reference)
		if !isRef {
			return name
		}
		if _, found := r.sc.Current.Lookup(r.def, character, string(ref)); !found {
			return name
		}
		name = string(ref)
	}
	return name
}

func (r *run) declared(actor story.Actor, name string, at story.Range) (story.ValueKind, error) {
	if actor.Character != "" {
		if _, err := r.character(actor); err != nil {
			return 0, err
		}
	}
	kind, ok := r.def.DeclaredType(actor.Character, name)
	if !ok {
		return 0, fail(ErrUndefined, at, "variabile '$%s' non definita", name)
	}
	return kind, nil
}

func (r *run) check(act *story.CheckAction) (bool, error) {
	if _, err := r.declared(act.Actor, act.Variable, act.VariableRange); err != nil {
		return false, err
	}
	left, err := r.value(act.Character, act.Variable, act.VariableRange)
	if err != nil {
		return false, err
	}
	right, err := r.operand(act.Character, act.Operand)
	if err != nil {
		return false, err
	}
	return Compare(act.Comparison, left, right, act.ComparisonRange)
}

// set assegna il valore così com'è: un riferimento resta un alias
func (r *run) set(act *story.SetAction) error {
	if _, err := r.declared(act.Actor, act.Variable, act.VariableRange); err != nil {
		return err
	}
	r.assign(act.Character, act.Variable, act.Value.Value)
	return nil
}

func (r *run) add(act *story.AddAction) error {
	kind, err := r.declared(act.Actor, act.Variable, act.VariableRange)
	if err != nil {
		return err
	}
	current, err := r.value(act.Character, act.Variable, act.VariableRange)
	if err != nil {
		return err
	}
	operand, err := r.operand(act.Character, act.Value)
	if err != nil {
		return err
	}

	var key *story.Value
	at := act.Value.Range
	if act.Key != nil {
		k, err := r.operand(act.Character, *act.Key)
		if err != nil {
			return err
		}
		key = &k
		at = act.Key.Range
	} else if kind == story.KindMap {
		at = act.VariableRange
	}

	result, err := add(kind, current, operand, key, at)
	if err != nil {
		return err
	}
	r.assign(act.Character, r.target(act.Character, act.Variable), result)
	return nil
}

func (r *run) subtract(act *story.SubtractAction) error {
	kind, err := r.declared(act.Actor, act.Variable, act.VariableRange)
	if err != nil {
		return err
	}
	current, err := r.value(act.Character, act.Variable, act.VariableRange)
	if err != nil {
		return err
	}
	operand, err := r.operand(act.Character, act.Value)
	if err != nil {
		return err
	}

	result, err := subtract(kind, current, operand, act.Value.Range)
	if err != nil {
		return err
	}
	r.assign(act.Character, r.target(act.Character, act.Variable), result)
	return nil
}
