package validator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"vnscript-editor/logging"
	"vnscript-editor/parser"
	"vnscript-editor/story"
)

// Validator controlla i riferimenti incrociati di una storia già analizzata.
// Ogni controllo fallito produce una diagnostica e la validazione prosegue.
type Validator struct {
	assets parser.AssetChecker
	log    *slog.Logger
}

// New crea un validatore. Se assets è nil l'esistenza di immagini e audio non viene verificata.
func New(assets parser.AssetChecker) *Validator {
	return &Validator{assets: assets, log: logging.WithComponent("validator")}
}

// pass è lo stato di una singola validazione
type pass struct {
	ctx   context.Context
	def   *story.Definition
	diags []story.Diagnostic
}

func (p *pass) report(r story.Range, format string, args ...interface{}) {
	p.diags = append(p.diags, story.NewDiagnostic(story.DiagnosticSemantic, r, format, args...))
}

// Validate restituisce le diagnostiche semantiche del progetto ordinate per posizione
func (v *Validator) Validate(ctx context.Context, proj *parser.Project) []story.Diagnostic {
	p := &pass{ctx: ctx, def: proj.Story}

	v.checkDefinitions(p)
	for _, id := range p.def.PassageOrder {
		story.Walk(p.def.Passages[id].Actions, p.checkAction)
	}

	story.SortDiagnostics(p.diags)
	v.log.Info("🔍 validazione completata", slog.String("entry", proj.Entry), slog.Int("errors", len(p.diags)))
	return p.diags
}

// Check carica il progetto dal loader e restituisce le diagnostiche di sintassi
// e semantiche insieme, ordinate per posizione. Se il loader verifica anche gli
// asset viene usato per controllarne l'esistenza.
func Check(ctx context.Context, loader parser.Loader, entry string) (*parser.Project, []story.Diagnostic, error) {
	proj, err := parser.New(loader, nil).Load(ctx, entry)
	if err != nil {
		return nil, nil, err
	}

	var assets parser.AssetChecker
	if checker, ok := loader.(parser.AssetChecker); ok {
		assets = checker
	}
	diags := append(proj.Diagnostics(), New(assets).Validate(ctx, proj)...)
	story.SortDiagnostics(diags)
	return proj, diags, nil
}

// ============================================
// Definizioni
// ============================================

func (v *Validator) checkDefinitions(p *pass) {
	def := p.def

	for _, id := range sortedKeys(def.Globals) {
		p.checkInitial(def.Globals[id], "")
	}
	for _, id := range sortedKeys(def.Cast) {
		p.checkInitial(def.Cast[id], "")
	}
	for _, cid := range sortedKeys(def.Characters) {
		c := def.Characters[cid]
		for _, id := range sortedKeys(c.Variables) {
			p.checkInitial(c.Variables[id], c.ID)
		}
		if v.assets == nil {
			continue
		}
		for _, oid := range c.OutfitOrder {
			o := c.Outfits[oid]
			for _, eid := range o.ExpressionOrder {
				e := o.Expressions[eid]
				v.checkAsset(p, e.Image, e.ImageRange, "immagine")
			}
		}
	}

	if v.assets == nil {
		return
	}
	for _, id := range sortedKeys(def.Backdrops) {
		b := def.Backdrops[id]
		v.checkAsset(p, b.Image, b.ImageRange, "immagine")
	}
	for _, id := range sortedKeys(def.Sounds) {
		s := def.Sounds[id]
		v.checkAsset(p, s.Audio, s.AudioRange, "file audio")
	}
}

func (v *Validator) checkAsset(p *pass, name string, r story.Range, what string) {
	if !v.assets.Exists(p.ctx, name) {
		p.report(r, "%s '%s' non trovato", what, name)
	}
}

// checkInitial verifica che un valore iniziale che riferisce un'altra variabile
// sia risolvibile. Le variabili cast vengono cercate tra le cast.
func (p *pass) checkInitial(v *story.Variable, character string) {
	ref, ok := v.Initial.(story.Reference)
	if !ok {
		return
	}
	name := string(ref)
	switch v.Scope {
	case story.ScopeCast:
		if _, found := p.def.Cast[name]; !found {
			p.report(v.ValueRange, "variabile cast '$%s' non definita%s", name, hint(name, sortedKeys(p.def.Cast)))
		}
	default:
		p.checkVariable(name, character, v.ValueRange)
	}
}

// ============================================
// Azioni
// ============================================

func (p *pass) checkAction(a story.Action) {
	def := p.def

	switch act := a.(type) {
	case *story.GotoAction:
		if _, ok := def.Passages[act.Passage]; !ok {
			p.report(act.PassageRange, "passaggio '%s' non definito%s", act.Passage, hint(act.Passage, def.PassageOrder))
		}
	case *story.BackdropAction:
		if _, ok := def.Backdrops[act.Backdrop]; !ok {
			p.report(act.BackdropRange, "sfondo '%s' non definito%s", act.Backdrop, hint(act.Backdrop, sortedKeys(def.Backdrops)))
		}
	case *story.SoundAction:
		if _, ok := def.Sounds[act.Sound]; !ok {
			p.report(act.SoundRange, "suono '%s' non definito%s", act.Sound, hint(act.Sound, sortedKeys(def.Sounds)))
		}

	case *story.EnterAction:
		p.checkCharacter(act.Actor)
	case *story.ExitAction:
		p.checkCharacter(act.Actor)
	case *story.MoveAction:
		p.checkCharacter(act.Actor)
	case *story.SpeakAction:
		p.checkCharacter(act.Actor)

	case *story.ExpressionAction:
		if c, ok := p.checkCharacter(act.Actor); ok && len(c.OutfitsWithExpression(act.Expression)) == 0 {
			p.report(act.ExpressionRange, "espressione '%s' non definita per '%s'%s", act.Expression, c.ID, hint(act.Expression, expressionIDs(c)))
		}
	case *story.OutfitAction:
		c, ok := p.checkCharacter(act.Actor)
		if !ok {
			return
		}
		o, found := c.Outfits[act.Outfit]
		if !found {
			p.report(act.OutfitRange, "outfit '%s' non definito per '%s'%s", act.Outfit, c.ID, hint(act.Outfit, c.OutfitOrder))
			return
		}
		if act.Expression != "" {
			if _, found := o.Expressions[act.Expression]; !found {
				p.report(act.ExpressionRange, "espressione '%s' non definita nell'outfit '%s'%s", act.Expression, o.ID, hint(act.Expression, o.ExpressionOrder))
			}
		}

	case *story.CheckAction:
		if p.checkScope(act.Actor) {
			p.checkVariable(act.Variable, act.Character, act.VariableRange)
			p.checkOperand(act.Operand, act.Character)
		}
	case *story.SetAction:
		if p.checkScope(act.Actor) {
			p.checkVariable(act.Variable, act.Character, act.VariableRange)
			p.checkOperand(act.Value, act.Character)
		}
	case *story.AddAction:
		if !p.checkScope(act.Actor) {
			return
		}
		if p.checkVariable(act.Variable, act.Character, act.VariableRange) {
			if kind, _ := def.DeclaredType(act.Character, act.Variable); kind == story.KindMap && act.Key == nil {
				p.report(act.VariableRange, "'$%s' è una mappa: serve una chiave ('at ...')", act.Variable)
			}
		}
		p.checkOperand(act.Value, act.Character)
		if act.Key != nil {
			p.checkOperand(*act.Key, act.Character)
		}
	case *story.SubtractAction:
		if p.checkScope(act.Actor) {
			p.checkVariable(act.Variable, act.Character, act.VariableRange)
			p.checkOperand(act.Value, act.Character)
		}
	}
}

// checkCharacter verifica che l'attore sia un personaggio definito
func (p *pass) checkCharacter(actor story.Actor) (*story.Character, bool) {
	c, ok := p.def.Characters[actor.Character]
	if !ok {
		p.report(actor.CharacterRange, "personaggio '%s' non definito%s", actor.Character, hint(actor.Character, sortedKeys(p.def.Characters)))
	}
	return c, ok
}

// checkScope verifica l'attore di un'azione sulle variabili (il narratore è sempre valido)
func (p *pass) checkScope(actor story.Actor) bool {
	if actor.Character == "" {
		return true
	}
	_, ok := p.checkCharacter(actor)
	return ok
}

// checkVariable verifica che la variabile sia visibile nello scope: il
// narratore vede solo le globali, un personaggio le sue variabili e le cast
func (p *pass) checkVariable(name, character string, r story.Range) bool {
	if _, ok := p.def.LookupVariable(character, name); ok {
		return true
	}

	if character == "" {
		if _, isCast := p.def.Cast[name]; isCast {
			p.report(r, "'$%s' è una variabile cast: il narratore può usare solo variabili globali", name)
			return false
		}
		p.report(r, "variabile globale '$%s' non definita%s", name, hint(name, sortedKeys(p.def.Globals)))
		return false
	}

	if _, isGlobal := p.def.Globals[name]; isGlobal {
		p.report(r, "'$%s' è una variabile globale: '%s' può usare solo le proprie variabili o quelle cast", name, character)
		return false
	}
	candidates := sortedKeys(p.def.Cast)
	if c, ok := p.def.Characters[character]; ok {
		candidates = append(candidates, sortedKeys(c.Variables)...)
	}
	p.report(r, "variabile '$%s' non definita per '%s'%s", name, character, hint(name, candidates))
	return false
}

func (p *pass) checkOperand(op story.Operand, character string) {
	if ref, ok := op.Value.(story.Reference); ok {
		p.checkVariable(string(ref), character, op.Range)
	}
}

// ============================================
// Suggerimenti
// ============================================

// hint propone il nome più simile tra i candidati, prima per sottosequenza
// e poi per distanza di modifica
func hint(name string, candidates []string) string {
	if best := closest(name, candidates); best != "" {
		return fmt.Sprintf(" (forse intendevi '%s'?)", best)
	}
	return ""
}

func closest(name string, candidates []string) string {
	if len(candidates) == 0 || name == "" {
		return ""
	}

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", len(name)/2+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func expressionIDs(c *story.Character) []string {
	seen := make(map[string]bool)
	var out []string
	for _, oid := range c.OutfitOrder {
		for _, eid := range c.Outfits[oid].ExpressionOrder {
			if !seen[eid] {
				seen[eid] = true
				out = append(out, eid)
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
