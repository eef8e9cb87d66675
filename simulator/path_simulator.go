package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"vnscript-editor/interpreter"
	"vnscript-editor/logging"
	"vnscript-editor/presenter/scripted"
	"vnscript-editor/story"
)

// ErrChoicesExhausted indica che la simulazione si è fermata su una scelta non prevista
var ErrChoicesExhausted = scripted.ErrChoicesExhausted

// Esiti possibili di una simulazione
const (
	OutcomeEnded            = "end"
	OutcomeFinished         = "finished"
	OutcomeChoicesExhausted = "choices_exhausted"
	OutcomeError            = "error"
)

// MaxSuggestedPaths è il numero massimo di percorsi restituiti da GetSuggestedPaths
const MaxSuggestedPaths = 10

// PathSimulator esegue una storia senza interfaccia e analizza i percorsi
// possibili tra i passaggi
type PathSimulator struct {
	def *story.Definition
	log *slog.Logger
}

// VariableChange rappresenta il cambiamento di una variabile
type VariableChange struct {
	Name     string      `json:"name"`
	Previous interface{} `json:"previous"`
	Current  interface{} `json:"current"`
	Delta    *float64    `json:"delta,omitempty"` // Solo per numeri
}

// StepResult risultato di un singolo passaggio visitato
type StepResult struct {
	PassageTitle   string                    `json:"passage_title"`
	PassageIndex   int                       `json:"passage_index"`
	Changes        map[string]VariableChange `json:"changes"`
	Warnings       []string                  `json:"warnings,omitempty"`
	AvailableLinks []string                  `json:"available_links"`
}

// SimulationResult risultato completo della simulazione
type SimulationResult struct {
	Success       bool                   `json:"success"`
	Outcome       string                 `json:"outcome"`
	Path          []string               `json:"path"`
	Steps         []StepResult           `json:"steps"`
	FinalState    map[string]interface{} `json:"final_state"`
	Transcript    []scripted.Entry       `json:"transcript"`
	Diagnostic    *story.Diagnostic      `json:"diagnostic,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
	TotalWarnings int                    `json:"total_warnings"`
}

// NewPathSimulator crea un nuovo simulatore
func NewPathSimulator(def *story.Definition) *PathSimulator {
	return &PathSimulator{def: def, log: logging.WithComponent("simulator")}
}

// ============================================
// Grafo statico dei passaggi
// ============================================

// Links restituisce i passaggi raggiungibili direttamente da un passaggio
// tramite go to e continue, nell'ordine in cui compaiono
func (ps *PathSimulator) Links(passage string) []string {
	p, ok := ps.def.Passages[passage]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	links := []string{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			links = append(links, id)
		}
	}
	story.Walk(p.Actions, func(a story.Action) {
		switch act := a.(type) {
		case *story.GotoAction:
			add(act.Passage)
		case *story.ContinueAction:
			if next, ok := ps.def.NextPassage(passage); ok {
				add(next)
			}
		}
	})
	return links
}

// Graph restituisce i collegamenti di tutti i passaggi
func (ps *PathSimulator) Graph() map[string][]string {
	graph := make(map[string][]string, len(ps.def.Passages))
	for _, id := range ps.def.PassageOrder {
		graph[id] = ps.Links(id)
	}
	return graph
}

// ValidatePath verifica che il path sia valido (passaggi collegati)
func (ps *PathSimulator) ValidatePath(path []string) []string {
	errs := []string{}

	// Verifica che tutti i passaggi esistano
	for i, title := range path {
		if _, exists := ps.def.Passages[title]; !exists {
			errs = append(errs, fmt.Sprintf("Step %d: passaggio '%s' non esiste", i+1, title))
		}
	}

	// Verifica che i passaggi siano collegati
	for i := 0; i < len(path)-1; i++ {
		current, next := path[i], path[i+1]
		if _, exists := ps.def.Passages[current]; !exists {
			continue // Già segnalato sopra
		}

		links := ps.Links(current)
		linked := false
		for _, link := range links {
			if link == next {
				linked = true
				break
			}
		}
		if !linked {
			errs = append(errs, fmt.Sprintf(
				"Step %d→%d: '%s' non ha un collegamento diretto a '%s'. Collegamenti disponibili: %v",
				i+1, i+2, current, next, links,
			))
		}
	}

	return errs
}

// GetSuggestedPaths suggerisce percorsi validi dato un punto di partenza
func (ps *PathSimulator) GetSuggestedPaths(startPassage string, maxDepth int) [][]string {
	paths := [][]string{}
	if _, ok := ps.def.Passages[startPassage]; !ok {
		return paths
	}
	if maxDepth <= 0 {
		maxDepth = MaxSuggestedPaths
	}

	// BFS sul grafo statico
	queue := [][]string{{startPassage}}
	for len(queue) > 0 && len(paths) < MaxSuggestedPaths {
		currentPath := queue[0]
		queue = queue[1:]

		if len(currentPath) >= maxDepth {
			paths = append(paths, currentPath)
			continue
		}

		links := ps.Links(currentPath[len(currentPath)-1])
		if len(links) == 0 {
			// Fine del percorso
			paths = append(paths, currentPath)
			continue
		}
		for _, link := range links {
			newPath := make([]string, len(currentPath), len(currentPath)+1)
			copy(newPath, currentPath)
			queue = append(queue, append(newPath, link))
		}
	}

	return paths
}

// ============================================
// Esecuzione
// ============================================

// SimulatePath esegue la storia da start (il primo passaggio se vuoto)
// rispondendo alle scelte con gli indici indicati, nell'ordine
func (ps *PathSimulator) SimulatePath(ctx context.Context, start string, choices []int) *SimulationResult {
	result := &SimulationResult{
		Success:    true,
		Path:       []string{},
		Steps:      []StepResult{},
		FinalState: make(map[string]interface{}),
		Errors:     []string{},
	}

	if start == "" && len(ps.def.PassageOrder) > 0 {
		start = ps.def.PassageOrder[0]
	}

	pres := scripted.New(choices)
	sc, err := interpreter.New(ps.def, pres).RunFrom(ctx, start)
	result.Transcript = pres.Transcript()

	var rt *interpreter.RuntimeError
	switch {
	case err == nil:
		result.Outcome = OutcomeFinished
	case interpreter.IsEnded(err):
		result.Outcome = OutcomeEnded
	case errors.Is(err, ErrChoicesExhausted):
		result.Outcome = OutcomeChoicesExhausted
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
	default:
		result.Outcome = OutcomeError
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		if errors.As(err, &rt) {
			d := rt.Diagnostic
			result.Diagnostic = &d
		}
	}
	if result.Outcome != OutcomeChoicesExhausted && pres.Remaining() > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d scelte non usate", pres.Remaining()))
	}

	states := append(append([]interpreter.State(nil), sc.History...), sc.Current)
	previous := ps.snapshot(interpreter.NewState())
	visited := make(map[string]bool)

	for i, st := range states {
		if st.Passage == "" {
			continue
		}
		current := ps.snapshot(st)
		step := StepResult{
			PassageTitle:   st.Passage,
			PassageIndex:   i + 1,
			Changes:        diff(previous, current),
			AvailableLinks: ps.Links(st.Passage),
		}
		step.Warnings = warnings(step, visited[st.Passage])
		visited[st.Passage] = true

		result.TotalWarnings += len(step.Warnings)
		result.Path = append(result.Path, st.Passage)
		result.Steps = append(result.Steps, step)
		previous = current
	}

	for name, v := range previous {
		result.FinalState[name] = story.Native(v)
	}

	ps.log.Info("🧪 simulazione completata",
		slog.String("start", start),
		slog.String("outcome", result.Outcome),
		slog.Int("steps", len(result.Steps)))
	return result
}

// snapshot appiattisce le variabili visibili: "$nome" per le globali,
// "personaggio.$nome" per quelle dei personaggi
func (ps *PathSimulator) snapshot(st interpreter.State) map[string]story.Value {
	out := make(map[string]story.Value)
	for name, v := range st.Values(ps.def, "") {
		out["$"+name] = v
	}
	for id := range ps.def.Characters {
		for name, v := range st.Values(ps.def, id) {
			out[id+".$"+name] = v
		}
	}
	return out
}

func diff(previous, current map[string]story.Value) map[string]VariableChange {
	changes := make(map[string]VariableChange)
	for name, cur := range current {
		prev, existed := previous[name]
		if existed && story.Equal(prev, cur) {
			continue
		}
		change := VariableChange{Name: name, Current: story.Native(cur)}
		if existed {
			change.Previous = story.Native(prev)
			// Delta solo per valori numerici
			if p, ok := prev.(story.Number); ok {
				if c, ok := cur.(story.Number); ok {
					delta := float64(c - p)
					change.Delta = &delta
				}
			}
		}
		changes[name] = change
	}
	return changes
}

// warnings genera i warning di un passaggio
func warnings(step StepResult, revisited bool) []string {
	out := []string{}
	if revisited {
		out = append(out, fmt.Sprintf("🔁 passaggio '%s' visitato di nuovo", step.PassageTitle))
	}

	names := make([]string, 0, len(step.Changes))
	for name := range step.Changes {
		names = append(names, name)
	}
	sort.Strings(names)

	// Valori numerici scesi a zero o sotto
	for _, name := range names {
		change := step.Changes[name]
		if change.Delta == nil || *change.Delta >= 0 {
			continue
		}
		if cur, ok := change.Current.(float64); ok && cur <= 0 {
			out = append(out, fmt.Sprintf("⚠️ %s è a 0 o negativo: %v", name, cur))
		}
	}
	return out
}
