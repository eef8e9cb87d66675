package grammar

import (
	"sort"

	"vnscript-editor/story"
)

// SuggestContext è il contesto con cui vengono generati i suggerimenti
type SuggestContext struct {
	Story *story.Definition
	// Character è il personaggio in scope ("" per il narratore)
	Character string
}

// Suggestion è un suggerimento di completamento
type Suggestion struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	// Insert è il testo da inserire; se vuoto si usa Label
	Insert string `json:"insert,omitempty"`
	Kind   string `json:"kind"`
}

// Tipi di suggerimento
const (
	SuggestKeyword  = "keyword"
	SuggestEntity   = "entity"
	SuggestVariable = "variable"
	SuggestSnippet  = "snippet"
)

// SuggestFunc genera suggerimenti concreti per una foglia
type SuggestFunc func(ctx SuggestContext) []Suggestion

// Suggestions espande una foglia in suggerimenti concreti a partire dalla
// definizione della storia
func Suggestions(n *Node, ctx SuggestContext) []Suggestion {
	if n.Suggest != nil {
		return n.Suggest(ctx)
	}

	switch n.Kind {
	case NodeKeyword:
		return []Suggestion{{Label: n.Text, Kind: SuggestKeyword}}
	case NodeString:
		return []Suggestion{{Label: `"` + n.Label + `"`, Insert: `""`, Kind: SuggestSnippet}}
	case NodeVariable:
		if n.IsDefinition {
			return []Suggestion{{Label: "$nuova_variabile", Detail: "nuova variabile", Kind: SuggestSnippet}}
		}
		return variableSuggestions(ctx)
	case NodeIdentifier:
		if n.IsDefinition {
			return []Suggestion{{Label: placeholder(n.SubType), Detail: "nuovo " + n.SubType.String(), Kind: SuggestSnippet}}
		}
		return entitySuggestions(n.SubType, ctx)
	}
	return nil
}

func placeholder(e story.Entity) string {
	switch e {
	case story.EntityCharacter:
		return "nuovo_personaggio"
	case story.EntityOutfit:
		return "nuovo_outfit"
	case story.EntityExpression:
		return "nuova_espressione"
	case story.EntityBackdrop:
		return "nuovo_sfondo"
	case story.EntitySound:
		return "nuovo_suono"
	case story.EntityPassage:
		return "nuovo_passaggio"
	}
	return "nome"
}

func entitySuggestions(e story.Entity, ctx SuggestContext) []Suggestion {
	def := ctx.Story
	if def == nil {
		return nil
	}

	var out []Suggestion
	add := func(id, detail string) {
		out = append(out, Suggestion{Label: id, Detail: detail, Kind: SuggestEntity})
	}

	switch e {
	case story.EntityCharacter:
		for _, id := range sortedKeys(def.Characters) {
			add(id, def.Characters[id].Name)
		}
	case story.EntityBackdrop:
		for _, id := range sortedKeys(def.Backdrops) {
			add(id, def.Backdrops[id].Image)
		}
	case story.EntitySound:
		for _, id := range sortedKeys(def.Sounds) {
			add(id, def.Sounds[id].Audio)
		}
	case story.EntityPassage:
		for _, id := range def.PassageOrder {
			add(id, "passaggio")
		}
	case story.EntityOutfit:
		if c, ok := def.Characters[ctx.Character]; ok {
			for _, id := range c.OutfitOrder {
				add(id, "outfit di "+c.ID)
			}
		}
	case story.EntityExpression:
		if c, ok := def.Characters[ctx.Character]; ok {
			seen := make(map[string]bool)
			for _, outfitID := range c.OutfitOrder {
				for _, id := range c.Outfits[outfitID].ExpressionOrder {
					if !seen[id] {
						seen[id] = true
						add(id, "espressione di "+c.ID)
					}
				}
			}
		}
	}
	return out
}

func variableSuggestions(ctx SuggestContext) []Suggestion {
	def := ctx.Story
	if def == nil {
		return nil
	}

	var out []Suggestion
	add := func(v *story.Variable) {
		out = append(out, Suggestion{
			Label:  "$" + v.ID,
			Detail: v.Scope.String() + " " + v.Type.String(),
			Kind:   SuggestVariable,
		})
	}

	if ctx.Character == "" {
		for _, id := range sortedKeys(def.Globals) {
			add(def.Globals[id])
		}
		return out
	}

	local := make(map[string]bool)
	if c, ok := def.Characters[ctx.Character]; ok {
		for _, id := range sortedKeys(c.Variables) {
			local[id] = true
			add(c.Variables[id])
		}
	}
	for _, id := range sortedKeys(def.Cast) {
		if !local[id] {
			add(def.Cast[id])
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
