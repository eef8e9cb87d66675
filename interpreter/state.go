package interpreter

import (
	"vnscript-editor/story"
)

// CharacterState è lo stato di esecuzione di un personaggio
type CharacterState struct {
	Outfit     string                 `json:"outfit,omitempty"`
	Expression string                 `json:"expression,omitempty"`
	OnStage    bool                   `json:"on_stage"`
	Location   story.Location         `json:"location,omitempty"`
	Variables  map[string]story.Value `json:"-"`
}

// State è lo stato di esecuzione in un istante. Non viene mai modificato sul
// posto: ogni transizione produce una copia tramite i metodi With*.
type State struct {
	Passage    string                    `json:"passage"`
	Globals    map[string]story.Value    `json:"-"`
	Characters map[string]CharacterState `json:"characters"`
}

// NewState crea lo stato iniziale vuoto
func NewState() State {
	return State{
		Globals:    make(map[string]story.Value),
		Characters: make(map[string]CharacterState),
	}
}

// WithPassage restituisce una copia con il passaggio corrente cambiato
func (s State) WithPassage(id string) State {
	s.Passage = id
	return s
}

// WithGlobal restituisce una copia con la variabile globale assegnata
func (s State) WithGlobal(name string, v story.Value) State {
	globals := make(map[string]story.Value, len(s.Globals)+1)
	for k, item := range s.Globals {
		globals[k] = item
	}
	globals[name] = v
	s.Globals = globals
	return s
}

// Character restituisce lo stato del personaggio (vuoto se non ancora usato)
func (s State) Character(id string) CharacterState {
	return s.Characters[id]
}

// WithCharacter restituisce una copia con lo stato del personaggio sostituito
func (s State) WithCharacter(id string, cs CharacterState) State {
	chars := make(map[string]CharacterState, len(s.Characters)+1)
	for k, item := range s.Characters {
		chars[k] = item
	}
	chars[id] = cs
	s.Characters = chars
	return s
}

// WithCharacterVariable restituisce una copia con la variabile del personaggio assegnata
func (s State) WithCharacterVariable(id, name string, v story.Value) State {
	cs := s.Character(id)
	vars := make(map[string]story.Value, len(cs.Variables)+1)
	for k, item := range cs.Variables {
		vars[k] = item
	}
	vars[name] = v
	cs.Variables = vars
	return s.WithCharacter(id, cs)
}

// Lookup cerca il valore corrente di una variabile.
// Scope del narratore (character == ""): globali correnti, poi definizione globale.
// Scope del personaggio: variabili correnti del personaggio, poi i suoi default,
// poi la definizione cast con lo stesso nome.
func (s State) Lookup(def *story.Definition, character, name string) (story.Value, bool) {
	if character == "" {
		if v, ok := s.Globals[name]; ok {
			return v, true
		}
		if v, ok := def.Globals[name]; ok {
			return v.Initial, true
		}
		return nil, false
	}

	if v, ok := s.Characters[character].Variables[name]; ok {
		return v, true
	}
	if c, ok := def.Characters[character]; ok {
		if v, ok := c.Variables[name]; ok {
			return v.Initial, true
		}
	}
	if v, ok := def.Cast[name]; ok {
		return v.Initial, true
	}
	return nil, false
}

// Values restituisce tutte le variabili visibili nello scope, con i valori correnti
func (s State) Values(def *story.Definition, character string) map[string]story.Value {
	out := make(map[string]story.Value)
	if character == "" {
		for name := range def.Globals {
			out[name], _ = s.Lookup(def, "", name)
		}
		return out
	}
	for name := range def.Cast {
		out[name], _ = s.Lookup(def, character, name)
	}
	if c, ok := def.Characters[character]; ok {
		for name := range c.Variables {
			out[name], _ = s.Lookup(def, character, name)
		}
	}
	return out
}

// StoryContext è il contesto di una singola esecuzione: lo stato corrente e la
// cronologia, in sola aggiunta, degli stati precedenti a ogni cambio di passaggio
type StoryContext struct {
	Current State   `json:"current"`
	History []State `json:"history"`
}

func (sc *StoryContext) push(next State) {
	sc.History = append(sc.History, sc.Current)
	sc.Current = next
}
