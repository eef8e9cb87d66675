package story

import (
	"sort"
	"strconv"
	"strings"
)

// ============================================
// VALORI DELLE VARIABILI
// ============================================

// ValueKind identifica la variante di un Value
type ValueKind int

const (
	KindBoolean ValueKind = iota
	KindString
	KindNumber
	KindList
	KindMap
	KindNull
	KindReference
)

// String restituisce il nome del tipo come appare nei messaggi
func (k ValueKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNull:
		return "null"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// Value è un valore immutabile di una variabile. Le uniche implementazioni
// sono i tipi di questo file: Boolean, String, Number, List, Map, Null, Reference.
type Value interface {
	Kind() ValueKind
	// String restituisce la forma usata per la visualizzazione e l'interpolazione
	String() string
	isValue()
}

type (
	Boolean bool
	String  string
	Number  float64
	// List è una lista ordinata: le modifiche producono sempre una copia
	List []Value
	// Map associa chiavi stringa a valori: le modifiche producono sempre una copia
	Map  map[string]Value
	Null struct{}
	// Reference è un riferimento indiretto al nome di un'altra variabile
	Reference string
)

func (Boolean) Kind() ValueKind   { return KindBoolean }
func (String) Kind() ValueKind    { return KindString }
func (Number) Kind() ValueKind    { return KindNumber }
func (List) Kind() ValueKind      { return KindList }
func (Map) Kind() ValueKind       { return KindMap }
func (Null) Kind() ValueKind      { return KindNull }
func (Reference) Kind() ValueKind { return KindReference }

func (Boolean) isValue()   {}
func (String) isValue()    {}
func (Number) isValue()    {}
func (List) isValue()      {}
func (Map) isValue()       {}
func (Null) isValue()      {}
func (Reference) isValue() {}

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (s String) String() string  { return string(s) }
func (n Number) String() string  { return strconv.FormatFloat(float64(n), 'f', -1, 64) }
func (Null) String() string      { return "null" }
func (r Reference) String() string {
	return "$" + string(r)
}

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = quoteIfString(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m Map) String() string {
	keys := m.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + quoteIfString(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func quoteIfString(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}

// Append restituisce una nuova lista con v in coda
func (l List) Append(v Value) List {
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	return append(out, v)
}

// Without restituisce una nuova lista senza gli elementi strutturalmente uguali a v
func (l List) Without(v Value) List {
	out := make(List, 0, len(l))
	for _, item := range l {
		if !Equal(item, v) {
			out = append(out, item)
		}
	}
	return out
}

// Contains verifica l'appartenenza per uguaglianza strutturale
func (l List) Contains(v Value) bool {
	for _, item := range l {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// Keys restituisce le chiavi in ordine alfabetico
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With restituisce una nuova mappa con key associata a v
func (m Map) With(key string, v Value) Map {
	out := make(Map, len(m)+1)
	for k, item := range m {
		out[k] = item
	}
	out[key] = v
	return out
}

// Without restituisce una nuova mappa senza la chiave indicata
func (m Map) Without(key string) Map {
	out := make(Map, len(m))
	for k, item := range m {
		if k != key {
			out[k] = item
		}
	}
	return out
}

// ContainsValue verifica se uno dei valori è strutturalmente uguale a v
func (m Map) ContainsValue(v Value) bool {
	for _, item := range m {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// Equal confronta due valori per struttura. Varianti diverse non sono mai uguali.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Boolean:
		return av == b.(Boolean)
	case String:
		return av == b.(String)
	case Number:
		return av == b.(Number)
	case Null:
		return true
	case Reference:
		return av == b.(Reference)
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv := b.(Map)
		if len(av) != len(bv) {
			return false
		}
		for k, item := range av {
			other, ok := bv[k]
			if !ok || !Equal(item, other) {
				return false
			}
		}
		return true
	}
	panic("story: variante di Value sconosciuta")
}

// Native converte un valore in tipi Go nativi per la serializzazione JSON
func Native(v Value) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case Boolean:
		return bool(val)
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Null:
		return nil
	case Reference:
		return map[string]interface{}{"$ref": string(val)}
	case List:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Native(item)
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = Native(item)
		}
		return out
	}
	panic("story: variante di Value sconosciuta")
}
