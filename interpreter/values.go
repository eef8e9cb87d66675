package interpreter

import (
	"strings"

	"vnscript-editor/scanner"
	"vnscript-editor/story"
)

// Resolve segue i riferimenti indiretti nello scope indicato. Dopo
// story.MaxIndirection salti si ferma e restituisce l'ultimo valore ottenuto,
// anche se è ancora un riferimento.
func Resolve(def *story.Definition, s State, character string, v story.Value, r story.Range) (story.Value, error) {
	for i := 0; i < story.MaxIndirection; i++ {
		ref, ok := v.(story.Reference)
		if !ok {
			return v, nil
		}
		next, found := s.Lookup(def, character, string(ref))
		if !found {
			return nil, fail(ErrUndefined, r, "variabile '$%s' non definita", string(ref))
		}
		v = next
	}
	return v, nil
}

// Compare applica un operatore di confronto a due valori già risolti.
// Uguaglianza tra varianti diverse è un errore, tranne che con null.
// Gli ordinamenti richiedono due numeri; l'appartenenza richiede a sinistra
// una lista, una mappa o una stringa.
func Compare(op story.Comparison, left, right story.Value, r story.Range) (bool, error) {
	switch op {
	case story.CompareEqual, story.CompareNotEqual:
		if left.Kind() != right.Kind() && left.Kind() != story.KindNull && right.Kind() != story.KindNull {
			return false, mismatch(r, left, right)
		}
		eq := story.Equal(left, right)
		return eq == (op == story.CompareEqual), nil

	case story.CompareLess, story.CompareLessOrEqual, story.CompareGreater, story.CompareGreaterOrEqual:
		l, lok := left.(story.Number)
		n, rok := right.(story.Number)
		if !lok || !rok {
			return false, mismatch(r, left, right)
		}
		switch op {
		case story.CompareLess:
			return l < n, nil
		case story.CompareLessOrEqual:
			return l <= n, nil
		case story.CompareGreater:
			return l > n, nil
		default:
			return l >= n, nil
		}

	case story.CompareContains, story.CompareNotContains:
		var found bool
		switch container := left.(type) {
		case story.List:
			found = container.Contains(right)
		case story.Map:
			found = container.ContainsValue(right)
		case story.String:
			sub, ok := right.(story.String)
			if !ok {
				return false, mismatch(r, left, right)
			}
			found = strings.Contains(string(container), string(sub))
		default:
			return false, mismatch(r, left, right)
		}
		return found == (op == story.CompareContains), nil
	}
	return false, fail(ErrTypeMismatch, r, "operatore di confronto sconosciuto")
}

func mismatch(r story.Range, left, right story.Value) *RuntimeError {
	return fail(ErrTypeMismatch, r, "confronto non valido tra %s (%s) e %s (%s)", left.Kind(), left, right.Kind(), right)
}

// add somma operand al valore corrente secondo il tipo dichiarato della variabile
func add(declared story.ValueKind, current, operand story.Value, key *story.Value, r story.Range) (story.Value, error) {
	switch declared {
	case story.KindNumber:
		cur, ok1 := current.(story.Number)
		n, ok2 := operand.(story.Number)
		if !ok1 || !ok2 {
			return nil, fail(ErrTypeMismatch, r, "impossibile sommare %s a %s", operand.Kind(), current.Kind())
		}
		return cur + n, nil
	case story.KindString:
		cur, ok1 := current.(story.String)
		s, ok2 := operand.(story.String)
		if !ok1 || !ok2 {
			return nil, fail(ErrTypeMismatch, r, "impossibile concatenare %s a %s", operand.Kind(), current.Kind())
		}
		return cur + s, nil
	case story.KindList:
		cur, ok := current.(story.List)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la variabile contiene %s, attesa una lista", current.Kind())
		}
		return cur.Append(operand), nil
	case story.KindMap:
		cur, ok := current.(story.Map)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la variabile contiene %s, attesa una mappa", current.Kind())
		}
		if key == nil {
			return nil, fail(ErrTypeMismatch, r, "serve una chiave per aggiungere a una mappa")
		}
		k, ok := (*key).(story.String)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la chiave di una mappa deve essere string, trovato %s", (*key).Kind())
		}
		return cur.With(string(k), operand), nil
	}
	return nil, fail(ErrTypeMismatch, r, "impossibile aggiungere a una variabile di tipo %s", declared)
}

// subtract toglie operand dal valore corrente: differenza per i numeri,
// rimozione degli elementi uguali per le liste e della chiave per le mappe
func subtract(declared story.ValueKind, current, operand story.Value, r story.Range) (story.Value, error) {
	switch declared {
	case story.KindNumber:
		cur, ok1 := current.(story.Number)
		n, ok2 := operand.(story.Number)
		if !ok1 || !ok2 {
			return nil, fail(ErrTypeMismatch, r, "impossibile sottrarre %s da %s", operand.Kind(), current.Kind())
		}
		return cur - n, nil
	case story.KindList:
		cur, ok := current.(story.List)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la variabile contiene %s, attesa una lista", current.Kind())
		}
		return cur.Without(operand), nil
	case story.KindMap:
		cur, ok := current.(story.Map)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la variabile contiene %s, attesa una mappa", current.Kind())
		}
		k, ok := operand.(story.String)
		if !ok {
			return nil, fail(ErrTypeMismatch, r, "la chiave di una mappa deve essere string, trovato %s", operand.Kind())
		}
		return cur.Without(string(k)), nil
	}
	return nil, fail(ErrTypeMismatch, r, "impossibile sottrarre da una variabile di tipo %s", declared)
}

// Interpolate sostituisce le occorrenze $nome nel testo con il valore corrente.
// I nomi non risolvibili restano invariati.
func Interpolate(def *story.Definition, s State, character, text string) string {
	spans := scanner.FindVariables(text)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span[0]])
		name := text[span[0]+1 : span[1]]
		last = span[1]

		v, found := s.Lookup(def, character, name)
		if !found {
			b.WriteString(text[span[0]:span[1]])
			continue
		}
		resolved, err := Resolve(def, s, character, v, story.Range{})
		if err != nil {
			b.WriteString(text[span[0]:span[1]])
			continue
		}
		b.WriteString(resolved.String())
	}
	b.WriteString(text[last:])
	return b.String()
}
