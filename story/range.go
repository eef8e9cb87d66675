package story

import "fmt"

// Range rappresenta un intervallo semiaperto [Start, End) di colonne su una riga di un file
type Range struct {
	File  string `json:"file"`
	Row   int    `json:"row"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Contains verifica se la posizione (row, col) cade dentro l'intervallo
func (r Range) Contains(row, col int) bool {
	return r.Row == row && col >= r.Start && col < r.End
}

// Cover restituisce l'intervallo che copre sia r che other (stessa riga)
func (r Range) Cover(other Range) Range {
	out := r
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// IsZero indica un intervallo mai assegnato
func (r Range) IsZero() bool {
	return r == Range{}
}

// String formatta l'intervallo come file:riga:colonna (base 1)
func (r Range) String() string {
	return fmt.Sprintf("%s:%d:%d", r.File, r.Row+1, r.Start+1)
}
