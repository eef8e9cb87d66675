package story

import (
	"fmt"
	"sort"
	"strings"
)

// DiagnosticKind distingue l'origine di una diagnostica
type DiagnosticKind int

const (
	DiagnosticSyntax DiagnosticKind = iota
	DiagnosticSemantic
	DiagnosticRuntime
)

// String restituisce il nome leggibile del tipo di diagnostica
func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticSyntax:
		return "errore di sintassi"
	case DiagnosticSemantic:
		return "errore semantico"
	case DiagnosticRuntime:
		return "errore di esecuzione"
	}
	return "errore"
}

// Diagnostic rappresenta un problema legato a un punto preciso del sorgente.
// La severità è sempre "error".
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Range   Range          `json:"range"`
	Message string         `json:"message"`
}

// NewDiagnostic crea una diagnostica con messaggio formattato
func NewDiagnostic(kind DiagnosticKind, r Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: kind, Range: r, Message: fmt.Sprintf(format, args...)}
}

// Error implementa l'interfaccia error
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Range, d.Kind, d.Message)
}

// Format produce il messaggio con l'estratto della riga e il cursore sotto l'intervallo
//
//	start.vns:3:9: errore di sintassi: atteso fine riga, trovato 'x'
//	   3 |   narrate "hi" x
//	     |                ^
func (d Diagnostic) Format(line string) string {
	var b strings.Builder
	b.WriteString(d.Error())
	b.WriteString("\n")

	gutter := fmt.Sprintf("%4d | ", d.Range.Row+1)
	b.WriteString(gutter)
	b.WriteString(strings.TrimRight(line, "\r\n"))
	b.WriteString("\n")

	b.WriteString(strings.Repeat(" ", len(gutter)-2))
	b.WriteString("| ")
	// I tab vengono mantenuti per allineare il cursore con la riga stampata
	for i := 0; i < d.Range.Start && i < len(line); i++ {
		if line[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	width := d.Range.End - d.Range.Start
	if width < 1 {
		width = 1
	}
	b.WriteString(strings.Repeat("^", width))
	return b.String()
}

// SortDiagnostics ordina per file, riga e colonna
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Range, diags[j].Range
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Start < b.Start
	})
}
