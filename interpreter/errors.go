package interpreter

import (
	"errors"

	"vnscript-editor/story"
)

var (
	// ErrStoryEnded è la causa dell'errore restituito dall'istruzione end
	ErrStoryEnded = errors.New("storia terminata")
	// ErrTypeMismatch è la causa degli errori su operandi di tipo incompatibile
	ErrTypeMismatch = errors.New("tipi incompatibili")
	// ErrUndefined è la causa degli errori su entità non definite
	ErrUndefined = errors.New("non definito")
)

// RuntimeError interrompe l'esecuzione portando la diagnostica che la descrive
type RuntimeError struct {
	Diagnostic story.Diagnostic
	Cause      error
}

func (e *RuntimeError) Error() string {
	return e.Diagnostic.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func fail(cause error, r story.Range, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{
		Diagnostic: story.NewDiagnostic(story.DiagnosticRuntime, r, format, args...),
		Cause:      cause,
	}
}

// IsEnded indica se l'errore è la terminazione regolare di una storia
func IsEnded(err error) bool {
	return errors.Is(err, ErrStoryEnded)
}
