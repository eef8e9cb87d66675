package presenter

import (
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"vnscript-editor/interpreter"
)

// Options configura un presenter al momento della creazione
type Options struct {
	In  io.Reader
	Out io.Writer
	// RevealPerChar è la pausa tra un carattere e il successivo; 0 mostra il testo subito
	RevealPerChar time.Duration
	// Choices sono le scelte predefinite usate dai presenter non interattivi
	Choices []int
}

// Factory crea un presenter
type Factory func(opts Options) interpreter.Presenter

// registry mantiene i presenter registrati
var (
	registry     = make(map[string]Factory)
	registryLock sync.RWMutex
)

// RegisterPresenter registra un nuovo presenter
// Chiamato dai package dei singoli presenter nel loro init()
func RegisterPresenter(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[strings.ToLower(name)] = factory
}

// GetRegisteredPresenter crea il presenter registrato con quel nome, nil se non esiste
func GetRegisteredPresenter(name string, opts Options) interpreter.Presenter {
	registryLock.RLock()
	defer registryLock.RUnlock()

	factory, exists := registry[strings.ToLower(name)]
	if !exists {
		return nil
	}
	return factory(opts)
}

// GetAvailablePresenters restituisce i nomi dei presenter registrati in ordine alfabetico
func GetAvailablePresenters() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPresenterRegistered verifica se un presenter è registrato
func IsPresenterRegistered(name string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()

	_, exists := registry[strings.ToLower(name)]
	return exists
}
