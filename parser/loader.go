package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound indica che il file richiesto non esiste
var ErrNotFound = errors.New("file non trovato")

// Loader legge il testo di un file del progetto.
// I percorsi usano sempre "/" come separatore e sono relativi alla radice del progetto.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}

// AssetChecker verifica l'esistenza di immagini e audio referenziati dalla storia
type AssetChecker interface {
	Exists(ctx context.Context, name string) bool
}

// ============================================
// DirLoader
// ============================================

// DirLoader legge i file da una cartella del filesystem
type DirLoader struct {
	Root string
}

// NewDirLoader crea un loader con radice nella cartella indicata
func NewDirLoader(root string) *DirLoader {
	return &DirLoader{Root: root}
}

func (l *DirLoader) resolve(name string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path.Clean("/"+name)))
}

// Load legge il file
func (l *DirLoader) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(l.resolve(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("errore lettura %s: %w", name, err)
	}
	return string(data), nil
}

// Exists verifica che il file esista e non sia una cartella
func (l *DirLoader) Exists(_ context.Context, name string) bool {
	info, err := os.Stat(l.resolve(name))
	return err == nil && !info.IsDir()
}

// ============================================
// MapLoader
// ============================================

// MapLoader serve i file da una mappa in memoria (test e buffer dell'editor)
type MapLoader map[string]string

// Load restituisce il contenuto associato al percorso
func (m MapLoader) Load(_ context.Context, name string) (string, error) {
	text, ok := m[path.Clean(name)]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return text, nil
}

// Exists verifica la presenza del percorso nella mappa
func (m MapLoader) Exists(_ context.Context, name string) bool {
	_, ok := m[path.Clean(name)]
	return ok
}

// ============================================
// OverlayLoader
// ============================================

// OverlayLoader sovrappone i buffer non salvati dell'editor a un loader di base
type OverlayLoader struct {
	Base Loader

	mu      sync.RWMutex
	overlay map[string]string
}

// NewOverlayLoader crea un overlay vuoto
func NewOverlayLoader(base Loader) *OverlayLoader {
	return &OverlayLoader{Base: base, overlay: make(map[string]string)}
}

// Set imposta il contenuto di un file in memoria
func (o *OverlayLoader) Set(name, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overlay[path.Clean(name)] = text
}

// Clear rimuove il contenuto in memoria di un file
func (o *OverlayLoader) Clear(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.overlay, path.Clean(name))
}

// Load preferisce il contenuto in memoria
func (o *OverlayLoader) Load(ctx context.Context, name string) (string, error) {
	o.mu.RLock()
	text, ok := o.overlay[path.Clean(name)]
	o.mu.RUnlock()
	if ok {
		return text, nil
	}
	return o.Base.Load(ctx, name)
}

// Exists delega al loader di base se implementa AssetChecker
func (o *OverlayLoader) Exists(ctx context.Context, name string) bool {
	o.mu.RLock()
	_, ok := o.overlay[path.Clean(name)]
	o.mu.RUnlock()
	if ok {
		return true
	}
	if checker, isChecker := o.Base.(AssetChecker); isChecker {
		return checker.Exists(ctx, name)
	}
	return false
}

// SplitLines divide il testo in righe fisiche, accettando sia \n che \r\n.
// Le righe non hanno limiti di lunghezza.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
