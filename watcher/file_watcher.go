package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vnscript-editor/logging"
	"vnscript-editor/parser"
	"vnscript-editor/story"
	"vnscript-editor/validator"
)

// Tipi di evento
const (
	EventCreated   = "created"
	EventModified  = "modified"
	EventDeleted   = "deleted"
	EventRenamed   = "renamed"
	EventReloaded  = "reloaded"
	EventLoadError = "load_error"
)

// FileWatcher monitora la cartella di un progetto e lo rianalizza quando un file cambia
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	root         string
	entry        string
	extension    string
	loader       parser.Loader
	debounceTime time.Duration
	onEvent      func(WatchEvent)
	onReload     func(*parser.Project, []story.Diagnostic)
	eventChan    chan WatchEvent
	stopChan     chan struct{}
	log          *slog.Logger

	mu        sync.Mutex
	isRunning bool
	timer     *time.Timer
	project   *parser.Project
	diags     []story.Diagnostic
}

// WatchEvent rappresenta un evento del watcher
type WatchEvent struct {
	Type        string             `json:"type"`                  // created, modified, deleted, renamed, reloaded, load_error
	Path        string             `json:"path"`                  // File modificato (vuoto per i ricaricamenti)
	Timestamp   time.Time          `json:"timestamp"`             // Quando è successo
	Diagnostics []story.Diagnostic `json:"diagnostics,omitempty"` // Solo per reloaded
	Error       string             `json:"error,omitempty"`       // Solo per load_error
}

// WatcherConfig configurazione per il watcher
type WatcherConfig struct {
	Root         string                                    // Cartella del progetto
	Entry        string                                    // File di ingresso, relativo a Root
	Extension    string                                    // Estensione dei sorgenti (default: .vns)
	Loader       parser.Loader                             // Loader da usare (default: DirLoader su Root)
	DebounceTime time.Duration                             // Tempo di debounce (default: 300ms)
	OnEvent      func(WatchEvent)                          // Callback per eventi
	OnReload     func(*parser.Project, []story.Diagnostic) // Callback dopo ogni ricaricamento riuscito
}

// NewFileWatcher crea un nuovo file watcher sulla cartella del progetto e sulle sue sottocartelle
func NewFileWatcher(config WatcherConfig) (*FileWatcher, error) {
	if config.Root == "" {
		config.Root = "."
	}
	if config.Extension == "" {
		config.Extension = ".vns"
	}
	if config.DebounceTime == 0 {
		config.DebounceTime = 300 * time.Millisecond
	}
	if config.Loader == nil {
		config.Loader = parser.NewDirLoader(config.Root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("errore creazione watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:      watcher,
		root:         config.Root,
		entry:        config.Entry,
		extension:    config.Extension,
		loader:       config.Loader,
		debounceTime: config.DebounceTime,
		onEvent:      config.OnEvent,
		onReload:     config.OnReload,
		eventChan:    make(chan WatchEvent, 100),
		stopChan:     make(chan struct{}),
		log:          logging.WithComponent("watcher"),
	}

	err = filepath.WalkDir(config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != config.Root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.AddPath(path)
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("errore aggiunta path %s: %w", config.Root, err)
	}

	return fw, nil
}

// Start avvia il file watcher
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.isRunning {
		return fmt.Errorf("watcher già in esecuzione")
	}
	fw.isRunning = true
	fw.log.Info("🚀 File watcher avviato!", slog.String("root", fw.root), slog.String("entry", fw.entry))

	go fw.loop()
	return nil
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error("❌ Errore watcher", slog.Any("error", err))

		case <-fw.stopChan:
			fw.log.Info("🛑 File watcher fermato")
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	// Le nuove sottocartelle vanno aggiunte al monitoraggio
	if event.Has(fsnotify.Create) {
		if isDir(event.Name) {
			if err := fw.AddPath(event.Name); err != nil {
				fw.log.Warn("⚠️ impossibile monitorare la cartella", slog.String("path", event.Name), slog.Any("error", err))
			}
			return
		}
	}

	// Ignora i file con un'altra estensione
	if !strings.HasSuffix(event.Name, fw.extension) {
		return
	}

	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreated
	case event.Has(fsnotify.Write):
		eventType = EventModified
	case event.Has(fsnotify.Remove):
		eventType = EventDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventRenamed
	default:
		return
	}

	fw.log.Debug("📝 File cambiato", slog.String("type", eventType), slog.String("file", filepath.Base(event.Name)))
	fw.emit(WatchEvent{Type: eventType, Path: event.Name, Timestamp: time.Now()})

	// Debounce: un solo ricaricamento per una raffica di modifiche
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounceTime, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		fw.Reload(ctx)
	})
}

// Reload rianalizza e valida il progetto, aggiorna l'ultimo risultato e
// notifica gli ascoltatori
func (fw *FileWatcher) Reload(ctx context.Context) (*parser.Project, []story.Diagnostic, error) {
	start := time.Now()
	proj, diags, err := validator.Check(ctx, fw.loader, fw.entry)
	if err != nil {
		fw.log.Error("❌ Caricamento fallito", slog.String("entry", fw.entry), slog.Any("error", err))
		fw.emit(WatchEvent{Type: EventLoadError, Path: fw.entry, Timestamp: time.Now(), Error: err.Error()})
		return nil, nil, err
	}

	fw.mu.Lock()
	fw.project, fw.diags = proj, diags
	fw.mu.Unlock()

	if len(diags) == 0 {
		fw.log.Info("✅ Progetto ricaricato", slog.Int("files", len(proj.Order)), slog.Duration("elapsed", time.Since(start)))
	} else {
		fw.log.Info("⚠️ Progetto ricaricato con errori", slog.Int("diagnostics", len(diags)), slog.Duration("elapsed", time.Since(start)))
	}

	if fw.onReload != nil {
		fw.onReload(proj, diags)
	}
	fw.emit(WatchEvent{Type: EventReloaded, Timestamp: time.Now(), Diagnostics: diags})
	return proj, diags, nil
}

// Last restituisce l'ultimo progetto caricato con le sue diagnostiche
func (fw *FileWatcher) Last() (*parser.Project, []story.Diagnostic) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.project, fw.diags
}

// emit invia l'evento alla callback e al canale. Se il canale è pieno
// l'evento viene scartato.
func (fw *FileWatcher) emit(ev WatchEvent) {
	if fw.onEvent != nil {
		fw.onEvent(ev)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.isRunning {
		return
	}
	select {
	case fw.eventChan <- ev:
	default:
		fw.log.Warn("⚠️ canale eventi pieno, evento scartato", slog.String("type", ev.Type))
	}
}

// Stop ferma il file watcher
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.isRunning {
		fw.mu.Unlock()
		return fmt.Errorf("watcher non in esecuzione")
	}
	fw.isRunning = false
	if fw.timer != nil {
		fw.timer.Stop()
	}
	close(fw.stopChan)
	close(fw.eventChan)
	fw.mu.Unlock()

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("errore chiusura watcher: %w", err)
	}
	return nil
}

// Events restituisce il canale degli eventi
func (fw *FileWatcher) Events() <-chan WatchEvent {
	return fw.eventChan
}

// IsRunning verifica se il watcher è attivo
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.isRunning
}

// Root restituisce la cartella monitorata
func (fw *FileWatcher) Root() string {
	return fw.root
}

// Entry restituisce il file di ingresso del progetto
func (fw *FileWatcher) Entry() string {
	return fw.entry
}

// AddPath aggiunge un path da monitorare
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(path); err != nil {
		return fmt.Errorf("errore aggiunta path: %w", err)
	}
	fw.log.Debug("👀 Watching", slog.String("path", path))
	return nil
}

// WatchedPaths restituisce i path monitorati
func (fw *FileWatcher) WatchedPaths() []string {
	return fw.watcher.WatchList()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
