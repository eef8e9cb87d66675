package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vnscript-editor/grammar"
	"vnscript-editor/logging"
	"vnscript-editor/parser"
	"vnscript-editor/presenter"
	"vnscript-editor/simulator"
	"vnscript-editor/story"
	"vnscript-editor/validator"
	"vnscript-editor/version"
	"vnscript-editor/watcher"
)

// errNoProject indica che nessun progetto è stato ancora caricato
var errNoProject = errors.New("nessun progetto caricato")

// Server rappresenta il server API usato dall'editor
type Server struct {
	router  *gin.Engine
	grammar *grammar.Grammar
	port    int
	log     *slog.Logger

	revealPerChar time.Duration
	debounce      time.Duration
	extension     string

	// Progetto corrente
	projectMutex sync.RWMutex
	root         string
	entry        string
	loader       *parser.OverlayLoader
	project      *parser.Project
	diagnostics  []story.Diagnostic

	watcher      *watcher.FileWatcher
	watcherMutex sync.Mutex

	wsMutex    sync.Mutex
	wsClients  map[*wsClient]bool
	wsUpgrader websocket.Upgrader
}

// ServerConfig configurazione del server
type ServerConfig struct {
	Port       int
	EnableCORS bool
	Debug      bool
	// Root ed Entry del progetto da caricare all'avvio (opzionali)
	Root  string
	Entry string
	// RevealPerChar è la velocità di rivelazione del testo in /ws/play
	RevealPerChar time.Duration
	// Debounce e Extension configurano il watcher
	Debounce  time.Duration
	Extension string
}

// NewServer crea un nuovo server API
func NewServer(config ServerConfig) *Server {
	// Imposta modalità Gin
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// CORS se abilitato
	if config.EnableCORS {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	server := &Server{
		router:        router,
		grammar:       grammar.New(),
		port:          config.Port,
		log:           logging.WithComponent("api"),
		revealPerChar: config.RevealPerChar,
		debounce:      config.Debounce,
		extension:     config.Extension,
		wsClients:     make(map[*wsClient]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // L'editor gira in locale
			},
		},
	}

	if config.Entry != "" {
		if _, err := server.open(context.Background(), config.Root, config.Entry); err != nil {
			server.log.Warn("⚠️ progetto iniziale non caricato", slog.String("entry", config.Entry), slog.Any("error", err))
		}
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// requestLogger registra ogni richiesta con il logger strutturato
func requestLogger() gin.HandlerFunc {
	log := logging.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("🌐 richiesta",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

// setupRoutes configura tutti gli endpoint
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// Health check
		api.GET("/health", s.healthCheck)
		api.GET("/version", s.getVersion)

		// Project endpoints
		api.POST("/project/load", s.loadProject)
		api.POST("/project/update", s.updateFile)
		api.POST("/project/revert", s.revertFile)
		api.GET("/project/diagnostics", s.getDiagnostics)
		api.GET("/project/passages", s.getPassages)
		api.GET("/project/passage/:id", s.getPassage)

		// Language service endpoints
		lang := api.Group("/lang")
		lang.POST("/completion", s.completion)
		lang.POST("/hover", s.hover)
		lang.POST("/signature", s.signature)
		lang.POST("/definition", s.definition)
		lang.POST("/references", s.references)
		lang.POST("/rename", s.rename)

		// Path Simulator endpoints
		api.POST("/simulator/validate", s.validatePath)
		api.POST("/simulator/simulate", s.simulatePath)
		api.POST("/simulator/suggest", s.suggestPaths)

		// Watcher endpoints
		api.POST("/watch/start", s.startWatcher)
		api.POST("/watch/stop", s.stopWatcher)
		api.GET("/watch/status", s.getWatcherStatus)

		// Utils endpoints
		api.GET("/presenters", s.getPresenters)
	}

	// WebSocket endpoints
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/ws/play", s.handlePlay)
}

// Handler restituisce l'handler HTTP del server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start avvia il server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info(fmt.Sprintf("🚀 Server avviato su http://localhost%s", addr))
	s.log.Info(fmt.Sprintf("📚 API disponibile su http://localhost%s/api", addr))
	s.log.Info(fmt.Sprintf("🔌 WebSocket su ws://localhost%s/ws", addr))
	return s.router.Run(addr)
}

// ============================================
// Progetto corrente
// ============================================

// open imposta il progetto corrente e lo carica
func (s *Server) open(ctx context.Context, root, entry string) ([]story.Diagnostic, error) {
	if root == "" {
		root = "."
	}
	s.projectMutex.Lock()
	s.root, s.entry = root, entry
	s.loader = parser.NewOverlayLoader(parser.NewDirLoader(root))
	s.project, s.diagnostics = nil, nil
	s.projectMutex.Unlock()

	return s.reload(ctx)
}

// reload rianalizza il progetto corrente con i buffer in memoria
func (s *Server) reload(ctx context.Context) ([]story.Diagnostic, error) {
	s.projectMutex.RLock()
	loader, entry := s.loader, s.entry
	s.projectMutex.RUnlock()
	if loader == nil {
		return nil, errNoProject
	}

	proj, diags, err := validator.Check(ctx, loader, entry)
	if err != nil {
		return nil, err
	}
	s.setProject(proj, diags)
	return diags, nil
}

func (s *Server) setProject(proj *parser.Project, diags []story.Diagnostic) {
	s.projectMutex.Lock()
	s.project, s.diagnostics = proj, diags
	s.projectMutex.Unlock()
}

// current restituisce l'ultimo progetto caricato
func (s *Server) current() (*parser.Project, []story.Diagnostic, error) {
	s.projectMutex.RLock()
	defer s.projectMutex.RUnlock()
	if s.project == nil {
		return nil, nil, errNoProject
	}
	return s.project, s.diagnostics, nil
}

// requireProject scrive un errore 409 se non c'è un progetto caricato
func (s *Server) requireProject(c *gin.Context) (*parser.Project, []story.Diagnostic, bool) {
	proj, diags, err := s.current()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return proj, diags, true
}

// ============================================
// Handlers
// ============================================

// healthCheck verifica lo stato del server
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.String(),
	})
}

// getVersion restituisce la versione dell'editor
func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": version.String(),
	})
}

// LoadProjectRequest richiesta di caricamento progetto
type LoadProjectRequest struct {
	Root  string `json:"root"`
	Entry string `json:"entry" binding:"required"`
}

// loadProject carica un progetto dal filesystem
func (s *Server) loadProject(c *gin.Context) {
	var req LoadProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	diags, err := s.open(c.Request.Context(), req.Root, req.Entry)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.respondProject(c, diags)
}

// UpdateFileRequest richiesta di aggiornamento di un buffer
type UpdateFileRequest struct {
	File string `json:"file" binding:"required"`
	Text string `json:"text"`
}

// updateFile imposta il contenuto non salvato di un file e rianalizza il progetto
func (s *Server) updateFile(c *gin.Context) {
	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.projectMutex.RLock()
	loader := s.loader
	s.projectMutex.RUnlock()
	if loader == nil {
		c.JSON(http.StatusConflict, gin.H{"error": errNoProject.Error()})
		return
	}
	loader.Set(req.File, req.Text)

	diags, err := s.reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.respondProject(c, diags)
}

// RevertFileRequest richiesta di rimozione di un buffer
type RevertFileRequest struct {
	File string `json:"file" binding:"required"`
}

// revertFile scarta il contenuto non salvato di un file
func (s *Server) revertFile(c *gin.Context) {
	var req RevertFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.projectMutex.RLock()
	loader := s.loader
	s.projectMutex.RUnlock()
	if loader == nil {
		c.JSON(http.StatusConflict, gin.H{"error": errNoProject.Error()})
		return
	}
	loader.Clear(req.File)

	diags, err := s.reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.respondProject(c, diags)
}

func (s *Server) respondProject(c *gin.Context, diags []story.Diagnostic) {
	proj, _, ok := s.requireProject(c)
	if !ok {
		return
	}
	svc := s.service(proj)
	c.JSON(http.StatusOK, gin.H{
		"success":     len(diags) == 0,
		"entry":       proj.Entry,
		"files":       proj.Order,
		"passages":    proj.Story.PassageOrder,
		"characters":  sortedKeys(proj.Story.Characters),
		"diagnostics": svc.Diagnostics(diags),
	})
}

// getDiagnostics restituisce le diagnostiche dell'ultimo caricamento
func (s *Server) getDiagnostics(c *gin.Context) {
	proj, diags, ok := s.requireProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     len(diags) == 0,
		"count":       len(diags),
		"diagnostics": s.service(proj).Diagnostics(diags),
	})
}

// getPassages ottiene tutti i passaggi con i loro collegamenti
func (s *Server) getPassages(c *gin.Context) {
	proj, _, ok := s.requireProject(c)
	if !ok {
		return
	}

	sim := simulator.NewPathSimulator(proj.Story)
	passages := make([]gin.H, 0, len(proj.Story.PassageOrder))
	for _, id := range proj.Story.PassageOrder {
		p := proj.Story.Passages[id]
		passages = append(passages, gin.H{
			"id":      id,
			"range":   p.IDRange,
			"actions": len(p.Actions),
			"links":   sim.Links(id),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"passages": passages,
		"count":    len(passages),
	})
}

// getPassage ottiene un singolo passaggio
func (s *Server) getPassage(c *gin.Context) {
	proj, _, ok := s.requireProject(c)
	if !ok {
		return
	}

	id := c.Param("id")
	p, exists := proj.Story.Passages[id]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Passaggio non trovato"})
		return
	}

	f, _ := proj.File(p.IDRange.File)
	var source []string
	if f != nil {
		// Righe del passaggio: dalla definizione all'ultima azione
		last := p.IDRange.Row
		story.Walk(p.Actions, func(a story.Action) {
			if r := a.Range(); r.Row > last {
				last = r.Row
			}
		})
		for row := p.IDRange.Row; row <= last; row++ {
			source = append(source, f.Line(row))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"passage": gin.H{
			"id":      id,
			"range":   p.IDRange,
			"actions": len(p.Actions),
			"links":   simulator.NewPathSimulator(proj.Story).Links(id),
			"source":  source,
		},
	})
}

// getPresenters elenca i presenter registrati
func (s *Server) getPresenters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"presenters": presenter.GetAvailablePresenters(),
	})
}

// ============================================
// Watcher
// ============================================

// StartWatcherRequest richiesta avvio watcher
type StartWatcherRequest struct {
	DebounceMs int `json:"debounce_ms"`
}

// startWatcher avvia il file watcher sulla cartella del progetto corrente
func (s *Server) startWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher != nil && s.watcher.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Watcher già in esecuzione"})
		return
	}

	var req StartWatcherRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	s.projectMutex.RLock()
	root, entry, loader := s.root, s.entry, s.loader
	s.projectMutex.RUnlock()
	if loader == nil {
		c.JSON(http.StatusConflict, gin.H{"error": errNoProject.Error()})
		return
	}

	debounce := s.debounce
	if req.DebounceMs > 0 {
		debounce = time.Duration(req.DebounceMs) * time.Millisecond
	}

	// Crea watcher
	fw, err := watcher.NewFileWatcher(watcher.WatcherConfig{
		Root:         root,
		Entry:        entry,
		Extension:    s.extension,
		Loader:       loader,
		DebounceTime: debounce,
		OnReload:     s.setProject,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := fw.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.watcher = fw

	// Invia eventi ai client WebSocket
	go s.broadcastWatcherEvents(fw)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher avviato",
		"root":    root,
		"paths":   fw.WatchedPaths(),
	})
}

// stopWatcher ferma il file watcher
func (s *Server) stopWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher == nil || !s.watcher.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Watcher non in esecuzione"})
		return
	}

	if err := s.watcher.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.watcher = nil

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher fermato",
	})
}

// getWatcherStatus ottiene lo stato del watcher
func (s *Server) getWatcherStatus(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	isRunning := s.watcher != nil && s.watcher.IsRunning()
	status := gin.H{"running": isRunning}
	if isRunning {
		status["root"] = s.watcher.Root()
		status["entry"] = s.watcher.Entry()
	}
	c.JSON(http.StatusOK, status)
}

// ============================================
// Path Simulator Handlers
// ============================================

// ValidatePathRequest richiesta di validazione path
type ValidatePathRequest struct {
	Path []string `json:"path" binding:"required"`
}

// validatePath valida un percorso
func (s *Server) validatePath(c *gin.Context) {
	var req ValidatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proj, _, ok := s.requireProject(c)
	if !ok {
		return
	}

	errs := simulator.NewPathSimulator(proj.Story).ValidatePath(req.Path)

	c.JSON(http.StatusOK, gin.H{
		"valid":  len(errs) == 0,
		"path":   req.Path,
		"errors": errs,
	})
}

// SimulatePathRequest richiesta di simulazione
type SimulatePathRequest struct {
	Start   string `json:"start"`
	Choices []int  `json:"choices"`
}

// simulatePath esegue la storia con le scelte indicate
func (s *Server) simulatePath(c *gin.Context) {
	var req SimulatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proj, diags, ok := s.requireProject(c)
	if !ok {
		return
	}
	if len(diags) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":     false,
			"error":       "il progetto contiene errori",
			"diagnostics": s.service(proj).Diagnostics(diags),
		})
		return
	}

	result := simulator.NewPathSimulator(proj.Story).SimulatePath(c.Request.Context(), req.Start, req.Choices)
	c.JSON(http.StatusOK, result)
}

// SuggestPathsRequest richiesta di suggerimento percorsi
type SuggestPathsRequest struct {
	StartPassage string `json:"start_passage" binding:"required"`
	MaxDepth     int    `json:"max_depth"`
}

// suggestPaths suggerisce percorsi validi
func (s *Server) suggestPaths(c *gin.Context) {
	var req SuggestPathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proj, _, ok := s.requireProject(c)
	if !ok {
		return
	}

	// Default max depth
	if req.MaxDepth == 0 || req.MaxDepth > simulator.MaxSuggestedPaths {
		req.MaxDepth = 5
	}

	paths := simulator.NewPathSimulator(proj.Story).GetSuggestedPaths(req.StartPassage, req.MaxDepth)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"start_passage": req.StartPassage,
		"max_depth":     req.MaxDepth,
		"paths":         paths,
		"count":         len(paths),
	})
}

// ============================================
// WebSocket
// ============================================

// wsClient serializza le scritture su una connessione
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleWebSocket gestisce connessioni WebSocket
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("Errore upgrade WebSocket", slog.Any("error", err))
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	s.wsMutex.Lock()
	s.wsClients[client] = true
	total := len(s.wsClients)
	s.wsMutex.Unlock()
	s.log.Info("🔌 Client WebSocket connesso", slog.Int("total", total))

	// Mantieni la connessione aperta
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsMutex.Lock()
			delete(s.wsClients, client)
			total = len(s.wsClients)
			s.wsMutex.Unlock()
			s.log.Info("🔌 Client WebSocket disconnesso", slog.Int("total", total))
			break
		}
	}
}

// broadcast invia un messaggio a tutti i client connessi
func (s *Server) broadcast(message interface{}) {
	s.wsMutex.Lock()
	clients := make([]*wsClient, 0, len(s.wsClients))
	for client := range s.wsClients {
		clients = append(clients, client)
	}
	s.wsMutex.Unlock()

	for _, client := range clients {
		if err := client.send(message); err != nil {
			s.log.Warn("Errore invio WebSocket", slog.Any("error", err))
			client.conn.Close()
			s.wsMutex.Lock()
			delete(s.wsClients, client)
			s.wsMutex.Unlock()
		}
	}
}

// broadcastWatcherEvents invia eventi del watcher ai client WebSocket
func (s *Server) broadcastWatcherEvents(fw *watcher.FileWatcher) {
	for event := range fw.Events() {
		message := gin.H{
			"type":      event.Type,
			"path":      filepath.Base(event.Path),
			"full_path": event.Path,
			"timestamp": event.Timestamp,
		}
		if event.Type == watcher.EventReloaded {
			if proj, _, err := s.current(); err == nil {
				message["diagnostics"] = s.service(proj).Diagnostics(event.Diagnostics)
			}
		}
		if event.Error != "" {
			message["error"] = event.Error
		}
		s.broadcast(message)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
