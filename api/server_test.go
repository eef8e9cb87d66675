package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const testStory = `define global variable $gold is 0
define passage start
  narrate "Ciao"
  option "Avanti"
    add 1 to $gold
    go to finale
define passage finale
  narrate "Oro: $gold"
  end
`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, testStory)
}

func newTestServerWith(t *testing.T, text string) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.vns"), []byte(text), 0o644); err != nil {
		t.Fatalf("Error: %v", err)
	}
	return NewServer(ServerConfig{Debug: true, Root: dir, Entry: "main.vns", Debounce: 20 * time.Millisecond})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Error: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	out := map[string]interface{}{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", w.Body.String(), err)
	}
	return w.Code, out
}

// ============================================
// Test: progetto
// ============================================

func TestHealth(t *testing.T) {
	s := NewServer(ServerConfig{Debug: true})

	code, body := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected ok, got %d %v", code, body)
	}
}

func TestRequiresProject(t *testing.T) {
	s := NewServer(ServerConfig{Debug: true})

	code, _ := doJSON(t, s, http.MethodGet, "/api/project/diagnostics", nil)
	if code != http.StatusConflict {
		t.Errorf("Expected 409 without a project, got %d", code)
	}
}

func TestLoadProject(t *testing.T) {
	s := NewServer(ServerConfig{Debug: true})
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "main.vns"), []byte(testStory), 0o644)

	code, body := doJSON(t, s, http.MethodPost, "/api/project/load", gin.H{"root": dir, "entry": "main.vns"})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("Expected a clean load, got %d %v", code, body)
	}
	passages := body["passages"].([]interface{})
	if len(passages) != 2 || passages[0] != "start" {
		t.Errorf("Unexpected passages: %v", passages)
	}

	code, _ = doJSON(t, s, http.MethodPost, "/api/project/load", gin.H{"root": dir, "entry": "missing.vns"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for a missing entry, got %d", code)
	}
	t.Log("✅ Progetto caricato")
}

func TestUpdateAndRevertBuffer(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/project/update", gin.H{
		"file": "main.vns",
		"text": "define passage start\n  go to nowhere\n",
	})
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %v", code, body)
	}
	diags := body["diagnostics"].([]interface{})
	if body["success"] != false || len(diags) != 1 {
		t.Fatalf("Expected one diagnostic, got %v", body)
	}
	d := diags[0].(map[string]interface{})
	if !strings.Contains(d["formatted"].(string), "go to nowhere") {
		t.Errorf("Expected source excerpt, got %v", d["formatted"])
	}

	_, body = doJSON(t, s, http.MethodGet, "/api/project/diagnostics", nil)
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 stored diagnostic, got %v", body["count"])
	}

	code, body = doJSON(t, s, http.MethodPost, "/api/project/revert", gin.H{"file": "main.vns"})
	if code != http.StatusOK || body["success"] != true {
		t.Errorf("Expected a clean project after revert, got %d %v", code, body)
	}
}

func TestPassages(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodGet, "/api/project/passages", nil)
	passages := body["passages"].([]interface{})
	if len(passages) != 2 {
		t.Fatalf("Expected 2 passages, got %v", passages)
	}
	links := passages[0].(map[string]interface{})["links"].([]interface{})
	if len(links) != 1 || links[0] != "finale" {
		t.Errorf("Expected start to link to finale, got %v", links)
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/project/passage/finale", nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	source := body["passage"].(map[string]interface{})["source"].([]interface{})
	if len(source) != 3 {
		t.Errorf("Expected 3 source lines, got %v", source)
	}

	code, _ = doJSON(t, s, http.MethodGet, "/api/project/passage/missing", nil)
	if code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}

// ============================================
// Test: servizio di linguaggio
// ============================================

func TestLanguageEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodPost, "/api/lang/completion", gin.H{"file": "main.vns", "row": 2, "col": 2})
	found := false
	for _, item := range body["items"].([]interface{}) {
		if item.(map[string]interface{})["label"] == "narrate" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 'narrate' among completions, got %v", body["items"])
	}

	_, body = doJSON(t, s, http.MethodPost, "/api/lang/references", gin.H{"file": "main.vns", "row": 0, "col": 24})
	if body["count"] != float64(3) {
		t.Errorf("Expected 3 references to $gold, got %v", body)
	}

	_, body = doJSON(t, s, http.MethodPost, "/api/lang/rename", gin.H{"file": "main.vns", "row": 0, "col": 24, "new_name": "$oro"})
	if body["count"] != float64(3) {
		t.Errorf("Expected 3 edits, got %v", body)
	}

	code, _ := doJSON(t, s, http.MethodPost, "/api/lang/rename", gin.H{"file": "main.vns", "row": 2, "col": 3, "new_name": "racconta"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 when renaming a keyword, got %d", code)
	}

	code, _ = doJSON(t, s, http.MethodPost, "/api/lang/hover", gin.H{"file": "main.vns", "row": 9, "col": 0})
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 on an empty position, got %d", code)
	}

	_, body = doJSON(t, s, http.MethodPost, "/api/lang/signature", gin.H{"file": "main.vns", "row": 5, "col": 10})
	sig, ok := body["signature"].(map[string]interface{})
	if !ok || sig["label"] != "go to <passaggio>" {
		t.Errorf("Unexpected signature: %v", body)
	}
}

// ============================================
// Test: simulatore
// ============================================

func TestSimulatorEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodPost, "/api/simulator/simulate", gin.H{"choices": []int{0}})
	if body["outcome"] != "end" {
		t.Fatalf("Expected outcome end, got %v", body)
	}
	path := body["path"].([]interface{})
	if len(path) != 2 || path[1] != "finale" {
		t.Errorf("Unexpected path: %v", path)
	}

	_, body = doJSON(t, s, http.MethodPost, "/api/simulator/validate", gin.H{"path": []string{"finale", "start"}})
	if body["valid"] != false {
		t.Errorf("Expected an invalid path, got %v", body)
	}

	_, body = doJSON(t, s, http.MethodPost, "/api/simulator/suggest", gin.H{"start_passage": "start"})
	if body["count"] != float64(1) {
		t.Errorf("Expected one suggested path, got %v", body)
	}
}

// ============================================
// Test: watcher e registry
// ============================================

func TestWatcherLifecycle(t *testing.T) {
	s := newTestServer(t)

	_, body := doJSON(t, s, http.MethodGet, "/api/watch/status", nil)
	if body["running"] != false {
		t.Fatalf("Expected watcher stopped, got %v", body)
	}

	code, body := doJSON(t, s, http.MethodPost, "/api/watch/start", nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %v", code, body)
	}
	code, _ = doJSON(t, s, http.MethodPost, "/api/watch/start", nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 on double start, got %d", code)
	}

	code, _ = doJSON(t, s, http.MethodPost, "/api/watch/stop", nil)
	if code != http.StatusOK {
		t.Errorf("Expected 200, got %d", code)
	}
	_, body = doJSON(t, s, http.MethodGet, "/api/watch/status", nil)
	if body["running"] != false {
		t.Errorf("Expected watcher stopped, got %v", body)
	}
}

func TestPresenters(t *testing.T) {
	s := NewServer(ServerConfig{Debug: true})

	_, body := doJSON(t, s, http.MethodGet, "/api/presenters", nil)
	names := body["presenters"].([]interface{})
	found := false
	for _, n := range names {
		if n == "scripted" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 'scripted' presenter, got %v", names)
	}
}

// ============================================
// Test: esecuzione via WebSocket
// ============================================

func TestPlayOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/play?reveal_ms=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var texts []string
	var finished map[string]interface{}
	for finished == nil {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Error: %v", err)
		}
		switch msg["type"] {
		case "text_end":
			texts = append(texts, msg["text"].(string))
		case "wait":
			conn.WriteJSON(gin.H{"type": "advance"})
		case "choice":
			conn.WriteJSON(gin.H{"type": "choice", "index": 0})
		case "finished":
			finished = msg
		}
	}

	if strings.Join(texts, "|") != "Ciao|Oro: 1" {
		t.Errorf("Unexpected texts: %v", texts)
	}
	if finished["outcome"] != "end" || finished["passage"] != "finale" {
		t.Errorf("Unexpected result: %v", finished)
	}
	t.Log("✅ Storia eseguita via WebSocket")
}

func TestPlayIgnoresChoiceBeforePrompt(t *testing.T) {
	s := newTestServerWith(t, `define passage start
  narrate "Ciao"
  option "Sinistra"
    narrate "sinistra"
    end
  option "Destra"
    narrate "destra"
    end
`)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/play?reveal_ms=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var texts []string
	waits := 0
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Error: %v", err)
		}
		switch msg["type"] {
		case "text_end":
			texts = append(texts, msg["text"].(string))
		case "wait":
			// Una scelta inviata prima della domanda va scartata
			if waits == 0 {
				conn.WriteJSON(gin.H{"type": "choice", "index": 1})
			}
			waits++
			conn.WriteJSON(gin.H{"type": "advance"})
		case "choice":
			conn.WriteJSON(gin.H{"type": "choice", "index": 0})
		}
		if msg["type"] == "finished" {
			break
		}
	}

	if strings.Join(texts, "|") != "Ciao|sinistra" {
		t.Errorf("Expected the choice made at the prompt, got %v", texts)
	}
}
