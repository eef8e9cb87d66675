package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	Output = &buf
	defer func() { Output = os.Stderr }()

	Init(Options{Level: "info"})

	l := WithOperation(WithComponent("parser"), "load")
	l.Debug("non visibile")
	l.Info("📂 progetto caricato", slog.String("entry", "main.vns"), slog.Int("files", 2))

	out := buf.String()
	if strings.Contains(out, "non visibile") {
		t.Error("Expected debug record to be filtered")
	}
	for _, want := range []string{"INF", "📂 progetto caricato", "component=parser", "op=load", "entry=main.vns", "files=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain '%s', got: %s", want, out)
		}
	}
	if strings.Contains(out, "app=") {
		t.Errorf("Expected static attrs to be omitted from console, got: %s", out)
	}

	t.Logf("✅ Console: %s", strings.TrimSpace(out))
}

func TestFileOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Output = &buf
	defer func() { Output = os.Stderr }()

	path := filepath.Join(t.TempDir(), "vns.log")
	Init(Options{Level: "debug", File: path})

	WithComponent("watcher").Warn("⚠️ ricarica fallita", slog.String("file", "a.vns"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	var last string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if m["app"] != "vnscript-editor" {
		t.Errorf("Expected app attr, got %v", m["app"])
	}
	if m["component"] != "watcher" {
		t.Errorf("Expected component 'watcher', got %v", m["component"])
	}
	if m["level"] != "WARN" {
		t.Errorf("Expected level WARN, got %v", m["level"])
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VNS_LOG_LEVEL", "debug")
	t.Setenv("VNS_LOG_FORMAT", "json")
	t.Setenv("VNS_LOG_SOURCE", "TRUE")

	opts := FromEnv()
	if opts.Level != "debug" || opts.Format != "json" || !opts.AddSource {
		t.Errorf("Unexpected options: %+v", opts)
	}
	if parseLevel(opts.Level) != slog.LevelDebug {
		t.Errorf("Expected debug level")
	}
}
