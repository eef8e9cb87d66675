package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "assente.yaml"))
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	def := Defaults()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("Expected port %d, got %d", def.Server.Port, cfg.Server.Port)
	}
	if cfg.Watcher.Extension != ".vns" {
		t.Errorf("Expected extension '.vns', got '%s'", cfg.Watcher.Extension)
	}
}

func TestSaveAndLoadMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", DefaultFile)

	cfg := Defaults()
	cfg.Server.Port = 9090
	cfg.Project.Entry = "storia.vns"
	cfg.Logging.Level = "DEBUG"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", loaded.Server.Port)
	}
	if loaded.EntryPath() != filepath.Join(".", "storia.vns") {
		t.Errorf("Unexpected entry path: %s", loaded.EntryPath())
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Expected normalized level 'debug', got '%s'", loaded.Logging.Level)
	}

	t.Logf("✅ Configurazione salvata e ricaricata: %s", path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "7000")
	t.Setenv(EnvPresenter, "scripted")
	t.Setenv(EnvCORS, "off")
	t.Setenv(EnvRevealMs, "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Player.Presenter != "scripted" {
		t.Errorf("Expected presenter 'scripted', got '%s'", cfg.Player.Presenter)
	}
	if cfg.Server.CORS {
		t.Error("Expected CORS disabled")
	}
	if cfg.Player.RevealMsPerChar != Defaults().Player.RevealMsPerChar {
		t.Error("Expected malformed reveal override to be ignored")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("server: [non valido"), 0o644); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
