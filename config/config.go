package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vnscript-editor/logging"
)

// DefaultFile è il nome del file di configurazione cercato nella cartella del progetto
const DefaultFile = "vnscript.yaml"

// ServerConfig configura l'API per l'editor
type ServerConfig struct {
	Port  int  `yaml:"port"`
	CORS  bool `yaml:"cors"`
	Debug bool `yaml:"debug"`
}

// ProjectConfig indica dove si trova la storia
type ProjectConfig struct {
	Root  string `yaml:"root"`
	Entry string `yaml:"entry"`
}

// WatcherConfig configura il ricaricamento automatico
type WatcherConfig struct {
	DebounceMs int    `yaml:"debounce_ms"`
	Extension  string `yaml:"extension"`
}

// PlayerConfig configura l'esecuzione interattiva
type PlayerConfig struct {
	Presenter       string `yaml:"presenter"`
	RevealMsPerChar int    `yaml:"reveal_ms_per_char"`
}

// Config è la configurazione completa dell'editor
type Config struct {
	ConfigVersion int             `yaml:"config_version"`
	Server        ServerConfig    `yaml:"server"`
	Project       ProjectConfig   `yaml:"project"`
	Watcher       WatcherConfig   `yaml:"watcher"`
	Player        PlayerConfig    `yaml:"player"`
	Logging       logging.Options `yaml:"logging"`
}

// Variabili d'ambiente che sovrascrivono il file
const (
	EnvPort      = "VNS_PORT"
	EnvEntry     = "VNS_ENTRY"
	EnvPresenter = "VNS_PRESENTER"
	EnvRevealMs  = "VNS_REVEAL_MS"
	EnvCORS      = "VNS_CORS"
	EnvDebug     = "VNS_DEBUG"
	EnvLogLevel  = "VNS_LOG_LEVEL"
	EnvLogFormat = "VNS_LOG_FORMAT"
	EnvLogSource = "VNS_LOG_SOURCE"
	EnvLogFile   = "VNS_LOG_FILE"
)

// Defaults restituisce la configurazione predefinita
func Defaults() Config {
	return Config{
		ConfigVersion: 1,
		Server:        ServerConfig{Port: 8080, CORS: true},
		Project:       ProjectConfig{Root: ".", Entry: "main.vns"},
		Watcher:       WatcherConfig{DebounceMs: 300, Extension: ".vns"},
		Player:        PlayerConfig{Presenter: "console", RevealMsPerChar: 20},
		Logging:       logging.Options{Level: "info", Format: "console"},
	}
}

// Load legge il file indicato (se esiste), lo unisce ai default e applica
// le variabili d'ambiente. Un file assente non è un errore.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fileCfg Config
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return cfg, fmt.Errorf("configurazione non valida %s: %w", path, err)
			}
			mergeInto(&cfg, &fileCfg)
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("errore lettura configurazione: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save scrive la configurazione in YAML
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("errore serializzazione configurazione: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// EntryPath restituisce il percorso completo del file di ingresso
func (c Config) EntryPath() string {
	return filepath.Join(c.Project.Root, c.Project.Entry)
}

func mergeInto(dst, src *Config) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	dst.Server.CORS = src.Server.CORS
	dst.Server.Debug = src.Server.Debug

	if strings.TrimSpace(src.Project.Root) != "" {
		dst.Project.Root = strings.TrimSpace(src.Project.Root)
	}
	if strings.TrimSpace(src.Project.Entry) != "" {
		dst.Project.Entry = strings.TrimSpace(src.Project.Entry)
	}

	if src.Watcher.DebounceMs > 0 {
		dst.Watcher.DebounceMs = src.Watcher.DebounceMs
	}
	if src.Watcher.Extension != "" {
		dst.Watcher.Extension = src.Watcher.Extension
	}

	if src.Player.Presenter != "" {
		dst.Player.Presenter = src.Player.Presenter
	}
	if src.Player.RevealMsPerChar != 0 {
		dst.Player.RevealMsPerChar = src.Player.RevealMsPerChar
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.AddSource = src.Logging.AddSource
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := env(EnvPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := env(EnvEntry); v != "" {
		cfg.Project.Entry = v
	}
	if v := env(EnvPresenter); v != "" {
		cfg.Player.Presenter = v
	}
	if v := env(EnvRevealMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Player.RevealMsPerChar = n
		}
	}
	if v := env(EnvCORS); v != "" {
		cfg.Server.CORS = truthy(v)
	}
	if v := env(EnvDebug); v != "" {
		cfg.Server.Debug = truthy(v)
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.AddSource = truthy(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
