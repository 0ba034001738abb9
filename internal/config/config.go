package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

const (
	defaultRefreshIntervalSeconds = 60
	defaultMaxConcurrency         = 4
)

type Config struct {
	RefreshIntervalSeconds int                 `json:"refresh_interval_seconds"`
	MaxConcurrency         int                 `json:"max_concurrency"`
	AutoDetect             bool                `json:"auto_detect"`
	AuthFiles              []string            `json:"auth_files,omitempty"`
	EnvFiles               []string            `json:"env_files,omitempty"`
	Sources                []core.SourceConfig `json:"sources"`
	DetectedSources        []core.SourceConfig `json:"detected_sources,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		RefreshIntervalSeconds: defaultRefreshIntervalSeconds,
		MaxConcurrency:         defaultMaxConcurrency,
		AutoDetect:             true,
	}
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "aiusage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "aiusage")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.RefreshIntervalSeconds <= 0 {
		cfg.RefreshIntervalSeconds = defaultRefreshIntervalSeconds
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	for i := range cfg.Sources {
		cfg.Sources[i].SourceID = strings.TrimSpace(cfg.Sources[i].SourceID)
		if cfg.Sources[i].AuthSource == "" {
			cfg.Sources[i].AuthSource = "Config: " + filepath.Base(path)
		}
	}

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveDetected persists detected sources into the config file (read-modify-write).
// Keys are never written; SourceConfig.APIKey is excluded from JSON.
func SaveDetected(sources []core.SourceConfig) error {
	return SaveDetectedTo(ConfigPath(), sources)
}

func SaveDetectedTo(path string, sources []core.SourceConfig) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.DetectedSources = sources
	return SaveTo(path, cfg)
}
