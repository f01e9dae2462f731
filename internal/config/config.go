package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// CatchParams controls evidence retention for flagged images.
type CatchParams struct {
	FolderName  string `toml:"catch_folder_name" yaml:"catch_folder_name"`
	KeepSeconds int    `toml:"catching_time_in_seconds" yaml:"catching_time_in_seconds"`
}

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir" yaml:"state_dir"`
	LogDir   string `toml:"log_dir" yaml:"log_dir"`
	APIBind  string `toml:"api_bind" yaml:"api_bind"`
	APIToken string `toml:"api_token" yaml:"api_token"`
}

// Detector contains embedding and sampling settings shared by every camera.
type Detector struct {
	SampleStride    int    `toml:"sample_stride" yaml:"sample_stride"`
	Embedder        string `toml:"embedder" yaml:"embedder"`
	HaarBlock       int    `toml:"haar_block" yaml:"haar_block"`
	EmbedderURL     string `toml:"embedder_url" yaml:"embedder_url"`
	EmbedderTimeout int    `toml:"embedder_timeout" yaml:"embedder_timeout"`
}

// Notifications contains webhook delivery settings.
type Notifications struct {
	RequestTimeout int     `toml:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst" yaml:"rate_burst"`
}

// Workflow contains configuration for daemon timing.
type Workflow struct {
	PollInterval int `toml:"poll_interval" yaml:"poll_interval"`
}

// History contains configuration for the evaluation history database.
type History struct {
	Enabled       bool `toml:"enabled" yaml:"enabled"`
	RetentionDays int  `toml:"retention_days" yaml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" yaml:"format"`
	Level         string `toml:"level" yaml:"level"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// Config encapsulates all configuration values for tamperwatch.
//
// The top-level keys keep the names used by existing camera deployments
// (folders_to_watch, thresholds_per_camera, catch_params, ...). Sections:
//   - Paths: state and log directories, API bind address
//   - Detector: embedder selection and sampling stride
//   - Notifications: webhook timeout and pacing
//   - Workflow: poll interval of the daemon scheduler
//   - History: SQLite evaluation log
//   - Logging: log format, level, and retention
type Config struct {
	FoldersToWatch []string           `toml:"folders_to_watch" yaml:"folders_to_watch"`
	ReferenceDirs  []string           `toml:"folder_with_valid_images" yaml:"folder_with_valid_images"`
	Thresholds     map[string]float64 `toml:"thresholds_per_camera" yaml:"thresholds_per_camera"`
	ImageFormats   []string           `toml:"image_formats" yaml:"image_formats"`
	Catch          CatchParams        `toml:"catch_params" yaml:"catch_params"`
	RequestLink    string             `toml:"request_link" yaml:"request_link"`
	LoggerPath     string             `toml:"logger_path" yaml:"logger_path"`
	Paths          Paths              `toml:"paths" yaml:"paths"`
	Detector       Detector           `toml:"detector" yaml:"detector"`
	Notifications  Notifications      `toml:"notifications" yaml:"notifications"`
	Workflow       Workflow           `toml:"workflow" yaml:"workflow"`
	History        History            `toml:"history" yaml:"history"`
	Logging        Logging            `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tamperwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// decode picks the decoder from the file extension. Deployments migrated
// from the hydra layout keep their config.yaml untouched.
func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(r)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return toml.NewDecoder(r).Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	candidates := []string{defaultPath}
	for _, name := range []string{"tamperwatch.toml", "config.yaml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		candidates = append(candidates, projectPath)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Watch and reference folders are owned by the camera uploaders and are
// never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DefaultThreshold returns the fallback decision threshold.
func (c *Config) DefaultThreshold() float64 {
	return c.Thresholds[DefaultThresholdKey]
}

// CameraThresholds returns the per-camera overrides without the default entry.
func (c *Config) CameraThresholds() map[string]float64 {
	out := make(map[string]float64, len(c.Thresholds))
	for name, value := range c.Thresholds {
		if name == DefaultThresholdKey {
			continue
		}
		out[name] = value
	}
	return out
}

// PollInterval returns the delay between two orchestrator passes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// EvidenceMaxAge returns how long archived evidence is kept.
func (c *Config) EvidenceMaxAge() time.Duration {
	return time.Duration(c.Catch.KeepSeconds) * time.Second
}

// NotificationTimeout returns the HTTP timeout for webhook calls.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// EmbedderTimeout returns the HTTP timeout for remote embedding calls.
func (c *Config) EmbedderTimeout() time.Duration {
	return time.Duration(c.Detector.EmbedderTimeout) * time.Second
}

// HistoryPath returns the SQLite database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tamperwatch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := expandHome(pathValue)
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean(expanded)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// expandHome resolves a leading tilde but leaves relative paths relative.
func expandHome(pathValue string) (string, error) {
	if !strings.HasPrefix(pathValue, "~") {
		return pathValue, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if pathValue == "~" {
		return home, nil
	}
	if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
		return filepath.Join(home, pathValue[2:]), nil
	}
	return pathValue, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
