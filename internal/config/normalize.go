package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeFolders(); err != nil {
		return err
	}
	c.normalizeImageFormats()
	c.normalizeThresholds()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDetector()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// normalizeFolders expands a leading tilde and drops duplicates. Watch folder
// strings are otherwise kept as written because they are sent verbatim as
// camera_id in notifications.
func (c *Config) normalizeFolders() error {
	var err error
	if c.FoldersToWatch, err = cleanFolderList(c.FoldersToWatch); err != nil {
		return fmt.Errorf("folders_to_watch: %w", err)
	}
	if c.ReferenceDirs, err = cleanFolderList(c.ReferenceDirs); err != nil {
		return fmt.Errorf("folder_with_valid_images: %w", err)
	}
	return nil
}

func cleanFolderList(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		expanded, err := expandHome(trimmed)
		if err != nil {
			return nil, err
		}
		expanded = filepath.Clean(expanded)
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		out = append(out, expanded)
	}
	return out, nil
}

func (c *Config) normalizeImageFormats() {
	formats := make([]string, 0, len(c.ImageFormats))
	seen := make(map[string]struct{}, len(c.ImageFormats))
	for _, format := range c.ImageFormats {
		normalized := strings.ToLower(strings.TrimSpace(format))
		normalized = strings.TrimPrefix(normalized, "*")
		if normalized == "" || normalized == "." {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	if len(formats) == 0 {
		formats = append(formats, defaultImageFormats...)
	}
	c.ImageFormats = formats
}

func (c *Config) normalizeThresholds() {
	if len(c.Thresholds) == 0 {
		return
	}
	normalized := make(map[string]float64, len(c.Thresholds))
	for name, value := range c.Thresholds {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		normalized[trimmed] = value
	}
	c.Thresholds = normalized
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.LoggerPath, err = expandPath(strings.TrimSpace(c.LoggerPath)); err != nil {
		return fmt.Errorf("logger_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TAMPERWATCH_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Catch.FolderName = strings.TrimSpace(c.Catch.FolderName)
	return nil
}

func (c *Config) normalizeDetector() {
	c.Detector.Embedder = strings.ToLower(strings.TrimSpace(c.Detector.Embedder))
	if c.Detector.Embedder == "" {
		c.Detector.Embedder = defaultEmbedder
	}
	c.Detector.EmbedderURL = strings.TrimSpace(c.Detector.EmbedderURL)
	if c.Detector.EmbedderURL == "" {
		if value, ok := os.LookupEnv("TAMPERWATCH_EMBEDDER_URL"); ok {
			c.Detector.EmbedderURL = strings.TrimSpace(value)
		}
	}
	if c.Detector.HaarBlock <= 0 {
		c.Detector.HaarBlock = defaultHaarBlock
	}
	if c.Detector.EmbedderTimeout <= 0 {
		c.Detector.EmbedderTimeout = defaultEmbedderTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.RequestLink = strings.TrimSpace(c.RequestLink)
	if c.RequestLink == "" {
		if value, ok := os.LookupEnv("TAMPERWATCH_REQUEST_LINK"); ok {
			c.RequestLink = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.RateLimit < 0 {
		c.Notifications.RateLimit = 0
	}
	if c.Notifications.RateBurst <= 0 {
		c.Notifications.RateBurst = 1
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}
