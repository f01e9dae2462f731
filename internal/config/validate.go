package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFolders(); err != nil {
		return err
	}
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateCatch(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateFolders() error {
	if len(c.FoldersToWatch) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/tamperwatch/config.toml"
		}
		return fmt.Errorf("folders_to_watch must list at least one folder. Edit %s (create with 'tamperwatch config init')", defaultPath)
	}
	if len(c.ReferenceDirs) == 0 {
		return errors.New("folder_with_valid_images must list at least one folder")
	}
	names := make(map[string]string, len(c.ReferenceDirs))
	for _, dir := range c.ReferenceDirs {
		name := filepath.Base(dir)
		if prev, exists := names[name]; exists {
			return fmt.Errorf("folder_with_valid_images: %q and %q share camera name %q", prev, dir, name)
		}
		names[name] = dir
	}
	return nil
}

func (c *Config) validateThresholds() error {
	if _, ok := c.Thresholds[DefaultThresholdKey]; !ok {
		return fmt.Errorf("thresholds_per_camera.%s is required", DefaultThresholdKey)
	}
	keys := make([]string, 0, len(c.Thresholds))
	for name := range c.Thresholds {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		value := c.Thresholds[name]
		if math.IsNaN(value) || value < 0 || value > maxThreshold {
			return fmt.Errorf("thresholds_per_camera.%s must be between 0 and %g, got %g", name, maxThreshold, value)
		}
	}
	return nil
}

func (c *Config) validateCatch() error {
	if c.Catch.KeepSeconds < 0 {
		return errors.New("catch_params.catching_time_in_seconds must be non-negative")
	}
	if name := c.Catch.FolderName; name != "" {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("catch_params.catch_folder_name must be a plain folder name, got %q", name)
		}
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.SampleStride < 1 {
		return errors.New("detector.sample_stride must be at least 1")
	}
	switch c.Detector.Embedder {
	case EmbedderHaar:
		if c.Detector.HaarBlock > maxHaarBlock {
			return fmt.Errorf("detector.haar_block must be at most %d", maxHaarBlock)
		}
	case EmbedderHTTP:
		if c.Detector.EmbedderURL == "" {
			return errors.New("detector.embedder_url is required when detector.embedder is \"http\" (or set TAMPERWATCH_EMBEDDER_URL)")
		}
		if err := validateHTTPURL(c.Detector.EmbedderURL); err != nil {
			return fmt.Errorf("detector.embedder_url: %w", err)
		}
	default:
		return fmt.Errorf("detector.embedder: unsupported value %q (want %q or %q)", c.Detector.Embedder, EmbedderHaar, EmbedderHTTP)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.RequestLink != "" {
		if err := validateHTTPURL(c.RequestLink); err != nil {
			return fmt.Errorf("request_link: %w", err)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
