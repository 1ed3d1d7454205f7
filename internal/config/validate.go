package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFiling(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadsDir) == "" {
		return errors.New("paths.downloads_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PDFDir) == "" {
		return errors.New("paths.pdf_dir must be set")
	}
	if filepath.Clean(c.Paths.DownloadsDir) == filepath.Clean(c.Paths.PDFDir) {
		return errors.New("paths.pdf_dir must differ from paths.downloads_dir")
	}
	if strings.TrimSpace(c.Paths.ProjectFile) != "" && filepath.Clean(c.Paths.ProjectFile) == filepath.Clean(c.Paths.PDFDir) {
		return errors.New("paths.project_file must be a file, not the pdf directory")
	}
	return nil
}

func (c *Config) validateFiling() error {
	switch c.Filing.Operation {
	case OperationMove, OperationCopy:
	default:
		return fmt.Errorf("filing.operation: unsupported value %q (want move or copy)", c.Filing.Operation)
	}
	for _, r := range c.Filing.IdentifierPrefix {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			continue
		}
		return fmt.Errorf("filing.identifier_prefix %q must be alphanumeric", c.Filing.IdentifierPrefix)
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.DebounceWindowMS < 0 {
		return errors.New("watcher.debounce_window_ms must be positive")
	}
	if c.Watcher.DownloadSettleMS < 0 {
		return errors.New("watcher.download_settle_ms must be positive")
	}
	if c.Watcher.ProjectSettleMS < 0 {
		return errors.New("watcher.project_settle_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	for component, level := range c.Logging.ComponentOverrides {
		if !validLevel(level) {
			return fmt.Errorf("logging.component_overrides.%s: unsupported level %q", component, level)
		}
	}
	return nil
}

func validLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
