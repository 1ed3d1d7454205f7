package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envDownloadsDir = "SUMCHECK_DOWNLOADS_DIR"
	envPDFDir       = "SUMCHECK_PDF_DIR"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFiling()
	c.normalizeWatcher()
	c.normalizeLogging()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	c.Paths.DownloadsDir = withFallback(c.Paths.DownloadsDir, envDownloadsDir, defaultDownloadsDir)
	c.Paths.PDFDir = withFallback(c.Paths.PDFDir, envPDFDir, defaultPDFDir)
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.DownloadsDir, err = expandPath(c.Paths.DownloadsDir); err != nil {
		return fmt.Errorf("paths.downloads_dir: %w", err)
	}
	if c.Paths.PDFDir, err = expandPath(c.Paths.PDFDir); err != nil {
		return fmt.Errorf("paths.pdf_dir: %w", err)
	}
	if c.Paths.ProjectFile, err = expandPath(strings.TrimSpace(c.Paths.ProjectFile)); err != nil {
		return fmt.Errorf("paths.project_file: %w", err)
	}
	if c.Paths.RecordsFile, err = expandPath(strings.TrimSpace(c.Paths.RecordsFile)); err != nil {
		return fmt.Errorf("paths.records_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func withFallback(value, envKey, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	if env, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(env) != "" {
		return strings.TrimSpace(env)
	}
	return fallback
}

func (c *Config) normalizeFiling() {
	c.Filing.Operation = strings.ToLower(strings.TrimSpace(c.Filing.Operation))
	if c.Filing.Operation == "" {
		c.Filing.Operation = defaultFilingOperation
	}
	c.Filing.IdentifierPrefix = strings.TrimSpace(c.Filing.IdentifierPrefix)
	if c.Filing.IdentifierPrefix == "" {
		c.Filing.IdentifierPrefix = defaultIdentifierPrefix
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.DebounceWindowMS == 0 {
		c.Watcher.DebounceWindowMS = defaultDebounceWindowMS
	}
	if c.Watcher.DownloadSettleMS == 0 {
		c.Watcher.DownloadSettleMS = defaultDownloadSettleMS
	}
	if c.Watcher.ProjectSettleMS == 0 {
		c.Watcher.ProjectSettleMS = defaultProjectSettleMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			normalized[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = normalized
	}
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = filepath.Join(c.Paths.StateDir, defaultJournalFileName)
	}
	var err error
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}
