package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// File operations used when filing a new download into the PDF folder.
const (
	OperationMove = "move"
	OperationCopy = "copy"
)

// Paths contains the watched locations and sumcheck's own state directories.
type Paths struct {
	DownloadsDir string `toml:"downloads_dir"`
	PDFDir       string `toml:"pdf_dir"`
	ProjectFile  string `toml:"project_file"`
	RecordsFile  string `toml:"records_file"`
	LogDir       string `toml:"log_dir"`
	StateDir     string `toml:"state_dir"`
}

// Filing controls how downloads land in the PDF folder and how matched PDFs
// are renamed.
type Filing struct {
	Operation        string `toml:"operation"`
	IdentifierPrefix string `toml:"identifier_prefix"`
	AutoRename       bool   `toml:"auto_rename"`
}

// Watcher contains debounce and settle timings in milliseconds.
type Watcher struct {
	DebounceWindowMS int `toml:"debounce_window_ms"`
	DownloadSettleMS int `toml:"download_settle_ms"`
	ProjectSettleMS  int `toml:"project_settle_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	RetentionDays      int               `toml:"retention_days"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Journal contains configuration for the filing history database.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for sumcheck.
//
// Configuration sections:
//   - Paths: watched directories, the project file, and state/log locations
//   - Filing: move or copy, identifier prefix, automatic renaming
//   - Watcher: debounce window and settle delays
//   - Logging: log format, level, retention, and per-component levels
//   - Journal: filing history database
type Config struct {
	Paths   Paths   `toml:"paths"`
	Filing  Filing  `toml:"filing"`
	Watcher Watcher `toml:"watcher"`
	Logging Logging `toml:"logging"`
	Journal Journal `toml:"journal"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigRelativePath)
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

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
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

	projectPath, err := filepath.Abs(projectConfigFileName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories sumcheck owns. The downloads
// directory belongs to the browser and is never created here; an absent
// downloads root is reported by the watcher instead.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PDFDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Journal.Path), 0o755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}
	return nil
}

// DebounceWindow returns the duration within which repeated move or project
// modify notifications are suppressed.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Watcher.DebounceWindowMS) * time.Millisecond
}

// DownloadSettle returns how long a new download is left alone before it is
// moved, giving the browser time to finish writing.
func (c *Config) DownloadSettle() time.Duration {
	return time.Duration(c.Watcher.DownloadSettleMS) * time.Millisecond
}

// ProjectSettle returns the delay before a modified project file is stat'ed.
func (c *Config) ProjectSettle() time.Duration {
	return time.Duration(c.Watcher.ProjectSettleMS) * time.Millisecond
}

// CopyOnFile reports whether new downloads are copied rather than moved.
func (c *Config) CopyOnFile() bool {
	return c.Filing.Operation == OperationCopy
}

// LockPath returns the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sumcheck.lock")
}

// SourcePath returns the file records are loaded from. It falls back to the
// project file when no separate records file is configured.
func (c *Config) SourcePath() string {
	if strings.TrimSpace(c.Paths.RecordsFile) != "" {
		return c.Paths.RecordsFile
	}
	return c.Paths.ProjectFile
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
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

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
