package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sumcheck/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SUMCHECK_DOWNLOADS_DIR", "")
	t.Setenv("SUMCHECK_PDF_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "sumcheck", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.DownloadsDir != filepath.Join(tempHome, "Downloads") {
		t.Fatalf("unexpected downloads dir: %q", cfg.Paths.DownloadsDir)
	}
	if cfg.Paths.PDFDir != filepath.Join(tempHome, "Papers") {
		t.Fatalf("unexpected pdf dir: %q", cfg.Paths.PDFDir)
	}
	wantJournal := filepath.Join(tempHome, ".local", "share", "sumcheck", "journal.db")
	if cfg.Journal.Path != wantJournal {
		t.Fatalf("unexpected journal path: got %q want %q", cfg.Journal.Path, wantJournal)
	}
	if cfg.Filing.Operation != config.OperationMove {
		t.Fatalf("expected move by default, got %q", cfg.Filing.Operation)
	}
	if cfg.Filing.IdentifierPrefix != "PMID" {
		t.Fatalf("unexpected identifier prefix %q", cfg.Filing.IdentifierPrefix)
	}
	if cfg.DebounceWindow() != 2*time.Second {
		t.Fatalf("unexpected debounce window %s", cfg.DebounceWindow())
	}
	if cfg.DownloadSettle() != time.Second {
		t.Fatalf("unexpected download settle %s", cfg.DownloadSettle())
	}
	if cfg.ProjectSettle() != 500*time.Millisecond {
		t.Fatalf("unexpected project settle %s", cfg.ProjectSettle())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.PDFDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
	if _, err := os.Stat(cfg.Paths.DownloadsDir); !os.IsNotExist(err) {
		t.Fatalf("downloads dir must not be created, stat err=%v", err)
	}
}

func TestLoadUsesEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	downloads := t.TempDir()
	pdfs := t.TempDir()
	t.Setenv("SUMCHECK_DOWNLOADS_DIR", downloads)
	t.Setenv("SUMCHECK_PDF_DIR", pdfs)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DownloadsDir != downloads {
		t.Fatalf("expected downloads dir from env, got %q", cfg.Paths.DownloadsDir)
	}
	if cfg.Paths.PDFDir != pdfs {
		t.Fatalf("expected pdf dir from env, got %q", cfg.Paths.PDFDir)
	}
}

func TestLoadCustomConfigOverridesEnvironment(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SUMCHECK_PDF_DIR", "/should/not/win")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"downloads_dir": "~/dl",
			"pdf_dir":       "~/library/pdf",
			"project_file":  "~/thesis/refs.yaml",
		},
		"filing": map[string]any{
			"operation":         "COPY",
			"identifier_prefix": "DOI",
		},
		"watcher": map[string]any{
			"debounce_window_ms": 1500,
		},
		"logging": map[string]any{
			"format":              "JSON",
			"level":               "Debug",
			"component_overrides": map[string]any{"Watcher": "WARN"},
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected to load %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.PDFDir != filepath.Join(tempHome, "library", "pdf") {
		t.Fatalf("unexpected pdf dir %q", cfg.Paths.PDFDir)
	}
	if cfg.Paths.ProjectFile != filepath.Join(tempHome, "thesis", "refs.yaml") {
		t.Fatalf("unexpected project file %q", cfg.Paths.ProjectFile)
	}
	if cfg.SourcePath() != cfg.Paths.ProjectFile {
		t.Fatalf("expected records to default to project file, got %q", cfg.SourcePath())
	}
	if !cfg.CopyOnFile() {
		t.Fatal("expected copy operation to be normalized")
	}
	if cfg.Filing.IdentifierPrefix != "DOI" {
		t.Fatalf("unexpected prefix %q", cfg.Filing.IdentifierPrefix)
	}
	if cfg.DebounceWindow() != 1500*time.Millisecond {
		t.Fatalf("unexpected debounce window %s", cfg.DebounceWindow())
	}
	if cfg.Watcher.DownloadSettleMS != 1000 {
		t.Fatalf("expected default download settle to survive partial section, got %d", cfg.Watcher.DownloadSettleMS)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if got := cfg.Logging.ComponentOverrides["watcher"]; got != "warn" {
		t.Fatalf("expected normalized component override, got %q", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nstaging_dir = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "staging_dir") {
		t.Fatalf("expected unknown key error mentioning staging_dir, got %v", err)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "same downloads and pdf dir",
			mutate: func(c *config.Config) { c.Paths.PDFDir = c.Paths.DownloadsDir },
			want:   "pdf_dir must differ",
		},
		{
			name:   "unsupported operation",
			mutate: func(c *config.Config) { c.Filing.Operation = "link" },
			want:   "filing.operation",
		},
		{
			name:   "prefix with separator",
			mutate: func(c *config.Config) { c.Filing.IdentifierPrefix = "PM/ID" },
			want:   "identifier_prefix",
		},
		{
			name:   "negative debounce",
			mutate: func(c *config.Config) { c.Watcher.DebounceWindowMS = -1 },
			want:   "debounce_window_ms",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name: "bad component override",
			mutate: func(c *config.Config) {
				c.Logging.ComponentOverrides = map[string]string{"watcher": "loud"}
			},
			want: "component_overrides.watcher",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DownloadsDir = "/tmp/downloads"
			cfg.Paths.PDFDir = "/tmp/pdf"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoadsCleanly(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Paths.DownloadsDir != filepath.Join(tempHome, "Downloads") {
		t.Fatalf("unexpected downloads dir %q", cfg.Paths.DownloadsDir)
	}
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(encoded), "identifier_prefix") {
		t.Fatalf("expected encoded config to include filing section, got %s", encoded)
	}
}
