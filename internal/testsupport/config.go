package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"sumcheck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The downloads and PDF directories exist; timings are shortened so watcher
// tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DownloadsDir = filepath.Join(base, "downloads")
	cfgVal.Paths.PDFDir = filepath.Join(base, "pdfs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Journal.Path = filepath.Join(base, "state", "journal.db")
	cfgVal.Watcher.DownloadSettleMS = 20
	cfgVal.Watcher.ProjectSettleMS = 20

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Paths.DownloadsDir, cfgVal.Paths.PDFDir, cfgVal.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	return builder.cfg
}

// WithProjectFile points the config at a project file inside the temp tree
// and writes body to it.
func WithProjectFile(name, body string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "project", name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir project dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			b.t.Fatalf("write project file: %v", err)
		}
		b.cfg.Paths.ProjectFile = path
	}
}

// WithCopyOperation switches filing to copy mode.
func WithCopyOperation() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Filing.Operation = config.OperationCopy
	}
}

// WithJournalDisabled turns the filing journal off.
func WithJournalDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadsDir)
}
