package config

const (
	defaultDownloadsDir       = "~/Downloads"
	defaultPDFDir             = "~/Papers"
	defaultLogDir             = "~/.local/share/sumcheck/logs"
	defaultStateDir           = "~/.local/share/sumcheck"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultFilingOperation    = OperationMove
	defaultIdentifierPrefix   = "PMID"
	defaultDebounceWindowMS   = 2000
	defaultDownloadSettleMS   = 1000
	defaultProjectSettleMS    = 500
	defaultJournalFileName    = "journal.db"
	defaultConfigRelativePath = "~/.config/sumcheck/config.toml"
	projectConfigFileName     = "sumcheck.toml"
)

// Default returns a Config populated with repository defaults. Downloads and
// PDF directories are left empty so normalize can consult the environment
// before falling back to the built-in locations.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Filing: Filing{
			Operation:        defaultFilingOperation,
			IdentifierPrefix: defaultIdentifierPrefix,
			AutoRename:       true,
		},
		Watcher: Watcher{
			DebounceWindowMS: defaultDebounceWindowMS,
			DownloadSettleMS: defaultDownloadSettleMS,
			ProjectSettleMS:  defaultProjectSettleMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Journal: Journal{
			Enabled: true,
		},
	}
}
