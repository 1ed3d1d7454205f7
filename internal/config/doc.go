// Package config loads, normalizes, and validates sumcheck configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the SUMCHECK_DOWNLOADS_DIR and SUMCHECK_PDF_DIR
// environment fallbacks. The watcher, filer, and journal all take an explicit
// *Config; nothing in this package is global.
package config
