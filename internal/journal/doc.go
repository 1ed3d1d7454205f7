// Package journal persists the filing history: every PDF that arrived, how the
// match cascade decided, and any problem the watcher reported.
//
// The journal is a single SQLite database opened in WAL mode. Writes retry
// briefly on SQLITE_BUSY so the daemon and a concurrent CLI invocation can
// share the file. The schema is versioned; a database written by a different
// version is refused with ErrSchemaMismatch rather than migrated.
package journal
