// Package daemon wires the watcher, the filer, and the journal into one
// long-running process and enforces single-instance execution with a file
// lock.
package daemon
