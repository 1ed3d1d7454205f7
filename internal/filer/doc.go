// Package filer consumes watcher events and files matched PDFs under their
// identifier-tagged names.
//
// A Filer holds the current record snapshot, reloads it when the project file
// changes, and rescans the PDF folder when its contents change. Rescans are
// coalesced: any number of change notifications while a scan is pending
// produce one further scan.
package filer
