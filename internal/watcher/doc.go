// Package watcher turns raw filesystem notifications into a small set of
// de-duplicated application events.
//
// A Watcher observes three roots: the downloads directory (recursively), the
// directory holding the project file, and the PDF folder (recursively). New
// PDFs in downloads are moved or copied into the PDF folder one at a time and
// announced with PdfArrived. Edits to the project file are collapsed within
// the debounce window and announced once the file has settled with content.
// Changes inside the PDF folder that the Watcher did not cause itself are
// announced with PdfFolderChanged.
//
// Handler methods may be called from several goroutines at once.
package watcher
