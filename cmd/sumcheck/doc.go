// Command sumcheck watches a downloads folder for PDFs, files them into a PDF
// library, and renames each one after the bibliographic record it matches.
//
// Run "sumcheck run" for the long-running watcher. The remaining commands
// operate on the library directly: match previews the cascade, file and scan
// rename PDFs, cache inspects title sidecars, and history shows the journal.
package main
