// Package pdfmeta reads titles out of PDF files.
//
// EmbeddedTitle looks at the document information dictionary and reports the
// outcome as a TitleResult instead of failing, so callers treat unreadable and
// malformed files as ordinary branches. ExtractTitle guesses a title from the
// first page's text: the largest-font lines near the top of the page.
package pdfmeta
