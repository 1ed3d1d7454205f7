// Package match decides which bibliographic record, if any, a PDF represents.
//
// Engine.Match runs a fixed cascade: the embedded metadata title, then the
// filename, then a cached or freshly extracted content title. When the
// embedded title is long enough to be trusted, its outcome is final and the
// later steps never run, even on a miss.
package match
