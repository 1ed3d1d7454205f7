// Package textutil provides the text primitives used by title matching and
// filing: Unicode-to-ASCII normalization, a longest-common-block similarity
// ratio, and filename sanitization.
//
// Normalize folds compatibility forms (NFKD), drops everything outside ASCII,
// lowercases, and trims, so "Rôle of Kinase" and "role of kinase" compare
// equal. SequenceRatio scores two strings in [0,1] by recursively matching
// their longest common blocks.
package textutil
