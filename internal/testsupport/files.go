package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of PDF-looking filler to path, creating parent
// directories. The content starts with a PDF header so sniffing code treats
// it as a download in progress. A size <= 0 writes the header alone.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, filler(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func filler(size int64) []byte {
	header := []byte("%PDF-1.4\n")
	if size <= int64(len(header)) {
		return header[:max(size, 1)]
	}
	return append(header, bytes.Repeat([]byte{'%'}, int(size)-len(header))...)
}
