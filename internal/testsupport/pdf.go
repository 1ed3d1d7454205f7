package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"
)

// PDFLine is one line of text drawn on the first page.
type PDFLine struct {
	Text string
	Size float64
	// Y is the baseline in points from the bottom of a 612x792 page.
	Y float64
}

// PDFSpec describes a minimal single-page PDF.
type PDFSpec struct {
	// Title is written to the information dictionary when non-empty. Titles
	// outside ASCII are encoded as UTF-16.
	Title string
	// RawTitle, when set, is written verbatim as the /Title value, for
	// example "42" to produce a non-string title.
	RawTitle string
	// NoInfo omits the information dictionary entirely.
	NoInfo bool
	Lines  []PDFLine
}

// WritePDF writes a minimal valid PDF described by spec and returns its path.
func WritePDF(t testing.TB, path string, spec PDFSpec) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, BuildPDF(spec), 0o644); err != nil {
		t.Fatalf("write pdf %s: %v", path, err)
	}
	return path
}

// BuildPDF renders spec to bytes.
func BuildPDF(spec PDFSpec) []byte {
	var content bytes.Buffer
	for _, line := range spec.Lines {
		size := line.Size
		if size <= 0 {
			size = 12
		}
		fmt.Fprintf(&content, "BT /F1 %s Tf 72 %s Td (%s) Tj ET\n", num(size), num(line.Y), escapeLiteral(line.Text))
	}

	widths := make([]string, 0, 95)
	for c := 32; c <= 126; c++ {
		if c == ' ' {
			widths = append(widths, "278")
			continue
		}
		widths = append(widths, "556")
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}
	includeInfo := !spec.NoInfo
	if includeInfo {
		info := "<< /Producer (sumcheck tests)"
		switch {
		case spec.RawTitle != "":
			info += " /Title " + spec.RawTitle
		case spec.Title != "":
			info += " /Title " + encodeTextString(spec.Title)
		}
		info += " >>"
		objects = append(objects, info)
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R", len(objects)+1)
	if includeInfo {
		fmt.Fprintf(&out, " /Info %d 0 R", len(objects))
	}
	fmt.Fprintf(&out, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return out.Bytes()
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func encodeTextString(s string) string {
	ascii := true
	for _, r := range s {
		if r > 126 {
			ascii = false
			break
		}
	}
	if ascii {
		return "(" + escapeLiteral(s) + ")"
	}
	var b strings.Builder
	b.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	b.WriteString(">")
	return b.String()
}
