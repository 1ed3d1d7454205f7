package pdfmeta

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"sumcheck/internal/textutil"
)

const (
	// fontSizeTolerance is the fraction of the largest font size a line may
	// fall short by and still count as title text.
	fontSizeTolerance = 0.05
	// titleRegion is the fraction of the page, measured from the top, that
	// may hold the title.
	titleRegion = 0.40
	// spaceGap is the horizontal gap, as a fraction of the font size, that
	// separates two words drawn without an explicit space.
	spaceGap = 0.15
)

type textLine struct {
	y       float64
	maxSize float64
	text    string
}

// titleFromGlyphs picks the lines set in (nearly) the largest font on the
// page that sit in the top part of the page, orders them top to bottom, drops
// repeats, and joins them.
func titleFromGlyphs(glyphs []pdf.Text, box pageBox) string {
	lines := groupLines(glyphs)
	if len(lines) == 0 {
		return ""
	}

	var largest float64
	for _, line := range lines {
		largest = math.Max(largest, line.maxSize)
	}
	if largest <= 0 {
		return ""
	}

	tolerance := largest * fontSizeTolerance
	cutoff := box.bottom + box.height*(1-titleRegion)
	candidates := make([]textLine, 0, len(lines))
	for _, line := range lines {
		if line.y < cutoff {
			continue
		}
		if math.Abs(line.maxSize-largest) > tolerance {
			continue
		}
		if strings.TrimSpace(line.text) == "" {
			continue
		}
		candidates = append(candidates, line)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].y > candidates[j].y })

	seen := make(map[string]struct{}, len(candidates))
	parts := make([]string, 0, len(candidates))
	for _, line := range candidates {
		text := strings.TrimSpace(line.text)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	}
	return textutil.CollapseSpace(strings.Join(parts, " "))
}

// groupLines buckets glyphs by baseline and rebuilds each line's text in
// drawing order. A line's size is the largest glyph size on it.
func groupLines(glyphs []pdf.Text) []textLine {
	type builder struct {
		line textLine
		sb   strings.Builder
		prev *pdf.Text
	}
	byBaseline := map[float64]*builder{}
	order := []float64{}
	for i := range glyphs {
		g := &glyphs[i]
		if g.S == "" {
			continue
		}
		key := math.Round(g.Y)
		b, ok := byBaseline[key]
		if !ok {
			b = &builder{line: textLine{y: g.Y}}
			byBaseline[key] = b
			order = append(order, key)
		}
		if b.prev != nil && needsSpace(b.prev, g) {
			b.sb.WriteByte(' ')
		}
		b.sb.WriteString(g.S)
		b.line.maxSize = math.Max(b.line.maxSize, g.FontSize)
		b.prev = g
	}
	lines := make([]textLine, 0, len(order))
	for _, key := range order {
		b := byBaseline[key]
		b.line.text = b.sb.String()
		lines = append(lines, b.line)
	}
	return lines
}

func needsSpace(prev, cur *pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	if cur.X < prev.X {
		return true
	}
	if prev.W <= 0 {
		return false
	}
	size := math.Max(prev.FontSize, cur.FontSize)
	return cur.X-(prev.X+prev.W) > size*spaceGap
}
