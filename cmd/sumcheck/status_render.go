package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"sumcheck/internal/watcher"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return "\x1b[32m"
	case statusWarn:
		return "\x1b[33m"
	case statusError:
		return "\x1b[31m"
	default:
		return "\x1b[34m"
	}
}

const ansiReset = "\x1b[0m"

const statusLabelWidth = 16

type statusLine struct {
	label   string
	kind    statusKind
	message string
}

// statusSection is one block of `sumcheck status`. Its heading carries the
// worst state of its lines so a broken folder is visible without reading on.
type statusSection struct {
	title string
	lines []statusLine
}

func (s *statusSection) add(label string, kind statusKind, message string) {
	s.lines = append(s.lines, statusLine{label: label, kind: kind, message: message})
}

func (s statusSection) worst() statusKind {
	worst := statusInfo
	for _, l := range s.lines {
		if l.kind > worst {
			worst = l.kind
		}
	}
	return worst
}

func (s statusSection) render(w io.Writer, colorize bool) {
	heading := "== " + s.title + " =="
	if kind := s.worst(); kind >= statusWarn {
		heading += " [" + kind.label() + "]"
	}
	if colorize {
		heading = s.worst().color() + heading + ansiReset
	}
	fmt.Fprintln(w, heading)
	for _, l := range s.lines {
		fmt.Fprintln(w, renderStatusLine(l, colorize))
	}
}

func renderStatusLine(l statusLine, colorize bool) string {
	status := "[" + l.kind.label() + "]"
	if l.message != "" {
		status += " " + l.message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, l.label+":", status)
	if colorize {
		return l.kind.color() + line + ansiReset
	}
	return line
}

// rootsSection lists every watched folder by role. The downloads and PDF
// folders are watched recursively, the project folder is not; an unreachable
// root is an error because nothing arriving there gets filed.
func rootsSection(roots []watcher.Root) statusSection {
	accessible := 0
	for _, r := range roots {
		if r.Accessible {
			accessible++
		}
	}
	section := statusSection{title: fmt.Sprintf("Watched folders (%d of %d reachable)", accessible, len(roots))}
	for _, r := range roots {
		if !r.Accessible {
			section.add(r.Role.String(), statusError, r.Err.Error())
			continue
		}
		depth := "top level only"
		if r.Recursive {
			depth = "recursive"
		}
		section.add(r.Role.String(), statusOK, fmt.Sprintf("%s (%s)", r.Path, depth))
	}
	if len(roots) == 0 {
		section.add("folders", statusWarn, "no folders configured")
	}
	return section
}

func overallLine(sections []statusSection) string {
	worst := statusOK
	var broken []string
	for _, s := range sections {
		if k := s.worst(); k >= statusWarn {
			broken = append(broken, strings.SplitN(s.title, " (", 2)[0])
			if k > worst {
				worst = k
			}
		}
	}
	if len(broken) == 0 {
		return "Overall: " + worst.label()
	}
	return fmt.Sprintf("Overall: %s (check %s)", worst.label(), strings.Join(broken, ", "))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
