package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"sumcheck/internal/watcher"
)

func TestRootsSectionGroupsFolders(t *testing.T) {
	roots := []watcher.Root{
		{Path: "/home/u/Downloads", Role: watcher.RoleDownloads, Recursive: true, Accessible: true},
		{Path: "/home/u/project", Role: watcher.RoleProjectFileDir, Accessible: true},
		{Path: "/home/u/Papers", Role: watcher.RolePdfFolder, Recursive: true, Err: errors.New("permission denied")},
	}
	section := rootsSection(roots)

	var buf bytes.Buffer
	section.render(&buf, false)
	out := buf.String()
	for _, want := range []string{
		"== Watched folders (2 of 3 reachable) == [ERROR]",
		"downloads:",
		"/home/u/Downloads (recursive)",
		"/home/u/project (top level only)",
		"pdf_folder:",
		"[ERROR] permission denied",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestOverallLine(t *testing.T) {
	healthy := statusSection{title: "Instance"}
	healthy.add("Watcher", statusInfo, "not running")
	if got := overallLine([]statusSection{healthy}); got != "Overall: OK" {
		t.Fatalf("unexpected overall %q", got)
	}

	records := statusSection{title: "Records"}
	records.add("Source", statusWarn, "no records file configured")
	folders := rootsSection(nil)
	got := overallLine([]statusSection{healthy, folders, records})
	if got != "Overall: WARN (check Watched folders, Records)" {
		t.Fatalf("unexpected overall %q", got)
	}
}

func TestRenderStatusLineColors(t *testing.T) {
	line := renderStatusLine(statusLine{label: "Source", kind: statusError, message: "missing"}, true)
	if !strings.HasPrefix(line, statusError.color()) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected colored line, got %q", line)
	}
	if plain := renderStatusLine(statusLine{label: "Source", kind: statusOK}, false); strings.Contains(plain, "\x1b") {
		t.Fatalf("unexpected escape codes in %q", plain)
	}
}
