package watcher

import (
	"os"
	"sync"
	"time"
)

// Default timings.
const (
	DefaultDebounceWindow = 2 * time.Second
	DefaultProjectSettle  = 500 * time.Millisecond
	DefaultDownloadSettle = time.Second
	// DefaultFiledCooldown is how long a filed download source is remembered.
	// Browsers and sync tools often report one download several times.
	DefaultFiledCooldown = 5 * time.Second
)

// Debouncer suppresses repeats of the same logical event within a window.
// Checking and recording a key happen under one lock, so concurrent callers
// racing on the same key see exactly one winner.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	settle time.Duration
	now    func() time.Time
	sleep  func(time.Duration)
	seen   map[string]time.Time

	cooldown time.Duration
	filed    map[string]filedMark
}

// filedMark remembers a filed source as it looked when it was filed, so a new
// download reusing the name within the cooldown is not mistaken for a repeat.
type filedMark struct {
	at   time.Time
	size int64
	mod  time.Time
}

// NewDebouncer returns a Debouncer. Non-positive durations select the
// defaults.
func NewDebouncer(window, projectSettle time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if projectSettle <= 0 {
		projectSettle = DefaultProjectSettle
	}
	return &Debouncer{
		window: window,
		settle: projectSettle,
		now:    time.Now,
		sleep:  time.Sleep,
		seen:   make(map[string]time.Time),

		cooldown: DefaultFiledCooldown,
		filed:    make(map[string]filedMark),
	}
}

// SetClock replaces the time source and sleep function.
func (d *Debouncer) SetClock(now func() time.Time, sleep func(time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now != nil {
		d.now = now
	}
	if sleep != nil {
		d.sleep = sleep
	}
}

// AllowMove reports whether a move from src to dest should be acted on. A
// repeat of the same pair within the window is rejected.
func (d *Debouncer) AllowMove(src, dest string) bool {
	return d.allow("move|" + src + "|" + dest)
}

// AllowProjectModify reports whether a modification of the project file
// should be acted on.
func (d *Debouncer) AllowProjectModify(path string) bool {
	return d.allow("modify|" + path)
}

// ProjectFileSettled waits for the settle delay and reports whether path then
// exists with content. Editors commonly truncate before writing; a zero-size
// file is not worth reloading.
func (d *Debouncer) ProjectFileSettled(path string) bool {
	d.mu.Lock()
	sleep, settle := d.sleep, d.settle
	d.mu.Unlock()

	sleep(settle)
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

func (d *Debouncer) allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = now
	return true
}

// MarkFiled records that the download at src, as described by info, was
// filed.
func (d *Debouncer) MarkFiled(src string, info os.FileInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, m := range d.filed {
		if now.Sub(m.at) >= d.cooldown {
			delete(d.filed, k)
		}
	}
	d.filed[src] = filedMark{at: now, size: info.Size(), mod: info.ModTime()}
}

// RecentlyFiled reports whether src was filed within the cooldown and is
// unchanged since. In copy mode the source stays behind, so this is what
// keeps repeated notifications for one download from filing it again.
func (d *Debouncer) RecentlyFiled(src string, info os.FileInfo) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.filed[src]
	if !ok {
		return false
	}
	if d.now().Sub(m.at) >= d.cooldown {
		delete(d.filed, src)
		return false
	}
	return m.size == info.Size() && m.mod.Equal(info.ModTime())
}

func (d *Debouncer) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
