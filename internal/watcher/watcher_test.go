package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sumcheck/internal/config"
	"sumcheck/internal/fileutil"
	"sumcheck/internal/testsupport"
)

type recorder struct {
	mu       sync.Mutex
	arrived  []string
	projects []string
	folder   int
	problems []Problem
	notify   chan string
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan string, 64)}
}

func (r *recorder) PdfArrived(path string) {
	r.mu.Lock()
	r.arrived = append(r.arrived, path)
	r.mu.Unlock()
	r.notify <- "arrived:" + path
}

func (r *recorder) ProjectFileChanged(path string) {
	r.mu.Lock()
	r.projects = append(r.projects, path)
	r.mu.Unlock()
}

func (r *recorder) PdfFolderChanged() {
	r.mu.Lock()
	r.folder++
	r.mu.Unlock()
}

func (r *recorder) Problem(p Problem) {
	r.mu.Lock()
	r.problems = append(r.problems, p)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (arrived, projects []string, folder int, problems []Problem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.arrived...), append([]string(nil), r.projects...), r.folder, append([]Problem(nil), r.problems...)
}

func newTestWatcher(t *testing.T, cfg *config.Config, h Handler) *Watcher {
	t.Helper()
	w := New(h, OptionsFromConfig(cfg, nil))
	if err := w.UpdatePaths(PathsFromConfig(cfg)); err != nil {
		t.Fatalf("UpdatePaths: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestConcurrentCreatesFileOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	var moves atomic.Int32
	w.moveFile = func(src, dst string) error {
		moves.Add(1)
		return fileutil.MoveFile(src, dst)
	}

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 2048)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Dispatch(RawEvent{Kind: Created, Path: src})
		}()
	}
	wg.Wait()
	w.Stop()

	arrived, _, _, problems := rec.snapshot()
	if got := moves.Load(); got != 1 {
		t.Fatalf("expected one move, got %d", got)
	}
	want := filepath.Join(cfg.Paths.PDFDir, "paper.pdf")
	if len(arrived) != 1 || arrived[0] != want {
		t.Fatalf("expected one PdfArrived for %s, got %v", want, arrived)
	}
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if fileutil.Exists(src) {
		t.Fatal("expected source to be moved")
	}
}

func TestDownloadFilterSkipsNonCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	names := []string{"notes.txt", ".hidden.pdf", "PMID_123_paper.pdf", "paper.pdf.title"}
	for _, name := range names {
		path := filepath.Join(cfg.Paths.DownloadsDir, name)
		testsupport.WriteFile(t, path, 10)
		w.Dispatch(RawEvent{Kind: Created, Path: path})
	}
	w.Dispatch(RawEvent{Kind: Modified, Path: filepath.Join(cfg.Paths.DownloadsDir, "late.pdf")})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 0 {
		t.Fatalf("expected nothing filed, got %v", arrived)
	}
	for _, name := range names {
		if !fileutil.Exists(filepath.Join(cfg.Paths.DownloadsDir, name)) {
			t.Fatalf("%s should be left alone", name)
		}
	}
}

func TestMoveIntoDownloadsIsFiled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	dest := filepath.Join(cfg.Paths.DownloadsDir, "renamed.pdf")
	testsupport.WriteFile(t, dest, 64)
	w.Dispatch(RawEvent{Kind: Moved, Path: filepath.Join(cfg.Paths.DownloadsDir, "renamed.pdf.part"), Dest: dest})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 1 {
		t.Fatalf("expected moved-in download to be filed, got %v", arrived)
	}
}

func TestCollisionGetsSuffix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.PDFDir, "paper.pdf"), 10)
	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 20)

	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	want := filepath.Join(cfg.Paths.PDFDir, "paper_1.pdf")
	if len(arrived) != 1 || arrived[0] != want {
		t.Fatalf("expected %s, got %v", want, arrived)
	}
}

func TestCopyModeSkipsAlreadyFiled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCopyOperation())
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 100)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.PDFDir, "paper.pdf"), 100)

	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, problems := rec.snapshot()
	if len(arrived) != 0 || len(problems) != 0 {
		t.Fatalf("expected silent skip, got arrived=%v problems=%v", arrived, problems)
	}
	if !fileutil.Exists(src) {
		t.Fatal("copy mode must keep the source")
	}
}

func TestCopyModeRepeatCreatesAfterRenameFileOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCopyOperation())

	var (
		mu      sync.Mutex
		arrived int
	)
	w := newTestWatcher(t, cfg, HandlerFuncs{
		OnPdfArrived: func(path string) {
			mu.Lock()
			defer mu.Unlock()
			arrived++
			tagged := filepath.Join(filepath.Dir(path), fmt.Sprintf("PMID_%d_%s", arrived, filepath.Base(path)))
			if err := os.Rename(path, tagged); err != nil {
				t.Errorf("rename arrival: %v", err)
			}
		},
	})

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 100)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Dispatch(RawEvent{Kind: Created, Path: src})
		}()
	}
	wg.Wait()
	w.Stop()

	entries, err := os.ReadDir(cfg.Paths.PDFDir)
	if err != nil {
		t.Fatalf("read pdf dir: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if arrived != 1 || len(entries) != 1 {
		t.Fatalf("expected one filed copy, got arrived=%d files=%d", arrived, len(entries))
	}
	if entries[0].Name() != "PMID_1_paper.pdf" {
		t.Fatalf("unexpected filed name %s", entries[0].Name())
	}
}

func TestCopyModeRefilesChangedSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCopyOperation())
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 100)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	<-rec.notify
	if err := os.Remove(filepath.Join(cfg.Paths.PDFDir, "paper.pdf")); err != nil {
		t.Fatalf("remove filed copy: %v", err)
	}

	testsupport.WriteFile(t, src, 300)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 2 {
		t.Fatalf("expected a new download under the same name to be filed, got %v", arrived)
	}
}

func TestCopyModeKeepsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCopyOperation())
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 100)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 1 {
		t.Fatalf("expected copy to arrive, got %v", arrived)
	}
	if !fileutil.Exists(src) || !fileutil.Exists(arrived[0]) {
		t.Fatal("expected both source and copy to exist")
	}
}

func TestFileOperationFailureReportsProblem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	boom := errors.New("disk full")
	w.moveFile = func(string, string) error { return boom }

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 10)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, problems := rec.snapshot()
	if len(arrived) != 0 {
		t.Fatalf("failed move must not arrive, got %v", arrived)
	}
	if len(problems) != 1 {
		t.Fatalf("expected one problem, got %v", problems)
	}
	p := problems[0]
	if p.Kind != ProblemFileOperation || p.Severity != SeverityError || !errors.Is(p, boom) || p.Path != src {
		t.Fatalf("unexpected problem %+v", p)
	}
	if !fileutil.Exists(src) {
		t.Fatal("source must stay in place")
	}
}

func TestVanishedDownloadIsBenign(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	w.moveFile = func(src, _ string) error {
		return &os.PathError{Op: "rename", Path: src, Err: os.ErrNotExist}
	}
	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 10)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Dispatch(RawEvent{Kind: Created, Path: filepath.Join(cfg.Paths.DownloadsDir, "never.pdf")})
	w.Stop()

	arrived, _, _, problems := rec.snapshot()
	if len(arrived) != 0 || len(problems) != 0 {
		t.Fatalf("expected no events, got arrived=%v problems=%v", arrived, problems)
	}
}

func TestPdfFolderMoveDebounce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)
	clock := newFakeClock()
	w.Debouncer().SetClock(clock.Now, nil)

	src := filepath.Join(cfg.Paths.PDFDir, "a.pdf")
	dst := filepath.Join(cfg.Paths.PDFDir, "PMID_1_a.pdf")
	w.Dispatch(RawEvent{Kind: Moved, Path: src, Dest: dst})
	clock.Advance(time.Second)
	w.Dispatch(RawEvent{Kind: Moved, Path: src, Dest: dst})

	if _, _, folder, _ := rec.snapshot(); folder != 1 {
		t.Fatalf("expected one folder change within window, got %d", folder)
	}
	clock.Advance(2 * time.Second)
	w.Dispatch(RawEvent{Kind: Moved, Path: src, Dest: dst})
	if _, _, folder, _ := rec.snapshot(); folder != 2 {
		t.Fatalf("expected second folder change after window, got %d", folder)
	}
}

func TestPdfFolderEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	pdf := filepath.Join(cfg.Paths.PDFDir, "sub", "x.pdf")
	w.Dispatch(RawEvent{Kind: Created, Path: pdf})
	w.Dispatch(RawEvent{Kind: Deleted, Path: pdf})
	w.Dispatch(RawEvent{Kind: Modified, Path: pdf})
	w.Dispatch(RawEvent{Kind: Created, Path: filepath.Join(cfg.Paths.PDFDir, "x.pdf.title")})
	w.Dispatch(RawEvent{Kind: Created, Path: filepath.Join(cfg.Paths.PDFDir, "notes.md")})

	own := filepath.Join(cfg.Paths.PDFDir, "PMID_9_y.pdf")
	w.Suppress(own)
	w.Dispatch(RawEvent{Kind: Created, Path: own})
	w.Dispatch(RawEvent{Kind: Created, Path: own})

	if _, _, folder, _ := rec.snapshot(); folder != 3 {
		t.Fatalf("expected create, delete, and unsuppressed repeat, got %d", folder)
	}
}

func TestPipelineDestinationDoesNotSignalFolderChange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	src := filepath.Join(cfg.Paths.DownloadsDir, "paper.pdf")
	testsupport.WriteFile(t, src, 10)
	w.Dispatch(RawEvent{Kind: Created, Path: src})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 1 {
		t.Fatalf("expected arrival, got %v", arrived)
	}
	w.Dispatch(RawEvent{Kind: Created, Path: arrived[0]})
	if _, _, folder, _ := rec.snapshot(); folder != 0 {
		t.Fatalf("own destination should not count as folder change, got %d", folder)
	}
}

func TestProjectModifyCollapses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProjectFile("refs.yaml", "- title: A\n  pmid: \"1\"\n"))
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	for range 3 {
		w.Dispatch(RawEvent{Kind: Modified, Path: cfg.Paths.ProjectFile})
	}
	w.Stop()

	_, projects, _, _ := rec.snapshot()
	if len(projects) != 1 || projects[0] != cfg.Paths.ProjectFile {
		t.Fatalf("expected one project change, got %v", projects)
	}
}

func TestProjectSaveViaRename(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProjectFile("refs.yaml", "- title: A\n"))
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	tmp := filepath.Join(filepath.Dir(cfg.Paths.ProjectFile), ".refs.yaml.swp")
	w.Dispatch(RawEvent{Kind: Moved, Path: tmp, Dest: cfg.Paths.ProjectFile})
	w.Stop()

	_, projects, _, _ := rec.snapshot()
	if len(projects) != 1 {
		t.Fatalf("expected rename onto project file to reload, got %v", projects)
	}
}

func TestProjectZeroSizeIgnored(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProjectFile("refs.yaml", ""))
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	w.Dispatch(RawEvent{Kind: Modified, Path: cfg.Paths.ProjectFile})
	w.Stop()

	_, projects, _, problems := rec.snapshot()
	if len(projects) != 0 || len(problems) != 0 {
		t.Fatalf("expected truncated save to be ignored, got projects=%v problems=%v", projects, problems)
	}
}

func TestNewDirectoryReplaysFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := newTestWatcher(t, cfg, rec)

	sub := filepath.Join(cfg.Paths.DownloadsDir, "batch")
	testsupport.WriteFile(t, filepath.Join(sub, "one.pdf"), 10)
	testsupport.WriteFile(t, filepath.Join(sub, "two.pdf"), 12)
	w.Dispatch(RawEvent{Kind: Created, Path: sub, IsDir: true})
	w.Stop()

	arrived, _, _, _ := rec.snapshot()
	if len(arrived) != 2 {
		t.Fatalf("expected both files in new directory to be filed, got %v", arrived)
	}
}

func TestInaccessibleRootReportsProblem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	missing := filepath.Join(testsupport.BaseDir(cfg), "nope")
	cfg.Paths.DownloadsDir = missing
	rec := newRecorder()
	w := New(rec, OptionsFromConfig(cfg, nil))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	_, _, _, problems := rec.snapshot()
	if len(problems) != 1 {
		t.Fatalf("expected one problem, got %v", problems)
	}
	p := problems[0]
	if p.Kind != ProblemRootInaccessible || p.Severity != SeverityWarning || p.Path != missing {
		t.Fatalf("unexpected problem %+v", p)
	}
	if !errors.Is(p, os.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", p.Err)
	}

	var accessible int
	for _, root := range w.Roots() {
		if root.Accessible {
			accessible++
		}
	}
	if accessible != 1 {
		t.Fatalf("expected only the pdf folder to be usable, roots=%+v", w.Roots())
	}
}

func TestFileRootReportsNotDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	file := filepath.Join(testsupport.BaseDir(cfg), "plain")
	testsupport.WriteFile(t, file, 1)
	roots := computeRoots(Paths{DownloadsDir: file})
	if len(roots) != 1 || roots[0].Accessible || !errors.Is(roots[0].Err, ErrNotDirectory) {
		t.Fatalf("unexpected roots %+v", roots)
	}
}

func TestComputeRootsRoles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProjectFile("refs.yaml", "x"))
	roots := computeRoots(PathsFromConfig(cfg))
	if len(roots) != 3 {
		t.Fatalf("expected three roots, got %+v", roots)
	}
	want := []struct {
		role      Role
		path      string
		recursive bool
	}{
		{RoleDownloads, cfg.Paths.DownloadsDir, true},
		{RoleProjectFileDir, filepath.Dir(cfg.Paths.ProjectFile), false},
		{RolePdfFolder, cfg.Paths.PDFDir, true},
	}
	for i, w := range want {
		r := roots[i]
		if r.Role != w.role || r.Path != w.path || r.Recursive != w.recursive || !r.Accessible {
			t.Fatalf("root %d = %+v, want %+v", i, r, w)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	var never *Watcher
	never.Stop()

	cfg := testsupport.NewConfig(t)
	w := New(nil, OptionsFromConfig(cfg, nil))
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestUpdatePathsWhileRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := New(rec, OptionsFromConfig(cfg, nil))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	other := filepath.Join(testsupport.BaseDir(cfg), "other-downloads")
	if err := os.MkdirAll(other, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := w.UpdatePaths(Paths{DownloadsDir: other, PDFDir: cfg.Paths.PDFDir}); err != nil {
		t.Fatalf("UpdatePaths: %v", err)
	}
	roots := w.Roots()
	if len(roots) != 2 || roots[0].Path != other {
		t.Fatalf("expected new downloads root, got %+v", roots)
	}
}

func TestWatcherFilesRealDownload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := newRecorder()
	w := New(rec, OptionsFromConfig(cfg, nil))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	src := filepath.Join(cfg.Paths.DownloadsDir, "fresh.pdf")
	testsupport.WriteFile(t, src, 4096)

	want := "arrived:" + filepath.Join(cfg.Paths.PDFDir, "fresh.pdf")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-rec.notify:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
