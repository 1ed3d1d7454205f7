package watcher

import "fmt"

// Role identifies what a watched root is for.
type Role int

const (
	RoleDownloads Role = iota
	RoleProjectFileDir
	RolePdfFolder
)

func (r Role) String() string {
	switch r {
	case RoleDownloads:
		return "downloads"
	case RoleProjectFileDir:
		return "project"
	case RolePdfFolder:
		return "pdf_folder"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Root is one watched directory and whether it passed validation.
type Root struct {
	Path       string
	Role       Role
	Recursive  bool
	Accessible bool
	Err        error
}

// Paths are the locations a Watcher observes.
type Paths struct {
	DownloadsDir string
	PDFDir       string
	ProjectFile  string
}

// ProblemKind classifies a Problem.
type ProblemKind int

const (
	// ProblemRootInaccessible means a root is missing, not a directory, or
	// lacks read/write permission. The root is skipped.
	ProblemRootInaccessible ProblemKind = iota
	// ProblemFileOperation means moving or copying a download failed. The
	// source is left in place.
	ProblemFileOperation
)

func (k ProblemKind) String() string {
	switch k {
	case ProblemRootInaccessible:
		return "root_inaccessible"
	case ProblemFileOperation:
		return "file_operation"
	default:
		return fmt.Sprintf("ProblemKind(%d)", int(k))
	}
}

// Severity grades a Problem.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Problem is a condition the user should hear about.
type Problem struct {
	Kind     ProblemKind
	Severity Severity
	Path     string
	Err      error
}

func (p Problem) Error() string {
	if p.Err == nil {
		return fmt.Sprintf("%s %s: %s", p.Severity, p.Kind, p.Path)
	}
	return fmt.Sprintf("%s %s: %s: %v", p.Severity, p.Kind, p.Path, p.Err)
}

func (p Problem) Unwrap() error { return p.Err }

// Handler receives logical events.
type Handler interface {
	PdfArrived(path string)
	ProjectFileChanged(path string)
	PdfFolderChanged()
	Problem(p Problem)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	OnPdfArrived         func(path string)
	OnProjectFileChanged func(path string)
	OnPdfFolderChanged   func()
	OnProblem            func(p Problem)
}

func (h HandlerFuncs) PdfArrived(path string) {
	if h.OnPdfArrived != nil {
		h.OnPdfArrived(path)
	}
}

func (h HandlerFuncs) ProjectFileChanged(path string) {
	if h.OnProjectFileChanged != nil {
		h.OnProjectFileChanged(path)
	}
}

func (h HandlerFuncs) PdfFolderChanged() {
	if h.OnPdfFolderChanged != nil {
		h.OnPdfFolderChanged()
	}
}

func (h HandlerFuncs) Problem(p Problem) {
	if h.OnProblem != nil {
		h.OnProblem(p)
	}
}

// EventKind is the kind of a raw filesystem notification.
type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
	Moved
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// RawEvent is a filesystem notification before debouncing. For Moved, Path
// is the source and Dest the destination; Dest is empty when the platform
// only reported the old name.
type RawEvent struct {
	Kind  EventKind
	Path  string
	Dest  string
	IsDir bool
}
