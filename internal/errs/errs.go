// Package errs holds the error types raised by the scaffolding stages.
package errs

import "fmt"

// NetworkError reports a failed template download: the request could not be
// made or the server answered with a non-success status.
type NetworkError struct {
	URL    string
	Status string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: bad status: %s", e.URL, e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FilesystemError reports a missing, colliding or unreadable path.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// FS is shorthand for building a FilesystemError.
func FS(op, path string, err error) error {
	return &FilesystemError{Op: op, Path: path, Err: err}
}

// SubprocessError reports a dependency install that did not exit cleanly.
type SubprocessError struct {
	Command  string
	Dir      string
	ExitCode int
	Err      error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%q in %s failed (exit code %d): %v", e.Command, e.Dir, e.ExitCode, e.Err)
}

func (e *SubprocessError) Unwrap() error { return e.Err }
