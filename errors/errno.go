// Package errors defines the closed status-code vocabulary returned by every
// operation in this module: OK, Err, NotMount, MaxFilesReached, NoSpaceLeft,
// NotFound, Exists, NotFile, NotDir, SizeErr, NotEmpty. There is no
// throwing/propagation mechanism beyond early return: exported functions
// return one of these codes as a *StatusError, or nil for success. The
// teardown paths block.Device.Release and sfs.FileSystem.Unmount aggregate
// several such errors in a *multierror.Error.
package errors

import "fmt"

// Status is one of the sentinel return codes. The zero value is OK; it is
// never itself wrapped in a StatusError since a successful call returns nil.
type Status int

const (
	OK Status = iota
	Err
	NotMount
	MaxFilesReached
	NoSpaceLeft
	NotFound
	Exists
	NotFile
	NotDir
	SizeErr
	NotEmpty
)

var statusText = map[Status]string{
	OK:              "ok",
	Err:             "generic or device error",
	NotMount:        "file system not mounted",
	MaxFilesReached: "descriptor table is full",
	NoSpaceLeft:     "no space left on device",
	NotFound:        "no such file or directory",
	Exists:          "file already exists",
	NotFile:         "not a regular file or symlink",
	NotDir:          "not a directory",
	SizeErr:         "invalid offset or size",
	NotEmpty:        "directory not empty",
}

func (s Status) Error() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// WithMessage attaches context to a status without changing the underlying
// code; errors.Is still matches against the sentinel Status value.
func (s Status) WithMessage(message string) *StatusError {
	return &StatusError{
		status:  s,
		message: fmt.Sprintf("%s: %s", s.Error(), message),
	}
}

// Wrap attaches an underlying error (e.g. an I/O failure surfaced by the
// block device) to a status, preserving it for errors.Unwrap/errors.As.
func (s Status) Wrap(err error) *StatusError {
	return &StatusError{
		status:  s,
		message: fmt.Sprintf("%s: %s", s.Error(), err.Error()),
		wrapped: err,
	}
}
