package graypress

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ProcessError is the error type used by every graypress component. Errors
// compare with errors.Is against both the sentinel they were derived from and
// any error they wrap.
type ProcessError interface {
	error
	WithMessage(message string) ProcessError
	Wrap(err error) ProcessError
}

type baseProcessError string

const rootError = baseProcessError("")

// Fatal to an archive's run.
var ErrArchiveRead = rootError.WithMessage("Cannot read archive")
var ErrArchiveWrite = rootError.WithMessage("Cannot write archive")

// Per-image; the image is skipped and excluded from the rename plan.
var ErrImageDecode = rootError.WithMessage("Cannot decode image")
var ErrImageEncode = rootError.WithMessage("Cannot encode image")

// Per-file; the file is left unrewritten.
var ErrManifestParse = rootError.WithMessage("Cannot parse manifest")
var ErrReferenceIO = rootError.WithMessage("Cannot rewrite references")

var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrDuplicateRename = rootError.WithMessage("Duplicate rename source")

func (e baseProcessError) Error() string {
	return string(e)
}

func (e baseProcessError) WithMessage(message string) ProcessError {
	return customProcessError{
		message:       message,
		originalError: e,
	}
}

func (e baseProcessError) Wrap(err error) ProcessError {
	return customProcessError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customProcessError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customProcessError) Error() string {
	return e.message
}

func (e customProcessError) WithMessage(message string) ProcessError {
	return customProcessError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customProcessError) Wrap(err error) ProcessError {
	return customProcessError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customProcessError) Unwrap() error {
	return e.originalError
}
