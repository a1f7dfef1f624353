// Package playererr defines the typed error kinds the playback engine
// surfaces to callers, replacing the original's integer error codes with
// errors.Is-compatible sentinels.
package playererr

import (
	"fmt"
	"syscall"
)

// Kind enumerates the error categories the core engine can raise.
type Kind int

const (
	// KindErrno wraps a syscall failure.
	KindErrno Kind = iota
	// KindUnrecognizedFileType means no plugin claims the file's extension.
	KindUnrecognizedFileType
	// KindFileFormat means a plugin opened the stream but the content is malformed.
	KindFileFormat
	// KindSampleFormat means an output sink cannot accept the source's sample format.
	KindSampleFormat
	// KindFunctionNotSupported means an operation (typically seek) is not
	// supported on the current stream.
	KindFunctionNotSupported
	// KindInvalidURI means a URI could not be parsed.
	KindInvalidURI
	// KindHTTPResponse means the HTTP response was malformed.
	KindHTTPResponse
	// KindHTTPStatus means the HTTP server returned a non-redirect, non-200 status.
	KindHTTPStatus
	// KindHTTPRedirectLimit means the redirect chain exceeded the configured limit.
	KindHTTPRedirectLimit
	// KindInternal means a plugin or engine invariant was violated.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindErrno:
		return "ERRNO"
	case KindUnrecognizedFileType:
		return "UNRECOGNIZED_FILE_TYPE"
	case KindFileFormat:
		return "FILE_FORMAT"
	case KindSampleFormat:
		return "SAMPLE_FORMAT"
	case KindFunctionNotSupported:
		return "FUNCTION_NOT_SUPPORTED"
	case KindInvalidURI:
		return "INVALID_URI"
	case KindHTTPResponse:
		return "HTTP_RESPONSE"
	case KindHTTPStatus:
		return "HTTP_STATUS"
	case KindHTTPRedirectLimit:
		return "HTTP_REDIRECT_LIMIT"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned by the engine and its
// collaborators. It carries enough detail to reconstruct the original's
// error-kind payloads (errno, HTTP status/reason) without losing the
// wrapped cause.
type Error struct {
	Kind       Kind
	Errno      syscall.Errno
	HTTPStatus int
	HTTPReason string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindErrno:
		return fmt.Sprintf("%s: %v", e.Kind, e.Errno)
	case KindHTTPStatus:
		return fmt.Sprintf("%s: %d %s", e.Kind, e.HTTPStatus, e.HTTPReason)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, playererr.SampleFormat) style matching against
// the sentinel values below, comparing only on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	SampleFormat        = &Error{Kind: KindSampleFormat}
	FunctionNotSupported = &Error{Kind: KindFunctionNotSupported}
	UnrecognizedFileType = &Error{Kind: KindUnrecognizedFileType}
	FileFormat           = &Error{Kind: KindFileFormat}
	InvalidURI           = &Error{Kind: KindInvalidURI}
	HTTPResponse         = &Error{Kind: KindHTTPResponse}
	HTTPRedirectLimit    = &Error{Kind: KindHTTPRedirectLimit}
	Internal             = &Error{Kind: KindInternal}
)

// Errno wraps a syscall error as a KindErrno playererr.Error.
func Errno(err error) *Error {
	var errno syscall.Errno
	if e, ok := err.(syscall.Errno); ok {
		errno = e
	}
	return &Error{Kind: KindErrno, Errno: errno, Err: err}
}

// New constructs an Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// HTTPStatusError constructs a KindHTTPStatus error.
func HTTPStatusError(status int, reason string) *Error {
	return &Error{Kind: KindHTTPStatus, HTTPStatus: status, HTTPReason: reason}
}
