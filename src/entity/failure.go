package entity

import "fmt"

// ErrorKind tells apart why a call to the service manager failed.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUnreachable      ErrorKind = "unreachable"
	KindUnsupported      ErrorKind = "unsupported"
	KindUnknown          ErrorKind = "unknown"
)

// Failure is an error converted into a value so it can travel inside a result.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewFailure(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Is reports whether f has the given kind. A nil failure has KindNone.
func (f *Failure) Is(kind ErrorKind) bool {
	if f == nil {
		return kind == KindNone
	}
	return f.Kind == kind
}
