package model

import "errors"

// Recoverable failure kinds of the blur task.
var (
	ErrMissingInput = errors.New("missing required input")
	ErrDecode       = errors.New("decode image")
	ErrEncode       = errors.New("encode image")
	ErrIO           = errors.New("image i/o")
)

// FailureKind returns a short tag for the kind of err, suitable for
// WorkInfo.Failure and metric labels.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "unknown"
	}
}
