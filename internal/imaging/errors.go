package imaging

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure. Callers map kinds to transport
// status codes; the message of the wrapped error is for humans only.
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindNetwork           Kind = "network"
	KindBase64Decode      Kind = "base64_decode"
	KindDecode            Kind = "decode"
	KindEncode            Kind = "encode"
	KindParamsInvalid     Kind = "params_invalid"
)

// Error is the single structured error surfaced by decode, encode and
// pipeline operations.
type Error struct {
	Kind Kind
	// Op names the operation or codec that failed (e.g. "load", "png").
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and operation name. A nil err yields nil.
func NewError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
