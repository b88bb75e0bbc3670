package notify

import "errors"

// permanentError marks delivery failures that will not succeed on a later attempt.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	if e.err == nil {
		return "permanent delivery failure"
	}
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

func (permanentError) Permanent() bool {
	return true
}

// MarkPermanent tags err as a permanent delivery failure.
// Params: source error.
// Returns: wrapped error or nil.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err carries a permanent marker.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var tagged interface{ Permanent() bool }
	if !errors.As(err, &tagged) {
		return false
	}
	return tagged.Permanent()
}
