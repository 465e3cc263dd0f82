package job

import "errors"

var (
	ErrInvalidKind       = errors.New("invalid job kind")
	ErrInvalidPriority   = errors.New("invalid job priority")
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrUnknownPlatform and ErrUnsupportedKind are raised at execution time.
	// They are permanent: retrying cannot fix them.
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnsupportedKind = errors.New("unsupported job kind")
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so the job fails terminally without consuming retries.
func Permanent(err error) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err must not be retried. Unknown platforms and
// unsupported kinds are always permanent, marked or not.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrUnknownPlatform) || errors.Is(err, ErrUnsupportedKind)
}
