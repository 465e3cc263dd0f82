package engine

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrBulkJobNotFound   = errors.New("bulk job not found")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrDuplicateJob      = errors.New("job id already exists")
	ErrTooManyTargets    = errors.New("too many targets")
	ErrInvalidCapability = errors.New("invalid capability registration")

	ErrAlreadyStarted = errors.New("engine already started")
	ErrNotStarted     = errors.New("engine not started")
	ErrStopped        = errors.New("engine has been stopped")
)
