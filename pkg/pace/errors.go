package pace

import "errors"

var (
	ErrNoSamples      = errors.New("pace: collector has no samples")
	ErrAlreadyRunning = errors.New("pace: pacer already running")
	ErrNotRunning     = errors.New("pace: pacer not running")
	ErrNilAction      = errors.New("pace: action must not be nil")
)
