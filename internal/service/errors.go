package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes and response envelope error codes.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobFailed       = errors.New("job failed")
	ErrMissingInput    = errors.New("input file id is required")
	ErrInputNotFound   = errors.New("input file not found")
)
