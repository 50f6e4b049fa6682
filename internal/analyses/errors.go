package analyses

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrSectionFinal = errors.New("section already terminal")
	ErrValidation   = errors.New("invalid input")
)

const (
	ErrorCodeTimeout       = "timeout"
	ErrorCodeRateLimited   = "rate_limited"
	ErrorCodeProvider      = "provider_error"
	ErrorCodeInvalidOutput = "invalid_output"
	ErrorCodePersistence   = "persistence_unavailable"
	ErrorCodeInternal      = "internal"
)
