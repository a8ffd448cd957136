package schedule

import "errors"

// ErrNotFound is returned when a requested entry or title does not exist.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a business rule (blank
// location, malformed date, end date before start date).
// Handlers map this to HTTP 422.
var ErrValidation = errors.New("validation error")

// ErrMalformed is returned when a stored record cannot be mapped into the
// model. Snapshot consumers skip such records instead of failing the batch.
var ErrMalformed = errors.New("malformed record")
