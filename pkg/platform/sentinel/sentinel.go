package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: the aggregate or record does not exist in the store
//   - ErrConflict: the stored version moved since the aggregate was loaded
//   - ErrAlreadyExists: a create collided with an existing id
//   - ErrUnavailable: the backing service is temporarily unavailable
//
// Validation failures never use these; they come from pkg/domain-errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnavailable   = errors.New("unavailable")
)
