package history

import "errors"

// ErrSweepNotFound is returned when a sweep ID does not exist.
var ErrSweepNotFound = errors.New("history: sweep not found")
