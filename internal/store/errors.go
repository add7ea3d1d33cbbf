package store

import "github.com/noveldeck/noveldeck-server/internal/errors"

// ErrNotFound is returned when a requested row does not exist.
// It aliases the domain-wide sentinel so callers can match either way.
var ErrNotFound = errors.ErrNotFound
