package install

import "fmt"

// Granter opens up filesystem permissions on a path so the game (which may
// run as a different user, or under Wine/Proton) can read and replace it.
// Callers treat failures as non-fatal.
type Granter interface {
	GrantFullAccess(path string) error
}

// PermissionError is returned by Granter implementations.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("grant access %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// NopGranter does nothing.
type NopGranter struct{}

func (NopGranter) GrantFullAccess(string) error { return nil }

// GranterFunc adapts a function to the Granter interface.
type GranterFunc func(path string) error

func (f GranterFunc) GrantFullAccess(path string) error { return f(path) }
