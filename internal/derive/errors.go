package derive

import "fmt"

// Error is the panic value for invalid derivation input. It indicates a
// programmer error and is never recovered by this module.
type Error struct {
	Kind   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("derive %s: %s", e.Kind, e.Reason)
}
