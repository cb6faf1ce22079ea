package upload

import (
	"fmt"

	"github.com/eugenenazirov/sitepublish/internal/storage"
)

// Error is returned when a file could not be uploaded; the run must stop.
type Error struct {
	Target   storage.Target
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s failed after %d attempts: %v", e.Target.RelativePath, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
