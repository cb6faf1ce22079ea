// Package preflight holds the checks a publisher runs before touching any
// external service.
package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrNotFound indicates the checked path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotDirectory indicates the checked path exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// Error reports a failed precondition. Check names what was verified
// ("distribution directory", "git repository") and Target the path involved.
type Error struct {
	Check  string
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("precondition failed: %s %q: %v", e.Check, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Directory verifies that path exists and is a directory.
func Directory(check, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Check: check, Target: path, Err: ErrNotFound}
		}
		return &Error{Check: check, Target: path, Err: err}
	}
	if !info.IsDir() {
		return &Error{Check: check, Target: path, Err: ErrNotDirectory}
	}
	return nil
}
