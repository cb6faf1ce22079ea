package deploy

import (
	"errors"
	"fmt"
)

// ErrHelp is returned by ParseMode when the argument asks for usage text.
var ErrHelp = errors.New("help requested")

// UsageError reports an unrecognised run mode.
type UsageError struct {
	Arg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("unknown mode %q (expected repo, cdn or both)", e.Arg)
}

// StepError identifies the run step that failed.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
