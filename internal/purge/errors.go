package purge

import "fmt"

// Error describes a failed purge call.
type Error struct {
	Name       string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("purge %s cache: %v", e.Name, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("purge %s cache: unexpected status %d: %s", e.Name, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("purge %s cache: unexpected status %d", e.Name, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}
