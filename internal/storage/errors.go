package storage

import "fmt"

// UploadError describes a failed object upload: either a transport failure
// (Err set) or a non-2xx response (StatusCode set).
type UploadError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upload %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
