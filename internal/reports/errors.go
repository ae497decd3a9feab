package reports

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when a requested name lacks an allowed extension.
	ErrInvalidFormat = errors.New("invalid report format")

	// ErrNotFound is returned when no report exists at the sanitized path. It does
	// not distinguish a traversal attempt from a typo.
	ErrNotFound = errors.New("report not found")

	// ErrNoReportsAvailable is returned when an archive is requested while the
	// reports directory is empty or missing.
	ErrNoReportsAvailable = errors.New("no reports available")
)

// EncodingError is returned when the archive encoder fails after streaming
// started. Response headers may already be committed.
type EncodingError struct {
	// Report is the entry being written when the failure happened, empty when
	// finalizing the archive.
	Report string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Report == "" {
		return fmt.Sprintf("failed to finalize archive: %v", e.Err)
	}
	return fmt.Sprintf("failed to archive report %s: %v", e.Report, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
