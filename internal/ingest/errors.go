package ingest

import "errors"

// Domain-specific errors for import operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrImportNotFound is returned when the requested import does not exist.
	ErrImportNotFound = errors.New("ingest: import not found")

	// ErrAlreadyImported is returned when a file with the same name was
	// processed before.
	ErrAlreadyImported = errors.New("ingest: file already imported")
)
