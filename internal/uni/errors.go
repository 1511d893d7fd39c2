package uni

import (
	"errors"
	"fmt"
)

// Sentinel errors for UNI parsing.
var (
	// ErrEmptyInput indicates the source contained zero lines.
	ErrEmptyInput = errors.New("uni: empty input")

	// ErrMissingBodyMarkers indicates the Body Start / Body End
	// sentinel keys were not both present in the header.
	ErrMissingBodyMarkers = errors.New("uni: body not marked by Body Start and Body End")

	// ErrMissingTimezone indicates the required Time zone property is
	// absent or malformed.
	ErrMissingTimezone = errors.New("uni: missing or malformed Time zone property")

	// ErrNotApplicable indicates the resolved variant intentionally
	// lacks the requested view (for example, MIG interval exports
	// carry no metadata frame). It marks an absent capability, not a
	// processing failure.
	ErrNotApplicable = errors.New("uni: operation not applicable to this variant")
)

// ConvertError reports a failed cell conversion: a value that should
// have decoded as a number or timestamp but did not. Layout probing
// keys on this type to decide whether to retry with another column
// layout.
type ConvertError struct {
	Column string // semantic column name, if known
	Value  string // the offending cell content
	Err    error  // underlying conversion failure
}

func (e *ConvertError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("uni: convert column %q value %q: %v", e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("uni: convert value %q: %v", e.Value, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }
