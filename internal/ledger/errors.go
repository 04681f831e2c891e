package ledger

import (
	"errors"
	"fmt"
)

// ErrCorrupt is wrapped by load errors caused by unreadable snapshot content.
var ErrCorrupt = errors.New("ledger snapshot is corrupt")

// InvariantError reports an attempt to write a second record for a source id.
type InvariantError struct {
	SourceID      string
	Existing      string // "synced" or "skipped"
	Attempted     string
	DestinationID string // set when Existing is "synced"
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.DestinationID != "" {
		return fmt.Sprintf("ledger invariant: %s already %s as %s, cannot mark %s",
			e.SourceID, e.Existing, e.DestinationID, e.Attempted)
	}
	return fmt.Sprintf("ledger invariant: %s already %s, cannot mark %s",
		e.SourceID, e.Existing, e.Attempted)
}

// IsInvariantError reports whether err wraps an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
