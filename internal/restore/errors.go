package restore

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when no restoration job exists for a backup
var ErrJobNotFound = errors.New("no restoration job found for this backup")

// ConflictError is returned by Start when the backup is already loaded or a
// restoration for it is still in flight. No state is changed.
type ConflictError struct {
	BackupID string
	Reason   string
	Status   string
	Progress *int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("backup %s: %s (status: %s)", e.BackupID, e.Reason, e.Status)
}
