package migrate

import "fmt"

// ChecksumMismatchError is returned when an applied change set no longer
// matches its recorded checksum. Change sets before it stay applied; none
// after it run.
type ChecksumMismatchError struct {
	ID     string
	Stored string
	Actual string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("change set %s was modified after it was applied (recorded checksum %s, current %s)", e.ID, e.Stored, e.Actual)
}

// ChangeSetError reports the change set a migration failed in.
type ChangeSetError struct {
	ID  string
	Err error
}

func (e *ChangeSetError) Error() string {
	return fmt.Sprintf("change set %s: %v", e.ID, e.Err)
}

func (e *ChangeSetError) Unwrap() error { return e.Err }
