package sqlgen

import "fmt"

// UnsupportedActionError is returned when an action is not allowed by the
// operation the dispatcher is serving, or cannot be expressed for a vendor.
type UnsupportedActionError struct {
	Action    string
	Operation string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("action %s not supported for this operation (%s)", e.Action, e.Operation)
}

// ExecError reports a statement the database rejected.
type ExecError struct {
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
