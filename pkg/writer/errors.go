package writer

import "fmt"

// WriteError reports a serialization or filesystem failure for one output.
// When it is returned no partially written file is left at Path.
type WriteError struct {
	Table string
	Path  string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error: table %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
