package loader

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns missing from a raw extract
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s is missing required columns: %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// ParseError reports a numeric cell that cannot be coerced to its type
type ParseError struct {
	Path   string
	Line   int // 1-based line in the file, header included
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s line %d column %s: cannot convert %q: %v",
		e.Path, e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
