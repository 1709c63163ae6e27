package policy

import "fmt"

// ParseError indicates that a policy file exists but could not be parsed.
// It is fatal at startup; there is no retry.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse policy file %s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error.
func NewParseError(path string, cause error) *ParseError {
	return &ParseError{Path: path, Cause: cause}
}
