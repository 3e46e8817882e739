package parser

import "fmt"

// ParseError is returned for malformed or empty OpenDAP ASCII payloads.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: %s", e.Reason)
}
