package dictionary

import (
	"errors"
	"fmt"
)

// SourceMissingError reports a raw source file that is absent or unreadable.
type SourceMissingError struct {
	Path string
	Err  error
}

func (e *SourceMissingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dictionary source missing: %s", e.Path)
	}
	return fmt.Sprintf("dictionary source missing: %s: %v", e.Path, e.Err)
}

func (e *SourceMissingError) Unwrap() error { return e.Err }

// ParseError reports a source whose top-level structure could not be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse dictionary source %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsSourceMissing reports whether err wraps a SourceMissingError.
func IsSourceMissing(err error) bool {
	var target *SourceMissingError
	return errors.As(err, &target)
}

// IsParseError reports whether err wraps a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
