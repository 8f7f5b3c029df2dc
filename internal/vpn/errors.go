package vpn

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch indicates an argument of the wrong shape.
	ErrTypeMismatch = errors.New("incorrect argument type")
	// ErrNoServers indicates an empty server address list.
	ErrNoServers = errors.New("no servers were provided")
	// ErrUnsupportedProtocol indicates a protocol without a generation strategy.
	ErrUnsupportedProtocol = errors.New("unsupported vpn protocol")
	// ErrUnclassified wraps unexpected generation failures that were sent to the crash reporter.
	ErrUnclassified = errors.New("artifact generation failed")
	// ErrFilesystem indicates a cache file operation failed.
	ErrFilesystem = errors.New("cache filesystem error")

	errNoDispatchEntry = errors.New("no dispatch entry")
)

// UnsupportedProtocolError is returned when dispatch finds no strategy for Protocol.
// It matches ErrUnsupportedProtocol and unwraps to the lookup failure.
type UnsupportedProtocolError struct {
	Protocol Protocol
	Err      error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrUnsupportedProtocol, string(e.Protocol), e.Err)
}

func (e *UnsupportedProtocolError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == ErrUnsupportedProtocol
}

// TypeMismatch returns ErrTypeMismatch annotated with the offending field.
func TypeMismatch(field, want string) error {
	return fmt.Errorf("%w: %s must be %s", ErrTypeMismatch, field, want)
}
