package protocol

import "fmt"

// NetworkError wraps any connect/read/write failure that is not simply
// "would block" — spec.md §7's NetworkError kind, disposed of by the
// session package resetting both directions to idle and applying
// back-off.
type NetworkError struct {
	err error
}

func (n *NetworkError) Error() string { return fmt.Sprintf("network error: %s", n.err) }
func (n *NetworkError) Unwrap() error { return n.err }

func networkErrorf(format string, args ...interface{}) error {
	return &NetworkError{err: fmt.Errorf(format, args...)}
}
