// Package xerror holds the error taxonomy shared across Kaze's core
// packages: ring, channel, packet and wire return these sentinels (wrapped
// with context), and resolver's ErrNotImplemented wraps ErrInvalid. corral
// defines its own connection-closed sentinel, and rpctracker returns no
// errors.
package xerror

import "errors"

var (
	// ErrInvalid means an argument violated a precondition.
	ErrInvalid = errors.New("invalid argument")
	// ErrClosed means the channel or connection was shut in the affected
	// direction.
	ErrClosed = errors.New("closed")
	// ErrTooBig means a frame would not fit in the ring no matter how
	// much space frees up.
	ErrTooBig = errors.New("too big")
	// ErrAgain means the non-blocking path would block.
	ErrAgain = errors.New("again")
	// ErrBusy means a resource was contended beyond its deadline.
	ErrBusy = errors.New("busy")
	// ErrTimeout means a deadline elapsed.
	ErrTimeout = errors.New("timeout")
)

// Unwrap panics if err is non-nil, otherwise returns t. It is for
// fixtures built from functions returning (T, error) where the error
// path never triggers; no code in the module calls it.
func Unwrap[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}
