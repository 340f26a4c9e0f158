package futex

import "errors"

var errTimedOut = errors.New("futex: wait timed out")

// IsTimeout reports whether err was returned because the wait deadline
// elapsed before the word changed.
func IsTimeout(err error) bool {
	return errors.Is(err, errTimedOut)
}
