//go:build linux

package futex

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func wait(addr *uint32, expect uint32, deadline time.Time) error {
	var ts *unix.Timespec
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			// Still issue the syscall with a zero timeout so a
			// same-instant wakeup racing the deadline is observed
			// rather than skipped.
			d = 0
		}
		tv := unix.NsecToTimespec(d.Nanoseconds())
		ts = &tv
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expect),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		// EAGAIN: *addr != expect, the word already changed.
		// EINTR: a signal interrupted the wait; caller re-checks.
		return nil
	case unix.ETIMEDOUT:
		return errTimedOut
	default:
		return errno
	}
}

func wake(addr *uint32, n int) (int, error) {
	woken, _, errno := unix.Syscall(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(woken), nil
}
