// Package futex provides a cross-process atomic wait/wake primitive over a
// 32-bit word living in memory shared between two unrelated processes (a
// host and its Kaze sidecar, mapped from the same file). It is the
// wakeup mechanism the ring buffer in internal/ring builds on.
//
// On Linux this is backed directly by the futex(2) syscall, operating on
// the real word inside the shared mapping, so the kernel wakes exactly the
// waiters blocked on that address regardless of which process they belong
// to. Platforms without a futex syscall fall back to a spin-then-sleep
// loop (see futex_other.go), per the emulation strategy spec.md §9
// describes for platforms lacking a native primitive.
package futex

import "time"

// Wait blocks until *addr no longer equals expect, the deadline elapses, or
// a spurious wakeup occurs (callers must re-check *addr in a loop, exactly
// like Linux's FUTEX_WAIT). A zero deadline means wait forever.
//
// Wait must be called from the runtime's "may-block" escape hatch: it can
// park an OS thread for the full duration of the wait.
func Wait(addr *uint32, expect uint32, deadline time.Time) error {
	return wait(addr, expect, deadline)
}

// Wake wakes up to n waiters blocked on addr and returns how many were
// actually woken. Waking an address with no waiters is a harmless no-op.
func Wake(addr *uint32, n int) (int, error) {
	return wake(addr, n)
}
