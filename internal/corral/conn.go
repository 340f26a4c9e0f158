package corral

import (
	"net"
	"sync"
)

// conn is the connection record from spec.md §3: an address plus a
// write-half guarded by a lock shared between the accept/dial path and
// the corral's vectored senders. The read-half is owned exclusively by
// its reader goroutine.
type conn struct {
	addr net.Addr
	nc   net.Conn

	mu sync.Mutex // guards writes to nc

	firstFrameSeen bool
}

func newConn(nc net.Conn) *conn {
	return &conn{addr: nc.RemoteAddr(), nc: nc}
}

// writev writes every non-empty slice in iov to the connection under the
// write lock, stopping at and returning the first Write error.
func (c *conn) writev(iov ...[]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range iov {
		if len(b) == 0 {
			continue
		}
		if _, err := c.nc.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) close() error {
	return c.nc.Close()
}
