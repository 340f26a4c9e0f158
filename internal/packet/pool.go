package packet

import "sync"

// Pool hands out scratch buffers for encoding dirty packets, grounded on
// the same sync.Pool idiom the teacher uses for its route structs
// (controlplane/modules/route/internal/rib/pools.go). Buffers are cleared
// to zero length (not zeroed byte-for-byte — callers always overwrite
// before reading) on return so a leaked reference never resurfaces stale
// data from an unrelated packet.
type Pool struct {
	p sync.Pool
}

// NewPool returns a Pool whose buffers start at the given capacity.
func NewPool(initialCap int) *Pool {
	return &Pool{
		p: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, initialCap)
				return &buf
			},
		},
	}
}

// Get returns a zero-length buffer with at least some prior capacity.
func (p *Pool) Get() *[]byte {
	return p.p.Get().(*[]byte)
}

// Put returns buf to the pool. The caller must not use buf afterward.
func (p *Pool) Put(buf *[]byte) {
	*buf = (*buf)[:0]
	p.p.Put(buf)
}
