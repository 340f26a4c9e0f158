package kazectx

import (
	"sync/atomic"

	"github.com/kaze-mesh/kaze/internal/pipeline"
)

// PipelineCell is a settable slot holding the currently-active chain for
// one traffic path. spec.md §4.10 calls for two of these on the
// Context: one for the refined chain (host-submitted packets, rate-limited
// then dispatched) and one for the raw chain (peer-received packets,
// dispatched without rate limiting), swappable at runtime
// without pausing readers already holding a snapshot.
type PipelineCell struct {
	v atomic.Pointer[pipeline.Chain]
}

// Set installs chain as the cell's current value.
func (c *PipelineCell) Set(chain *pipeline.Chain) { c.v.Store(chain) }

// Get returns the current chain, or nil if none has been Set yet.
func (c *PipelineCell) Get() *pipeline.Chain { return c.v.Load() }
