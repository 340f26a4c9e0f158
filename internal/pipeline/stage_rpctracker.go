package pipeline

import (
	"context"

	"github.com/kaze-mesh/kaze/internal/rpctracker"
)

// SeqAllocator hands out RPC sequence numbers.
type SeqAllocator func() uint32

// RPCTrackerStage is step 4 of spec.md §4.8: assigns/clears sequences
// and arms/disarms timers via the tracker.
type RPCTrackerStage struct {
	tracker *rpctracker.Tracker
	alloc   SeqAllocator
}

// NewRPCTrackerStage wraps tracker as a Stage.
func NewRPCTrackerStage(tracker *rpctracker.Tracker, alloc SeqAllocator) *RPCTrackerStage {
	return &RPCTrackerStage{tracker: tracker, alloc: alloc}
}

func (s *RPCTrackerStage) Handle(_ context.Context, msg Message) (Message, error) {
	msg.Packet.Hdr = s.tracker.Observe(msg.Packet.Hdr, s.alloc)
	return msg, nil
}
