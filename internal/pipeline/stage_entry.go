package pipeline

import (
	"context"
	"net"

	"github.com/kaze-mesh/kaze/internal/packet"
)

// EntryStage is step 1 of spec.md §4.8: PacketWithAddr -> Message,
// trivial construction that attaches the source address.
type EntryStage struct{}

// Wrap builds the initial Message for p, arrived from src (nil for
// host-originated packets).
func (EntryStage) Wrap(p packet.Packet, src net.Addr) Message {
	return Message{Packet: p, SourceAddr: src}
}

func (EntryStage) Handle(_ context.Context, msg Message) (Message, error) {
	return msg, nil
}
