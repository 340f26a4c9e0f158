package pipeline

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/kaze-mesh/kaze/internal/packet"
)

// CorralSender is the subset of *corral.Corral the sink stages need,
// kept as an interface so pipeline tests don't need a live TCP listener.
type CorralSender interface {
	SendTo(ctx context.Context, ident uint32, addr net.Addr, p packet.Packet) error
	SendBroadcast(ctx context.Context, nodes func(yield func(ident uint32, addr net.Addr)), p packet.Packet) error
}

// CorralSinkStage is step 5 of spec.md §4.8: routes Node/NodeList
// destinations out over TCP; it passes Host-destined messages through
// unchanged.
type CorralSinkStage struct {
	corral CorralSender
}

// NewCorralSinkStage wraps corral as a Stage.
func NewCorralSinkStage(corral CorralSender) *CorralSinkStage {
	return &CorralSinkStage{corral: corral}
}

func (s *CorralSinkStage) Handle(ctx context.Context, msg Message) (Message, error) {
	switch msg.Destination {
	case DestNode:
		if err := s.corral.SendTo(ctx, msg.Node.Ident, msg.Node.Addr, msg.Packet); err != nil {
			return msg, fmt.Errorf("pipeline: corral sink: %w", err)
		}
		msg.Destination = DestDrop
		return msg, nil

	case DestNodeList:
		nodes := msg.NodeList
		err := s.corral.SendBroadcast(ctx, func(yield func(ident uint32, addr net.Addr)) {
			for _, n := range nodes {
				yield(n.Ident, n.Addr)
			}
		}, msg.Packet)
		msg.Destination = DestDrop
		if err != nil {
			return msg, fmt.Errorf("pipeline: corral sink broadcast: %w", err)
		}
		return msg, nil

	default:
		return msg, nil
	}
}

// HostSender is the subset of *edge.Sender the edge sink stage needs.
type HostSender interface {
	SendBuf(buf []byte, deadline time.Time) error
}

// EdgeSinkStage is step 6 of spec.md §4.8: serializes Host-destined
// messages into the host channel.
type EdgeSinkStage struct {
	sender HostSender
	pool   *packet.Pool
}

// NewEdgeSinkStage wraps sender as a Stage.
func NewEdgeSinkStage(sender HostSender, pool *packet.Pool) *EdgeSinkStage {
	return &EdgeSinkStage{sender: sender, pool: pool}
}

func (s *EdgeSinkStage) Handle(_ context.Context, msg Message) (Message, error) {
	if msg.Destination != DestHost {
		return msg, nil
	}
	chunk, release := msg.Packet.EncodeChunk(s.pool)
	defer release()
	if err := s.sender.SendBuf(chunk, time.Time{}); err != nil {
		return msg, fmt.Errorf("pipeline: edge sink: %w", err)
	}
	msg.Destination = DestDrop
	return msg, nil
}

// TerminalSinkStage is step 7 of spec.md §4.8: drops and logs whatever
// is left (anything still not DestDrop after the sinks above, which
// should only be DestDrop already or a route that resolved to nothing).
type TerminalSinkStage struct {
	log *zap.SugaredLogger
}

// NewTerminalSinkStage wraps log as a Stage.
func NewTerminalSinkStage(log *zap.SugaredLogger) *TerminalSinkStage {
	return &TerminalSinkStage{log: log}
}

func (s *TerminalSinkStage) Handle(_ context.Context, msg Message) (Message, error) {
	if msg.Destination != DestDrop && s.log != nil {
		s.log.Debugw("dropping undelivered packet", "bodyType", msg.Packet.Hdr.BodyType, "destination", msg.Destination)
	}
	msg.Destination = DestDrop
	return msg, nil
}
