// Package pipeline implements the typed service chain from spec.md
// §4.8: packet-with-address -> rate-limit -> dispatch -> RPC tracker ->
// corral/edge sinks -> terminal drop, composed from small stages behind
// a shared Stage contract (spec.md §9 "opaque trait objects for
// services").
package pipeline

import (
	"context"
	"net"

	"github.com/kaze-mesh/kaze/internal/packet"
)

// DestinationKind tags where a Message should be routed next — a tagged
// union (Pending | Drop | Host | Node | NodeList), not subclassing, per
// spec.md §9.
type DestinationKind int

const (
	// DestPending is the zero value: EntryStage.Wrap leaves it unset, and
	// Chain.Run must keep running stages past it. Only an explicit
	// DestDrop (a stage that actually consumed or rejected the message)
	// short-circuits the chain.
	DestPending DestinationKind = iota
	DestDrop
	DestHost
	DestNode
	DestNodeList
)

// NodeAddr pairs an ident with its resolved address.
type NodeAddr struct {
	Ident uint32
	Addr  net.Addr
}

// Message is the unit the pipeline stages operate on: a packet plus
// routing/provenance metadata attached as stages run.
type Message struct {
	Packet packet.Packet

	// SourceAddr is the peer or host address the packet arrived from,
	// attached by the first stage.
	SourceAddr net.Addr

	Destination DestinationKind
	Node        NodeAddr   // DestNode
	NodeList    []NodeAddr // DestNodeList
}

// Stage is the shared contract every pipeline stage implements (spec.md
// §9's "capability set {accept one input, produce one output, fail with
// a common error}").
type Stage interface {
	Handle(ctx context.Context, msg Message) (Message, error)
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(ctx context.Context, msg Message) (Message, error)

func (f StageFunc) Handle(ctx context.Context, msg Message) (Message, error) { return f(ctx, msg) }
