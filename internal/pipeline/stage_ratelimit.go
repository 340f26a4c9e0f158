package pipeline

import (
	"context"

	"github.com/kaze-mesh/kaze/internal/ratelimit"
)

// RateLimitStage limits every packet routed through it, keyed by source
// ident and body type; it does not look at the destination. The chains
// built in cmd/kaze run it first on the host-submission path, before
// dispatch, and not at all on peer-received traffic, so host-submitted
// packets are limited whatever their destination.
type RateLimitStage struct {
	limiter *ratelimit.Limiter
}

// NewRateLimitStage wraps limiter as a Stage.
func NewRateLimitStage(limiter *ratelimit.Limiter) *RateLimitStage {
	return &RateLimitStage{limiter: limiter}
}

func (s *RateLimitStage) Handle(ctx context.Context, msg Message) (Message, error) {
	if s.limiter == nil {
		return msg, nil
	}
	if err := s.limiter.Acquire(ctx, msg.Packet.Hdr.SrcIdent, msg.Packet.Hdr.BodyType); err != nil {
		return msg, err
	}
	return msg, nil
}
