package pipeline

import "context"

// Chain composes stages in order, short-circuiting only once a stage
// explicitly sets Destination to DestDrop (consumed or rejected), or on
// error — not on the DestPending zero value a message starts in, per
// spec.md §4.8.
type Chain struct {
	stages []Stage
}

// NewChain builds a Chain that runs stages in order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Run drives msg through every stage until one errors, one sets
// Destination to DestDrop, or the chain is exhausted.
func (c *Chain) Run(ctx context.Context, msg Message) (Message, error) {
	for _, s := range c.stages {
		var err error
		msg, err = s.Handle(ctx, msg)
		if err != nil {
			return msg, err
		}
		if msg.Destination == DestDrop {
			return msg, nil
		}
	}
	return msg, nil
}
