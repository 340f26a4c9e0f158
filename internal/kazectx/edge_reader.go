package kazectx

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kaze-mesh/kaze/internal/edge"
	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/pipeline"
	"github.com/kaze-mesh/kaze/internal/xerror"
)

// EdgeReaderPlugin drives the host->sidecar data flow from spec.md §4
// ("host writes a framed packet into the outbound ring -> sidecar
// reader dequeues, constructs a Packet -> ... pipeline"): it pulls
// chunks off the host ring and runs each through the Context's
// RefinedSink chain (the rate-limited, host-submission path).
type EdgeReaderPlugin struct {
	Receiver *edge.Receiver
	Pool     *packet.Pool
	Sink     *PipelineCell
	Log      *zap.SugaredLogger

	readTimeout time.Duration
}

func (p *EdgeReaderPlugin) Name() string       { return "edge-reader" }
func (p *EdgeReaderPlugin) Init(*Context) error { return nil }
func (p *EdgeReaderPlugin) Close() error        { return nil }

func (p *EdgeReaderPlugin) Run(ctx context.Context) error {
	timeout := p.readTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	entry := pipeline.EntryStage{}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := p.Receiver.ReadPacket(p.Pool, time.Now().Add(timeout))
		if err != nil {
			if errors.Is(err, xerror.ErrAgain) || errors.Is(err, xerror.ErrTimeout) {
				continue
			}
			if errors.Is(err, xerror.ErrClosed) {
				return nil
			}
			p.Log.Warnw("edge reader: read failed", "error", err)
			continue
		}

		chain := p.Sink.Get()
		if chain == nil {
			p.Log.Warnw("edge reader: no pipeline chain installed, dropping packet")
			continue
		}

		if _, err := chain.Run(ctx, entry.Wrap(pkt, nil)); err != nil {
			p.Log.Warnw("edge reader: pipeline error", "error", err)
		}
	}
}
