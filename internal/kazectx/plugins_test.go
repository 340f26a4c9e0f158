package kazectx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/rpctracker"
)

func TestTrackerPluginRunAndClose(t *testing.T) {
	tr := rpctracker.New(1, func(packet.Packet) {}, zaptest.NewLogger(t).Sugar())
	p := &TrackerPlugin{Tracker: tr}

	assert.Equal(t, "rpctracker", p.Name())
	require.NoError(t, p.Init(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Close())
}
