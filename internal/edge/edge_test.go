package edge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/wire"
)

func TestEdgeCreateOpenSendReceive(t *testing.T) {
	dir := t.TempDir()

	hostEdge, err := Create(dir, "kaze", 0x0a000001, 4096, true)
	require.NoError(t, err)
	defer hostEdge.Close(true)

	hostSender, _ := hostEdge.IntoSplit()

	sideEdge, err := Open(dir, "kaze", 0x0a000001)
	require.NoError(t, err)
	defer sideEdge.Close(false)

	_, sideReceiver := sideEdge.IntoSplit()

	pool := packet.NewPool(512)
	p := packet.Packet{Hdr: wire.Hdr{BodyType: "ping", SrcIdent: 1}, HdrDirty: true, Body: packet.EmptyBody()}
	chunk, release := p.EncodeChunk(pool)
	require.NoError(t, hostSender.SendBuf(chunk, time.Time{}))
	release()

	got, err := sideReceiver.ReadPacket(pool, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, "ping", got.Hdr.BodyType)
	require.Equal(t, uint32(1), got.Hdr.SrcIdent)
}
