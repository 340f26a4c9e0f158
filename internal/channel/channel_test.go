package channel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaze-mesh/kaze/internal/xerror"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan0")

	owner, err := Create(path, 42, 4096, 4096, true)
	require.NoError(t, err)
	defer owner.Close(true)

	user, err := Open(path)
	require.NoError(t, err)
	defer user.Close(false)

	assert.Equal(t, uint32(42), owner.Ident())
	assert.Equal(t, uint32(42), user.Ident())

	require.NoError(t, owner.WriteRing().Push([]byte("hello"), time.Time{}))
	h, err := user.ReadRing().Pop(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), h.Bytes())
	h.Release()

	require.NoError(t, user.WriteRing().Push([]byte("world"), time.Time{}))
	h2, err := owner.ReadRing().Pop(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), h2.Bytes())
	h2.Release()
}

func TestOpenRefusesSecondUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan1")

	owner, err := Create(path, 1, 4096, 4096, true)
	require.NoError(t, err)
	defer owner.Close(true)

	user, err := Open(path)
	require.NoError(t, err)
	defer user.Close(false)

	_, err = Open(path)
	require.ErrorIs(t, err, xerror.ErrBusy)
}

func TestOpenRefusesSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan2")

	owner, err := Create(path, 1, 4096, 4096, true)
	require.NoError(t, err)

	wantSize := *owner.hdr.size
	require.NoError(t, owner.Close(false))

	require.NoError(t, os.Truncate(path, int64(wantSize)+4096))

	_, err = Open(path)
	require.Error(t, err)
}

func TestShutdownUnblocksPeerRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan3")

	owner, err := Create(path, 7, 64, 64, true)
	require.NoError(t, err)
	defer owner.Close(true)

	user, err := Open(path)
	require.NoError(t, err)
	defer user.Close(false)

	owner.Shutdown(ShutdownWrite)

	_, err = user.ReadRing().Pop(time.Now().Add(2 * time.Second))
	require.ErrorIs(t, err, xerror.ErrClosed)
}

func TestShutdownBlocksFurtherWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan4")

	owner, err := Create(path, 7, 64, 64, true)
	require.NoError(t, err)
	defer owner.Close(true)

	owner.Shutdown(ShutdownWrite)

	err = owner.WriteRing().Push([]byte("x"), time.Time{})
	require.ErrorIs(t, err, xerror.ErrClosed)
}
