package kazectx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaze-mesh/kaze/internal/packet"
)

type fakePlugin struct {
	name     string
	ran      chan struct{}
	closed   chan struct{}
	initErr  error
	runErr   error
	closeErr error
}

func newFakePlugin(name string) *fakePlugin {
	return &fakePlugin{name: name, ran: make(chan struct{}), closed: make(chan struct{})}
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Init(*Context) error { return p.initErr }

func (p *fakePlugin) Run(ctx context.Context) error {
	close(p.ran)
	<-ctx.Done()
	return p.runErr
}

func (p *fakePlugin) Close() error {
	close(p.closed)
	return p.closeErr
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	guard := NewShutdownGuard(context.Background())
	return New(zaptest.NewLogger(t).Sugar(), packet.NewPool(4096), guard)
}

func TestRegisterAndGet(t *testing.T) {
	c := newTestContext(t)
	p := newFakePlugin("fake")
	require.NoError(t, c.Register(p))

	got, ok := Get[*fakePlugin](c)
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = c.ByName("fake")
	assert.True(t, ok)
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Register(newFakePlugin("dup")))
	err := c.Register(newFakePlugin("dup"))
	assert.Error(t, err)
}

func TestRunShutsDownAllPluginsOnCancel(t *testing.T) {
	c := newTestContext(t)
	a := newFakePlugin("a")
	b := newFakePlugin("b")
	require.NoError(t, c.Register(a))
	require.NoError(t, c.Register(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Second) }()

	<-a.ran
	<-b.ran
	cancel()

	require.NoError(t, <-done)
	select {
	case <-a.closed:
	default:
		t.Fatal("plugin a was not closed")
	}
	select {
	case <-b.closed:
	default:
		t.Fatal("plugin b was not closed")
	}
}

func TestPipelineCellGetBeforeSetIsNil(t *testing.T) {
	c := newTestContext(t)
	assert.Nil(t, c.RawSink.Get())
}
