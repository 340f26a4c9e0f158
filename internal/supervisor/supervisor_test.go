package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunNoCommandWaitsOnContext(t *testing.T) {
	s := New(Config{}, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.NoError(t, err)
}

func TestRunReturnsWhenHostExitsOnItsOwn(t *testing.T) {
	s := New(Config{HostCommand: "true"}, zaptest.NewLogger(t).Sugar())

	err := s.Run(context.Background())
	require.NoError(t, err)
}

func TestRunSignalsHostOnCancel(t *testing.T) {
	s := New(Config{HostCommand: "sleep", HostArgs: []string{"5"}, GracePeriod: 2 * time.Second},
		zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
