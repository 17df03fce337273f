package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony/mock"
)

func newBridged(t *testing.T) (*Connection, *mock.Connection) {
	t.Helper()
	nc := mock.NewConnection("5551234", "99")
	req := domain.NewCallRequest(domain.NewHandle("tel", "5551234;99"), nil)
	return NewConnection("fake", req, nc, "+15551234"), nc
}

func TestConnectionSharesNetworkID(t *testing.T) {
	c, nc := newBridged(t)

	assert.Equal(t, nc.ID(), c.ID())
	assert.Equal(t, "fake", c.Family())
	assert.Equal(t, "+15551234", c.RemoteAddress())
	assert.Equal(t, StateActive, c.State())
	assert.Contains(t, c.String(), nc.ID().String())
}

func TestConnectionListeners(t *testing.T) {
	c, _ := newBridged(t)

	var tails []string
	destroyed := 0
	id := c.AddListener(Listener{
		OnPostDialWait: func(_ *Connection, remaining string) { tails = append(tails, remaining) },
		OnDestroyed:    func(*Connection) { destroyed++ },
	})
	removed := c.AddListener(Listener{OnDestroyed: func(*Connection) { t.Fatal("removed listener called") }})
	c.RemoveListener(removed)

	c.SetPostDialWait("99")
	assert.Equal(t, []string{"99"}, tails)
	assert.Equal(t, StatePostDialWait, c.State())

	require.True(t, c.markDestroyed())
	require.False(t, c.markDestroyed())
	assert.Equal(t, 1, destroyed)

	c.SetPostDialWait("late")
	assert.Equal(t, []string{"99"}, tails)
	assert.Equal(t, "99", c.PostDialString())

	c.RemoveListener(id)
}

func TestAddListenerAfterDestroyIsIgnored(t *testing.T) {
	c, _ := newBridged(t)
	require.True(t, c.markDestroyed())

	c.AddListener(Listener{OnDestroyed: func(*Connection) { t.Fatal("unexpected") }})
	assert.False(t, c.markDestroyed())
}

func TestDisconnectHangsUpNetwork(t *testing.T) {
	c, nc := newBridged(t)

	require.NoError(t, c.Disconnect(context.Background()))
	assert.True(t, nc.Destroyed())
}

func TestDisconnectPropagatesContextError(t *testing.T) {
	c, nc := newBridged(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Disconnect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, nc.Destroyed())
}
