package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/config"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

func TestNewPhoneFromConfig(t *testing.T) {
	p := NewPhone(config.NetworkConfig{InitialServiceState: "POWER_OFF"})
	assert.Equal(t, domain.ServiceStatePowerOff, p.ServiceState())

	p = NewPhone(config.NetworkConfig{InitialServiceState: "garbage"})
	assert.Equal(t, domain.ServiceStateInService, p.ServiceState())

	p.SetServiceState(domain.ServiceStateEmergencyOnly)
	assert.Equal(t, domain.ServiceStateEmergencyOnly, p.ServiceState())
}

func TestDialSplitsPostDialTail(t *testing.T) {
	p := NewScriptedPhone(domain.ServiceStateInService)

	nc, err := p.Dial(context.Background(), "5551234;99")
	require.NoError(t, err)
	assert.Equal(t, "5551234", nc.Address())
	assert.Equal(t, "99", nc.RemainingPostDialString())
	assert.Equal(t, []string{"5551234;99"}, p.Dialed())
}

func TestDialScript(t *testing.T) {
	p := NewScriptedPhone(domain.ServiceStateInService)
	boom := errors.New("boom")
	p.Script(DialOutcome{Err: boom}, DialOutcome{NoConnection: true})

	_, err := p.Dial(context.Background(), "1")
	assert.ErrorIs(t, err, boom)

	nc, err := p.Dial(context.Background(), "2")
	assert.NoError(t, err)
	assert.Nil(t, nc)

	nc, err = p.Dial(context.Background(), "3")
	assert.NoError(t, err)
	assert.NotNil(t, nc)
}

func TestDialRejection(t *testing.T) {
	p := NewPhone(config.NetworkConfig{SimulatedSuccessRate: 0.0000001})

	_, err := p.Dial(context.Background(), "1")
	assert.ErrorIs(t, err, apperrors.ErrCallState)
}

func TestDialHonoursContext(t *testing.T) {
	p := NewScriptedPhone(domain.ServiceStateInService)
	p.SetLatency(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Dial(ctx, "1")
	assert.ErrorIs(t, err, apperrors.ErrCallState)
}

func TestConnectionEvents(t *testing.T) {
	c := NewConnection("1", "2")

	var got []telephony.Event
	pd := c.Subscribe(telephony.EventPostDialWait, func(ev telephony.Event) { got = append(got, ev) })
	c.Subscribe(telephony.EventDestroyed, func(ev telephony.Event) {
		got = append(got, ev)
		c.Unsubscribe(ev.Subscription)
	})
	assert.Equal(t, 2, c.Subscribers())

	require.True(t, c.PostDialWait())
	c.Unsubscribe(pd)
	c.Destroy()
	c.Destroy()

	require.Len(t, got, 2)
	assert.Equal(t, telephony.EventPostDialWait, got[0].Type)
	assert.Equal(t, "2", got[0].RemainingPostDial)
	assert.Equal(t, pd, got[0].Subscription)
	assert.Equal(t, telephony.EventDestroyed, got[1].Type)
	assert.Equal(t, 0, c.Subscribers())
	assert.True(t, c.Destroyed())
	assert.False(t, c.PostDialWait())
}

func TestSubscribeDestroyedAfterDestroyFiresImmediately(t *testing.T) {
	c := NewConnection("1", "")
	c.Destroy()

	fired := 0
	id := c.Subscribe(telephony.EventDestroyed, func(ev telephony.Event) { fired++ })
	assert.Equal(t, 1, fired)
	assert.NotZero(t, id)
	assert.Equal(t, 0, c.Subscribers())

	c.Subscribe(telephony.EventPostDialWait, func(telephony.Event) { t.Fatal("unexpected") })
	assert.False(t, c.PostDialWait())
}

func TestHangup(t *testing.T) {
	c := NewConnection("1", "")
	require.NoError(t, c.Hangup(context.Background()))
	assert.True(t, c.Destroyed())
}
