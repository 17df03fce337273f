package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony/mock"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

func TestCanCall(t *testing.T) {
	f := New("us", nil)

	tests := []struct {
		name   string
		handle *domain.Handle
		want   bool
	}{
		{name: "international", handle: domain.NewHandle("tel", "+16502530000"), want: true},
		{name: "national", handle: domain.NewHandle("tel", "(650) 253-0000"), want: true},
		{name: "with post dial", handle: domain.NewHandle("tel", "+16502530000;123"), want: true},
		{name: "letters", handle: domain.NewHandle("tel", "not-a-number"), want: false},
		{name: "too short", handle: domain.NewHandle("tel", "+1"), want: false},
		{name: "empty", handle: domain.NewHandle("tel", ""), want: false},
		{name: "sip", handle: domain.NewHandle("sip", "alice@example.com"), want: false},
		{name: "nil", handle: nil, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.CanCall(tc.handle))
		})
	}
}

func TestWrapFormatsE164(t *testing.T) {
	f := New("US", nil)
	nc := mock.NewConnection("650-253-0000", "")
	req := domain.NewCallRequest(domain.NewHandle("tel", "650-253-0000"), nil)

	c, err := f.Wrap(req, nc)
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", c.RemoteAddress())
	assert.Equal(t, Name, c.Family())
	assert.Equal(t, nc.ID(), c.ID())
}

func TestWrapKeepsUnparseableAddress(t *testing.T) {
	f := New("US", nil)
	nc := mock.NewConnection("ring-ring", "")
	req := domain.NewCallRequest(domain.NewHandle("tel", "ring-ring"), nil)

	c, err := f.Wrap(req, nc)
	require.NoError(t, err)
	assert.Equal(t, "ring-ring", c.RemoteAddress())
}

func TestWrapRefusesOtherSchemes(t *testing.T) {
	f := New("US", nil)
	req := domain.NewCallRequest(domain.NewHandle("sip", "alice@example.com"), nil)

	_, err := f.Wrap(req, mock.NewConnection("alice@example.com", ""))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestOnPostDialWait(t *testing.T) {
	f := New("US", nil)
	req := domain.NewCallRequest(domain.NewHandle("tel", "+16502530000;12"), nil)
	c, err := f.Wrap(req, mock.NewConnection("+16502530000", "12"))
	require.NoError(t, err)

	f.OnPostDialWait(c, "12")
	assert.Equal(t, bridge.StatePostDialWait, c.State())
	assert.Equal(t, "12", c.PostDialString())
}
