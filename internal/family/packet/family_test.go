package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/telephony/mock"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

func TestCanCall(t *testing.T) {
	f := New("", nil)

	assert.True(t, f.CanCall(domain.NewHandle("sip", "alice@example.com")))
	assert.True(t, f.CanCall(domain.NewHandle("sips", "bob@example.com:5061")))
	assert.False(t, f.CanCall(domain.NewHandle("tel", "+16502530000")))
	assert.False(t, f.CanCall(domain.NewHandle("sip", "")))
	assert.False(t, f.CanCall(nil))
}

func TestCanCallCompletesDomain(t *testing.T) {
	f := New("pbx.example.com", nil)
	assert.True(t, f.CanCall(domain.NewHandle("sip", "1001")))
}

func TestWrapUsesParsedURI(t *testing.T) {
	f := New("pbx.example.com", nil)
	req := domain.NewCallRequest(domain.NewHandle("sip", "1001"), nil)
	nc := mock.NewConnection("1001", "")

	c, err := f.Wrap(req, nc)
	require.NoError(t, err)
	assert.Contains(t, c.RemoteAddress(), "1001@pbx.example.com")
	assert.Equal(t, Name, c.Family())
}

func TestWrapRefusesTel(t *testing.T) {
	f := New("", nil)
	req := domain.NewCallRequest(domain.NewHandle("tel", "+16502530000"), nil)

	_, err := f.Wrap(req, mock.NewConnection("+16502530000", ""))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
