package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acme/telephony-bridge/internal/domain"
)

func TestCheckServiceState(t *testing.T) {
	cases := []struct {
		state  domain.ServiceState
		ok     bool
		cause  domain.DisconnectCause
		detail string
	}{
		{domain.ServiceStateInService, true, domain.CauseUnspecifiedError, ""},
		{domain.ServiceStateOutOfService, false, domain.CauseOutOfService, ""},
		{domain.ServiceStateEmergencyOnly, false, domain.CauseEmergencyOnly, ""},
		{domain.ServiceStatePowerOff, false, domain.CausePoweredOff, ""},
		{domain.ServiceState(7), false, domain.CauseUnspecifiedError, "Unrecognized service state 7"},
		{domain.ServiceState(-1), false, domain.CauseUnspecifiedError, "Unrecognized service state -1"},
	}

	for _, tc := range cases {
		ok, cause, detail := CheckServiceState(tc.state)
		assert.Equal(t, tc.ok, ok, "state %s", tc.state)
		if !tc.ok {
			assert.Equal(t, tc.cause, cause, "state %s", tc.state)
		}
		assert.Equal(t, tc.detail, detail, "state %s", tc.state)
	}
}
