package bridge

import (
	"fmt"

	"github.com/acme/telephony-bridge/internal/domain"
)

// CheckServiceState decides whether outgoing calls are permitted in state.
// When they are not, it returns the cause to report and an optional detail.
func CheckServiceState(state domain.ServiceState) (bool, domain.DisconnectCause, string) {
	switch state {
	case domain.ServiceStateInService:
		return true, domain.CauseUnspecifiedError, ""
	case domain.ServiceStateOutOfService:
		return false, domain.CauseOutOfService, ""
	case domain.ServiceStateEmergencyOnly:
		return false, domain.CauseEmergencyOnly, ""
	case domain.ServiceStatePowerOff:
		return false, domain.CausePoweredOff, ""
	default:
		return false, domain.CauseUnspecifiedError, fmt.Sprintf("Unrecognized service state %d", int(state))
	}
}
