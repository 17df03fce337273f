package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ServiceState is the network stack's registration state. Values outside the
// named constants are carried through as unknown codes.
type ServiceState int

const (
	ServiceStateInService     ServiceState = 0
	ServiceStateOutOfService  ServiceState = 1
	ServiceStateEmergencyOnly ServiceState = 2
	ServiceStatePowerOff      ServiceState = 3
)

func (s ServiceState) String() string {
	switch s {
	case ServiceStateInService:
		return "IN_SERVICE"
	case ServiceStateOutOfService:
		return "OUT_OF_SERVICE"
	case ServiceStateEmergencyOnly:
		return "EMERGENCY_ONLY"
	case ServiceStatePowerOff:
		return "POWER_OFF"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Known reports whether s is one of the named states.
func (s ServiceState) Known() bool {
	return s >= ServiceStateInService && s <= ServiceStatePowerOff
}

// ParseServiceState accepts a state name (case-insensitive) or a raw integer code.
func ParseServiceState(v string) (ServiceState, error) {
	v = strings.TrimSpace(v)
	switch strings.ToUpper(v) {
	case "IN_SERVICE":
		return ServiceStateInService, nil
	case "OUT_OF_SERVICE":
		return ServiceStateOutOfService, nil
	case "EMERGENCY_ONLY":
		return ServiceStateEmergencyOnly, nil
	case "POWER_OFF":
		return ServiceStatePowerOff, nil
	}
	code, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("unknown service state %q", v)
	}
	return ServiceState(code), nil
}
