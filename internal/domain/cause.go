package domain

import "fmt"

// DisconnectCause is the standardized reason an origination did not succeed.
type DisconnectCause int

const (
	CauseUnspecifiedError DisconnectCause = iota
	CauseNoNumberSupplied
	CauseInvalidNumber
	CauseOutOfService
	CauseEmergencyOnly
	CausePoweredOff
)

var causeNames = map[DisconnectCause]string{
	CauseUnspecifiedError: "UNSPECIFIED_ERROR",
	CauseNoNumberSupplied: "NO_NUMBER_SUPPLIED",
	CauseInvalidNumber:    "INVALID_NUMBER",
	CauseOutOfService:     "OUT_OF_SERVICE",
	CauseEmergencyOnly:    "EMERGENCY_ONLY",
	CausePoweredOff:       "POWERED_OFF",
}

// DisconnectCauses lists every cause in declaration order.
func DisconnectCauses() []DisconnectCause {
	return []DisconnectCause{
		CauseUnspecifiedError,
		CauseNoNumberSupplied,
		CauseInvalidNumber,
		CauseOutOfService,
		CauseEmergencyOnly,
		CausePoweredOff,
	}
}

// ParseDisconnectCause maps a wire name back to its cause.
func ParseDisconnectCause(name string) (DisconnectCause, error) {
	for cause, n := range causeNames {
		if n == name {
			return cause, nil
		}
	}
	return CauseUnspecifiedError, fmt.Errorf("unknown disconnect cause %q", name)
}

// Valid reports whether c belongs to the taxonomy.
func (c DisconnectCause) Valid() bool {
	_, ok := causeNames[c]
	return ok
}

func (c DisconnectCause) String() string {
	if n, ok := causeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("DisconnectCause(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c DisconnectCause) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid disconnect cause %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *DisconnectCause) UnmarshalText(text []byte) error {
	parsed, err := ParseDisconnectCause(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
