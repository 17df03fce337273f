package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Well-known handle schemes.
const (
	SchemeTel  = "tel"
	SchemeSIP  = "sip"
	SchemeSIPS = "sips"
)

// Handle is a scheme-qualified destination identifier, e.g. tel:555-1234.
type Handle struct {
	Scheme string
	// SchemeSpecificPart is the decoded address after the scheme separator.
	SchemeSpecificPart string

	raw string
}

// NewHandle builds a handle from its parts. The scheme is lower-cased.
func NewHandle(scheme, ssp string) *Handle {
	return &Handle{Scheme: strings.ToLower(scheme), SchemeSpecificPart: ssp}
}

// ParseHandle splits a raw URI into scheme and scheme-specific part.
// A fragment, if present, is dropped. Percent-escapes in the address are decoded
// when well formed and kept verbatim otherwise.
func ParseHandle(raw string) (*Handle, error) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 {
		return nil, fmt.Errorf("handle %q: missing scheme", raw)
	}
	scheme := raw[:idx]
	if !validScheme(scheme) {
		return nil, fmt.Errorf("handle %q: invalid scheme", raw)
	}

	ssp := raw[idx+1:]
	if hash := strings.IndexByte(ssp, '#'); hash >= 0 {
		ssp = ssp[:hash]
	}
	if decoded, err := url.PathUnescape(ssp); err == nil {
		ssp = decoded
	}
	return NewHandle(scheme, ssp), nil
}

// UnparsedHandle keeps a raw destination that ParseHandle rejected. It has
// no scheme and an empty address, so no family can call it and origination
// fails with INVALID_NUMBER.
func UnparsedHandle(raw string) *Handle {
	return &Handle{raw: raw}
}

// Parsed reports whether the handle came from a well-formed URI.
func (h *Handle) Parsed() bool {
	return h != nil && h.raw == "" && h.Scheme != ""
}

// LenientHandle parses raw, falling back to UnparsedHandle. An empty raw
// yields nil.
func LenientHandle(raw string) *Handle {
	if raw == "" {
		return nil
	}
	h, err := ParseHandle(raw)
	if err != nil {
		return UnparsedHandle(raw)
	}
	return h
}

// Address returns the dialable part of the handle.
func (h *Handle) Address() string {
	if h == nil {
		return ""
	}
	return h.SchemeSpecificPart
}

func (h *Handle) String() string {
	if h == nil {
		return ""
	}
	if h.raw != "" {
		return h.raw
	}
	return h.Scheme + ":" + h.SchemeSpecificPart
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = *parsed
	return nil
}

// RFC 3986: ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
