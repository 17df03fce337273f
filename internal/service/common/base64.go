package common

import (
	"encoding/base64"
	"fmt"

	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

// EncodePageToken turns a storage paging state into an opaque URL-safe token.
// An empty state yields an empty token.
func EncodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePageToken reverses EncodePageToken.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page token: %v", apperrors.ErrValidation, err)
	}
	return data, nil
}
