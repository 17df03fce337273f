package common

import (
	"bytes"
	"errors"
	"testing"

	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

func TestPageToken(t *testing.T) {
	state := []byte{0x00, 0xff, 0x10, 'a'}
	token := EncodePageToken(state)

	got, err := DecodePageToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, state) {
		t.Fatalf("expected %v, got %v", state, got)
	}

	if EncodePageToken(nil) != "" {
		t.Fatal("expected empty token for empty state")
	}
	if got, err := DecodePageToken(""); err != nil || got != nil {
		t.Fatalf("expected nil state, got %v %v", got, err)
	}
}

func TestDecodePageTokenRejectsGarbage(t *testing.T) {
	_, err := DecodePageToken("!!!")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
