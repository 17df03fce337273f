package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/telephony-bridge/internal/config"
	"github.com/acme/telephony-bridge/internal/family/circuit"
	"github.com/acme/telephony-bridge/internal/family/packet"
)

func TestNewFamily(t *testing.T) {
	f, err := NewFamily(config.NetworkConfig{Family: config.FamilyCircuit, DefaultRegion: "US"}, nil)
	require.NoError(t, err)
	assert.Equal(t, circuit.Name, f.Name())

	f, err = NewFamily(config.NetworkConfig{Family: config.FamilyPacket}, nil)
	require.NoError(t, err)
	assert.Equal(t, packet.Name, f.Name())

	_, err = NewFamily(config.NetworkConfig{Family: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
