package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "telephony-bridge", cfg.App.Name)
	assert.Equal(t, FamilyCircuit, cfg.Network.Family)
	assert.Equal(t, "US", cfg.Network.DefaultRegion)
	assert.Zero(t, cfg.Network.DialTimeout, "dials are unbounded unless configured")
	assert.Equal(t, "bridge:connections", cfg.Redis.ConnectionsKey)
	assert.Equal(t, "bridge.originate.requests", cfg.Kafka.RequestTopic)
	assert.Equal(t, time.Minute, cfg.Redis.ReconcileInterval)
	assert.Zero(t, cfg.Network.MaxConcurrentDials)
}

func TestLoadReadsFile(t *testing.T) {
	path := writeConfig(t, `
network:
  family: packet
  sip_domain: pbx.example.com
  dial_timeout: 5s
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FamilyPacket, cfg.Network.Family)
	assert.Equal(t, "pbx.example.com", cfg.Network.SIPDomain)
	assert.Equal(t, 5*time.Second, cfg.Network.DialTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsUnknownFamily(t *testing.T) {
	path := writeConfig(t, "network:\n  family: satellite\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "satellite")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Network: NetworkConfig{Family: FamilyCircuit, DialTimeout: time.Second, SimulatedSuccessRate: 0.5}}
	require.NoError(t, cfg.Validate())

	cfg.Network.DialTimeout = 0
	assert.NoError(t, cfg.Validate(), "zero dial timeout means unbounded")

	cfg.Network.DialTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg.Network.DialTimeout = time.Second
	cfg.Network.SimulatedSuccessRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Network.SimulatedSuccessRate = 1
	cfg.Network.MaxConcurrentDials = -1
	assert.Error(t, cfg.Validate())
}

func TestNewEnvReplacer(t *testing.T) {
	assert.Equal(t, "NETWORK_DIAL_TIMEOUT", NewEnvReplacer().Replace("NETWORK.DIAL-TIMEOUT"))
}
