package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Network family identifiers.
const (
	FamilyCircuit = "circuit"
	FamilyPacket  = "packet"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Network   NetworkConfig   `mapstructure:"network"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	NodeID   string `mapstructure:"node_id"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// ReplicationFactor > 0 creates the keyspace at startup when missing.
	ReplicationFactor int `mapstructure:"replication_factor"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	ClientID        string        `mapstructure:"client_id"`
	RequestTopic    string        `mapstructure:"request_topic"`
	ReplyTopic      string        `mapstructure:"reply_topic"`
	EventTopic      string        `mapstructure:"event_topic"`
	ConsumerGroupID string        `mapstructure:"consumer_group_id"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
	// Partitions and ReplicationFactor apply to topics created at startup.
	Partitions        int `mapstructure:"partitions"`
	ReplicationFactor int `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	// ConnectionsKey is the hash mirroring the live connection registry.
	ConnectionsKey string        `mapstructure:"connections_key"`
	MirrorTimeout  time.Duration `mapstructure:"mirror_timeout"`
	// ReconcileInterval is how often the mirror is resynced from the registry.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// NetworkConfig selects the network family and tunes the simulated stack.
// DialTimeout bounds a single dial; zero leaves the dial unbounded.
type NetworkConfig struct {
	Family               string        `mapstructure:"family"`
	DefaultRegion        string        `mapstructure:"default_region"`
	SIPDomain            string        `mapstructure:"sip_domain"`
	DialTimeout          time.Duration `mapstructure:"dial_timeout"`
	InitialServiceState  string        `mapstructure:"initial_service_state"`
	SimulatedDialLatency time.Duration `mapstructure:"simulated_dial_latency"`
	SimulatedSuccessRate float64       `mapstructure:"simulated_success_rate"`
	// MaxConcurrentDials caps in-flight queued originations across all
	// workers of a family. Zero disables the cap.
	MaxConcurrentDials int           `mapstructure:"max_concurrent_dials"`
	DialSlotTTL        time.Duration `mapstructure:"dial_slot_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the bridge cannot run with.
func (c *Config) Validate() error {
	switch c.Network.Family {
	case FamilyCircuit, FamilyPacket:
	default:
		return fmt.Errorf("config: unknown network family %q", c.Network.Family)
	}
	if c.Network.DialTimeout < 0 {
		return fmt.Errorf("config: network.dial_timeout must not be negative")
	}
	if c.Network.MaxConcurrentDials < 0 {
		return fmt.Errorf("config: network.max_concurrent_dials must not be negative")
	}
	if c.Network.SimulatedSuccessRate < 0 || c.Network.SimulatedSuccessRate > 1 {
		return fmt.Errorf("config: network.simulated_success_rate must be within [0, 1]")
	}
	return nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "telephony-bridge")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.port", 8080)
	v.SetDefault("network.family", FamilyCircuit)
	v.SetDefault("network.default_region", "US")
	v.SetDefault("network.initial_service_state", "IN_SERVICE")
	v.SetDefault("network.simulated_success_rate", 1.0)
	v.SetDefault("redis.connections_key", "bridge:connections")
	v.SetDefault("redis.mirror_timeout", 2*time.Second)
	v.SetDefault("redis.reconcile_interval", time.Minute)
	v.SetDefault("network.dial_slot_ttl", 2*time.Minute)
	v.SetDefault("kafka.request_topic", "bridge.originate.requests")
	v.SetDefault("kafka.reply_topic", "bridge.originate.replies")
	v.SetDefault("kafka.event_topic", "bridge.connection.events")
	v.SetDefault("kafka.consumer_group_id", "telephony-bridge")
	v.SetDefault("kafka.partitions", 12)
	v.SetDefault("kafka.replication_factor", 1)
}
