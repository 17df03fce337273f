package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/acme/telephony-bridge/internal/config"
)

// Scylla owns the gocql session of the connection event timeline.
type Scylla struct {
	session *gocql.Session
}

// NewScylla connects to the configured keyspace. With a positive
// ReplicationFactor the keyspace is created first when missing.
func NewScylla(cfg config.ScyllaConfig) (*Scylla, error) {
	if cfg.ReplicationFactor > 0 {
		if err := createKeyspace(cfg); err != nil {
			return nil, err
		}
	}

	cluster := newCluster(cfg)
	cluster.Keyspace = cfg.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: create session: %w", err)
	}
	return &Scylla{session: session}, nil
}

func newCluster(cfg config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{NumRetries: 3}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

func createKeyspace(cfg config.ScyllaConfig) error {
	session, err := newCluster(cfg).CreateSession()
	if err != nil {
		return fmt.Errorf("scylla: create bootstrap session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("scylla: create keyspace %s: %w", cfg.Keyspace, err)
	}
	return nil
}

func (s *Scylla) Ping(ctx context.Context) error {
	return s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Exec()
}

func (s *Scylla) Session() *gocql.Session {
	return s.session
}

func (s *Scylla) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

// parseConsistency accepts gocql level names in any case and falls back to
// QUORUM.
func parseConsistency(level string) gocql.Consistency {
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(strings.TrimSpace(level)))
	if err != nil {
		return gocql.Quorum
	}
	return c
}
