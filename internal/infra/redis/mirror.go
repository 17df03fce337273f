package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/telephony-bridge/internal/registry"
	"github.com/acme/telephony-bridge/internal/telephony"
	"github.com/acme/telephony-bridge/pkg/logger"
)

const defaultMirrorTimeout = 2 * time.Second

// MirroredConnection is the hash value stored per live connection.
type MirroredConnection struct {
	ID           uuid.UUID `json:"id"`
	Address      string    `json:"address"`
	Node         string    `json:"node"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ConnectionMirror copies registry membership into a redis hash so other
// processes can see which connections this node is tracking. Failures are
// logged and never reach the registry.
type ConnectionMirror struct {
	client  *Client
	key     string
	node    string
	timeout time.Duration
	logger  *logger.Logger
}

var _ registry.Observer = (*ConnectionMirror)(nil)

// NewConnectionMirror builds a mirror writing to the hash at key.
func NewConnectionMirror(client *Client, key, node string, timeout time.Duration, lg *logger.Logger) *ConnectionMirror {
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	if lg == nil {
		lg = logger.NewNop()
	}
	return &ConnectionMirror{
		client:  client,
		key:     key,
		node:    node,
		timeout: timeout,
		logger:  lg.Named("redis_mirror"),
	}
}

func (m *ConnectionMirror) entry(nc telephony.Connection) ([]byte, error) {
	return json.Marshal(MirroredConnection{
		ID:           nc.ID(),
		Address:      nc.Address(),
		Node:         m.node,
		RegisteredAt: time.Now().UTC(),
	})
}

func (m *ConnectionMirror) ConnectionRegistered(nc telephony.Connection) {
	payload, err := m.entry(nc)
	if err != nil {
		m.logger.Warn("encode mirrored connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.client.inner.HSet(ctx, m.key, nc.ID().String(), payload).Err(); err != nil {
		m.logger.Warn("mirror register", zap.Error(err), zap.Stringer("connection_id", nc.ID()))
	}
}

func (m *ConnectionMirror) ConnectionUnregistered(nc telephony.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.client.inner.HDel(ctx, m.key, nc.ID().String()).Err(); err != nil {
		m.logger.Warn("mirror unregister", zap.Error(err), zap.Stringer("connection_id", nc.ID()))
	}
}

// Count returns the number of mirrored connections across all nodes.
func (m *ConnectionMirror) Count(ctx context.Context) (int64, error) {
	n, err := m.client.inner.HLen(ctx, m.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: hlen %s: %w", m.key, err)
	}
	return n, nil
}

// List returns every mirrored connection.
func (m *ConnectionMirror) List(ctx context.Context) ([]MirroredConnection, error) {
	raw, err := m.client.inner.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hgetall %s: %w", m.key, err)
	}
	out := make([]MirroredConnection, 0, len(raw))
	for field, value := range raw {
		var mc MirroredConnection
		if err := json.Unmarshal([]byte(value), &mc); err != nil {
			m.logger.Warn("skip malformed mirror entry", zap.String("field", field), zap.Error(err))
			continue
		}
		out = append(out, mc)
	}
	return out, nil
}

// Purge removes entries written by this node, e.g. after a restart.
func (m *ConnectionMirror) Purge(ctx context.Context) (int, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	var fields []string
	for _, e := range entries {
		if e.Node == m.node {
			fields = append(fields, e.ID.String())
		}
	}
	if len(fields) == 0 {
		return 0, nil
	}
	if err := m.client.inner.HDel(ctx, m.key, fields...).Err(); err != nil {
		return 0, fmt.Errorf("redis: purge %s: %w", m.key, err)
	}
	return len(fields), nil
}

// Reconcile makes this node's entries match live. Entries of other nodes are
// left alone. It returns how many entries were added and removed.
func (m *ConnectionMirror) Reconcile(ctx context.Context, live []telephony.Connection) (int, int, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	want := make(map[uuid.UUID]telephony.Connection, len(live))
	for _, nc := range live {
		want[nc.ID()] = nc
	}

	var stale []string
	for _, e := range entries {
		if e.Node != m.node {
			continue
		}
		if _, ok := want[e.ID]; ok {
			delete(want, e.ID)
			continue
		}
		stale = append(stale, e.ID.String())
	}

	pipe := m.client.inner.TxPipeline()
	if len(stale) > 0 {
		pipe.HDel(ctx, m.key, stale...)
	}
	for id, nc := range want {
		payload, err := m.entry(nc)
		if err != nil {
			return 0, 0, fmt.Errorf("redis: encode %s: %w", id, err)
		}
		pipe.HSet(ctx, m.key, id.String(), payload)
	}
	if len(stale) == 0 && len(want) == 0 {
		return 0, 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis: reconcile %s: %w", m.key, err)
	}
	return len(want), len(stale), nil
}
