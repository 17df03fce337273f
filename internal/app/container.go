package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acme/telephony-bridge/internal/api/handlers"
	"github.com/acme/telephony-bridge/internal/bridge"
	"github.com/acme/telephony-bridge/internal/config"
	"github.com/acme/telephony-bridge/internal/family/circuit"
	"github.com/acme/telephony-bridge/internal/family/packet"
	"github.com/acme/telephony-bridge/internal/infra/db"
	"github.com/acme/telephony-bridge/internal/infra/redis"
	"github.com/acme/telephony-bridge/internal/queue"
	"github.com/acme/telephony-bridge/internal/registry"
	"github.com/acme/telephony-bridge/internal/repository"
	pgrepo "github.com/acme/telephony-bridge/internal/repository/postgres"
	scyllarepo "github.com/acme/telephony-bridge/internal/repository/scylla"
	callsvc "github.com/acme/telephony-bridge/internal/service/call"
	"github.com/acme/telephony-bridge/internal/service/concurrency"
	telephonyMock "github.com/acme/telephony-bridge/internal/telephony/mock"
	"github.com/acme/telephony-bridge/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		publishers   *publishers
		telephony    *telephony
		services     *services
		bridge       *bridge.Service
	}
}

type services struct {
	Calls     *callsvc.Service
	DialSlots *concurrency.Limiter
}

type repositories struct {
	Attempts repository.AttemptRepository
	Events   repository.ConnectionEventStore
}

type publishers struct {
	Events   *queue.EventPublisher
	Replies  *queue.ReplyPublisher
	Requests *queue.RequestProducer
}

type telephony struct {
	Phone    *telephonyMock.Phone
	Family   bridge.Family
	Registry *registry.Registry
	Mirror   *redis.ConnectionMirror
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		scylla.Close()
		pg.Close(ctx)
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		redisClient.Close()
		scylla.Close()
		pg.Close(ctx)
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

// NewFamily selects the network family named by the configuration.
func NewFamily(cfg config.NetworkConfig, lg *logger.Logger) (bridge.Family, error) {
	switch cfg.Family {
	case config.FamilyCircuit:
		return circuit.New(cfg.DefaultRegion, lg), nil
	case config.FamilyPacket:
		return packet.New(cfg.SIPDomain, lg), nil
	default:
		return nil, fmt.Errorf("app: unknown network family %q", cfg.Family)
	}
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Attempts: pgrepo.NewAttemptRepository(c.Postgres.DB()),
			Events:   scyllarepo.NewEventStore(c.Scylla.Session()),
		}

		pubs := &publishers{
			Events:   queue.NewEventPublisher(c.Kafka, c.Config.Kafka.EventTopic),
			Replies:  queue.NewReplyPublisher(c.Kafka, c.Config.Kafka.ReplyTopic),
			Requests: queue.NewRequestProducer(c.Kafka, c.Config.Kafka.RequestTopic),
		}

		mirror := redis.NewConnectionMirror(c.Redis, c.Config.Redis.ConnectionsKey, c.Config.App.NodeID, c.Config.Redis.MirrorTimeout, c.Logger)

		// Validate has already rejected unknown families.
		family, err := NewFamily(c.Config.Network, c.Logger)
		if err != nil {
			panic(err)
		}

		tel := &telephony{
			Phone:    telephonyMock.NewPhone(c.Config.Network),
			Family:   family,
			Registry: registry.New(mirror),
			Mirror:   mirror,
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.telephony = tel
		c.components.services = &services{
			Calls:     callsvc.NewService(pubs.Requests, repos.Attempts, repos.Events),
			DialSlots: concurrency.NewLimiter(c.Redis.Inner(), c.Config.Network.MaxConcurrentDials, c.Config.Network.DialSlotTTL),
		}
		c.components.bridge = bridge.NewService(
			tel.Phone,
			tel.Family,
			tel.Registry,
			pubs.Events,
			c.Logger,
			c.Config.Network.DialTimeout,
		)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// Telephony exposes the network stack, family and connection registry.
func (c *Container) Telephony() *telephony {
	c.initComponents()
	return c.components.telephony
}

// Services exposes the application services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Bridge exposes the origination service.
func (c *Container) Bridge() *bridge.Service {
	c.initComponents()
	return c.components.bridge
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() *handlers.HandlerSet {
	tel := c.Telephony()
	return handlers.NewHandlerSet(handlers.Dependencies{
		Bridge:    c.Bridge(),
		Simulator: tel.Phone,
		Mirror:    tel.Mirror,
		Calls:     c.Services().Calls,
		Logger:    c.Logger,
		Checks: map[string]handlers.HealthCheck{
			"postgres": c.Postgres.Ping,
			"scylla":   c.Scylla.Ping,
			"redis":    c.Redis.Ping,
		},
	})
}

// EnsureSchema creates the Postgres and Scylla tables when missing.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if err := pgrepo.NewAttemptRepository(c.Postgres.DB()).EnsureSchema(ctx); err != nil {
		return err
	}
	return scyllarepo.NewEventStore(c.Scylla.Session()).EnsureSchema(ctx)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if p := c.components.publishers; p != nil {
		if err := p.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
		if err := p.Replies.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reply publisher close: %w", err))
		}
		if err := p.Requests.Close(); err != nil {
			errs = append(errs, fmt.Errorf("request producer close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	cfg := c.Config.Kafka
	return c.Kafka.EnsureTopics(ctx, c.Kafka.Topics(), cfg.Partitions, cfg.ReplicationFactor)
}
