package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/cache"
	eventadapter "github.com/aegisnexus/sovereignty-gateway/internal/adapters/events"
	grpcadapter "github.com/aegisnexus/sovereignty-gateway/internal/adapters/grpc"
	httpadapter "github.com/aegisnexus/sovereignty-gateway/internal/adapters/http"
	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/memstream"
	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/postgres"
	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/telemetry"
	"github.com/aegisnexus/sovereignty-gateway/internal/application"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Role selects which side of the gateway a process runs.
type Role string

const (
	RoleAPI        Role = "api"
	RoleWorker     Role = "worker"
	RoleStandalone Role = "standalone"
)

func (r Role) publishes() bool { return r == RoleAPI || r == RoleStandalone }
func (r Role) consumes() bool  { return r == RoleWorker || r == RoleStandalone }

type Runtime struct {
	cfg        Config
	role       Role
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	health     *grpcadapter.Health
	subscriber *application.Subscriber
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string, role Role) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", cfg.ServiceID, "role", string(role))
	slog.SetDefault(logger)

	var cleanups []func(context.Context)
	cleanup := func(ctx context.Context) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i](ctx)
		}
	}
	fail := func(err error) (*Runtime, error) {
		cleanup(context.Background())
		return nil, err
	}

	meterProvider, err := newMeterProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, func(ctx context.Context) { _ = meterProvider.Shutdown(ctx) })

	metricsObserver, err := telemetry.NewMetricsObserver(meterProvider, cfg.KafkaTopic)
	if err != nil {
		return fail(err)
	}
	observer := telemetry.Observers{telemetry.NewLogObserver(logger), metricsObserver}

	var (
		producer ports.EnvelopeProducer
		factory  ports.FetcherFactory
	)
	switch cfg.Transport {
	case TransportMemory:
		if role != RoleStandalone {
			logger.WarnContext(ctx, "memory transport is process local, records are not shared with other processes",
				"module", "bootstrap",
				"layer", "runtime",
			)
		}
		stream := memstream.New()
		producer = stream.Producer(cfg.KafkaTopic)
		factory = stream.Group(cfg.KafkaTopic, cfg.KafkaConsumerGroup)
	default:
		if err := eventadapter.Probe(ctx, cfg.KafkaBrokers, cfg.KafkaDialTimeout); err != nil {
			return fail(err)
		}
		if cfg.KafkaAutoCreateTopic {
			spec := eventadapter.TopicSpec{
				Name:              cfg.KafkaTopic,
				Partitions:        cfg.KafkaTopicPartitions,
				ReplicationFactor: cfg.KafkaReplicationFactor,
			}
			if err := eventadapter.EnsureTopic(ctx, cfg.KafkaBrokers, spec); err != nil {
				return fail(err)
			}
		}
		if role.publishes() {
			acks, _ := parseRequiredAcks(cfg.KafkaRequiredAcks)
			kafkaProducer, err := eventadapter.NewKafkaProducer(eventadapter.KafkaProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaTopic,
				ClientID:     cfg.KafkaClientID,
				RequiredAcks: acks,
				Timeout:      cfg.PublishTimeout,
			})
			if err != nil {
				return fail(err)
			}
			producer = kafkaProducer
		}
		if role.consumes() {
			group, err := eventadapter.NewKafkaGroup(logger, eventadapter.KafkaGroupConfig{
				Brokers:     cfg.KafkaBrokers,
				Topic:       cfg.KafkaTopic,
				GroupID:     cfg.KafkaConsumerGroup,
				DialTimeout: cfg.KafkaDialTimeout,
			})
			if err != nil {
				return fail(err)
			}
			factory = group
		}
	}

	rt := &Runtime{cfg: cfg, role: role, logger: logger}

	if role.publishes() {
		publisher := application.NewPublisher(producer, observer, application.PublisherConfig{
			Timeout: cfg.PublishTimeout,
			FanOut:  cfg.PublishFanOut,
		})
		cleanups = append(cleanups, func(context.Context) { _ = publisher.Close() })
		gateway := application.NewGateway(application.NewGate(observer), publisher)

		router := httpadapter.NewRouter(httpadapter.NewHandler(logger, gateway, cfg.MaxBatchSize))
		rt.httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if role.consumes() {
		var sink ports.Sink = eventadapter.NewLoggingSink(logger)
		if cfg.DatabaseURL != "" {
			db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolConfig{
				MaxOpenConns:    cfg.MaxDBConns,
				MaxIdleConns:    cfg.MaxIdleDBConns,
				ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
				ConnMaxLifetime: cfg.DBConnMaxLifetime,
			})
			if err != nil {
				return fail(err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fail(err)
			}
			cleanups = append(cleanups, func(context.Context) { _ = sqlDB.Close() })
			if err := postgres.RunMigrations(ctx, db); err != nil {
				return fail(err)
			}
			sink = postgres.NewArchiveRepository(db)
		}
		if cfg.RedisURL != "" {
			redisClient, err := cache.Connect(ctx, cfg.RedisURL)
			if err != nil {
				return fail(err)
			}
			cleanups = append(cleanups, func(context.Context) { _ = redisClient.Close() })
			sink = application.NewDedupSink(logger, cache.NewRedisDedupStore(redisClient), sink, observer, cfg.DedupTTL)
		}
		rt.subscriber = application.NewSubscriber(logger, factory, sink, observer, application.SubscriberConfig{
			Topic:          cfg.KafkaTopic,
			Group:          cfg.KafkaConsumerGroup,
			ForwardTimeout: cfg.ForwardTimeout,
			CommitTimeout:  cfg.CommitTimeout,
		})
	}

	rt.grpcServer = grpc.NewServer()
	rt.health = grpcadapter.RegisterHealth(rt.grpcServer)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fail(err)
	}
	rt.grpcLis = lis
	rt.cleanupFn = cleanup
	return rt, nil
}

// Run serves until ctx is cancelled, a signal arrives, or a component fails.
// A subscriber connection failure is returned to the caller.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if r.httpServer != nil {
		g.Go(func() error {
			if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if r.subscriber != nil {
		g.Go(func() error {
			r.health.Watch(gctx, r.subscriber.Done())
			return nil
		})
		g.Go(func() error {
			return r.subscriber.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if r.httpServer != nil {
			_ = r.httpServer.Shutdown(shutdownCtx)
		}
		r.health.Shutdown()
		r.grpcServer.GracefulStop()
		return nil
	})

	err := g.Wait()
	if err != nil {
		r.logger.ErrorContext(ctx, "runtime failure",
			"module", "bootstrap",
			"layer", "runtime",
			"outcome", "failure",
			"error", err,
		)
	}
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.cleanupFn(cleanupCtx)
	return err
}
