package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/api"
	"github.com/fathima-sithara/realtime-chat/internal/auth"
	"github.com/fathima-sithara/realtime-chat/internal/config"
	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/events"
	"github.com/fathima-sithara/realtime-chat/internal/hub"
	"github.com/fathima-sithara/realtime-chat/internal/kafka"
	"github.com/fathima-sithara/realtime-chat/internal/metric"
	"github.com/fathima-sithara/realtime-chat/internal/redis"
	"github.com/fathima-sithara/realtime-chat/internal/repository"
	"github.com/fathima-sithara/realtime-chat/internal/service"
	"github.com/fathima-sithara/realtime-chat/internal/store"
	"github.com/fathima-sithara/realtime-chat/internal/utils"
	"github.com/fathima-sithara/realtime-chat/internal/ws"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := utils.NewLogger(cfg.App.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	jv, err := newValidator(cfg.JWT)
	if err != nil {
		logger.Fatalw("jwt validator init", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("store init", "driver", cfg.Storage.Driver, "error", err)
	}

	var (
		users    auth.UserLookup = st
		presence *redis.PresenceStore
		limiter  *redis.RateLimiter
		rc       *goredis.Client
	)
	if cfg.Redis.Enabled {
		rc = goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Fatalw("redis ping", "addr", cfg.Redis.Addr, "error", err)
		}
		users = redis.NewUserCache(rc, st, cfg.Redis.Prefix, cfg.IdentityCacheTTL, logger)
		presence = redis.NewPresenceStore(rc, cfg.Redis.Prefix, cfg.PresenceTTL)
		if cfg.Redis.RESTRateLimitPerMinute > 0 {
			limiter = redis.NewRateLimiter(rc, cfg.Redis.Prefix, cfg.Redis.RESTRateLimitPerMinute, time.Minute)
		}
	}

	// notifiers stay untyped nil when disabled
	var (
		msgNotifier  service.MessageNotifier
		roomNotifier service.RoomNotifier
		producer     *kafka.Producer
		publisher    *events.Publisher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, logger)
		msgNotifier = producer
	}
	if cfg.NATS.URL != "" {
		publisher, err = events.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectRoomOpened)
		if err != nil {
			logger.Fatalw("nats connect", "url", cfg.NATS.URL, "error", err)
		}
		roomNotifier = publisher
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metric.New(reg)

	h := hub.New(logger, metrics)
	chat := service.NewChatService(st, msgNotifier, roomNotifier, logger)

	deps := ws.Deps{
		Resolver:   auth.NewResolver(jv, users, cfg.App.MediaBaseURL, logger),
		Authorizer: service.NewAuthorizer(st),
		Hub:        h,
		Router:     ws.NewRouter(h, st, chat, logger),
		Metrics:    metrics,
		Log:        logger,
	}
	apiDeps := api.Deps{
		Chat:      chat,
		Tokens:    jv,
		Hub:       h,
		Store:     st,
		Gatherer:  reg,
		Log:       logger,
		AccessLog: cfg.App.IsDevelopment(),
	}
	if presence != nil {
		deps.Presence = presence
		apiDeps.Presence = presence
	}
	if limiter != nil {
		apiDeps.Limiter = limiter
	}
	handler := ws.NewHandler(deps, ws.Options{
		PingInterval:    cfg.PingInterval,
		PongWait:        cfg.PongWait,
		WriteDeadline:   cfg.WriteDeadline,
		MaxMessageSize:  cfg.WS.MaxMessageSizeBytes,
		SendBuffer:      cfg.WS.SendBuffer,
		RateLimitPerSec: cfg.WS.RateLimitPerSec,
	})
	apiDeps.WS = handler
	app := api.NewServer(apiDeps)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		logger.Infow("starting realtime chat", "addr", addr, "storage", cfg.Storage.Driver)
		errs <- app.Listen(addr)
	}()

	select {
	case err := <-errs:
		logger.Errorw("server error", "error", err)
	case <-ctx.Done():
		logger.Infow("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("websocket sessions did not drain", "open", handler.Open(), "error", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warnw("fiber shutdown", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warnw("kafka close", "error", err)
		}
	}
	if err := publisher.Close(); err != nil {
		logger.Warnw("nats drain", "error", err)
	}
	if err := st.Close(shutdownCtx); err != nil {
		logger.Warnw("store close", "error", err)
	}
	if rc != nil {
		_ = rc.Close()
	}
	logger.Infow("shut down")
}

func newValidator(c config.JWTConfig) (*auth.JWTValidator, error) {
	if strings.EqualFold(c.Algorithm, "RS256") {
		return auth.NewJWTValidatorRS256(c.PublicKeyPath)
	}
	return auth.NewJWTValidatorHS256(c.HSSecret)
}

func seedMemory(st *store.MemoryStore, m config.MemoryConfig) {
	for _, u := range m.Users {
		st.PutUser(&domain.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, AvatarPath: u.Avatar})
	}
	for _, r := range m.Rooms {
		st.PutRoom(&domain.Room{ID: r.ID, UserID: r.User, TrainerID: r.Trainer})
	}
}

// openStore connects the configured backend, retrying with exponential backoff while
// the database comes up.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (store.Store, error) {
	var st store.Store
	connect := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		switch cfg.Storage.Driver {
		case "mongo":
			client, err := repository.NewMongoClient(attemptCtx, cfg.Mongo.URI)
			if err != nil {
				return err
			}
			repo, err := repository.NewMongoRepository(attemptCtx, client, cfg.Mongo.Database)
			if err != nil {
				_ = client.Disconnect(context.Background())
				return err
			}
			st = repo
		case "postgres":
			pool, err := repository.NewPostgresPool(attemptCtx, cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			st = repository.NewPostgresRepository(pool)
		case "memory":
			mem := store.NewMemoryStore()
			seedMemory(mem, cfg.Memory)
			if len(cfg.Memory.Users) == 0 {
				logger.Warnw("memory store has no seeded users, every handshake will be rejected")
			}
			st = mem
		default:
			return backoff.Permanent(fmt.Errorf("unknown driver %q", cfg.Storage.Driver))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	notify := func(err error, wait time.Duration) {
		logger.Warnw("store not ready, retrying", "driver", cfg.Storage.Driver, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return st, nil
}
