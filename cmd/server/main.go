package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-vms-es/internal/api"
	"github.com/technosupport/ts-vms-es/internal/auth"
	"github.com/technosupport/ts-vms-es/internal/cameras"
	"github.com/technosupport/ts-vms-es/internal/config"
	"github.com/technosupport/ts-vms-es/internal/data"
	"github.com/technosupport/ts-vms-es/internal/dedup"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
	"github.com/technosupport/ts-vms-es/internal/metrics"
	"github.com/technosupport/ts-vms-es/internal/middleware"
	"github.com/technosupport/ts-vms-es/internal/ratelimit"
	"github.com/technosupport/ts-vms-es/internal/relay"
	"github.com/technosupport/ts-vms-es/internal/tokens"
)

const serviceName = "ts-vms-es"

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "Path to YAML config")
	flag.Parse()

	log, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *cfgPath); err != nil {
		log.Criticalf("%v", err)
		log.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, log logs.Log, cfgPath string) error {
	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Infof("Starting %s with %s store", serviceName, cfg.Store.Backend)

	checks := map[string]api.Pinger{}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// 2. Redis (store backend and/or rate limiting)
	var rdb *redis.Client
	if cfg.Store.Backend == config.BackendRedis || cfg.RateLimit.Enabled || (cfg.Auth.Enabled && cfg.Auth.CheckRevocation) {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { rdb.Close() })
		checks["redis"] = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// 3. Event store
	var store eventstore.Store
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := data.Open(ctx, data.ConnString(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		checks["postgres"] = api.PingFunc(db.PingContext)
		store = &data.EventModel{DB: db}
	case config.BackendRedis:
		store = eventstore.NewRedisStore(rdb, cfg.Store.RedisKeyPrefix)
	default:
		log.Warnf("Using in-memory event store; events are lost on restart")
		store = eventstore.NewMemoryStore()
	}

	coll := metrics.NewCollector()

	// 4. NATS relay. A broker outage only disables publishing.
	var pub eventstore.Publisher
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			log.Warnf("NATS connect failed: %v. Event relay disabled.", err)
		} else {
			log.Infof("Connected to NATS at %s", nc.ConnectedUrl())
			closers = append(closers, func() { nc.Drain() })
			checks["nats"] = api.PingFunc(func(ctx context.Context) error {
				if !nc.IsConnected() {
					return errors.New(nc.Status().String())
				}
				return nil
			})
			pub = relay.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, cfg.NATS.PublishRetryMax, coll)
		}
	}

	streams := eventstore.NewStreams(store, pub, coll, log)
	svc := cameras.NewService(streams, cfg.Store.StreamPrefix, log)

	// 5. HTTP
	window, err := dedup.NewWindow(cfg.Idempotency.MaxKeys, cfg.Idempotency.TTL())
	if err != nil {
		return fmt.Errorf("idempotency window: %w", err)
	}
	rcfg := api.RouterConfig{
		Service:        svc,
		Log:            log,
		Metrics:        coll,
		Idempotency:    middleware.NewIdempotency(window, log),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Checks:         checks,
	}
	if cfg.Auth.Enabled {
		rcfg.Auth = tokens.NewManager(cfg.Auth.SigningKey)
		if cfg.Auth.CheckRevocation {
			rcfg.Revocations = auth.NewRedisRevocations(rdb)
		}
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(rdb, cfg.RateLimit.Salt)
		rcfg.RateLimit = middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit.GlobalIP, log)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(rcfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("Listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Infof("Shutdown requested")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown error: %v", err)
	}
	log.Infof("Server stopped gracefully")
	return nil
}
