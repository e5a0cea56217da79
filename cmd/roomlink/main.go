package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomlink-api/auth/token"
	"roomlink-api/config"
	"roomlink-api/logging"
	"roomlink-api/marketplace/api"
	"roomlink-api/marketplace/application"
	"roomlink-api/marketplace/domain"
	"roomlink-api/marketplace/infra"
	"roomlink-api/metrics"
	"roomlink-api/middleware/ratelimit"
	rldomain "roomlink-api/middleware/ratelimit/domain"
	rlinfra "roomlink-api/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// .env é opcional; variáveis já exportadas têm precedência.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Log.Level, os.Stdout)

	secret, generated, err := cfg.Auth.ResolveSecret()
	if err != nil {
		logger.Fatalf("auth secret error: %v", err)
	}
	if generated {
		logger.Warn("no auth.secret_key or auth.secret_file configured; using a random key, tokens will not survive a restart")
	}
	issuer, err := token.NewIssuer(secret, token.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		logger.Fatalf("token issuer error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	users, listings, closeStore := openStores(ctx, logger, cfg.Database)
	defer closeStore()

	blobs, err := infra.NewDiskBlobStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		logger.Fatalf("uploads error: %v", err)
	}

	reg := metrics.NewRegistry()
	stats := rlinfra.MultiStatsStore{rlinfra.NewPrometheusStatsStore(reg.Registerer())}
	var redisStats *rlinfra.AsyncStatsStore
	if cfg.Stats.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.Redis.Addr,
			Password: cfg.Stats.Redis.Password,
			DB:       cfg.Stats.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			logger.Fatalf("redis stats ping error: %v", err)
		}

		redisStats = rlinfra.NewAsyncStatsStore(
			rlinfra.NewRedisStatsStore(
				rdb,
				rlinfra.WithStatsPrefix(cfg.Stats.Redis.Prefix),
				rlinfra.WithStatsTTL(cfg.Stats.Redis.TTL),
				rlinfra.WithStatsBucket(cfg.Stats.Redis.Bucket),
				rlinfra.WithStatsTrackKeys(cfg.Stats.Redis.TrackKeys),
			),
			rlinfra.WithQueueSize(cfg.Stats.Redis.QueueSize),
			rlinfra.WithRecordTimeout(cfg.Stats.Redis.RecordTimeout),
			rlinfra.WithAsyncLogger(logger),
			rlinfra.WithOnDrop(reg.StatsDropped.Inc),
		)
		stats = append(stats, redisStats)
	}

	var debugStats *rlinfra.MemoryStatsStore
	if cfg.Debug.Enabled {
		debugStats = rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(cfg.Debug.TrackKeys))
		stats = append(stats, debugStats)
	}

	quota := rldomain.Quota{Capacity: cfg.RateLimit.Capacity, Window: cfg.RateLimit.Window}
	store := rlinfra.NewStore(quota,
		rlinfra.WithIdleTTL(cfg.RateLimit.IdleTTL),
		rlinfra.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
	)

	var rateLimit *ratelimit.Options
	if cfg.RateLimit.Enabled {
		policy := rldomain.DefaultRoutePolicy()
		policy.AuthPrefix = cfg.RateLimit.AuthPrefix
		policy.CreatePath = cfg.RateLimit.CreatePath
		rateLimit = &ratelimit.Options{
			Store:               store,
			Stats:               stats,
			Policy:              &policy,
			OriginHeader:        cfg.Server.OriginHeader,
			TrustXForwardedFor:  cfg.Server.TrustXFF,
			RetryAfter:          cfg.RateLimit.RetryAfter(),
			AddRateLimitHeaders: cfg.RateLimit.AddHeaders,
			Logger:              logger,
		}
	}

	concurrency := ratelimit.ConcurrencyOptions{
		AcquireTimeout: cfg.Server.AcquireTimeout,
		Logger:         logger,
		OnReject:       reg.InFlightRejected.Inc,
	}
	if cfg.Server.MaxInFlight > 0 {
		pool := rlinfra.NewChanPool(cfg.Server.MaxInFlight)
		reg.ObserveInFlight(pool.InUse)
		concurrency.Pool = pool
	}

	h := api.NewRouter(api.Deps{
		Auth:           &application.AuthService{Users: users, Tokens: issuer},
		Listings:       &application.ListingService{Listings: listings, Users: users, AutoApprove: cfg.Listings.AutoApprove},
		Blobs:          blobs,
		Tokens:         issuer,
		Logger:         logger,
		Metrics:        reg,
		Concurrency:    concurrency,
		RateLimit:      rateLimit,
		UploadDir:      cfg.Uploads.Dir,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		DebugStats:     debugStats,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"addr":         cfg.Server.ListenAddr,
		"rate_enabled": cfg.RateLimit.Enabled,
		"capacity":     quota.Capacity,
		"window":       quota.Window.String(),
		"idle_ttl":     cfg.RateLimit.IdleTTL.String(),
		"trust_xff":    cfg.Server.TrustXFF,
		"redis_stats":  cfg.Stats.Redis.Enabled,
		"max_inflight": cfg.Server.MaxInFlight,
		"debug_stats":  cfg.Debug.Enabled,
	}).Info("roomlink listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.RunJanitor(gctx, reg.ObserveSweep)
	})
	if redisStats != nil {
		g.Go(func() error {
			return redisStats.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server error: %v", err)
	}
	logger.Info("roomlink stopped")
}

// openStores usa Postgres quando database.dsn está configurado; senão, memória.
func openStores(ctx context.Context, logger *logrus.Logger, cfg config.DatabaseConfig) (domain.UserStore, domain.ListingStore, func()) {
	if cfg.DSN == "" {
		logger.Warn("database.dsn not set; using in-memory stores")
		mem := infra.NewMemoryStore()
		return mem, mem, func() {}
	}
	db, err := infra.OpenPostgres(ctx, logger, cfg.DSN)
	if err != nil {
		logger.Fatalf("database error: %v", err)
	}
	return db, db, func() { _ = db.Close() }
}
