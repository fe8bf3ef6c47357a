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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KanavDutta/admission/api"
	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/config"
	"github.com/KanavDutta/admission/logging"
	"github.com/KanavDutta/admission/metrics"
	"github.com/KanavDutta/admission/middleware"
	"github.com/KanavDutta/admission/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := cfg.Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Choose storage backend
	var (
		shared cache.Cache
		ping   func(context.Context) error
	)
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		redisCache := cache.NewRedisCache(cfg.RedisCacheConfig())
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			// Admission fails open, so an unreachable cache is not fatal
			logger.Warn("redis unreachable at startup", zap.Strings("addrs", cfg.Cache.Redis.Addrs), zap.Error(err))
		} else {
			logger.Info("connected to redis", zap.Strings("addrs", cfg.Cache.Redis.Addrs))
		}
		shared, ping = redisCache, redisCache.Ping
	default:
		logger.Warn("using in-memory cache, limits and idempotency are per instance")
		memCache := cache.NewMemoryCache(cfg.Namespace)
		stopJanitor := memCache.StartJanitor(cfg.Cache.JanitorInterval)
		g.Go(func() error {
			<-ctx.Done()
			stopJanitor()
			return nil
		})
		shared = memCache
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tracker := metrics.New(reg)

	rlConfig, err := cfg.RateLimitConfig()
	if err != nil {
		return err
	}
	limiter, err := ratelimit.NewService(shared, rlConfig,
		ratelimit.WithLogger(logger.Named("ratelimit")),
		ratelimit.WithMetrics(tracker))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Deps{
			Limiter:   limiter,
			Cache:     shared,
			Logger:    logger.Named("admission"),
			Metrics:   tracker,
			Gatherer:  reg,
			JWTSecret: []byte(cfg.Auth.JWTSecret),
			Ping:      ping,
			FilterOptions: []middleware.Option{
				middleware.WithResponseTTL(cfg.Idempotency.ResponseTTL),
				middleware.WithLockTTL(cfg.Idempotency.LockTTL),
				middleware.WithMaxBodyBytes(cfg.Idempotency.MaxBodyBytes),
			},
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("admission service listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("cache", cfg.Cache.Backend),
			zap.Bool("ratelimit_enabled", rlConfig.Enabled),
			zap.Bool("auth_enabled", cfg.Auth.JWTSecret != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
