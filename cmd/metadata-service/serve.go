package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/nainya/metadata-service/internal/config"
	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/internal/metrics"
	"github.com/nainya/metadata-service/internal/server"
	"github.com/nainya/metadata-service/pkg/datastore"
	"github.com/nainya/metadata-service/pkg/query"
)

const shutdownTimeout = 10 * time.Second

// serve loads configuration and runs every server until a signal arrives
func serve(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	logger.InitGlobalLogger(logger.Config{
		Level:          cfg.Log.Level,
		Pretty:         cfg.Log.Pretty,
		ServiceVersion: cfg.Service.CommitID,
		Host:           cfg.Service.HostName,
	})
	log := logger.GetGlobalLogger()
	log.LogServerStart(cfg.Server.Port, cfg.Datastore.RootDir)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	defer m.Close()

	files := datastore.NewFileReader(cfg.Datastore.RootDir)
	reader, closeReader, err := newReader(ctx, cfg, files, m, log)
	if err != nil {
		return err
	}
	defer closeReader()

	store := datastore.NewStore(reader,
		datastore.WithRecorder(m),
		datastore.WithLogger(log.StoreLogger()),
	)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("datastore at %s is not readable: %w", cfg.Datastore.RootDir, err)
	}

	var grpcLis net.Listener
	if cfg.GRPC.Port != 0 {
		grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port %d: %w", cfg.GRPC.Port, err)
		}
	}

	api := server.NewServer(query.NewEngine(store), store, m, log, server.Options{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	errCh := make(chan error, 3)
	go func() { errCh <- api.Start() }()

	var obs *server.ObservabilityServer
	if cfg.Observability.Port != 0 {
		obs = server.NewObservabilityServer(cfg.Observability.Port, reg, store, log)
		go func() { errCh <- obs.Start() }()
	}

	var health *server.HealthServer
	if grpcLis != nil {
		health = server.NewHealthServer(store, 10*time.Second, m, log)
		go func() { errCh <- health.Serve(grpcLis) }()
	}

	log.LogServerReady(cfg.Server.Port)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if health != nil {
		health.Stop()
	}
	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// newReader builds the document reader for the configured cache backend.
// The returned close function releases the cache and file watcher.
func newReader(ctx context.Context, cfg *config.Config, files *datastore.FileReader, m *metrics.Metrics, log *logger.Logger) (datastore.Reader, func(), error) {
	cacheConfig := datastore.CacheConfig{
		DefaultTTL: cfg.Cache.TTL,
		Prefix:     datastore.DefaultCacheConfig().Prefix,
	}

	var cache datastore.Cache
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return files, func() {}, nil
	case config.CacheRedis:
		rc, err := datastore.NewRedisCache(ctx, datastore.RedisConfig{
			Addr:  cfg.Cache.RedisAddr,
			Cache: cacheConfig,
		})
		if err != nil {
			return nil, nil, err
		}
		cache = rc
	default:
		cache = datastore.NewMemoryCache(cacheConfig)
	}

	cached := datastore.NewCachedReader(files, cache, m, log.StoreLogger())
	log.Info("document cache enabled").
		Str("backend", cfg.Cache.Backend).
		Dur("ttl", cfg.Cache.TTL).
		Send()

	if !cfg.Cache.Watch {
		return cached, func() { cache.Close() }, nil
	}

	watcher, err := datastore.NewWatcher(files.Dir(), cached, log.StoreLogger())
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	watcher.Start()

	return cached, func() {
		watcher.Close()
		cache.Close()
	}, nil
}
