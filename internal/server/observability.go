// Observability endpoints: metrics, profiling and the gRPC health service
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/internal/metrics"
)

// HealthServiceName is the gRPC health service name of the metadata API
const HealthServiceName = "metadata.MetadataService"

// GrpcMetricsInterceptor creates a gRPC interceptor for metrics and logging
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
		}

		m.RecordGrpcRequest(info.FullMethod, status, duration)
		log.LogGrpcRequest(info.FullMethod, duration, err)

		return resp, err
	}
}

// ObservabilityServer provides HTTP endpoints for metrics and profiling
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer creates a new HTTP server for observability.
// A nil gatherer serves the default Prometheus registry.
func NewObservabilityServer(port int, gatherer prometheus.Gatherer, ready Pinger, log *logger.Logger) *ObservabilityServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"metadata-service"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			if err := ready.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not_ready"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &ObservabilityServer{
		server: server,
		log:    log,
	}
}

// Handler returns the observability HTTP handler
func (o *ObservabilityServer) Handler() http.Handler {
	return o.server.Handler
}

// Start starts the observability HTTP server
func (o *ObservabilityServer) Start() error {
	o.log.Info("Starting observability server").
		Str("addr", o.server.Addr).
		Str("metrics", fmt.Sprintf("http://%s/metrics", o.server.Addr)).
		Str("pprof", fmt.Sprintf("http://%s/debug/pprof/", o.server.Addr)).
		Send()

	if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("observability server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the observability server
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Info("Shutting down observability server").Send()
	return o.server.Shutdown(ctx)
}

// HealthServer serves the standard gRPC health service. The serving
// status follows datastore readiness, polled every interval.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	ready    Pinger
	interval time.Duration
	log      *logger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewHealthServer creates the gRPC health server
func NewHealthServer(ready Pinger, interval time.Duration, m *metrics.Metrics, log *logger.Logger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	return &HealthServer{
		grpc:     grpcServer,
		health:   hs,
		ready:    ready,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Check updates the serving status from one readiness check
func (h *HealthServer) Check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if h.ready != nil {
		if err := h.ready.Ping(ctx); err != nil {
			h.log.Warn("datastore not ready").Err(err).Send()
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthServiceName, status)
}

// Serve runs the health service on lis until Stop is called
func (h *HealthServer) Serve(lis net.Listener) error {
	h.Check(context.Background())

	h.wg.Add(1)
	go h.poll()

	h.log.Info("Starting gRPC health server").Str("addr", lis.Addr().String()).Send()
	return h.grpc.Serve(lis)
}

// Stop marks the service as not serving and stops the gRPC server
func (h *HealthServer) Stop() {
	select {
	case <-h.stop:
		return
	default:
		close(h.stop)
	}
	h.health.Shutdown()
	h.grpc.GracefulStop()
	h.wg.Wait()
}

func (h *HealthServer) poll() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.interval)
			h.Check(ctx)
			cancel()
		}
	}
}
