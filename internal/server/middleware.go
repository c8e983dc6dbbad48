// ABOUTME: HTTP middleware for the metadata API
// ABOUTME: Request IDs, logging, metrics, panic recovery and timeouts

package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/internal/metrics"
	"github.com/nainya/metadata-service/pkg/errs"
)

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = "X-Request-ID"

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromContext returns the correlation id stored by requestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID tags each request with a correlation id, taken from the
// request header or generated, and stores a tagged logger in the context.
func requestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			ctx = log.WithRequestID(id).WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// instrument logs and records metrics for every completed request
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), duration)
			logger.FromContext(r.Context()).LogHTTPRequest(r.Method, r.URL.String(), status, duration)
		})
	}
}

// recoverer turns a panic into a SYSTEM_ERROR response
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Error("panic recovered").
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Send()
				writeError(w, r, errs.Wrap(fmt.Errorf("%v", rec), "Error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// timeout bounds the context of every request
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// contentLanguage marks responses as Norwegian
func contentLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Language", "no")
		next.ServeHTTP(w, r)
	})
}
