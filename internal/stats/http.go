package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/gatebot/core/logger"
)

var httpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatebot_http_requests_total",
		Help: "HTTP requests served by the stats listener",
	},
	[]string{"method", "path", "status"},
)

// CategoryTotal is the /stats/{category} response.
type CategoryTotal struct {
	Category string `json:"category"`
	Items    int    `json:"items"`
}

// NewRouter returns the stats HTTP handler: /healthz, /stats, /stats/totals,
// /stats/{category} and /metrics.
func NewRouter(rep *Reporter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		snap, err := rep.Snapshot(req.Context())
		if err != nil {
			unavailable(w, req, "stats.snapshot", err)
			return
		}
		writeJSON(w, snap)
	})
	r.Get("/stats/totals", func(w http.ResponseWriter, req *http.Request) {
		totals, err := rep.Totals(req.Context())
		if err != nil {
			unavailable(w, req, "stats.totals", err)
			return
		}
		writeJSON(w, totals)
	})
	r.Get("/stats/{category}", func(w http.ResponseWriter, req *http.Request) {
		category, err := url.PathUnescape(chi.URLParam(req, "category"))
		if err != nil || strings.TrimSpace(category) == "" {
			http.Error(w, "bad category", http.StatusBadRequest)
			return
		}
		n, err := rep.TotalItems(req.Context(), category)
		if err != nil {
			unavailable(w, req, "stats.category", err)
			return
		}
		writeJSON(w, CategoryTotal{Category: category, Items: n})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func unavailable(w http.ResponseWriter, req *http.Request, event string, err error) {
	logger.Error(req.Context(), "http", event,
		slog.String("status", "error"),
		slog.String("err", err.Error()),
	)
	http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

// Serve runs the listener until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, listen string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http", "http.listen", slog.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("stats listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stats listener shutdown: %w", err)
	}
	logger.Info(ctx, "http", "http.stop")
	return nil
}
