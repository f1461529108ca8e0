// Package metrics exposes the Prometheus registry over HTTP.
// Metrics are defined next to the code that updates them:
//
// Provider (internal/engine/scraper):
//   - sectorscan_provider_requests_total{outcome} (Counter): page requests by outcome
//   - sectorscan_provider_request_duration_seconds (Histogram): page request latency
//
// Scheduler (internal/engine/scraper):
//   - sectorscan_batches_total (Counter): executed batches
//   - sectorscan_batch_duration_seconds (Histogram): batch wall time including the floor
//   - sectorscan_sectors_processed_total{action} (Counter): reconciled sectors by action
//   - sectorscan_sector_failures_total (Counter): sectors dropped on provider errors
//   - sectorscan_api_credits_total (Counter): credits consumed
//   - sectorscan_places_found_total (Counter): committed places, duplicates included
//   - sectorscan_queue_length (Gauge): pending sectors after the last batch
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Registry is the registerer the package-level metrics are attached to.
var Registry = prometheus.DefaultRegisterer

// Handler serves /metrics and a trivial /health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
