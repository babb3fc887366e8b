package util

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMetricsAddr is the default listen address of the metrics endpoint
const DefaultMetricsAddr = ":2112"

// MetricsHandler serves the metrics of gatherer on /metrics
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// PrometheusExporter exports metrics to Prometheus on addr until ctx is done
func PrometheusExporter(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
