package util

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "urldedup_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	server := httptest.NewServer(MetricsHandler(reg))
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "urldedup_test_total 3") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}

func TestPrometheusExporterStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- PrometheusExporter(ctx, "127.0.0.1:0", prometheus.NewRegistry())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PrometheusExporter() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("PrometheusExporter did not stop")
	}
}
