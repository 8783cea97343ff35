package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/truckhub/infra/logger"
)

// PromServerConfig is the conf block of a prometheus sink.
type PromServerConfig struct {
	Addr string `json:"addr"`
}

// StartPromServer exposes the metrics of g on addr under /metrics until ctx
// is canceled. A nil gatherer serves the default registry. The bound address
// is returned so callers may pass ":0".
func StartPromServer(ctx context.Context, addr string, g prometheus.Gatherer, log logger.Logger) (string, error) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("prom server shutdown: %v", err)
		}
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("prom server: %v", err)
		}
	}()
	return ln.Addr().String(), nil
}
