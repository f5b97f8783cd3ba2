package observe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK provider.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "thock".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Addr is the listen address for the Prometheus scrape endpoint, e.g.
	// ":9090". Empty starts no listener; metrics are still collected and
	// can be read through a custom reader.
	Addr string
}

// Provider owns the OpenTelemetry SDK wiring and the optional scrape
// endpoint. Shut it down in a defer from main().
type Provider struct {
	shutdownFuncs []func(context.Context) error
	scrapeAddr    string
}

// InitProvider initialises the OTel SDK with the given config: a
// [sdkmetric.MeterProvider] bridged to a dedicated Prometheus registry, set
// as the global OTel meter provider, plus an HTTP server exposing /metrics
// when cfg.Addr is set. The registry is private to this provider so repeated
// initialisation in one process never trips duplicate registration.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "thock"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	p := &Provider{}

	if cfg.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			_ = mp.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics listener on %q: %w", cfg.Addr, err)
		}

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint stopped", "err", err)
			}
		}()

		p.scrapeAddr = ln.Addr().String()
		p.shutdownFuncs = append(p.shutdownFuncs, srv.Shutdown)
	}

	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	return p, nil
}

// ScrapeAddr returns the bound address of the /metrics endpoint, or "" when
// no listener was configured.
func (p *Provider) ScrapeAddr() string { return p.scrapeAddr }

// Shutdown stops the scrape endpoint and flushes the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
