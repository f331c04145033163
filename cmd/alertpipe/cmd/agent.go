package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/detector"
	"alert-pipeline/internal/probe"
)

const requestIDHeader = "X-Request-Id"

// Command flags
var (
	listenAddr  string // Agent listen address
	targetURL   string // Upstream service URL
	serviceName string // Overrides detector.service_name
)

// agentCmd represents the agent command.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the detector as a sidecar reverse proxy",
	Long: `Proxy every request to the target service and feed its outcome to the
real-time detector. Alert transitions are appended to
<detector.log_dir>/<service>-alert-data.ndjson.

Endpoints served by the agent itself:
  /metrics          prometheus metrics
  /_alerts/stats    detector counters as JSON
  /_alerts/active   active alerts as JSON
  /healthz          liveness

Example:
  alertpipe agent -c config.yaml --target http://127.0.0.1:3000 --listen :8080`,
	Run: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "listen address")
	agentCmd.Flags().StringVar(&targetURL, "target", "", "upstream service URL (required)")
	agentCmd.Flags().StringVar(&serviceName, "service", "", "service name (overrides detector.service_name)")
	_ = agentCmd.MarkFlagRequired("target")
}

// agent wires a detector, its optional probe and the proxying handler.
type agent struct {
	detector *detector.Detector
	probe    probe.Probe
	registry *prometheus.Registry
	handler  http.Handler
	logger   zerolog.Logger
}

func newAgent(cfg *config.Config, target *url.URL, clk clock.Clock, logger zerolog.Logger) (*agent, error) {
	opts, err := detector.OptionsFromConfig(&cfg.Detector, logger)
	if err != nil {
		return nil, err
	}

	p, err := probe.New(&cfg.Probe, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe: %w", err)
	}

	registry := prometheus.NewRegistry()
	opts.Clock = clk
	opts.Probe = p
	opts.Registerer = registry

	d, err := detector.New(opts, logger)
	if err != nil {
		closeProbe(p)
		return nil, err
	}

	a := &agent{
		detector: d,
		probe:    p,
		registry: registry,
		logger:   logger.With().Str("component", "agent").Logger(),
	}
	a.handler = a.routes(target)
	return a, nil
}

func (a *agent) routes(target *url.URL) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/_alerts/stats", func(w http.ResponseWriter, _ *http.Request) {
		a.writeJSON(w, a.detector.Stats())
	})
	mux.HandleFunc("/_alerts/active", func(w http.ResponseWriter, _ *http.Request) {
		a.writeJSON(w, a.detector.ActiveAlerts())
	})

	var upstream http.Handler = a.reverseProxy(target)
	upstream = detector.Middleware(a.detector, upstream)
	upstream = withRequestID(upstream)
	mux.Handle("/", upstream)

	return mux
}

func (a *agent) reverseProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		a.logger.Error().
			Err(err).
			Str("path", req.URL.Path).
			Str("upstream", target.String()).
			Str("request_id", req.Header.Get(requestIDHeader)).
			Msg("proxy request failed")
		http.Error(rw, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

func (a *agent) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, v); err != nil {
		a.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (a *agent) Close() error {
	return closeProbe(a.probe)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r.Header.Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

func closeProbe(p probe.Probe) error {
	if closer, ok := p.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func runAgent(cmd *cobra.Command, args []string) {
	cfg, logger := loadConfig(cmd)
	if serviceName != "" {
		cfg.Detector.ServiceName = serviceName
	}

	target, err := url.Parse(targetURL)
	if err == nil && (target.Scheme == "" || target.Host == "") {
		err = fmt.Errorf("target must be an absolute URL: %q", targetURL)
	}
	exitOnError(err, "invalid --target")

	a, err := newAgent(cfg, target, clock.New(), logger)
	exitOnError(err, "failed to start agent")

	err = serve(cmd.Context(), a, listenAddr)
	if closeErr := a.Close(); closeErr != nil {
		logger.Warn().Err(closeErr).Msg("failed to close probe")
	}
	exitOnError(err, "agent stopped")
}

// serve runs the detector tick and the HTTP server until ctx is done.
func serve(ctx context.Context, a *agent, addr string) error {
	go a.detector.Run(ctx)

	server := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", addr).
			Str("event_log", a.detector.LogPath()).
			Msg("agent started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
