package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/gate"
	"github.com/platformbuilds/countgate/internal/logging"
	"github.com/platformbuilds/countgate/internal/models"
	"github.com/platformbuilds/countgate/internal/monitoring"
	"github.com/platformbuilds/countgate/internal/security/cabundle"
	"github.com/platformbuilds/countgate/internal/services"
	"github.com/platformbuilds/countgate/internal/tracing"
	"github.com/platformbuilds/countgate/internal/utils/lucene"
	"github.com/platformbuilds/countgate/pkg/logger"
)

// flushTimeout bounds the metric push and span flush at the end of a run.
const flushTimeout = 5 * time.Second

func loadConfig(conn *connectionFlags) (*config.Config, error) {
	cfg, err := config.Load(conn.configPath)
	if err != nil {
		return nil, &models.ConfigurationError{Err: err}
	}
	conn.apply(&cfg.Connection)
	return cfg, nil
}

// startTracing installs the OTLP provider when tracing is configured. The
// returned func flushes it.
func startTracing(ctx context.Context, cfg *config.Config, log logger.Logger) func() {
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint == "" {
		return func() {}
	}
	tp, err := tracing.NewTracerProvider(ctx, cfg.Tracing.ServiceName, config.ServiceVersion, cfg.Tracing.Endpoint)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
		return func() {}
	}
	log.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("failed to flush spans", "error", err)
		}
	}
}

// newHTTPClient builds the shared search engine client. The returned func
// stops the CA bundle watcher.
func newHTTPClient(cfg *config.Config, log logger.Logger) (*http.Client, func(), error) {
	mgr, err := cabundle.NewManager(cfg.Connection.CABundle, log)
	if err != nil {
		return nil, nil, &models.ConfigurationError{Field: "connection.ca_bundle", Err: err}
	}
	if cfg.Connection.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled for the search engine connection")
	}
	closeFn := func() {
		if err := mgr.Close(); err != nil {
			log.Warn("failed to stop CA bundle watcher", "error", err)
		}
	}
	return services.NewHTTPClient(mgr.TLSConfig(cfg.Connection.InsecureSkipVerify)), closeFn, nil
}

func newGateService(cfg *config.Config, conns config.ConnectionProvider, client *http.Client, log logger.Logger) *services.GateService {
	tracer := tracing.NewGateTracer(cfg.Tracing.ServiceName)
	return services.NewGateService(
		conns,
		services.NewCountFetcher(client, log, tracer),
		log,
		services.GateOptions{
			Retry:        services.RetryPolicyFromConfig(cfg.Retry),
			StrictSyntax: cfg.Query.StrictSyntax,
			Tracer:       tracer,
		},
	)
}

func runCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var conn connectionFlags
	var gates gateFlags
	conn.register(fs)
	gates.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := loadConfig(&conn)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	specs, err := gates.specs()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushSpans := startTracing(ctx, cfg, log)
	defer flushSpans()
	defer pushMetrics(cfg, log)

	client, closeClient, err := newHTTPClient(cfg, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	defer closeClient()

	svc := newGateService(cfg, config.StaticProvider{Conn: cfg.Connection}, client, log)
	build := logging.NewWriterLog(stdout, log)

	for _, ns := range specs {
		var blog logging.BuildLog = build
		if len(specs) > 1 {
			blog = build.WithPrefix(ns.Name)
		}
		_, err := svc.Enforce(ctx, ns.Name, ns.Spec, blog)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitCode(err)
		}
	}
	return exitPass
}

func pushMetrics(cfg *config.Config, log logger.Logger) {
	if cfg.Monitoring.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	host, _ := os.Hostname()
	if err := monitoring.Push(ctx, cfg.Monitoring.PushgatewayURL, cfg.Monitoring.JobName, host); err != nil {
		log.Warn("failed to push metrics", "error", err)
	}
}

// checkCommand validates everything a run would validate and prints the
// request each gate would send, without contacting the search engine.
func checkCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var conn connectionFlags
	var gates gateFlags
	conn.register(fs)
	gates.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := loadConfig(&conn)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	specs, err := gates.specs()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	if err := describe(cfg, specs, clock.NewClock(), stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	return exitPass
}

func describe(cfg *config.Config, specs []models.NamedSpec, clk clock.Clock, out io.Writer) error {
	conn := cfg.Connection
	if err := conn.Validate(); err != nil {
		return err
	}
	loc, err := conn.Location()
	if err != nil {
		return &models.ConfigurationError{Field: "connection.index_timezone", Err: err}
	}
	window := gate.NewIndexWindow(clk, conn.Prefix(), loc)

	for _, ns := range specs {
		if _, err := lucene.Analyze(ns.Spec.Query); err != nil {
			if cfg.Query.StrictSyntax {
				return &models.ConfigurationError{Field: ns.Name + ".query", Err: err}
			}
			fmt.Fprintf(out, "%s: warning: %v\n", ns.Name, err)
		}
		w := window.Compute(ns.Spec.Lookback.Duration(), conn.Indexes)
		req, err := gate.BuildCountURL(conn, ns.Spec.Query, w.Since, w.IndexList())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: fail when count %s %d over the last %s\n", ns.Name, ns.Spec.Comparison.Symbol(), ns.Spec.Threshold, ns.Spec.Lookback)
		fmt.Fprintf(out, "%s: GET %s\n", ns.Name, req.Redacted)
	}
	return nil
}
