package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/platformbuilds/countgate/internal/api"
	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/monitoring"
	"github.com/platformbuilds/countgate/pkg/logger"
)

func serveCommand(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var conn connectionFlags
	conn.register(fs)
	port := fs.Int("port", 0, "listen port, overrides server.port")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := loadConfig(&conn)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("Starting countgate", "version", config.ServiceVersion, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.Enabled {
		monitoring.Register(config.ServiceVersion)
	}
	flushSpans := startTracing(ctx, cfg, log)
	defer flushSpans()

	var conns config.ConnectionProvider = config.StaticProvider{Conn: cfg.Connection}
	if conn.configPath != "" {
		running := *cfg
		watcher := config.NewConfigWatcher(conn.configPath, cfg, log)
		watcher.RegisterWatcher(func(c *config.Config) {
			log.Info("connection settings reloaded", "host", c.Connection.Host, "indexes", c.Connection.Indexes)
			if keys := restartOnlyChanges(running, c, &conn); len(keys) > 0 {
				log.Warn("reloaded settings take effect only after a restart", "keys", keys)
			}
		})
		defer watcher.Stop()
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.Error("configuration watcher failed", "error", err)
			}
		}()
		conns = overrideProvider{base: watcher, flags: &conn}
	}

	client, closeClient, err := newHTTPClient(cfg, log)
	if err != nil {
		log.Error("invalid TLS settings", "error", err)
		return exitConfig
	}
	defer closeClient()

	server := api.NewServer(cfg, log, conns, newGateService(cfg, conns, client, log))
	if err := server.Start(ctx); err != nil {
		log.Error("Server failed", "error", err)
		return exitTransport
	}

	log.Info("countgate shutdown complete")
	return exitPass
}

// overrideProvider reapplies command-line overrides on top of every reloaded
// snapshot.
type overrideProvider struct {
	base  config.ConnectionProvider
	flags *connectionFlags
}

func (p overrideProvider) Connection() config.ConnectionConfig {
	c := p.base.Connection()
	p.flags.apply(&c)
	return c
}

// restartOnlyChanges names the settings of a reloaded config that differ from
// the running ones but are fixed at startup: the TLS client, the retry
// policy, syntax strictness, the listener and the evaluation deadline.
func restartOnlyChanges(running config.Config, reloaded *config.Config, flags *connectionFlags) []string {
	var keys []string
	if reloaded.Connection.CABundle != running.Connection.CABundle {
		keys = append(keys, "connection.ca_bundle")
	}
	if reloaded.Connection.InsecureSkipVerify != running.Connection.InsecureSkipVerify {
		keys = append(keys, "connection.insecure_skip_verify")
	}
	if reloaded.Retry != running.Retry {
		keys = append(keys, "retry")
	}
	if reloaded.Query.StrictSyntax != running.Query.StrictSyntax {
		keys = append(keys, "query.strict_syntax")
	}
	if reloaded.Server != running.Server {
		keys = append(keys, "server")
	}

	conn := reloaded.Connection
	flags.apply(&conn)
	if conn.RequestTimeout() > running.Connection.RequestTimeout() {
		keys = append(keys, "connection.query_request_timeout")
	}
	return keys
}
