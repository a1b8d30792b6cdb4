package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/config"
	httpserver "github.com/fyrsmithlabs/claude-agent/internal/http"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
)

var metricsListen string

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsServeCmd)
	metricsServeCmd.Flags().StringVar(&metricsListen, "listen", httpserver.DefaultConfig().Addr(), "address to listen on (host:port)")
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Export project metrics",
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve [project_dir]",
	Short: "Serve drift metrics and project status over HTTP",
	Long: `Serve the project's drift metrics for Prometheus, plus JSON status
endpoints, until interrupted.

Endpoints:
  /health          liveness
  /metrics         Prometheus drift gauges
  /api/v1/status   feature progress and session state
  /api/v1/drift    drift aggregates, indicators and integrity issues

Examples:
  claude-agent metrics serve ./my-project
  claude-agent metrics serve ./my-project --listen 0.0.0.0:9464`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetricsServe,
}

func runMetricsServe(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	host, portStr, err := net.SplitHostPort(metricsListen)
	if err != nil {
		return clierr.New("invalid --listen address "+strconv.Quote(metricsListen),
			err.Error(), "claude-agent metrics serve --listen localhost:9464", "")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return clierr.New("invalid --listen port "+strconv.Quote(portStr),
			"The port must be a number", "claude-agent metrics serve --listen localhost:9464", "")
	}

	app, err := newApp(cmd, dir, config.Overrides{})
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := httpserver.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	source := monitor.Source{Dir: dir, Metrics: app.store, LogDir: app.logger.Config().Dir}
	server, err := httpserver.NewServer(source, app.logger, cfg, app.tel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Serving %s on http://%s (Ctrl+C to stop)\n", dir, cfg.Addr())
	if err := server.Serve(ctx); err != nil {
		app.logger.Error(ctx, "metrics server failed", zap.Error(err))
		return err
	}
	return nil
}
