package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	enginepkg "github.com/ichaaulia/supercart/internal/engine"
	configpkg "github.com/ichaaulia/supercart/internal/engine/config"
	loggingpkg "github.com/ichaaulia/supercart/internal/engine/logging"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BrokerURL  string
	CartNumber int
	Metrics    bool
}

// NewRunCommand builds the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and synchronize one cart session",
		Long: `Connect to the MQTT broker, bind the given cart number's topic
namespace, and run until interrupted.

Example:
  supercart run --config ./supercart.yaml --cart 7
  supercart run --broker wss://test.mosquitto.org:8081/mqtt --cart 12 --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.BrokerURL, "broker", "", "broker URL (overrides config file)")
	cmd.Flags().IntVar(&opts.CartNumber, "cart", 0, "cart number to bind, 1-100 (required)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "expose Prometheus metrics")
	_ = cmd.MarkFlagRequired("cart")

	return cmd
}

func runEngine(cmd *cobra.Command, opts *RunOptions) error {
	conf, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	engine, err := enginepkg.NewEngine(conf, log, enginepkg.Dependencies{
		Notifier: consoleNotifier{out: cmd.OutOrStdout()},
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			log.Error("engine close failed", closeErr, nil)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	if err := engine.AssignCart(ctx, opts.CartNumber); err != nil {
		return err
	}

	var metricsSrv *http.Server
	if conf.MetricsEnabled {
		metricsSrv = serveMetrics(conf.MetricsPort, log)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cart %s bound to %s. Press Ctrl-C to stop.\n",
		engine.Session().ID(), conf.BrokerURL)

	<-ctx.Done()
	log.Info("shutting down", nil)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", err, nil)
		}
	}
	return nil
}

func loadConfig(opts *RunOptions) (*configpkg.Config, error) {
	var conf *configpkg.Config
	if opts.ConfigFile != "" {
		loaded, err := configpkg.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		conf = loaded
	} else {
		conf = &configpkg.Config{}
		conf.Normalize()
	}

	// Flags override the file.
	if opts.BrokerURL != "" {
		conf.BrokerURL = opts.BrokerURL
	}
	if opts.Metrics {
		conf.MetricsEnabled = true
	}
	return conf, nil
}

func serveMetrics(port int, log loggingpkg.ServiceLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		log.Info("metrics listening", loggingpkg.LogFields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", err, nil)
		}
	}()
	return srv
}
