// Command epiquery-broker runs the server process: it accepts worker
// statistics connections and client query connections, fans a client
// query out to every registered worker, and merges the responses
// (§4.4, §4.5).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lpapadakos/epiquery/internal/broker"
	"github.com/lpapadakos/epiquery/internal/config"
	"github.com/lpapadakos/epiquery/internal/metrics"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epiquery-broker",
	Short: "Fans client queries out to workers and merges their responses",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntP("query-port", "q", config.GetenvInt("EPIQUERY_QUERY_PORT", 9001), "client query listener port")
	flags.IntP("stats-port", "s", config.GetenvInt("EPIQUERY_STATS_PORT", 9000), "worker statistics listener port")
	flags.IntP("workers", "w", config.GetenvInt("EPIQUERY_BROKER_THREADS", 8), "size of the goroutine pool draining accepted connections")
	flags.IntP("buffer-size", "b", config.GetenvInt("EPIQUERY_BUFFER_SIZE", 4096), "accepted-connection queue size (the original's ring buffer capacity)")
	flags.String("metrics-addr", config.Getenv("EPIQUERY_BROKER_METRICS_ADDR", ""), "address to serve /metrics on, empty to disable")
}

func run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	queryPort, _ := flags.GetInt("query-port")
	statsPort, _ := flags.GetInt("stats-port")
	workers, _ := flags.GetInt("workers")
	queueSize, _ := flags.GetInt("buffer-size")
	metricsAddr, _ := flags.GetString("metrics-addr")

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "broker").Logger()

	statsListener, err := net.Listen("tcp", fmt.Sprintf(":%d", statsPort))
	if err != nil {
		return fmt.Errorf("broker: statistics listener: %w", err)
	}
	defer statsListener.Close()

	queryListener, err := net.Listen("tcp", fmt.Sprintf(":%d", queryPort))
	if err != nil {
		return fmt.Errorf("broker: query listener: %w", err)
	}
	defer queryListener.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewBroker(reg)

	b := &broker.Broker{
		StatsListener: statsListener,
		QueryListener: queryListener,
		Workers:       workers,
		QueueSize:     queueSize,
		FanoutTimeout: broker.DefaultFanoutTimeout,
		Registry:      broker.NewWorkerRegistry(),
		Metrics:       m,
		Log:           log,
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("stats_port", statsPort).Int("query_port", queryPort).Int("workers", workers).Msg("broker starting")
	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	log.Info().Msg("broker stopped")
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("broker metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("broker metrics server stopped")
	}
}
