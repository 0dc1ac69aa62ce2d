// Command epiquery-worker runs one shard process: bootstrap, ingest,
// serve, exit (§4.2). It is never invoked directly by an operator — the
// master spawns it, passing its shard tag, input directory, and control
// pipe descriptor as plumbing flags, mirroring the original's
// exec-spawned worker processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/config"
	"github.com/lpapadakos/epiquery/internal/master"
	"github.com/lpapadakos/epiquery/internal/metrics"
	"github.com/lpapadakos/epiquery/internal/shard"
	"github.com/lpapadakos/epiquery/internal/wire"
	"github.com/lpapadakos/epiquery/internal/worker"
)

func main() {
	tag := flag.Int("tag", -1, "shard tag assigned by the master")
	inputDir := flag.String("input-dir", "", "root directory of per-country record files")
	ctrlFD := flag.Int("ctrl-fd", master.CtrlFD, "file descriptor of the control pipe inherited from the master")
	flag.Parse()

	if *tag < 0 || *inputDir == "" {
		fmt.Fprintln(os.Stderr, "epiquery-worker: -tag and -input-dir are required")
		os.Exit(1)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "worker").Int("tag", *tag).Logger()

	if err := run(*tag, *inputDir, *ctrlFD, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
}

func run(tag int, inputDir string, ctrlFD int, log zerolog.Logger) error {
	ctrlFile := os.NewFile(uintptr(ctrlFD), "ctrl")
	if ctrlFile == nil {
		return fmt.Errorf("worker: control descriptor %d is not open", ctrlFD)
	}
	ctrlReader := wire.NewReader(ctrlFile)

	countries, brokerAddr, err := worker.Bootstrap(ctrlReader)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewWorker(reg, tag)

	idx := shard.NewDefault()
	w := worker.New(tag, inputDir, idx, m, log)

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("worker: listen: %w", err)
	}
	defer listener.Close()
	listenPort := listener.Addr().(*net.TCPAddr).Port

	if err := dialAndIngest(brokerAddr, w, countries, listenPort); err != nil {
		return err
	}

	metricsAddr := config.Getenv("EPIQUERY_WORKER_METRICS_ADDR", "")
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rescanCh := make(chan struct{})
	go worker.WatchControl(ctrlReader, rescanCh)

	log.Info().Strs("countries", countries).Int("port", listenPort).Msg("worker serving")
	return w.Serve(ctx, listener, rescanCh, func() error {
		return dialAndRescan(brokerAddr, w)
	})
}

// dialAndIngest opens a fresh statistics connection and runs the
// worker's initial ingest over it, closing the connection when done —
// w_master_phase's one-shot statistics socket.
func dialAndIngest(brokerAddr string, w *worker.Worker, countries []string, listenPort int) error {
	conn, err := net.Dial("tcp", brokerAddr)
	if err != nil {
		return fmt.Errorf("worker: dial broker stats: %w", err)
	}
	defer conn.Close()

	return w.Ingest(wire.NewWriter(conn), countries, listenPort)
}

// dialAndRescan opens a fresh statistics connection for one rescan
// report — the original closes and reopens its statistics socket on
// every SIGUSR1-triggered rescan too, rather than keeping it open
// between reports.
func dialAndRescan(brokerAddr string, w *worker.Worker) error {
	conn, err := net.Dial("tcp", brokerAddr)
	if err != nil {
		return fmt.Errorf("worker: dial broker stats for rescan: %w", err)
	}
	defer conn.Close()

	return w.Rescan(wire.NewWriter(conn))
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("worker metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("worker metrics server stopped")
	}
}
