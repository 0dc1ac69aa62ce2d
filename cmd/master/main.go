// Command epiquery-master supervises a fixed pool of worker shard
// processes: it assigns each one a set of country directories, spawns
// it, and respawns it under the same tag if it ever exits (§4.3).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lpapadakos/epiquery/internal/config"
	"github.com/lpapadakos/epiquery/internal/master"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epiquery-master",
	Short: "Supervises worker shard processes and assigns them country directories",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntP("workers", "w", config.GetenvInt("EPIQUERY_WORKERS", 1), "number of worker processes")
	flags.IntP("buffer-size", "b", config.GetenvInt("EPIQUERY_BUFFER_SIZE", 4096), "framing buffer size hint (accepted for wire compatibility, see DESIGN.md)")
	flags.StringP("server-ip", "s", config.Getenv("EPIQUERY_SERVER_IP", "127.0.0.1"), "broker statistics listener host, handed to every spawned worker")
	flags.IntP("server-port", "p", config.GetenvInt("EPIQUERY_SERVER_PORT", 9000), "broker statistics listener port")
	flags.StringP("input-dir", "i", config.Getenv("EPIQUERY_INPUT_DIR", "."), "root directory of per-country record files")
	flags.String("worker-bin", config.Getenv("EPIQUERY_WORKER_BIN", "epiquery-worker"), "path to the worker binary to spawn")
}

func run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	workers, _ := flags.GetInt("workers")
	serverIP, _ := flags.GetString("server-ip")
	serverPort, _ := flags.GetInt("server-port")
	inputDir, _ := flags.GetString("input-dir")
	workerBin, _ := flags.GetString("worker-bin")

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "master").Logger()

	m := &master.Master{
		Workers:    workers,
		InputDir:   inputDir,
		BrokerAddr: brokerAddr(serverIP, serverPort),
		WorkerBin:  workerBin,
		Log:        log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("workers", workers).Str("broker", m.BrokerAddr).Str("input_dir", inputDir).Msg("master starting")
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("master: %w", err)
	}
	log.Info().Msg("master stopped")
	return nil
}

func brokerAddr(serverIP string, serverPort int) string {
	return net.JoinHostPort(serverIP, fmt.Sprint(serverPort))
}
