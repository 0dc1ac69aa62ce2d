// Command epiquery-client dispatches the query lines of a file to a
// broker, printing each reply as it arrives (§4.6).
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

	"github.com/lpapadakos/epiquery/internal/client"
	"github.com/lpapadakos/epiquery/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epiquery-client",
	Short: "Dispatches a query file to a broker, wave by wave",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("query-file", "q", "", "file of queries, one per line (required)")
	flags.IntP("workers", "w", config.GetenvInt("EPIQUERY_CLIENT_THREADS", 4), "number of concurrent senders per wave")
	flags.String("server-port", config.Getenv("EPIQUERY_SERVER_PORT", "9001"), "broker query listener port")
	flags.String("server-ip", config.Getenv("EPIQUERY_SERVER_IP", "127.0.0.1"), "broker query listener host")

	rootCmd.MarkFlagRequired("query-file")
}

func run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	queryFile, _ := flags.GetString("query-file")
	workers, _ := flags.GetInt("workers")
	serverPort, _ := flags.GetString("server-port")
	serverIP, _ := flags.GetString("server-ip")

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "client").Logger()

	c := &client.Client{
		ServerAddr: serverAddr(serverIP, serverPort),
		Workers:    workers,
		Out:        os.Stdout,
		Log:        log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Run(ctx, queryFile)
}

func serverAddr(serverIP, serverPort string) string {
	return net.JoinHostPort(serverIP, serverPort)
}
