package main

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpapadakos/epiquery/internal/metrics"
	"github.com/lpapadakos/epiquery/internal/shard"
	"github.com/lpapadakos/epiquery/internal/wire"
	"github.com/lpapadakos/epiquery/internal/worker"
)

// fakeStatsListener accepts one connection, reads every framed message
// off it until READY, and reports the messages it saw.
func fakeStatsListener(t *testing.T) (addr string, seen <-chan []string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ch := make(chan []string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lines, _ := wire.NewReader(conn).ReadUntil(wire.Ready)
		ch <- lines
	}()
	return l.Addr().String(), ch
}

func newTestWorker(tag int) *worker.Worker {
	reg := prometheus.NewRegistry()
	m := metrics.NewWorker(reg, tag)
	idx := shard.NewDefault()
	return worker.New(tag, ".", idx, m, zerolog.Nop())
}

func TestDialAndIngestSendsIdentityThenReady(t *testing.T) {
	addr, seen := fakeStatsListener(t)
	w := newTestWorker(7)

	require.NoError(t, dialAndIngest(addr, w, nil, 9123))

	lines := <-seen
	require.NotEmpty(t, lines, "expected at least the identity line before READY")
	assert.Equal(t, "7\n9123\n", lines[0])
}

func TestDialAndIngestFailsOnUnreachableBroker(t *testing.T) {
	w := newTestWorker(0)
	assert.Error(t, dialAndIngest("127.0.0.1:1", w, nil, 9000), "expected dial failure against a closed port")
}

func TestDialAndRescanSendsReady(t *testing.T) {
	addr, seen := fakeStatsListener(t)
	w := newTestWorker(1)

	require.NoError(t, dialAndRescan(addr, w))
	<-seen // just confirm the connection was accepted and drained to READY
}
