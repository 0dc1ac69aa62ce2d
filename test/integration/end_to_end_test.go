// Package integration exercises the whole query path — client, broker,
// and several workers — in one process, each component wired together
// over real TCP sockets bound to 127.0.0.1:0, the way internal/broker's
// and internal/worker's own tests do. Grounded on the teacher's
// integration-test intent (bring up a small cluster, issue real
// requests against it, assert on real responses) but built from
// in-process goroutines instead of os/exec-spawned binaries — there is
// no go toolchain available to build those binaries in this harness.
package integration

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpapadakos/epiquery/internal/broker"
	"github.com/lpapadakos/epiquery/internal/client"
	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/record"
	"github.com/lpapadakos/epiquery/internal/shard"
	"github.com/lpapadakos/epiquery/internal/wire"
	"github.com/lpapadakos/epiquery/internal/worker"
)

// testWorker is one already-populated shard, serving queries on its own
// listener, registered with the broker via a hand-rolled statistics
// handshake — this test cares about fan-out/merge across real shards,
// not about file-system ingest, so it skips Worker.Ingest's directory
// walk and populates the index directly instead.
type testWorker struct {
	tag      int
	idx      *shard.Index
	listener net.Listener
	w        *worker.Worker
}

func mustEnter(t *testing.T, idx *shard.Index, id, country, disease string, age int, entryDate string) {
	t.Helper()
	d, err := date.Parse(entryDate)
	require.NoError(t, err)
	require.NoError(t, idx.Enter(&record.Record{
		ID: id, Country: country, Disease: disease, Age: age, EntryDate: d,
	}))
}

func startWorker(t *testing.T, tag int) *testWorker {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	idx := shard.NewDefault()
	w := worker.New(tag, ".", idx, nil, zerolog.Nop())
	return &testWorker{tag: tag, idx: idx, listener: l, w: w}
}

// registerWithBroker performs the statistics handshake by hand: identity,
// then one file-statistics batch naming country, then READY — enough for
// the broker to learn this worker's address and the country it owns,
// mirroring handleStats's expectations exactly (see stats_test.go).
func registerWithBroker(t *testing.T, statsAddr string, tw *testWorker, country string) {
	t.Helper()
	conn, err := net.Dial("tcp", statsAddr)
	require.NoError(t, err)
	defer conn.Close()

	port := tw.listener.Addr().(*net.TCPAddr).Port
	w := wire.NewWriter(conn)
	w.WriteLine(strconv.Itoa(tw.tag) + "\n" + strconv.Itoa(port))
	w.WriteDone()

	w.WriteLine("records-2020.txt")
	w.WriteLine(country)
	w.WriteDone()

	w.WriteReady()
}

func TestEndToEndFanoutAcrossTwoShards(t *testing.T) {
	statsListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	queryListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &broker.Broker{
		StatsListener: statsListener,
		QueryListener: queryListener,
		Workers:       4,
		QueueSize:     8,
		FanoutTimeout: 2 * time.Second,
		Registry:      broker.NewWorkerRegistry(),
		Log:           zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var brokerWG sync.WaitGroup
	brokerWG.Add(1)
	go func() {
		defer brokerWG.Done()
		b.Run(ctx)
	}()

	// France's shard: one covid19 admission.
	france := startWorker(t, 0)
	mustEnter(t, france.idx, "r1", "France", "covid19", 34, "01-01-2020")
	var workerWG sync.WaitGroup
	workerWG.Add(2)
	go func() {
		defer workerWG.Done()
		france.w.Serve(ctx, france.listener, nil, nil)
	}()

	// Greece's shard: one covid19 admission.
	greece := startWorker(t, 1)
	mustEnter(t, greece.idx, "r2", "Greece", "covid19", 51, "02-01-2020")
	go func() {
		defer workerWG.Done()
		greece.w.Serve(ctx, greece.listener, nil, nil)
	}()

	registerWithBroker(t, statsListener.Addr().String(), france, "France")
	registerWithBroker(t, statsListener.Addr().String(), greece, "Greece")

	// Give the broker a moment to process both statistics handshakes
	// before any query depends on the registry being populated.
	deadline := time.Now().Add(2 * time.Second)
	for b.Registry.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 2, b.Registry.Len())

	queryFile, err := os.CreateTemp(t.TempDir(), "queries")
	require.NoError(t, err)
	queryFile.WriteString("/listCountries\n/searchPatientRecord r1\n/diseaseFrequency covid19 01-01-2020 31-12-2020\n")
	queryFile.Close()

	var out bytes.Buffer
	c := &client.Client{
		ServerAddr:  queryListener.Addr().String(),
		Workers:     3,
		DialTimeout: 2 * time.Second,
		Out:         &out,
		Log:         zerolog.Nop(),
	}
	require.NoError(t, c.Run(ctx, queryFile.Name()))

	got := out.String()
	assert.Contains(t, got, "France", "listCountries result missing a registered country")
	assert.Contains(t, got, "Greece", "listCountries result missing a registered country")
	assert.Contains(t, got, "r1", "searchPatientRecord result missing the record id")
	assert.Contains(t, got, "diseaseFrequency covid19")
	assert.Contains(t, got, "\n2\n", "diseaseFrequency result should sum to 2 across both shards")

	cancel()
	brokerWG.Wait()
	workerWG.Wait()
}
