package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/wire"
)

// DefaultDialTimeout bounds how long a single sender waits to open its
// connection to the broker, mirroring connect()'s implicit OS-level
// timeout in the original with an explicit, configurable one.
const DefaultDialTimeout = 5 * time.Second

// Client dispatches the query lines of a file to a broker, Workers at a
// time, printing each reply as it arrives.
type Client struct {
	ServerAddr string
	Workers    int
	DialTimeout time.Duration
	Out        io.Writer
	Log        zerolog.Logger

	nextID atomic.Int64
}

// Run reads queryFile and dispatches its lines in waves of c.Workers,
// returning once the file is exhausted or ctx is cancelled.
//
// Grounded on client() in original_source/src/client/client.c: a fixed
// pool of sender threads that, each round, read one line apiece from the
// query file, rendezvous on a barrier, then all fire at once. Here every
// wave spawns fresh goroutines instead of recycling a thread pool —
// there is no equivalent cost to amortize, since goroutines are cheap
// and the wave boundary already forces a synchronization point.
func (c *Client) Run(ctx context.Context, queryFile string) error {
	f, err := os.Open(queryFile)
	if err != nil {
		return fmt.Errorf("client: open query file: %w", err)
	}
	defer f.Close()

	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}

	scanner := bufio.NewScanner(f)
	var outMu sync.Mutex

	for {
		if ctx.Err() != nil {
			break
		}
		queries := c.nextWave(scanner)
		if len(queries) == 0 {
			break
		}

		// barrier is a one-shot rendezvous: every sender calls Done as
		// soon as it is ready to fire, then Wait, so Wait only returns
		// for everyone once the last sender has arrived. wave tracks
		// when the whole wave's work (connect, send, read, print) is
		// done, separately from the firing rendezvous itself.
		var barrier, wave sync.WaitGroup
		barrier.Add(len(queries))
		wave.Add(len(queries))

		for _, q := range queries {
			go func(query string) {
				defer wave.Done()
				id := c.nextID.Add(1)

				barrier.Done()
				barrier.Wait()

				c.send(ctx, id, query, &outMu)
			}(q)
		}
		wave.Wait()

		if scanner.Err() != nil {
			break
		}
	}

	return scanner.Err()
}

// nextWave reads up to c.Workers non-blank lines from scanner, stopping
// early at EOF.
func (c *Client) nextWave(scanner *bufio.Scanner) []string {
	queries := make([]string, 0, c.Workers)
	for len(queries) < c.Workers && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	return queries
}

// send connects to the broker, sends one query, reads the single
// READY-terminated reply, and prints query+reply atomically — the Go
// shape of send_cmd's connect/msg_write/msg_read/printf sequence, with
// outMu standing in for the original's reliance on printf's own
// internal atomicity.
func (c *Client) send(ctx context.Context, id int64, query string, outMu *sync.Mutex) {
	dialCtx, cancel := context.WithTimeout(ctx, c.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", c.ServerAddr)
	if err != nil {
		c.Log.Error().Err(err).Int64("sender", id).Str("query", query).Msg("client: connect failed")
		return
	}
	defer conn.Close()

	if err := wire.NewWriter(conn).WriteMessage(query); err != nil {
		c.Log.Error().Err(err).Int64("sender", id).Msg("client: send failed")
		return
	}

	resp, err := wire.ReadResponse(wire.NewReader(conn))
	if err != nil {
		c.Log.Error().Err(err).Int64("sender", id).Msg("client: read reply failed")
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintf(c.Out, "[%d] %s\n%s\n", id, query, wire.JoinLines(resp.Lines))
}
