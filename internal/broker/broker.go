package broker

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/metrics"
)

// DefaultFanoutTimeout bounds how long the broker waits for any one
// worker's response during fan-out, the Go equivalent of the original's
// fixed poll() TIMEOUT constant (§4.5).
const DefaultFanoutTimeout = 10 * time.Second

// Broker accepts worker statistics connections and client query
// connections on two separate listeners and answers queries by fanning
// them out to every registered worker.
type Broker struct {
	StatsListener net.Listener
	QueryListener net.Listener

	// Workers is the size of the goroutine pool draining accepted
	// connections, the Go equivalent of the original's n_threads.
	Workers int
	// QueueSize bounds the channel of accepted-but-not-yet-handled
	// connections, the Go equivalent of the original's ring buffer
	// capacity (buffer_size).
	QueueSize int
	// FanoutTimeout bounds how long a single worker has to answer a
	// fanned-out query before it is excluded from the merge.
	FanoutTimeout time.Duration

	Registry *WorkerRegistry
	Metrics  *metrics.Broker
	Log      zerolog.Logger
}

type acceptedConn struct {
	conn  net.Conn
	stats bool
}

// Run serves both listeners until ctx is canceled, then stops accepting,
// drains whatever connections are already queued, and returns once every
// pool goroutine has exited — the Go shape of the original's
// cond-broadcast-then-pthread_join shutdown sequence.
func (b *Broker) Run(ctx context.Context) error {
	queueSize := b.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	connCh := make(chan acceptedConn, queueSize)

	var acceptWG sync.WaitGroup
	acceptWG.Add(2)
	go b.accept(b.StatsListener, true, connCh, &acceptWG)
	go b.accept(b.QueryListener, false, connCh, &acceptWG)

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	var poolWG sync.WaitGroup
	poolWG.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer poolWG.Done()
			for ac := range connCh {
				if ac.stats {
					b.handleStats(ac.conn)
				} else {
					b.handleQuery(ctx, ac.conn)
				}
			}
		}()
	}

	<-ctx.Done()
	b.StatsListener.Close()
	b.QueryListener.Close()
	acceptWG.Wait()
	close(connCh)
	poolWG.Wait()

	return nil
}

func (b *Broker) accept(l net.Listener, stats bool, connCh chan<- acceptedConn, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		connCh <- acceptedConn{conn: conn, stats: stats}
	}
}
