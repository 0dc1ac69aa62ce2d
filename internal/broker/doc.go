// Package broker implements the server process (§4.4, §4.5): it accepts
// worker statistics connections and client query connections, tracks
// which worker owns which address and which countries it has ingested,
// fans a client query out to every registered worker, and merges the
// responses.
//
// Grounded on original_source/src/server/server.c (two listening
// sockets, a ring buffer of accepted descriptors feeding a fixed thread
// pool, server_thread_statistics/server_thread_query, the
// s_get_response/s_sum_cases merge pair) and structurally on the
// teacher's internal/coordinator.ShardRegistry (an RWMutex-guarded
// registry returning copies, never raw references).
//
// The ring buffer plus two condition variables becomes one buffered
// channel of accepted connections: a full channel blocks producers, an
// empty channel blocks consumers, both for free from Go's channel
// semantics. The non-blocking poll-with-timeout fan-out loop becomes one
// goroutine per worker under an errgroup.Group bound to a
// context.WithTimeout, each doing an ordinary blocking read.
//
// Unlike the original, which assumes every worker shares one IP (learned
// once, from the first statistics connection's source address) and only
// tracks a port per tag, the WorkerRegistry here stores a full host:port
// per worker tag — workers need not share a host in this port.
package broker
