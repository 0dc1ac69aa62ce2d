// Package worker implements a worker process's four phases (§4.2):
// bootstrap (learn assigned countries and the broker's address from the
// master), ingest (load every assigned country's record files in
// date order into a shard.Index), serve (answer one query per
// connection until told to exit), and exit (persist a small log of
// served countries and request counts).
//
// Grounded on original_source/src/master/worker.c's worker/w_master_phase/
// w_directories/w_cmd_phase/w_exit, reshaped around internal/shard.Index
// and internal/wire instead of raw sockets, pipes, and a process-wide
// hashtable.
//
// Concurrency
//
// A Worker's serve loop and its rescan trigger must never run
// concurrently with each other, since both can mutate the underlying
// Index and Index itself holds no lock (§5). Rather than reach for a
// mutex, Serve multiplexes connection-accept and rescan notifications
// onto one goroutine with a select loop — the same one goroutine that
// handles every query — so the single-writer invariant holds by
// construction. This replaces the original's SIGUSR1 signal handler,
// which set a flag a separate part of the same single-threaded process
// checked between requests; a Go worker has no natural "between
// requests" checkpoint shared with async signal delivery, so a channel
// takes over that role.
package worker
