// Package client implements the query-file driver (§4.6): it reads
// query lines from a file and dispatches them in waves, one connection
// per query, synchronizing each wave with a barrier so every query in
// the wave fires at roughly the same instant.
//
// Grounded on original_source/src/client/client.c (client/send_cmd): a
// fixed-size thread pool repeatedly refilled from the query file,
// rendezvousing on a pthread_barrier_t before each wave fires. A Go
// sync.WaitGroup used as a one-shot rendezvous — every sender calls
// Done then Wait, so nobody proceeds until the last arrival — replaces
// pthread_barrier_wait; a fresh WaitGroup per wave replaces the
// original's barrier reset behavior (pthread_barrier_wait resets the
// barrier for PTHREAD_BARRIER_SERIAL_THREAD's next round automatically,
// a Go WaitGroup does not, so this port constructs a new one per wave
// instead).
package client
