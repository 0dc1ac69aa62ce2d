// Package master implements the supervisor process (§4.3): it assigns
// country directories to workers round-robin, spawns one worker process
// per shard, and keeps exactly that many workers alive for the life of
// the run.
//
// Grounded on original_source/src/master/master.c's master/
// m_assign_directories/spawn_worker/m_exit. The original forks a copy of
// its own process image and has the child branch into worker(); a Go
// process cannot fork into a different entry point, so a worker here is
// a separate executable (cmd/worker) started with os/exec, handed its
// country assignment and the broker's address over a pipe built with
// os.Pipe and passed as an inherited file descriptor — the closest Go
// analogue to the original's private named FIFO per worker.
//
// Unlike the original, which learns a dead worker's tag by decoding its
// exit status (WEXITSTATUS) or, failing that, a linear pid search, a
// Master keeps an explicit tag -> *exec.Cmd map and learns about a death
// from the goroutine blocked in that worker's own Cmd.Wait call (Design
// Note §9: "never rely on exit-status-as-tag").
package master
