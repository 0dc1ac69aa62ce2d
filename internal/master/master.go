package master

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/wire"
)

// CtrlFD is the file descriptor number a spawned worker finds its
// control pipe's read end on. ExtraFiles always starts a child's
// inherited descriptors at 3 (after stdin/stdout/stderr), and a worker
// has exactly one such pipe, so this is fixed rather than negotiated.
const CtrlFD = 3

// Master supervises a fixed-size pool of worker processes: it assigns
// each one a set of country directories at spawn time and respawns it,
// under the same tag, if it ever exits.
type Master struct {
	Workers    int
	InputDir   string
	BrokerAddr string
	WorkerBin  string
	Log        zerolog.Logger

	mu         sync.Mutex
	assignment [][]string
	cmds       map[int]*exec.Cmd
	ctrlWrite  map[int]*os.File
	wg         sync.WaitGroup
}

// Run assigns directories, spawns every worker, and then blocks,
// respawning any worker that exits, until ctx is canceled — the Go
// shape of master()'s spawn loop followed by its pause()-until-signal
// loop, minus the original's SIGCHLD/WIFEXITED dance: a death is
// reported by the goroutine blocked in that worker's own Cmd.Wait.
func (m *Master) Run(ctx context.Context) error {
	n, err := CountSubdirectories(m.InputDir)
	if err != nil {
		return err
	}
	if n < m.Workers {
		m.Workers = n
	}

	assignment, err := AssignDirectories(m.InputDir, m.Workers)
	if err != nil {
		return err
	}

	m.assignment = assignment
	m.cmds = make(map[int]*exec.Cmd, m.Workers)
	m.ctrlWrite = make(map[int]*os.File, m.Workers)

	deathCh := make(chan int)
	for tag := 0; tag < m.Workers; tag++ {
		if err := m.spawnAndWatch(ctx, tag, deathCh); err != nil {
			return fmt.Errorf("master: spawn worker %d: %w", tag, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return m.shutdown()

		case tag := <-deathCh:
			m.Log.Warn().Int("worker", tag).Msg("worker died, respawning")
			if err := m.spawnAndWatch(ctx, tag, deathCh); err != nil {
				m.Log.Error().Int("worker", tag).Err(err).Msg("respawn failed")
			}
		}
	}
}

// spawnAndWatch starts worker tag and hands its death off to a
// dedicated goroutine blocked in that one process's Cmd.Wait — the
// tag-keyed replacement for SIGCHLD+WIFEXITED/pid-search (§9). The
// death report is sent under a select against ctx so that a process
// exiting during or after shutdown never leaks its watcher goroutine
// waiting on a deathCh nobody reads from anymore.
func (m *Master) spawnAndWatch(ctx context.Context, tag int, deathCh chan<- int) error {
	if err := m.spawnWorker(tag); err != nil {
		return err
	}

	m.mu.Lock()
	cmd := m.cmds[tag]
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		cmd.Wait()
		select {
		case deathCh <- tag:
		case <-ctx.Done():
		}
	}()
	return nil
}

// spawnWorker starts one worker process and hands it its assignment
// over a fresh control pipe: country names terminated by DONE, then the
// broker's host and port terminated by a second DONE, then READY —
// exactly spawn_worker's msg_write_line/msg_done sequence, replayed
// through internal/wire instead of raw pipe writes.
func (m *Master) spawnWorker(tag int) error {
	ctrlRead, ctrlWrite, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("master: worker %d: control pipe: %w", tag, err)
	}

	cmd := exec.Command(m.WorkerBin,
		"-tag", strconv.Itoa(tag),
		"-input-dir", m.InputDir,
		"-ctrl-fd", strconv.Itoa(CtrlFD),
	)
	cmd.ExtraFiles = []*os.File{ctrlRead}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		ctrlRead.Close()
		ctrlWrite.Close()
		return fmt.Errorf("master: worker %d: start: %w", tag, err)
	}
	ctrlRead.Close() // the child owns its copy of the read end now

	m.mu.Lock()
	m.cmds[tag] = cmd
	m.ctrlWrite[tag] = ctrlWrite
	m.mu.Unlock()

	if err := m.announce(ctrlWrite, m.assignment[tag]); err != nil {
		return fmt.Errorf("master: worker %d: %w", tag, err)
	}
	return nil
}

func (m *Master) announce(ctrl *os.File, countries []string) error {
	host, port, err := net.SplitHostPort(m.BrokerAddr)
	if err != nil {
		return fmt.Errorf("broker address %q: %w", m.BrokerAddr, err)
	}

	w := wire.NewWriter(ctrl)
	for _, c := range countries {
		if err := w.WriteLine(c); err != nil {
			return err
		}
	}
	if err := w.WriteDone(); err != nil {
		return err
	}

	if err := w.WriteLine(host); err != nil {
		return err
	}
	if err := w.WriteLine(port); err != nil {
		return err
	}
	if err := w.WriteDone(); err != nil {
		return err
	}

	return w.WriteReady()
}

// Rescan notifies every live worker to re-walk its assigned
// directories for newly arrived files — the master-initiated
// broadcast this system uses in place of the original's per-worker
// SIGUSR1 (§9), sent down the same control pipe used at spawn time
// rather than delivered as a signal.
func (m *Master) Rescan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tag, ctrl := range m.ctrlWrite {
		if err := wire.NewWriter(ctrl).WriteMessage(wire.VerbRescan); err != nil {
			m.Log.Warn().Int("worker", tag).Err(err).Msg("rescan notification failed")
		}
	}
}

// shutdown kills every worker process and waits for each one's watcher
// goroutine to observe it exit, mirroring m_exit's kill(SIGKILL)+wait
// loop. It never calls Cmd.Wait itself — each worker's spawnAndWatch
// goroutine already owns that call, and Wait must not be called twice.
func (m *Master) shutdown() error {
	m.mu.Lock()
	for tag, cmd := range m.cmds {
		if err := cmd.Process.Kill(); err != nil {
			m.Log.Warn().Int("worker", tag).Err(err).Msg("kill worker")
		}
	}
	for _, ctrl := range m.ctrlWrite {
		ctrl.Close()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
