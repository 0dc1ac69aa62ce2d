package master

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/wire"
)

func mkCountryDirs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.Mkdir(filepath.Join(dir, n), 0o755); err != nil {
			t.Fatalf("Mkdir(%s): %v", n, err)
		}
	}
	// A stray regular file must never be mistaken for a country.
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAssignDirectoriesRoundRobin(t *testing.T) {
	dir := mkCountryDirs(t, "France", "Greece", "Italy", "Spain")

	assignment, err := AssignDirectories(dir, 2)
	if err != nil {
		t.Fatalf("AssignDirectories: %v", err)
	}
	if len(assignment) != 2 {
		t.Fatalf("len(assignment) = %d, want 2", len(assignment))
	}
	total := 0
	for _, countries := range assignment {
		total += len(countries)
	}
	if total != 4 {
		t.Fatalf("total countries assigned = %d, want 4", total)
	}
	if len(assignment[0]) != 2 || len(assignment[1]) != 2 ||
		assignment[0][0] != "France" || assignment[0][1] != "Italy" ||
		assignment[1][0] != "Greece" || assignment[1][1] != "Spain" {
		t.Fatalf("assignment = %v, want [[France Italy] [Greece Spain]]", assignment)
	}
}

func TestAssignDirectoriesRejectsNonPositiveWorkers(t *testing.T) {
	dir := mkCountryDirs(t, "France")
	if _, err := AssignDirectories(dir, 0); err == nil {
		t.Fatal("expected an error for zero workers")
	}
}

func TestCountSubdirectories(t *testing.T) {
	dir := mkCountryDirs(t, "France", "Greece")
	n, err := CountSubdirectories(dir)
	if err != nil {
		t.Fatalf("CountSubdirectories: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountSubdirectories = %d, want 2", n)
	}
}

func TestAnnounceWritesCountriesHostPortReady(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	m := &Master{BrokerAddr: "10.0.0.1:9001"}
	done := make(chan error, 1)
	go func() { done <- m.announce(w, []string{"France", "Greece"}) }()

	reader := wire.NewReader(r)

	countries, err := reader.ReadUntil(wire.Done)
	if err != nil {
		t.Fatalf("ReadUntil(Done) countries: %v", err)
	}
	if len(countries) != 2 || countries[0] != "France\n" || countries[1] != "Greece\n" {
		t.Fatalf("unexpected countries: %+v", countries)
	}

	addr, err := reader.ReadUntil(wire.Done)
	if err != nil {
		t.Fatalf("ReadUntil(Done) address: %v", err)
	}
	if len(addr) != 2 || addr[0] != "10.0.0.1\n" || addr[1] != "9001\n" {
		t.Fatalf("unexpected address lines: %+v", addr)
	}

	ready, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (ready): %v", err)
	}
	if ready != wire.Ready {
		t.Fatalf("got %q, want READY", ready)
	}

	w.Close()
	if err := <-done; err != nil {
		t.Fatalf("announce: %v", err)
	}
}

func TestAnnounceRejectsMalformedBrokerAddr(t *testing.T) {
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	m := &Master{BrokerAddr: "not-a-host-port"}
	if err := m.announce(w, nil); err == nil {
		t.Fatal("expected an error for a malformed broker address")
	}
}

func TestRescanBroadcastsToEveryWorker(t *testing.T) {
	r1, w1, _ := os.Pipe()
	r2, w2, _ := os.Pipe()
	defer r1.Close()
	defer r2.Close()

	m := &Master{
		Log:       zerolog.Nop(),
		ctrlWrite: map[int]*os.File{0: w1, 1: w2},
	}
	m.Rescan()
	w1.Close()
	w2.Close()

	for _, r := range []*os.File{r1, r2} {
		msg, err := wire.NewReader(r).ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if msg != wire.VerbRescan {
			t.Fatalf("got %q, want %q", msg, wire.VerbRescan)
		}
	}
}

func TestShutdownKillsAndWaitsForWorkers(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	m := &Master{
		Log:       zerolog.Nop(),
		cmds:      make(map[int]*exec.Cmd),
		ctrlWrite: make(map[int]*os.File),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for tag := 0; tag < 2; tag++ {
		cmd := exec.Command("sleep", "30")
		if err := cmd.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		m.cmds[tag] = cmd

		deathCh := make(chan int, 1)
		m.wg.Add(1)
		go func(tag int, cmd *exec.Cmd) {
			defer m.wg.Done()
			cmd.Wait()
			select {
			case deathCh <- tag:
			case <-ctx.Done():
			}
		}(tag, cmd)
	}

	doneCh := make(chan error, 1)
	go func() { doneCh <- m.shutdown() }()

	select {
	case err := <-doneCh:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not kill and reap both workers in time")
	}
}
