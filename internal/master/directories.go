package master

import (
	"fmt"
	"os"
)

// AssignDirectories lists inputDir's immediate subdirectories — one per
// country — and deals them round-robin across workers shards, the Go
// shape of m_assign_directories's linked-list-per-worker construction.
// Entries are read in os.ReadDir's name-sorted order, so an assignment
// is reproducible across restarts for a given directory listing.
func AssignDirectories(inputDir string, workers int) ([][]string, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("master: assign directories: workers must be positive, got %d", workers)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("master: assign directories: %w", err)
	}

	assignment := make([][]string, workers)
	w := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		assignment[w] = append(assignment[w], e.Name())
		w = (w + 1) % workers
	}
	return assignment, nil
}

// CountSubdirectories returns the number of immediate subdirectories of
// inputDir, the basis for Run's "no more workers than there are
// directories" clamp (MIN(workers, subdirs)).
func CountSubdirectories(inputDir string) (int, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return 0, fmt.Errorf("master: count subdirectories: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			n++
		}
	}
	return n, nil
}
