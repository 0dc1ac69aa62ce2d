package broker

import (
	"sync"

	"golang.org/x/exp/slices"
)

// WorkerRegistry tracks, for every worker tag the broker has heard from
// on its statistics listener, that worker's query address and the set
// of countries it has reported ingesting. It is the generalization of
// server.c's worker_ports array plus a single shared worker_ip: each
// worker gets its own address rather than borrowing one learned from
// the first statistics connection (§4.4).
type WorkerRegistry struct {
	mu        sync.RWMutex
	addrs     map[int]string
	countries map[string]struct{}
}

// NewWorkerRegistry returns an empty registry.
func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{
		addrs:     make(map[int]string),
		countries: make(map[string]struct{}),
	}
}

// Register records (or updates) the query address a worker announced
// over its statistics connection.
func (r *WorkerRegistry) Register(tag int, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[tag] = addr
}

// AddCountry records a country name as belonging to some registered
// worker, learned from that worker's per-file statistics reports. It is
// how the broker answers ListCountries from its own state rather than
// fanning the query out (§4.4).
func (r *WorkerRegistry) AddCountry(country string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries[country] = struct{}{}
}

// Addrs returns every registered worker's query address, ordered by
// tag so that callers see a stable fan-out order across calls.
func (r *WorkerRegistry) Addrs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]int, 0, len(r.addrs))
	for tag := range r.addrs {
		tags = append(tags, tag)
	}
	slices.Sort(tags)

	addrs := make([]string, len(tags))
	for i, tag := range tags {
		addrs[i] = r.addrs[tag]
	}
	return addrs
}

// Countries returns every country name seen so far, in no particular
// order.
func (r *WorkerRegistry) Countries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.countries))
	for c := range r.countries {
		names = append(names, c)
	}
	return names
}

// Len returns the number of distinct workers currently registered.
func (r *WorkerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.addrs)
}
