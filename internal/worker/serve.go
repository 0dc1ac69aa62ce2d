package worker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/record"
	"github.com/lpapadakos/epiquery/internal/shard"
	"github.com/lpapadakos/epiquery/internal/topheap"
	"github.com/lpapadakos/epiquery/internal/wire"
)

// Serve is the worker's command phase (w_cmd_phase): it accepts one
// connection per query on listener, answers it, and loops until a
// VerbExit request arrives or ctx is canceled. rescanCh, closed by
// WatchControl when the control connection drops, delivers one value
// per rescan notification; rescanFn re-ingests newly arrived files when
// that happens.
//
// Accepting and rescanning are each driven by their own goroutine, but
// both only ever hand work to this one, which is the sole goroutine
// that ever calls into the Index — so a query and a rescan can never
// run concurrently, and Index needs no lock of its own (§5, §9).
func (w *Worker) Serve(ctx context.Context, listener net.Listener, rescanCh <-chan struct{}, rescanFn func() error) error {
	acceptCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			acceptCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return w.exit()

		case err := <-acceptErrCh:
			return err

		case conn := <-acceptCh:
			quit, err := w.handleConnection(conn)
			if err != nil {
				w.Log.Error().Err(err).Msg("query handling failed")
			}
			if quit {
				return w.exit()
			}

		case _, open := <-rescanCh:
			if !open {
				rescanCh = nil // stop selecting a closed channel every iteration
				continue
			}
			if err := rescanFn(); err != nil {
				w.Log.Error().Err(err).Msg("rescan failed")
			}
		}
	}
}

// handleConnection answers one query and reports whether it was
// VerbExit, the signal to stop serving entirely.
func (w *Worker) handleConnection(conn net.Conn) (quit bool, err error) {
	defer conn.Close()

	reader := wire.NewReader(conn)
	writer := wire.NewWriter(conn)

	msg, err := reader.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("worker: read query: %w", err)
	}

	fields := strings.Split(msg, "\n")
	verb, args := fields[0], fields[1:]

	if verb == wire.VerbExit {
		return true, nil
	}

	w.requestsTotal++

	lines, ok := w.dispatch(verb, args)
	if !ok {
		w.Log.Warn().Str("verb", verb).Strs("args", args).Msg("invalid request")
		if err := writer.WriteInvalid(); err != nil {
			return false, err
		}
	} else {
		w.requestsOK++
		for _, l := range lines {
			if err := writer.WriteLine(l); err != nil {
				return false, err
			}
		}
	}

	if w.Metrics != nil {
		outcome := "ok"
		if !ok {
			outcome = "invalid"
		}
		w.Metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	}

	return false, writer.WriteReady()
}

// dispatch routes one parsed request to the matching shard.Index
// operation, mirroring w_cmd_phase's strcmp chain. ok is false for an
// unrecognized verb or malformed args — the caller answers those with
// INVALID rather than a partial response.
func (w *Worker) dispatch(verb string, args []string) (lines []string, ok bool) {
	switch verb {
	case wire.VerbListCountries:
		return w.Index.ListCountries(), true

	case wire.VerbSearchRecord:
		return w.dispatchSearchRecord(args)

	case wire.VerbDiseaseFrequency:
		return w.dispatchDiseaseFrequency(args)

	case wire.VerbNumAdmissions:
		return w.dispatchNumPatients(args, false)

	case wire.VerbNumDischarges:
		return w.dispatchNumPatients(args, true)

	case wire.VerbTopKAgeRanges:
		return w.dispatchTopKAgeRanges(args)

	case wire.VerbTopKDiseases:
		return w.dispatchTopKDiseases(args)

	case wire.VerbTopKCountries:
		return w.dispatchTopKCountries(args)

	default:
		return nil, false
	}
}

func (w *Worker) dispatchSearchRecord(args []string) ([]string, bool) {
	if len(args) != 1 {
		return nil, false
	}
	rec, err := w.Index.SearchPatientRecord(args[0])
	if err != nil {
		return nil, false
	}
	return []string{formatRecord(rec)}, true
}

func (w *Worker) dispatchDiseaseFrequency(args []string) ([]string, bool) {
	if len(args) != 3 {
		return nil, false
	}
	from, to, ok := parseInterval(args[1], args[2])
	if !ok {
		return nil, false
	}
	n, err := w.Index.DiseaseFrequency(args[0], from, to)
	if err != nil {
		return nil, false
	}
	return []string{strconv.Itoa(n)}, true
}

// dispatchNumPatients handles both numPatientAdmissions and
// numPatientDischarges: disease, date1, date2, and an optional trailing
// country. Omitting the country yields a per-country breakdown, per
// num_patient_admissions/discharges (§4.3).
func (w *Worker) dispatchNumPatients(args []string, discharges bool) ([]string, bool) {
	if len(args) != 3 && len(args) != 4 {
		return nil, false
	}
	disease := args[0]
	from, to, ok := parseInterval(args[1], args[2])
	if !ok {
		return nil, false
	}

	if len(args) == 4 {
		country := args[3]
		var (
			n   int
			err error
		)
		if discharges {
			n, err = w.Index.NumPatientDischarges(disease, country, from, to)
		} else {
			n, err = w.Index.NumPatientAdmissions(disease, country, from, to)
		}
		if err != nil {
			return nil, false
		}
		return []string{strconv.Itoa(n)}, true
	}

	var (
		breakdown []shard.CountryCount
		err       error
	)
	if discharges {
		breakdown, err = w.Index.NumPatientDischargesAllCountries(disease, from, to)
	} else {
		breakdown, err = w.Index.NumPatientAdmissionsAllCountries(disease, from, to)
	}
	if err != nil {
		return nil, false
	}

	lines := make([]string, len(breakdown))
	for i, c := range breakdown {
		lines[i] = fmt.Sprintf("%s %d", c.Country, c.Count)
	}
	return lines, true
}

func (w *Worker) dispatchTopKAgeRanges(args []string) ([]string, bool) {
	if len(args) != 5 {
		return nil, false
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, false
	}
	country, disease := args[1], args[2]
	from, to, ok := parseInterval(args[3], args[4])
	if !ok {
		return nil, false
	}
	stats, err := w.Index.TopKAgeRanges(country, disease, from, to, k)
	if err != nil {
		return nil, false
	}
	return formatAgeRangeStats(stats), true
}

// dispatchTopKDiseases handles the supplemental topkDiseases verb: k,
// country, date1, date2 — top diseases by admission count within country
// and the date range, per SPEC_FULL.md §6.
func (w *Worker) dispatchTopKDiseases(args []string) ([]string, bool) {
	if len(args) != 4 {
		return nil, false
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, false
	}
	country := args[1]
	from, to, ok := parseInterval(args[2], args[3])
	if !ok {
		return nil, false
	}
	entries, err := w.Index.TopKDiseases(country, from, to, k)
	if err != nil {
		return nil, false
	}
	return formatEntries(entries), true
}

// dispatchTopKCountries handles the supplemental topkCountries verb: k,
// disease, date1, date2 — top countries by admission count for disease
// and the date range, per SPEC_FULL.md §6.
func (w *Worker) dispatchTopKCountries(args []string) ([]string, bool) {
	if len(args) != 4 {
		return nil, false
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, false
	}
	disease := args[1]
	from, to, ok := parseInterval(args[2], args[3])
	if !ok {
		return nil, false
	}
	entries, err := w.Index.TopKCountries(disease, from, to, k)
	if err != nil {
		return nil, false
	}
	return formatEntries(entries), true
}

func parseInterval(s1, s2 string) (from, to date.Date, ok bool) {
	d1, err1 := date.Parse(s1)
	d2, err2 := date.Parse(s2)
	if err1 != nil || err2 != nil || !date.ValidInterval(d1, d2) {
		return date.Date{}, date.Date{}, false
	}
	return d1, d2, true
}

func formatEntries(entries []topheap.Entry) []string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s %d", e.Name, e.Count)
	}
	return lines
}

// formatAgeRangeStats renders topkAgeRanges' percentage lines, e.g.
// "0-20: 20.00%", per §4.1 and scenario S3.
func formatAgeRangeStats(stats []shard.AgeRangeStat) []string {
	lines := make([]string, len(stats))
	for i, s := range stats {
		lines[i] = fmt.Sprintf("%s: %.2f%%", s.Label, s.Percentage)
	}
	return lines
}

// formatRecord renders a record the way w_search_patient_record does:
// id, names, disease, age, entry date, exit date — a zero exit date
// prints as 00-00-0000, same as the source's nullified-field sentinel.
func formatRecord(rec *record.Record) string {
	return fmt.Sprintf("%s %s %s %s %d %s %s",
		rec.ID, rec.FirstName, rec.LastName, rec.Disease, rec.Age,
		rec.EntryDate.String(), rec.ExitDate.String())
}
