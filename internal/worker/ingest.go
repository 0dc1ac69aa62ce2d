package worker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/record"
	"github.com/lpapadakos/epiquery/internal/wire"
)

// Ingest identifies the worker to the broker's statistics listener,
// loads every assigned country's record files in date order into the
// shard, streaming a per-file statistics report as it goes, and finally
// signals READY — the Go shape of w_master_phase's send-identity /
// w_directories / msg_ready sequence (§4.2).
func (w *Worker) Ingest(stats *wire.Writer, countries []string, listenPort int) error {
	if err := stats.WriteLine(fmt.Sprintf("%d\n%d", w.Tag, listenPort)); err != nil {
		return fmt.Errorf("worker: ingest: send identity: %w", err)
	}
	if err := stats.WriteDone(); err != nil {
		return fmt.Errorf("worker: ingest: send identity: %w", err)
	}

	for _, country := range countries {
		if err := w.ingestCountry(stats, country); err != nil {
			w.Log.Error().Str("country", country).Err(err).Msg("ingest country failed")
			continue
		}
		w.countriesSeen = append(w.countriesSeen, country)
	}

	return stats.WriteReady()
}

// Rescan re-walks every assigned country's directory, applying any
// record lines not already indexed and streaming a fresh
// FileStatistics report over stats — the rescanFn a worker's Serve
// loop runs on a VerbRescan control notification (§4.2, §9). Files
// ingested earlier reappear in the walk; their records are rejected by
// Index.Enter as duplicates and logged, not treated as an ingest
// failure.
func (w *Worker) Rescan(stats *wire.Writer) error {
	for _, country := range w.countriesSeen {
		if err := w.ingestCountry(stats, country); err != nil {
			return fmt.Errorf("worker: rescan: %w", err)
		}
	}
	return stats.WriteReady()
}

type datedFile struct {
	name string
	date date.Date
}

// ingestCountry loads one country's record files, sorted by the
// calendar date their filename encodes, oldest first — str_datecmp's
// scandir ordering.
func (w *Worker) ingestCountry(stats *wire.Writer, country string) error {
	dir := filepath.Join(w.InputDir, country)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read country directory: %w", err)
	}

	files := make([]datedFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		d, err := date.Parse(e.Name())
		if err != nil {
			w.Log.Warn().Str("country", country).Str("file", e.Name()).Err(err).
				Msg("skipping file whose name is not a DD-MM-YYYY date")
			continue
		}
		files = append(files, datedFile{name: e.Name(), date: d})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	for _, f := range files {
		if err := w.ingestFile(stats, country, f.name, f.date); err != nil {
			w.Log.Error().Str("country", country).Str("file", f.name).Err(err).Msg("ingest file failed")
		}
	}
	return nil
}

// ingestFile applies every record line of one file to the shard, then
// streams that file's FileStatistics report to stats — w_insert_from_file
// followed by file_statistics.
func (w *Worker) ingestFile(stats *wire.Writer, country, fileName string, fileDate date.Date) error {
	path := filepath.Join(w.InputDir, country, fileName)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := w.applyRecordLine(country, fileDate, line); err != nil {
			w.Log.Warn().Str("country", country).Str("file", fileName).Str("line", line).Err(err).
				Msg("invalid record")
			continue
		}
		if w.Metrics != nil {
			w.Metrics.RecordsIngested.Inc()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan record file: %w", err)
	}

	if w.Metrics != nil {
		w.Metrics.Records.Set(float64(w.Index.Stats().Records))
	}

	return w.streamFileStatistics(stats, country, fileName, fileDate)
}

// applyRecordLine parses one whitespace-separated record line —
// record_id status first_name last_name disease_id age — and applies
// it as an ENTER or EXIT event, per w_insert_record. The file's own
// date stands in for the event's timestamp either way, since neither
// event carries its own date field on the wire.
func (w *Worker) applyRecordLine(country string, fileDate date.Date, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return fmt.Errorf("want 6 fields, got %d", len(fields))
	}

	id, status, first, last, disease := fields[0], fields[1], fields[2], fields[3], fields[4]
	age, err := strconv.Atoi(fields[5])
	if err != nil {
		return fmt.Errorf("bad age field %q: %w", fields[5], err)
	}

	switch status {
	case "ENTER":
		rec := &record.Record{
			ID:        id,
			FirstName: first,
			LastName:  last,
			Disease:   disease,
			Country:   country,
			Age:       age,
			EntryDate: fileDate,
		}
		return w.Index.Enter(rec)
	case "EXIT":
		return w.Index.Exit(id, fileDate)
	default:
		return fmt.Errorf("unknown status %q", status)
	}
}

// streamFileStatistics reports, for every disease this shard knows
// about, country's age-bucketed admission counts entered exactly on
// fileDate — file_statistics's wire format: the file name, the country
// name, then per disease a name line, four "Age range ... cases" lines,
// and a blank delimiter line, the whole report terminated by DONE.
//
// A country with no records indexed yet (FileStatistics returning
// ErrUnknownCountry) has nothing to report and is skipped
// silently, matching the source's no-such-date early return.
func (w *Worker) streamFileStatistics(stats *wire.Writer, country, fileName string, fileDate date.Date) error {
	report, err := w.Index.FileStatistics(country, fileDate)
	if err != nil {
		return nil
	}

	if err := stats.WriteLine(fileName); err != nil {
		return err
	}
	if err := stats.WriteLine(country); err != nil {
		return err
	}

	for _, d := range report {
		if err := stats.WriteLine(d.Disease); err != nil {
			return err
		}
		for b := 0; b < record.NumAgeBuckets; b++ {
			label := record.AgeBucket(b).Label()
			line := fmt.Sprintf("Age range %s years: %d cases", label, d.Counts[b])
			if err := stats.WriteLine(line); err != nil {
				return err
			}
		}
		if err := stats.WriteLine(""); err != nil {
			return err
		}
	}

	return stats.WriteDone()
}
