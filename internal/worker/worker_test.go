package worker

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/record"
	"github.com/lpapadakos/epiquery/internal/shard"
	"github.com/lpapadakos/epiquery/internal/wire"
)

func newTestWorker(idx *shard.Index) *Worker {
	return New(1, "testdata", idx, nil, zerolog.Nop())
}

func mustEnter(t *testing.T, idx *shard.Index, id, country, disease string, age int, entry string) {
	t.Helper()
	d, err := date.Parse(entry)
	if err != nil {
		t.Fatalf("date.Parse(%q): %v", entry, err)
	}
	rec := &record.Record{ID: id, FirstName: "A", LastName: "B", Country: country, Disease: disease, Age: age, EntryDate: d}
	if err := idx.Enter(rec); err != nil {
		t.Fatalf("Enter(%s): %v", id, err)
	}
}

func TestBootstrapParsesCountriesAndBrokerAddr(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	_ = w.WriteLine("France")
	_ = w.WriteLine("Greece")
	_ = w.WriteLine("Italy")
	if err := w.WriteDone(); err != nil {
		t.Fatal(err)
	}
	_ = w.WriteLine("10.0.0.1")
	_ = w.WriteLine("9001")
	if err := w.WriteDone(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteReady(); err != nil {
		t.Fatal(err)
	}

	countries, addr, err := Bootstrap(wire.NewReader(&buf))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	want := []string{"France", "Greece", "Italy"}
	if len(countries) != len(want) {
		t.Fatalf("countries = %v, want %v", countries, want)
	}
	for i, c := range want {
		if countries[i] != c {
			t.Fatalf("countries[%d] = %q, want %q", i, countries[i], c)
		}
	}
	if addr != "10.0.0.1:9001" {
		t.Fatalf("brokerAddr = %q, want %q", addr, "10.0.0.1:9001")
	}
}

func TestBootstrapRejectsMissingBrokerPort(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	_ = w.WriteLine("France")
	_ = w.WriteDone()
	_ = w.WriteLine("10.0.0.1")
	_ = w.WriteDone()
	_ = w.WriteReady()

	if _, _, err := Bootstrap(wire.NewReader(&buf)); err == nil {
		t.Fatal("expected an error when the broker address is incomplete")
	}
}

func TestDispatchListCountries(t *testing.T) {
	idx := shard.New(4, 4, 4)
	mustEnter(t, idx, "p1", "France", "flu", 30, "01-01-2020")
	w := newTestWorker(idx)

	lines, ok := w.dispatch(wire.VerbListCountries, nil)
	if !ok {
		t.Fatal("dispatch: not ok")
	}
	if len(lines) != 1 || lines[0] != "France" {
		t.Fatalf("lines = %v, want [France]", lines)
	}
}

func TestDispatchSearchRecordNotFound(t *testing.T) {
	idx := shard.New(4, 4, 4)
	w := newTestWorker(idx)

	if _, ok := w.dispatch(wire.VerbSearchRecord, []string{"missing"}); ok {
		t.Fatal("expected dispatch to fail for an unknown id")
	}
}

func TestDispatchNumAdmissionsRequiresDiseaseAndOptionalCountry(t *testing.T) {
	idx := shard.New(4, 4, 4)
	mustEnter(t, idx, "p1", "France", "flu", 30, "01-01-2020")
	mustEnter(t, idx, "p2", "Greece", "flu", 40, "02-01-2020")
	w := newTestWorker(idx)

	lines, ok := w.dispatch(wire.VerbNumAdmissions, []string{"flu", "01-01-2020", "31-12-2020", "France"})
	if !ok || len(lines) != 1 || lines[0] != "1" {
		t.Fatalf("single-country dispatch = %v, %v", lines, ok)
	}

	lines, ok = w.dispatch(wire.VerbNumAdmissions, []string{"flu", "01-01-2020", "31-12-2020"})
	if !ok || len(lines) != 2 {
		t.Fatalf("all-countries dispatch = %v, %v", lines, ok)
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	w := newTestWorker(shard.New(4, 4, 4))
	if _, ok := w.dispatch("/bogus", nil); ok {
		t.Fatal("expected dispatch to reject an unknown verb")
	}
}

func TestHandleConnectionRoundTrip(t *testing.T) {
	idx := shard.New(4, 4, 4)
	mustEnter(t, idx, "p1", "France", "flu", 30, "01-01-2020")
	w := newTestWorker(idx)

	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := w.handleConnection(server); err != nil {
			t.Errorf("handleConnection: %v", err)
		}
	}()

	if err := wire.NewWriter(client).WriteMessage(wire.VerbListCountries); err != nil {
		t.Fatal(err)
	}
	resp, err := wire.ReadResponse(wire.NewReader(client))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.Invalid || len(resp.Lines) != 1 || resp.Lines[0] != "France\n" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConnection did not return")
	}
}

func TestHandleConnectionInvalidVerb(t *testing.T) {
	w := newTestWorker(shard.New(4, 4, 4))

	server, client := net.Pipe()
	defer client.Close()

	go w.handleConnection(server)

	if err := wire.NewWriter(client).WriteMessage("/bogus"); err != nil {
		t.Fatal(err)
	}
	resp, err := wire.ReadResponse(wire.NewReader(client))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !resp.Invalid {
		t.Fatal("expected an INVALID response for an unknown verb")
	}
}

func TestApplyRecordLineEnterAndExit(t *testing.T) {
	idx := shard.New(4, 4, 4)
	w := newTestWorker(idx)
	entryDate, _ := date.Parse("01-01-2020")

	if err := w.applyRecordLine("France", entryDate, "p1 ENTER Jane Doe flu 30"); err != nil {
		t.Fatalf("applyRecordLine ENTER: %v", err)
	}
	if _, err := idx.SearchPatientRecord("p1"); err != nil {
		t.Fatalf("SearchPatientRecord: %v", err)
	}

	exitDate, _ := date.Parse("05-01-2020")
	if err := w.applyRecordLine("France", exitDate, "p1 EXIT Jane Doe flu 30"); err != nil {
		t.Fatalf("applyRecordLine EXIT: %v", err)
	}
	rec, _ := idx.SearchPatientRecord("p1")
	if rec.ExitDate.IsZero() {
		t.Fatal("expected exit date to be set")
	}
}

func TestApplyRecordLineRejectsMalformedLine(t *testing.T) {
	w := newTestWorker(shard.New(4, 4, 4))
	entryDate, _ := date.Parse("01-01-2020")

	if err := w.applyRecordLine("France", entryDate, "not enough fields"); err == nil {
		t.Fatal("expected an error for a malformed record line")
	}
}

func TestWatchControlForwardsRescanAndClosesOnEOF(t *testing.T) {
	var buf bytes.Buffer
	ww := wire.NewWriter(&buf)
	_ = ww.WriteMessage(wire.VerbRescan)
	_ = ww.WriteMessage(wire.VerbRescan)

	rescanCh := make(chan struct{}, 2)
	WatchControl(wire.NewReader(&buf), rescanCh)

	if len(rescanCh) != 2 {
		t.Fatalf("expected 2 buffered rescan signals, got %d", len(rescanCh))
	}
	if _, open := <-rescanCh; !open {
		t.Fatal("expected a rescan signal")
	}
	<-rescanCh
	if _, open := <-rescanCh; open {
		t.Fatal("expected rescanCh to be closed at EOF")
	}
}
