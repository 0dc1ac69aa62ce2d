package broker

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/lpapadakos/epiquery/internal/wire"

	"golang.org/x/sync/errgroup"
)

// genericError is what the client sees for anything that doesn't map to
// a specific result line — an unrecognized command, bad arguments, or a
// fan-out that failed outright. Named for server_thread_query's
// cmd_err literal.
const genericError = "Error in request."

// handleQuery answers one client connection: read one command line,
// dispatch to the matching verb handler, write the merged result
// followed by READY, close. Grounded on server_thread_query, minus its
// separate disease-frequency-gets-s_sum_cases special case — here every
// verb just names its own merge function.
func (b *Broker) handleQuery(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := wire.NewReader(conn)
	writer := wire.NewWriter(conn)

	msg, err := reader.ReadMessage()
	if err != nil {
		return
	}

	fields := strings.Fields(msg)
	if len(fields) == 0 {
		writer.WriteLine(genericError)
		writer.WriteReady()
		return
	}
	verb, args := fields[0], fields[1:]

	if b.Metrics != nil {
		b.Metrics.QueriesTotal.WithLabelValues(verb).Inc()
	}

	lines, ok := b.dispatch(ctx, verb, args)
	if !ok {
		writer.WriteLine(genericError)
	} else {
		for _, l := range lines {
			writer.WriteLine(l)
		}
	}
	writer.WriteReady()
}

// dispatch routes one client command to its verb handler. ok is false
// for an unrecognized verb, malformed arguments, or a fan-out that
// could not be completed at all (no workers registered).
func (b *Broker) dispatch(ctx context.Context, verb string, args []string) (lines []string, ok bool) {
	switch verb {
	case wire.VerbListCountries:
		return b.Registry.Countries(), true

	case wire.VerbDiseaseFrequency:
		return b.queryDiseaseFrequency(ctx, args)

	case wire.VerbTopKAgeRanges:
		return b.queryTopKAgeRanges(ctx, args)

	case wire.VerbSearchRecord:
		return b.querySearchPatientRecord(ctx, args)

	case wire.VerbNumAdmissions:
		return b.queryNumPatients(ctx, wire.VerbNumAdmissions, args)

	case wire.VerbNumDischarges:
		return b.queryNumPatients(ctx, wire.VerbNumDischarges, args)

	case wire.VerbTopKDiseases:
		return b.queryTopK(ctx, wire.VerbTopKDiseases, args)

	case wire.VerbTopKCountries:
		return b.queryTopK(ctx, wire.VerbTopKCountries, args)

	default:
		return nil, false
	}
}

// queryDiseaseFrequency forwards as numPatientAdmissions (with the
// optional country, when given) to every worker and sums the counts each
// returns — the
// Go shape of s_disease_frequency, which builds its fan-out request with
// CMD_NUM_ADMISSIONS rather than a disease-frequency command of its own.
func (b *Broker) queryDiseaseFrequency(ctx context.Context, args []string) ([]string, bool) {
	if len(args) != 3 && len(args) != 4 {
		return nil, false
	}
	responses, ok := b.fanout(ctx, wire.VerbNumAdmissions, args)
	if !ok {
		return nil, false
	}
	return []string{sumMerge(responses)}, true
}

// queryTopKAgeRanges validates k is numeric (the one argument
// s_topk_age_ranges checks locally before fan-out) and forwards the rest
// unchanged; only the worker owning country answers with content.
func (b *Broker) queryTopKAgeRanges(ctx context.Context, args []string) ([]string, bool) {
	if len(args) != 5 {
		return nil, false
	}
	if !isUint(args[0]) {
		return nil, false
	}
	responses, ok := b.fanout(ctx, wire.VerbTopKAgeRanges, args)
	if !ok {
		return nil, false
	}
	return concatMerge(responses), true
}

func (b *Broker) querySearchPatientRecord(ctx context.Context, args []string) ([]string, bool) {
	if len(args) != 1 {
		return nil, false
	}
	responses, ok := b.fanout(ctx, wire.VerbSearchRecord, args)
	if !ok {
		return nil, false
	}
	return concatMerge(responses), true
}

// queryNumPatients handles numPatientAdmissions/numPatientDischarges
// directly: with a country argument at most one worker owns it, so the
// result is effectively that worker's single line; without one, every
// worker's per-country breakdown is concatenated.
func (b *Broker) queryNumPatients(ctx context.Context, verb string, args []string) ([]string, bool) {
	if len(args) != 3 && len(args) != 4 {
		return nil, false
	}
	responses, ok := b.fanout(ctx, verb, args)
	if !ok {
		return nil, false
	}
	return concatMerge(responses), true
}

// queryTopK handles the supplemental topkDiseases/topkCountries verbs: k
// plus the country-or-disease filter and the date range, forwarded to
// every worker unchanged so each ranks only the matching, filtered slice
// of its own history (§4.1, §6). The broker still re-ranks the union of
// every shard's local top-k by summed count and reclamps to k: a
// disease's admissions can be split across the shards that each own a
// different country, so the globally correct top-k countries for a
// disease requires this second reduction pass even though every
// individual country's count is already exact within its one owning
// shard.
func (b *Broker) queryTopK(ctx context.Context, verb string, args []string) ([]string, bool) {
	if len(args) != 4 {
		return nil, false
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, false
	}
	responses, ok := b.fanout(ctx, verb, args)
	if !ok {
		return nil, false
	}
	return topKMerge(responses, k), true
}

func isUint(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// fanout opens one connection per registered worker, sends verb+args as
// a single framed message (the shape worker.Serve's handleConnection
// expects: one message, fields newline-joined), and collects every
// worker's framed response concurrently under a shared deadline. ok is
// false only when there are no workers to ask at all; a per-worker
// timeout or dial failure just leaves that slot's Response zero-valued,
// so a partial result set is still merged rather than discarded (§4.5,
// §9 — "a bare READY with no preceding content is one reply, not a
// protocol error" applies equally to "no reply at all").
func (b *Broker) fanout(ctx context.Context, verb string, args []string) ([]wire.Response, bool) {
	addrs := b.Registry.Addrs()
	if len(addrs) == 0 {
		return nil, false
	}

	timeout := b.FanoutTimeout
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	fanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := verb
	if len(args) > 0 {
		payload += "\n" + strings.Join(args, "\n")
	}

	responses := make([]wire.Response, len(addrs))
	var g errgroup.Group
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			resp, err := b.queryWorker(fanCtx, addr, payload)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil && b.Metrics != nil {
		b.Metrics.FanoutTimeouts.Inc()
	}

	return responses, true
}

func (b *Broker) queryWorker(ctx context.Context, addr, payload string) (wire.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return wire.Response{}, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	if err := wire.NewWriter(conn).WriteMessage(payload); err != nil {
		return wire.Response{}, err
	}
	return wire.ReadResponse(wire.NewReader(conn))
}
