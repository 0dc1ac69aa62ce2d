package broker

import (
	"net"
	"strconv"
	"strings"

	"github.com/lpapadakos/epiquery/internal/wire"
)

// handleStats consumes one worker's statistics connection end to end:
// its identity line ("tag\nport"), then zero or more per-file ingest
// report batches, terminated by READY. Every country name seen in a
// report is recorded in the registry, which is how ListCountries is
// answered without a fan-out (§4.4). Grounded on
// server_thread_statistics, minus its sscanf-on-a-raw-buffer parsing and
// realloc'd port table.
func (b *Broker) handleStats(conn net.Conn) {
	defer conn.Close()
	reader := wire.NewReader(conn)

	identity, err := reader.ReadUntil(wire.Done)
	if err != nil || len(identity) != 1 {
		b.Log.Warn().Err(err).Msg("broker: malformed worker identity")
		return
	}

	tag, port, ok := parseIdentity(identity[0])
	if !ok {
		b.Log.Warn().Str("identity", identity[0]).Msg("broker: malformed worker identity")
		return
	}

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	b.Registry.Register(tag, addr)
	if b.Metrics != nil {
		b.Metrics.WorkersRegistered.Set(float64(b.Registry.Len()))
	}
	b.Log.Info().Int("worker", tag).Str("addr", addr).Msg("worker registered")

	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			b.Log.Warn().Int("worker", tag).Err(err).Msg("broker: lost statistics connection")
			return
		}
		if msg == wire.Ready {
			return
		}

		rest, err := reader.ReadUntil(wire.Done)
		if err != nil {
			b.Log.Warn().Int("worker", tag).Err(err).Msg("broker: lost statistics connection")
			return
		}

		if len(rest) >= 1 {
			// msg is the file name, rest[0] the country name, per
			// streamFileStatistics's wire layout.
			b.Registry.AddCountry(strings.TrimSuffix(rest[0], "\n"))
		}

		report := append([]string{msg}, rest...)
		b.Log.Debug().Int("worker", tag).Strs("report", report).Msg("ingest report")
	}
}

// parseIdentity splits the "tag\nport\n" line Worker.Ingest sends as its
// first statistics message.
func parseIdentity(line string) (tag, port int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, false
	}
	tag, err1 := strconv.Atoi(fields[0])
	port, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return tag, port, true
}
