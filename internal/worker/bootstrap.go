package worker

import (
	"fmt"
	"net"
	"strings"

	"github.com/lpapadakos/epiquery/internal/wire"
)

// Bootstrap reads a worker's assignment off its control connection to
// the master: one line per assigned country terminated by DONE, then
// the broker's host and port terminated by a second DONE, then the
// READY sentinel that hands the worker off to ingest — the framed
// shape of spawn_worker's country-lines / msg_done / host-line /
// port-line / msg_done / msg_ready write sequence (§4.2).
func Bootstrap(ctrl *wire.Reader) (countries []string, brokerAddr string, err error) {
	countryLines, err := ctrl.ReadUntil(wire.Done)
	if err != nil {
		return nil, "", fmt.Errorf("worker: bootstrap: read countries: %w", err)
	}
	if len(countryLines) == 0 {
		return nil, "", fmt.Errorf("worker: bootstrap: no countries assigned")
	}
	for _, l := range countryLines {
		countries = append(countries, trimLine(l))
	}

	addrLines, err := ctrl.ReadUntil(wire.Done)
	if err != nil {
		return nil, "", fmt.Errorf("worker: bootstrap: read broker address: %w", err)
	}
	if len(addrLines) != 2 {
		return nil, "", fmt.Errorf("worker: bootstrap: want host and port, got %d lines", len(addrLines))
	}
	brokerAddr = net.JoinHostPort(trimLine(addrLines[0]), trimLine(addrLines[1]))

	ready, err := ctrl.ReadMessage()
	if err != nil {
		return nil, "", fmt.Errorf("worker: bootstrap: read ready: %w", err)
	}
	if ready != wire.Ready {
		return nil, "", fmt.Errorf("worker: bootstrap: expected READY, got %q", ready)
	}

	return countries, brokerAddr, nil
}

func trimLine(s string) string {
	return strings.TrimSuffix(s, "\n")
}
