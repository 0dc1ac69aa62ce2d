package broker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lpapadakos/epiquery/internal/topheap"
	"github.com/lpapadakos/epiquery/internal/wire"
)

// concatMerge joins every non-invalid response's lines, in worker
// order, with no further reduction — the merge rule for
// searchPatientRecord, topkAgeRanges, and numPatientAdmissions/
// numPatientDischarges (§4.5). An INVALID response (typically a shard
// that doesn't own the requested country) contributes nothing, the same
// outcome the original's s_get_response produces despite itself setting
// an otherwise-unused invalid flag.
func concatMerge(responses []wire.Response) []string {
	var lines []string
	for _, r := range responses {
		if r.Invalid {
			continue
		}
		lines = append(lines, r.Lines...)
	}
	return lines
}

// sumMerge parses the trailing integer field of every non-invalid
// response line and adds them up, the merge rule for diseaseFrequency —
// the Go shape of s_sum_cases's sscanf(start, "%*s %d", &n) loop.
func sumMerge(responses []wire.Response) string {
	total := 0
	for _, r := range responses {
		if r.Invalid {
			continue
		}
		for _, l := range r.Lines {
			total += trailingInt(l)
		}
	}
	return strconv.Itoa(total)
}

// topKMerge re-ranks the union of every shard's local top-k lines
// ("name count") by summed count and clamps to k — required because a
// disease's admissions can be split across multiple shards, unlike a
// country's, which belongs to exactly one (§4.5).
func topKMerge(responses []wire.Response, k int) []string {
	counts := make(map[string]int)
	for _, r := range responses {
		if r.Invalid {
			continue
		}
		for _, l := range r.Lines {
			name, n, ok := splitNameCount(l)
			if !ok {
				continue
			}
			counts[name] += n
		}
	}

	entries := topheap.TopK(counts, k)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s %d", e.Name, e.Count)
	}
	return lines
}

func trailingInt(line string) int {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(fields[len(fields)-1])
	return n
}

func splitNameCount(line string) (name string, count int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return "", 0, false
	}
	return strings.Join(fields[:len(fields)-1], " "), n, true
}
