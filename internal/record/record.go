// Package record defines the atomic fact the rest of the system indexes:
// one patient admission (and, later, discharge). See §3.
package record

import "github.com/lpapadakos/epiquery/internal/date"

// MinAge and MaxAge bound the accepted age field (§6: "non-negative
// integer ≤ 120").
const (
	MinAge = 0
	MaxAge = 120
)

// Record is one patient admission/discharge fact. Country and Disease
// hold the shard's canonical, interned copy of the name string (§9
// "shared-name strings"); callers must never construct a Record with an
// ad hoc, non-interned name if it is going into a shard index.
type Record struct {
	ID        string
	FirstName string
	LastName  string
	Disease   string
	Country   string
	Age       int
	EntryDate date.Date
	ExitDate  date.Date // date.Zero until an EXIT event sets it
}

// Key implements the ordering key used by internal/avltree: records are
// kept in entry-date order.
func (r *Record) Key() date.Date {
	return r.EntryDate
}

// AgeBucket is one of the four fixed ranges records are bucketed into
// for aggregation queries (§4.1).
type AgeBucket int

const (
	Bucket0to20 AgeBucket = iota
	Bucket21to40
	Bucket41to60
	Bucket61Plus
	numAgeBuckets
)

// bucketLabels gives the wire label for each AgeBucket, in bucket order.
var bucketLabels = [numAgeBuckets]string{
	Bucket0to20:  "0-20",
	Bucket21to40: "21-40",
	Bucket41to60: "41-60",
	Bucket61Plus: "60+",
}

// Label returns the wire label for b, e.g. "21-40".
func (b AgeBucket) Label() string {
	return bucketLabels[b]
}

// NumAgeBuckets is the fixed number of age buckets (4).
const NumAgeBuckets = int(numAgeBuckets)

// BucketForAge classifies age into one of the four fixed buckets (§4.1):
// ≤20 → bucket 0, ≤40 → bucket 1, ≤60 → bucket 2, >60 → bucket 3.
func BucketForAge(age int) AgeBucket {
	switch {
	case age <= 20:
		return Bucket0to20
	case age <= 40:
		return Bucket21to40
	case age <= 60:
		return Bucket41to60
	default:
		return Bucket61Plus
	}
}

// ValidAge reports whether age is within the accepted range.
func ValidAge(age int) bool {
	return age >= MinAge && age <= MaxAge
}
