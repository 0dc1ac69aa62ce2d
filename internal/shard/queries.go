package shard

import (
	"sort"

	"github.com/lpapadakos/epiquery/internal/avltree"
	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/hashtable"
	"github.com/lpapadakos/epiquery/internal/record"
	"github.com/lpapadakos/epiquery/internal/topheap"
)

// SearchPatientRecord returns the record filed under id, or
// ErrRecordNotFound if this shard has never seen it.
func (idx *Index) SearchPatientRecord(id string) (*record.Record, error) {
	rec, ok := idx.recordsByID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// ListCountries returns every country name this shard has indexed at
// least one record under, in no particular order.
func (idx *Index) ListCountries() []string {
	names := make([]string, 0, idx.countries.Size())
	it := hashtable.NewIterator(idx.countries)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	return names
}

// DiseaseFrequency counts admissions for disease whose entry date falls
// in [from, to], across every country this shard holds. It returns
// ErrUnknownDisease if this shard has no records for that disease.
func (idx *Index) DiseaseFrequency(disease string, from, to date.Date) (int, error) {
	if !date.ValidInterval(from, to) {
		return 0, ErrInvalidInterval
	}
	entry := idx.diseases.Find(disease)
	if entry == nil {
		return 0, ErrUnknownDisease
	}
	return countByEntryDate(entry.Tree, from, to), nil
}

// CountryCount pairs a country name with an admission or discharge
// count, the shape of one line in an all-countries breakdown.
type CountryCount struct {
	Country string
	Count   int
}

// ageGroupCounts buckets every record of tree matching disease, whose
// EntryDate (or, if byExit, ExitDate) falls in [from, to], into the four
// fixed age ranges, mirroring country_num_patient_admissions/discharges.
func ageGroupCounts(tree *avltree.Node, disease string, from, to date.Date, byExit bool) (counts [record.NumAgeBuckets]int, total int) {
	if byExit {
		// No shortcut: the tree orders records by entry date, not exit
		// date, so a full scan is the only way to find exits in range.
		it := avltree.NewIterator(tree)
		for {
			rec, ok := it.Next()
			if !ok {
				break
			}
			if rec.Disease != disease || rec.ExitDate.IsZero() {
				continue
			}
			if rec.ExitDate.Before(from) || rec.ExitDate.After(to) {
				continue
			}
			counts[record.BucketForAge(rec.Age)]++
			total++
		}
		return counts, total
	}

	it := avltree.NewRangeIterator(tree, from)
	for {
		rec, ok := it.Next()
		if !ok || rec.EntryDate.After(to) {
			break
		}
		if rec.Disease != disease {
			continue
		}
		counts[record.BucketForAge(rec.Age)]++
		total++
	}
	return counts, total
}

// NumPatientAdmissions counts disease's admissions to country whose
// entry date falls in [from, to]. It returns ErrUnknownCountry if this
// shard has no records for that country.
func (idx *Index) NumPatientAdmissions(disease, country string, from, to date.Date) (int, error) {
	if !date.ValidInterval(from, to) {
		return 0, ErrInvalidInterval
	}
	entry := idx.countries.Find(country)
	if entry == nil {
		return 0, ErrUnknownCountry
	}
	_, total := ageGroupCounts(entry.Tree, disease, from, to, false)
	return total, nil
}

// NumPatientAdmissionsAllCountries reports disease's admissions in
// [from, to] broken down by country, one CountryCount per country this
// shard holds (including countries with a zero count).
func (idx *Index) NumPatientAdmissionsAllCountries(disease string, from, to date.Date) ([]CountryCount, error) {
	if !date.ValidInterval(from, to) {
		return nil, ErrInvalidInterval
	}
	return countryBreakdown(idx.countries, disease, from, to, false), nil
}

// NumPatientDischarges counts disease's discharges from country whose
// exit date falls in [from, to]. Records with no exit date yet are never
// counted. Unlike admissions, this requires a full scan of the
// country's tree: the tree orders records by entry date, which gives no
// shortcut for a range over exit dates.
func (idx *Index) NumPatientDischarges(disease, country string, from, to date.Date) (int, error) {
	if !date.ValidInterval(from, to) {
		return 0, ErrInvalidInterval
	}
	entry := idx.countries.Find(country)
	if entry == nil {
		return 0, ErrUnknownCountry
	}
	_, total := ageGroupCounts(entry.Tree, disease, from, to, true)
	return total, nil
}

// NumPatientDischargesAllCountries reports disease's discharges in
// [from, to] broken down by country, one CountryCount per country this
// shard holds (including countries with a zero count).
func (idx *Index) NumPatientDischargesAllCountries(disease string, from, to date.Date) ([]CountryCount, error) {
	if !date.ValidInterval(from, to) {
		return nil, ErrInvalidInterval
	}
	return countryBreakdown(idx.countries, disease, from, to, true), nil
}

func countryBreakdown(t *hashtable.Table, disease string, from, to date.Date, byExit bool) []CountryCount {
	result := make([]CountryCount, 0, t.Size())
	it := hashtable.NewIterator(t)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		_, total := ageGroupCounts(e.Tree, disease, from, to, byExit)
		result = append(result, CountryCount{Country: e.Name, Count: total})
	}
	return result
}

// AgeRangeStat pairs an age-bucket label with its share of matching
// admissions, one line of a topkAgeRanges response (§4.1).
type AgeRangeStat struct {
	Label      string
	Percentage float64
}

// TopKAgeRanges buckets country's admissions for disease in [from, to]
// into the four fixed age ranges (record.AgeBucket), ranks them by
// admission count descending with ties broken by bucket order low-to-high
// (§4.1, §8 invariant 6), and reports up to k of them as percentages of
// the total, formatted to two decimals — mirroring topk_age_ranges's
// country_num_patient_admissions call followed by a repeated argmax. If
// the total is zero, it reports no lines.
func (idx *Index) TopKAgeRanges(country, disease string, from, to date.Date, k int) ([]AgeRangeStat, error) {
	if !date.ValidInterval(from, to) {
		return nil, ErrInvalidInterval
	}
	entry := idx.countries.Find(country)
	if entry == nil {
		return nil, ErrUnknownCountry
	}

	counts, total := ageGroupCounts(entry.Tree, disease, from, to, false)
	if total == 0 || k <= 0 {
		return nil, nil
	}
	if k > record.NumAgeBuckets {
		k = record.NumAgeBuckets
	}

	order := rankAgeBuckets(counts)
	stats := make([]AgeRangeStat, k)
	for i := 0; i < k; i++ {
		b := order[i]
		stats[i] = AgeRangeStat{
			Label:      record.AgeBucket(b).Label(),
			Percentage: float64(counts[b]) * 100 / float64(total),
		}
	}
	return stats, nil
}

// rankAgeBuckets returns the four bucket indices ordered by count
// descending, ties broken by bucket index ascending: a stable sort over
// an already index-ascending slice gives exactly that tie-break, rather
// than routing through topheap.TopK's name-keyed, map-iteration-order one
// (see internal/topheap.TopK's doc comment).
func rankAgeBuckets(counts [record.NumAgeBuckets]int) []int {
	order := make([]int, record.NumAgeBuckets)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}

// DiseaseAgeCounts reports, for one disease, how many of a country's
// admissions on a single day fall into each of the four fixed age
// ranges — one entry of the per-file ingest report a worker streams to
// its broker (fileStatistics, §4.2).
type DiseaseAgeCounts struct {
	Disease string
	Counts  [record.NumAgeBuckets]int
}

// FileStatistics reports every disease known to this shard's age-bucket
// breakdown for country's admissions entered exactly on fileDate — the
// per-ingest-file summary described in §4.2, grounded on
// original_source/src/master/hashtable.c's file_statistics. Diseases
// with no admissions on fileDate are still reported, with all-zero
// counts, matching the source's unconditional iteration over every known
// disease.
func (idx *Index) FileStatistics(country string, fileDate date.Date) ([]DiseaseAgeCounts, error) {
	if !date.Valid(fileDate) {
		return nil, ErrInvalidRecord
	}
	countryEntry := idx.countries.Find(country)
	if countryEntry == nil {
		return nil, ErrUnknownCountry
	}

	result := make([]DiseaseAgeCounts, 0, idx.diseases.Size())
	diseaseIt := hashtable.NewIterator(idx.diseases)
	for {
		diseaseEntry, ok := diseaseIt.Next()
		if !ok {
			break
		}

		var counts [record.NumAgeBuckets]int
		it := avltree.NewRangeIterator(countryEntry.Tree, fileDate)
		for {
			rec, ok := it.Next()
			if !ok || rec.EntryDate.After(fileDate) {
				break
			}
			if rec.Disease == diseaseEntry.Name {
				counts[record.BucketForAge(rec.Age)]++
			}
		}

		result = append(result, DiseaseAgeCounts{Disease: diseaseEntry.Name, Counts: counts})
	}
	return result, nil
}

// TopKDiseases returns up to k disease names ranked by admission count
// descending, among country's admissions with entry date in [from, to] —
// the supplemental topkDiseases operation recovered from the source's
// topk_diseases (§6), scanning the one country tree rather than ranking a
// shard's unfiltered history.
func (idx *Index) TopKDiseases(country string, from, to date.Date, k int) ([]topheap.Entry, error) {
	if !date.ValidInterval(from, to) {
		return nil, ErrInvalidInterval
	}
	entry := idx.countries.Find(country)
	if entry == nil {
		return nil, ErrUnknownCountry
	}
	return topKByName(entry.Tree, from, to, k, func(rec *record.Record) string { return rec.Disease }), nil
}

// TopKCountries returns up to k country names ranked by admission count
// descending, among disease's admissions with entry date in [from, to] —
// the supplemental topkCountries operation recovered from the source's
// topk_countries (§6), scanning the one disease tree rather than ranking
// a shard's unfiltered history.
func (idx *Index) TopKCountries(disease string, from, to date.Date, k int) ([]topheap.Entry, error) {
	if !date.ValidInterval(from, to) {
		return nil, ErrInvalidInterval
	}
	entry := idx.diseases.Find(disease)
	if entry == nil {
		return nil, ErrUnknownDisease
	}
	return topKByName(entry.Tree, from, to, k, func(rec *record.Record) string { return rec.Country }), nil
}

// topKByName scans tree's records with entry date in [from, to], groups
// them by name(rec), and ranks the resulting groups by count descending.
func topKByName(tree *avltree.Node, from, to date.Date, k int, name func(*record.Record) string) []topheap.Entry {
	counts := make(map[string]int)
	it := avltree.NewRangeIterator(tree, from)
	for {
		rec, ok := it.Next()
		if !ok || rec.EntryDate.After(to) {
			break
		}
		counts[name(rec)]++
	}
	return topheap.TopK(counts, k)
}

func countByEntryDate(tree *avltree.Node, from, to date.Date) int {
	n := 0
	it := avltree.NewRangeIterator(tree, from)
	for {
		rec, ok := it.Next()
		if !ok || rec.EntryDate.After(to) {
			break
		}
		n++
	}
	return n
}
