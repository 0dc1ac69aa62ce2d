package shard

import (
	"github.com/lpapadakos/epiquery/internal/avltree"
	"github.com/lpapadakos/epiquery/internal/date"
	"github.com/lpapadakos/epiquery/internal/hashtable"
	"github.com/lpapadakos/epiquery/internal/record"
)

// Index is a worker's view of the subset of patients assigned to it: one
// id-keyed ownership map plus a country index and a disease index, both
// built on internal/hashtable over internal/avltree trees (§4.1).
type Index struct {
	recordsByID map[string]*record.Record
	countries   *hashtable.Table
	diseases    *hashtable.Table
}

// New returns an empty Index. countryBuckets and diseaseBuckets size the
// two hashtable.Tables independently, matching the source ht_init's
// (disease_entries, country_entries, bucket_size) parameterization;
// blockCapacity is shared by both.
func New(countryBuckets, diseaseBuckets, blockCapacity int) *Index {
	return &Index{
		recordsByID: make(map[string]*record.Record),
		countries:   hashtable.New(countryBuckets, blockCapacity),
		diseases:    hashtable.New(diseaseBuckets, blockCapacity),
	}
}

// Enter admits a new patient record (an ENTER event). It rejects a
// record whose required fields are missing, whose age or entry date is
// out of bounds, or whose id is already present in the shard.
func (idx *Index) Enter(rec *record.Record) error {
	if rec.ID == "" || rec.Country == "" || rec.Disease == "" {
		return ErrInvalidRecord
	}
	if !record.ValidAge(rec.Age) {
		return ErrInvalidRecord
	}
	if !date.Valid(rec.EntryDate) {
		return ErrInvalidRecord
	}
	if _, exists := idx.recordsByID[rec.ID]; exists {
		return ErrDuplicateRecord
	}

	countryEntry := idx.countries.FindOrCreate(rec.Country)
	diseaseEntry := idx.diseases.FindOrCreate(rec.Disease)

	// Adopt the table's canonical copy of each name so every record
	// sharing a country or disease shares one string (§9).
	rec.Country = countryEntry.Name
	rec.Disease = diseaseEntry.Name

	idx.recordsByID[rec.ID] = rec
	countryEntry.Tree = avltree.Insert(countryEntry.Tree, rec)
	diseaseEntry.Tree = avltree.Insert(diseaseEntry.Tree, rec)
	return nil
}

// Exit records a discharge (an EXIT event) against an already-entered
// patient. The exit date must not be chronologically before the
// record's entry date.
func (idx *Index) Exit(id string, exitDate date.Date) error {
	rec, ok := idx.recordsByID[id]
	if !ok {
		return ErrRecordNotFound
	}
	if !date.Valid(exitDate) || exitDate.Before(rec.EntryDate) {
		return ErrInvalidRecord
	}
	rec.ExitDate = exitDate
	return nil
}

// Stats summarizes the shard's current contents; the worker reports its
// Records count as the records gauge after ingest.
type Stats struct {
	Records   int
	Countries int
	Diseases  int
}

// Stats returns the shard's current Stats snapshot.
func (idx *Index) Stats() Stats {
	return Stats{
		Records:   len(idx.recordsByID),
		Countries: idx.countries.Size(),
		Diseases:  idx.diseases.Size(),
	}
}
