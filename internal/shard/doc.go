// Package shard implements the per-worker index described in §4.1: a
// records-by-id map plus two name-keyed indices (country, disease), each
// mapping into a date-ordered internal/avltree tree of records. It is the
// engine a worker process (internal/worker) drives during ingest and
// query handling.
//
// Architecture
//
// Three structures share the same underlying records:
//
//	recordsByID: record-id -> *record.Record            (ownership map)
//	countries:   country-name -> tree of *record.Record  (by entry-date)
//	diseases:    disease-name -> tree of *record.Record  (by entry-date)
//
// A Record is created once, by Enter, and from then on is reachable from
// all three structures simultaneously through the same pointer, never
// copied; Exit mutates it in place, so a discharge is visible to every
// index without a second write. The Country and Disease fields of a
// Record hold the canonical, interned string handed back by the owning
// hashtable.Entry, so two records filed under "France" never carry two
// separate copies of that string.
//
// Concurrency
//
// An Index has no internal locking: a shard's state is touched only by
// the single goroutine running its owning worker's serve loop (§5). A
// second writer would have to be prevented at that layer; a mutex here
// would just hide the bug instead of ruling it out.
package shard
