package hashtable

import "testing"

func TestFindOrCreateIsIdempotent(t *testing.T) {
	tbl := New(4, 2)

	e1 := tbl.FindOrCreate("France")
	e2 := tbl.FindOrCreate("France")

	if e1 != e2 {
		t.Fatal("FindOrCreate should return the same Entry for the same name")
	}
	if tbl.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", tbl.Size())
	}
}

func TestFindMissingReturnsNil(t *testing.T) {
	tbl := New(4, 2)
	if tbl.Find("nowhere") != nil {
		t.Fatal("Find on an empty table should return nil")
	}
}

func TestOverflowChainsAcrossBlocks(t *testing.T) {
	tbl := New(1, 2) // single bucket, tiny blocks: forces overflow chaining

	names := []string{"France", "Greece", "Spain", "Italy", "Germany"}
	for _, n := range names {
		tbl.FindOrCreate(n)
	}

	if tbl.Size() != len(names) {
		t.Fatalf("Size() = %d, want %d", tbl.Size(), len(names))
	}

	for _, n := range names {
		if e := tbl.Find(n); e == nil || e.Name != n {
			t.Fatalf("Find(%q) failed to locate entry across overflow chain", n)
		}
	}
}

func TestIteratorVisitsEveryEntryExactlyOnce(t *testing.T) {
	tbl := New(3, 2)
	names := []string{"covid19", "flu", "measles", "malaria", "cholera", "ebola"}
	for _, n := range names {
		tbl.FindOrCreate(n)
	}

	seen := map[string]int{}
	it := NewIterator(tbl)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		seen[e.Name]++
	}

	if len(seen) != len(names) {
		t.Fatalf("visited %d distinct names, want %d", len(seen), len(names))
	}
	for _, n := range names {
		if seen[n] != 1 {
			t.Fatalf("name %q visited %d times, want 1", n, seen[n])
		}
	}
}

func TestCanonicalNameIsShared(t *testing.T) {
	tbl := New(4, 4)
	e := tbl.FindOrCreate("France")
	canonical := e.Name

	// A second FindOrCreate for the same name must hand back the entry
	// holding the same canonical name (§9).
	e2 := tbl.FindOrCreate("France")
	if e2.Name != canonical {
		t.Fatal("expected the canonical name to be reused")
	}
}
