package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already migrated; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + indexes)", result.Version)
	}
	if result.Dirty {
		t.Error("migration left the schema dirty")
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "bob", "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = db.Close()
}

func TestDirectionConstraint(t *testing.T) {
	db := testDB(t)

	err := db.InsertRecord(&Record{RecordID: "r1", Counterpart: "bob", Body: "hi", Direction: "forwarded", Timestamp: 1})
	if err == nil {
		t.Error("InsertRecord() accepted an unknown direction")
	}
}

func TestInsertAndListNewestFirst(t *testing.T) {
	db := testDB(t)

	for i, body := range []string{"first", "second", "third"} {
		r := &Record{
			RecordID:    fmt.Sprintf("r%d", i),
			Counterpart: "bob",
			Body:        body,
			Direction:   "received",
			Timestamp:   int64(1000 * (i + 1)),
		}
		if err := db.InsertRecord(r); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := db.ListRecords(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Body != "third" || recs[1].Body != "second" {
		t.Errorf("order = %q, %q; want third, second", recs[0].Body, recs[1].Body)
	}
}

func TestInsertDuplicateRecordID(t *testing.T) {
	db := testDB(t)

	r := &Record{RecordID: "same", Counterpart: "bob", Body: "hi", Direction: "sent", Timestamp: 1}
	if err := db.InsertRecord(r); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRecord(r); err != nil {
		t.Fatalf("duplicate insert error = %v", err)
	}

	recs, err := db.ListRecords(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1", len(recs))
	}
}

func TestSearchRecords(t *testing.T) {
	db := testDB(t)

	seed := []Record{
		{RecordID: "a", Counterpart: "ALL", Body: "Hello world", Direction: "sent", Timestamp: 1},
		{RecordID: "b", Counterpart: "bob", Body: "goodbye", Direction: "received", Timestamp: 2},
		{RecordID: "c", Counterpart: "carol", Body: "100% sure", Direction: "received", Timestamp: 3},
	}
	for i := range seed {
		if err := db.InsertRecord(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"hello", []string{"a"}},
		{"BOB", []string{"b"}},
		{"%", []string{"c"}},
		{"o", []string{"c", "b", "a"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			recs, err := db.SearchRecords(tt.query, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(recs), len(tt.want))
			}
			for i, id := range tt.want {
				if recs[i].RecordID != id {
					t.Errorf("result %d = %s, want %s", i, recs[i].RecordID, id)
				}
			}
		})
	}
}
