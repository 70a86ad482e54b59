package lisp

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	for i, src := range []string{"(println 1)", "(+ 1 \"a\")", "(println 3)"} {
		tr := &Trace{
			Op:        "run",
			Source:    src,
			Output:    "out",
			Timestamp: "2026-10-17T12:00:00Z",
			Duration:  time.Duration(i) * time.Millisecond,
		}
		if i == 1 {
			tr.Errors = []string{"unexpected type at 1:6: +: expected number, got Str"}
		}
		if err := s.Record(tr); err != nil {
			t.Fatal(err)
		}
		if tr.ID == 0 {
			t.Fatal("Record should assign an id")
		}
	}

	all, err := s.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].Source != "(println 1)" || all[2].Source != "(println 3)" {
		t.Fatalf("expected oldest first, got %q ... %q", all[0].Source, all[2].Source)
	}
	if len(all[1].Errors) != 1 || all[1].OK() {
		t.Fatalf("errors not round-tripped: %v", all[1].Errors)
	}
	if all[2].Duration != 2*time.Millisecond {
		t.Fatalf("duration not round-tripped: %v", all[2].Duration)
	}

	last, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[0].Source != "(+ 1 \"a\")" {
		t.Fatalf("unexpected limited history %+v", last)
	}
}

func TestStoreClear(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(&Trace{Op: "eval", Source: "1", Result: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	all, err := s.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty history, got %d", len(all))
	}
}

func TestStoreReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(&Trace{Op: "run", Source: "(println 1)", Output: "1\n"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	all, err := s.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Output != "1\n" {
		t.Fatalf("history lost on reopen: %+v", all)
	}
}
