package table_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/biomonlab/chemtable/pkg/table"
)

func TestRead(t *testing.T) {
	t.Run("reads header and rows", func(t *testing.T) {
		in := "cas_number,chemical\n7732-18-5,Water\n50-00-0,Formaldehyde\n"
		got, err := table.Read(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := table.Table{
			Header: []string{"cas_number", "chemical"},
			Rows: [][]string{
				{"7732-18-5", "Water"},
				{"50-00-0", "Formaldehyde"},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("table mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("pads short rows", func(t *testing.T) {
		in := "a,b,c\n1,2\n"
		got, err := table.Read(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Rows[0]) != 3 || got.Rows[0][2] != "" {
			t.Fatalf("unexpected row: %#v", got.Rows[0])
		}
	})

	t.Run("rejects wide rows", func(t *testing.T) {
		in := "a,b\n1,2,3\n"
		if _, err := table.Read(strings.NewReader(in)); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestCol(t *testing.T) {
	tbl := table.New("CAS Number", "chemical")

	t.Run("match is case-insensitive", func(t *testing.T) {
		idx, err := tbl.Col("cas number")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != 0 {
			t.Fatalf("expected index 0, got %d", idx)
		}
	})

	t.Run("missing column errors", func(t *testing.T) {
		_, err := tbl.Col("hmdb_id")
		var cnf *table.ColumnNotFoundError
		if !errors.As(err, &cnf) {
			t.Fatalf("expected ColumnNotFoundError, got %v", err)
		}
		if cnf.Column != "hmdb_id" {
			t.Fatalf("unexpected column name: %q", cnf.Column)
		}
	})
}

func TestWithColumn(t *testing.T) {
	tbl := table.New("cas_number")
	if err := tbl.Append([]string{"50-00-0"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Append([]string{"7732-18-5"}); err != nil {
		t.Fatal(err)
	}

	t.Run("appends a new column", func(t *testing.T) {
		got, err := tbl.WithColumn("hmdb_id", []string{"HMDB0001426", "HMDB0002111"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Header) != 2 || got.Header[1] != "hmdb_id" {
			t.Fatalf("unexpected header: %#v", got.Header)
		}
		if got.Rows[1][1] != "HMDB0002111" {
			t.Fatalf("unexpected cell: %#v", got.Rows[1])
		}
		// The receiver is untouched.
		if len(tbl.Header) != 1 {
			t.Fatalf("receiver mutated: %#v", tbl.Header)
		}
	})

	t.Run("overwrites an existing column", func(t *testing.T) {
		got, err := tbl.WithColumn("cas_number", []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Header) != 1 || got.Rows[0][0] != "a" {
			t.Fatalf("unexpected table: %#v", got)
		}
	})

	t.Run("length mismatch errors", func(t *testing.T) {
		if _, err := tbl.WithColumn("x", []string{"only one"}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestFilterKeepsHeaderWhenEmpty(t *testing.T) {
	tbl := table.New("a")
	_ = tbl.Append([]string{"1"})
	got := tbl.Filter(func([]string) bool { return false })
	if got.Rows == nil || len(got.Rows) != 0 {
		t.Fatalf("expected explicitly empty rows, got %#v", got.Rows)
	}
	if len(got.Header) != 1 {
		t.Fatalf("header lost: %#v", got.Header)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	in := "cas_number,chemical\n50-00-0,Formaldehyde\n"
	tbl, err := table.Read(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := table.Write(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	if buf.String() != in {
		t.Fatalf("round trip mismatch:\n%q\n%q", in, buf.String())
	}
}
