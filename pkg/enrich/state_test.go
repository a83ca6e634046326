package enrich_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/biomonlab/chemtable/pkg/enrich"
	"github.com/biomonlab/chemtable/pkg/table"
)

func TestStateTableRoundTrip(t *testing.T) {
	tbl, err := table.Read(strings.NewReader(strings.Join([]string{
		"cas_number,chemical",
		"50-00-0,Formaldehyde",
		"7732-18-5,Water",
		"80-05-7,Bisphenol A",
	}, "\n") + "\n"))
	if err != nil {
		t.Fatal(err)
	}

	state := enrich.State{
		"50-00-0":   {Value: "HMDB0001426", Status: enrich.StatusOK},
		"7732-18-5": {Status: enrich.StatusNotFound},
	}

	out, err := state.Apply(tbl, "cas_number", "hmdb_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantHeader := []string{"cas_number", "chemical", "hmdb_id", "hmdb_id_status", "hmdb_id_error"}
	if diff := cmp.Diff(wantHeader, out.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	// The pending row has empty cells, not markers.
	if diff := cmp.Diff([]string{"80-05-7", "Bisphenol A", "", "", ""}, out.Rows[2]); diff != "" {
		t.Fatalf("pending row mismatch (-want +got):\n%s", diff)
	}

	// Prior output and resume state are the same artifact.
	restored, err := enrich.StateFromTable(out, "cas_number", "hmdb_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(state, restored); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestStateFromTableWithoutPriorColumns(t *testing.T) {
	tbl, err := table.Read(strings.NewReader("cas_number\n50-00-0\n"))
	if err != nil {
		t.Fatal(err)
	}
	state, err := enrich.StateFromTable(tbl, "cas_number", "hmdb_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state) != 0 {
		t.Fatalf("expected empty state, got %#v", state)
	}
}

func TestStateFromTableMissingKeyColumn(t *testing.T) {
	tbl := table.New("chemical")
	if _, err := enrich.StateFromTable(tbl, "cas_number", "hmdb_id"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStateMerge(t *testing.T) {
	dst := enrich.State{
		"a": {Value: "1", Status: enrich.StatusOK},
		"b": {Status: enrich.StatusPending},
	}
	dst.Merge(enrich.State{
		"a": {Status: enrich.StatusPending},           // pending never displaces resolved
		"b": {Status: enrich.StatusNotFound},          // resolved wins
		"c": {Value: "3", Status: enrich.StatusError}, // new keys copied
	})

	want := enrich.State{
		"a": {Value: "1", Status: enrich.StatusOK},
		"b": {Status: enrich.StatusNotFound},
		"c": {Value: "3", Status: enrich.StatusError},
	}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}
