// Package app wires tables, lookup clients and the enrichment runner into
// the CLI's operations.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/biomonlab/chemtable/internal/hmdb"
	"github.com/biomonlab/chemtable/internal/pubmed"
	"github.com/biomonlab/chemtable/pkg/casrn"
	"github.com/biomonlab/chemtable/pkg/enrich"
	"github.com/biomonlab/chemtable/pkg/table"
)

// RunOptions carries the enrichment knobs shared by every lookup command.
type RunOptions struct {
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	FlushEvery     int
}

func (o RunOptions) enrichOptions() enrich.Options {
	return enrich.Options{
		MaxRetries:        o.MaxRetries,
		RequestTimeout:    o.RequestTimeout,
		RateLimitRPS:      o.RateLimitRPS,
		FlushEvery:        o.FlushEvery,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		BackoffJitterFrac: 0.2,
	}
}

func readTable(path string) (table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	t, err := table.Read(f)
	if err != nil {
		return table.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// writeTableAtomic persists via a temp file and rename, so an interrupted
// write never leaves a half-written snapshot where resume state should be.
func writeTableAtomic(path string, t table.Table) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := table.Write(f, t); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

type fileSink struct {
	path string
}

func (s fileSink) Persist(_ context.Context, t table.Table) error {
	return writeTableAtomic(s.path, t)
}

// RunValidate classifies the identifier column and writes the invalid rows
// (with an invalid_reason column) to outputPath. All-valid input still
// produces an output file, with a header and zero rows.
func RunValidate(ctx context.Context, inputPath, outputPath, column string) error {
	t, err := readTable(inputPath)
	if err != nil {
		return err
	}

	kinds, err := casrn.Classify(t, column)
	if err != nil {
		return err
	}

	invalidKinds := make([]string, 0)
	i := -1
	invalid := t.Filter(func([]string) bool {
		i++
		if kinds[i] == casrn.ResultValid {
			return false
		}
		invalidKinds = append(invalidKinds, kinds[i].String())
		return true
	})

	if len(invalid.Rows) == 0 {
		slog.InfoContext(ctx, "all identifiers valid", "rows", len(t.Rows))
	} else {
		slog.InfoContext(ctx, "invalid identifiers found",
			"rows", len(t.Rows), "invalid", len(invalid.Rows))
	}

	if outputPath == "" {
		return nil
	}
	out, err := invalid.WithColumn("invalid_reason", invalidKinds)
	if err != nil {
		return err
	}
	return writeTableAtomic(outputPath, out)
}

// loadWorkingTable returns the table a lookup run should operate on: the
// existing output when resuming, otherwise the input. Resume trusts the prior
// output alone; rows added to the input after the run that produced it are
// not merged in, so pick those up by rerunning against a fresh output path.
// The key column must be present either way.
func loadWorkingTable(ctx context.Context, inputPath, outputPath, keyColumn string) (table.Table, error) {
	if outputPath != "" {
		if _, err := os.Stat(outputPath); err == nil {
			t, err := readTable(outputPath)
			if err != nil {
				return table.Table{}, err
			}
			if _, err := t.Col(keyColumn); err != nil {
				return table.Table{}, fmt.Errorf("prior output %s: %w", outputPath, err)
			}
			slog.InfoContext(ctx, "resuming from prior output",
				"path", outputPath, "rows", len(t.Rows))
			return t, nil
		}
	}
	t, err := readTable(inputPath)
	if err != nil {
		return table.Table{}, err
	}
	if _, err := t.Col(keyColumn); err != nil {
		return table.Table{}, err
	}
	return t, nil
}

// runPass executes one enrichment attribute over the working table,
// persisting incrementally to outputPath, seeded with any extra pre-resolved
// outcomes.
func runPass(
	ctx context.Context,
	working table.Table,
	outputPath, keyColumn, attr string,
	lookup enrich.Lookup,
	seed enrich.State,
	opts RunOptions,
) (table.Table, error) {
	prior, err := enrich.StateFromTable(working, keyColumn, attr)
	if err != nil {
		return table.Table{}, err
	}
	if seed != nil {
		prior.Merge(seed)
	}

	pending := 0
	keys, err := working.Column(keyColumn)
	if err != nil {
		return table.Table{}, err
	}
	for _, key := range keys {
		if !prior.Resolved(key) {
			pending++
		}
	}
	slog.InfoContext(ctx, "enrichment pass starting",
		"attribute", attr, "rows", len(working.Rows), "pending", pending)

	out, state, err := enrich.Run(ctx, working, keyColumn, attr, lookup, prior, fileSink{path: outputPath}, opts.enrichOptions())
	if err != nil {
		return out, err
	}

	resolved := 0
	for _, key := range keys {
		if state.Resolved(key) {
			resolved++
		}
	}
	slog.InfoContext(ctx, "enrichment pass finished",
		"attribute", attr, "rows", len(out.Rows), "resolved", resolved)
	return out, nil
}

// RunHMDB enriches the table with hmdb_id and hmdb_status columns: first
// CAS number to HMDB accession, then accession to curation status. Rows
// whose accession pass did not resolve an id skip the status lookup; their
// status bookkeeping mirrors the accession outcome instead (not-found stays
// not-found, an accession error is recorded as a status error).
func RunHMDB(
	ctx context.Context,
	inputPath, outputPath, casColumn string,
	client *hmdb.Client,
	policy hmdb.StatusPolicy,
	opts RunOptions,
) error {
	working, err := loadWorkingTable(ctx, inputPath, outputPath, casColumn)
	if err != nil {
		return err
	}

	working, err = runPass(ctx, working, outputPath, casColumn, "hmdb_id", client.IDLookup(), nil, opts)
	if err != nil {
		return err
	}

	// Rows with no accession key off the empty string; pre-resolving it
	// keeps the status pass from calling the service for them.
	seed := enrich.State{"": {Status: enrich.StatusNotFound}}
	out, err := runPass(ctx, working, outputPath, "hmdb_id", "hmdb_status", client.StatusLookup(policy), seed, opts)
	if err != nil {
		return err
	}

	out, changed, err := overlayStatusFromIDOutcome(out)
	if err != nil {
		return err
	}
	if changed {
		return writeTableAtomic(outputPath, out)
	}
	return nil
}

// overlayStatusFromIDOutcome rewrites the status bookkeeping of rows whose
// accession pass did not resolve. The status pass keys on the hmdb_id cell,
// so every such row shares the empty key and a single shared outcome; the
// per-row truth lives in the hmdb_id columns. A missing accession stays
// not-found, a failed accession lookup becomes a status error, and a pending
// accession leaves the status cells pending for the next run.
func overlayStatusFromIDOutcome(t table.Table) (table.Table, bool, error) {
	idStatuses, err := t.Column("hmdb_id_status")
	if err != nil {
		return table.Table{}, false, err
	}
	values, err := t.Column("hmdb_status")
	if err != nil {
		return table.Table{}, false, err
	}
	statuses, err := t.Column("hmdb_status_status")
	if err != nil {
		return table.Table{}, false, err
	}
	errs, err := t.Column("hmdb_status_error")
	if err != nil {
		return table.Table{}, false, err
	}

	changed := false
	for i, s := range idStatuses {
		var want enrich.Outcome
		switch enrich.Status(s) {
		case enrich.StatusOK:
			continue
		case enrich.StatusError:
			want = enrich.Outcome{Status: enrich.StatusError, Err: "no hmdb accession"}
		case enrich.StatusNotFound:
			want = enrich.Outcome{Status: enrich.StatusNotFound}
		default:
			want = enrich.Outcome{}
		}
		if values[i] != want.Value || statuses[i] != string(want.Status) || errs[i] != want.Err {
			values[i], statuses[i], errs[i] = want.Value, string(want.Status), want.Err
			changed = true
		}
	}
	if !changed {
		return t, false, nil
	}

	out, err := t.WithColumn("hmdb_status", values)
	if err != nil {
		return table.Table{}, false, err
	}
	out, err = out.WithColumn("hmdb_status_status", statuses)
	if err != nil {
		return table.Table{}, false, err
	}
	out, err = out.WithColumn("hmdb_status_error", errs)
	if err != nil {
		return table.Table{}, false, err
	}
	return out, true, nil
}

// RunPubMed enriches the table with a pubmed_results column keyed on the
// chemical name column.
func RunPubMed(
	ctx context.Context,
	inputPath, outputPath, nameColumn string,
	client *pubmed.Client,
	opts RunOptions,
) error {
	working, err := loadWorkingTable(ctx, inputPath, outputPath, nameColumn)
	if err != nil {
		return err
	}
	_, err = runPass(ctx, working, outputPath, nameColumn, "pubmed_results", client.CountLookup(), nil, opts)
	return err
}

// RunSuggestCAS enriches the table with a cas_suggestion column keyed on the
// chemical name column. The suggestion never overwrites an identifier
// column; it lives in its own column for review.
func RunSuggestCAS(
	ctx context.Context,
	inputPath, outputPath, nameColumn string,
	lookup enrich.Lookup,
	opts RunOptions,
) error {
	working, err := loadWorkingTable(ctx, inputPath, outputPath, nameColumn)
	if err != nil {
		return err
	}
	_, err = runPass(ctx, working, outputPath, nameColumn, "cas_suggestion", lookup, nil, opts)
	return err
}
