package enrich

import (
	"github.com/biomonlab/chemtable/pkg/table"
)

// Status is the per-row lifecycle. Pending is the only state eligible for a
// lookup call; the other three are terminal and stable across resumed runs.
type Status string

const (
	StatusPending  Status = ""
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Terminal reports whether a row in this status is resolved and must not be
// looked up again.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusNotFound || s == StatusError
}

// Outcome is the recorded result of one key's lookup.
type Outcome struct {
	Value  string
	Status Status
	Err    string
}

// State maps row keys to their recorded outcomes. It is what a resumed run
// consults to skip completed work.
type State map[string]Outcome

// Resolved reports whether the key already has a terminal outcome.
func (s State) Resolved(key string) bool {
	return s[key].Status.Terminal()
}

// Merge folds other into s. Terminal outcomes win over pending ones; when
// both sides are terminal, other wins.
func (s State) Merge(other State) {
	for key, out := range other {
		if !out.Status.Terminal() && s.Resolved(key) {
			continue
		}
		s[key] = out
	}
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// statusCol and errCol name the bookkeeping columns that ride along with an
// enrichment attribute in its output table.
func statusCol(attr string) string { return attr + "_status" }
func errCol(attr string) string    { return attr + "_error" }

// StateFromTable reconstructs resume state for one attribute from a prior
// output table. Rows whose status cell is not terminal stay pending. A table
// missing the attribute's columns (e.g. a fresh input file) yields an empty
// state, not an error.
func StateFromTable(t table.Table, keyColumn, attr string) (State, error) {
	keyIdx, err := t.Col(keyColumn)
	if err != nil {
		return nil, err
	}
	state := make(State)
	valIdx, err := t.Col(attr)
	if err != nil {
		return state, nil
	}
	stIdx, err := t.Col(statusCol(attr))
	if err != nil {
		return state, nil
	}
	errIdx, _ := t.Col(errCol(attr))

	for _, row := range t.Rows {
		st := Status(row[stIdx])
		if !st.Terminal() {
			continue
		}
		out := Outcome{Value: row[valIdx], Status: st}
		if errIdx >= 0 {
			out.Err = row[errIdx]
		}
		state[row[keyIdx]] = out
	}
	return state, nil
}

// Apply writes the attribute's value/status/error columns onto the table
// according to state, keyed by the key column. Pending keys get empty cells.
// The identifier column itself is never touched.
func (s State) Apply(t table.Table, keyColumn, attr string) (table.Table, error) {
	keyIdx, err := t.Col(keyColumn)
	if err != nil {
		return table.Table{}, err
	}

	values := make([]string, len(t.Rows))
	statuses := make([]string, len(t.Rows))
	errs := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out := s[row[keyIdx]]
		values[i] = out.Value
		statuses[i] = string(out.Status)
		errs[i] = out.Err
	}

	out, err := t.WithColumn(attr, values)
	if err != nil {
		return table.Table{}, err
	}
	out, err = out.WithColumn(statusCol(attr), statuses)
	if err != nil {
		return table.Table{}, err
	}
	return out.WithColumn(errCol(attr), errs)
}
