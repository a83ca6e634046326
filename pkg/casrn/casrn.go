// Package casrn validates CAS Registry Numbers.
//
// A CAS number is written NNNNNNN-NN-N: two to seven digits, two digits, and
// a final check digit. The check digit is the weighted sum of the remaining
// digits mod 10, with weight 1 at the rightmost of those digits and
// incrementing leftward.
package casrn

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/biomonlab/chemtable/pkg/table"
)

// ErrInvalidFormat reports a candidate that does not match the hyphenated
// CAS grouping pattern.
var ErrInvalidFormat = errors.New("invalid CAS number format")

var casPattern = regexp.MustCompile(`^(\d{2,7})-(\d{2})-(\d)$`)

// ResultKind classifies one candidate identifier.
type ResultKind int

const (
	ResultValid ResultKind = iota
	ResultInvalidFormat
	ResultInvalidChecksum
)

func (k ResultKind) String() string {
	switch k {
	case ResultValid:
		return "valid"
	case ResultInvalidFormat:
		return "invalid_format"
	case ResultInvalidChecksum:
		return "invalid_checksum"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Number is a parsed CAS Registry Number.
type Number struct {
	// Digits holds every digit except the check digit, most significant
	// first.
	Digits []int
	Check  int
}

// String renders the canonical hyphenated form.
func (n Number) String() string {
	var b strings.Builder
	for i, d := range n.Digits {
		if i == len(n.Digits)-2 {
			b.WriteByte('-')
		}
		b.WriteByte(byte('0' + d))
	}
	fmt.Fprintf(&b, "-%d", n.Check)
	return b.String()
}

// Parse validates the grouping pattern and splits a candidate into its digit
// sequence and check digit. Surrounding whitespace and stray single quotes
// (a common CSV export artifact) are tolerated.
func Parse(s string) (Number, error) {
	cleaned := strings.Trim(strings.TrimSpace(s), "'")
	m := casPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	body := m[1] + m[2]
	digits := make([]int, len(body))
	for i := range body {
		digits[i] = int(body[i] - '0')
	}
	return Number{Digits: digits, Check: int(m[3][0] - '0')}, nil
}

// CheckDigit computes the expected check digit for a digit sequence
// (most significant first, check digit excluded).
func CheckDigit(digits []int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		weight := len(digits) - i
		sum += digits[i] * weight
	}
	return sum % 10
}

// Validate classifies a candidate identifier.
func Validate(s string) ResultKind {
	n, err := Parse(s)
	if err != nil {
		return ResultInvalidFormat
	}
	if CheckDigit(n.Digits) != n.Check {
		return ResultInvalidChecksum
	}
	return ResultValid
}

// Classify validates every cell of the named column and returns one
// ResultKind per row, in row order. The only batch-level failure is a
// missing column; malformed cells classify that row only.
func Classify(t table.Table, column string) ([]ResultKind, error) {
	idx, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	out := make([]ResultKind, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = Validate(row[idx])
	}
	return out, nil
}

// FindInvalid returns the sub-table of rows whose identifier is not valid,
// preserving row order and all columns. When every row is valid the result
// is an explicitly empty table, not an absent one.
func FindInvalid(t table.Table, column string) (table.Table, error) {
	kinds, err := Classify(t, column)
	if err != nil {
		return table.Table{}, err
	}
	i := -1
	return t.Filter(func([]string) bool {
		i++
		return kinds[i] != ResultValid
	}), nil
}
