package table

import (
	"fmt"

	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// JoinOptions configures OuterJoin.
type JoinOptions struct {
	// LeftOn and RightOn name the key columns, pairwise. When a pair has the
	// same name the key appears once in the output; otherwise both columns
	// are kept.
	LeftOn  []string
	RightOn []string

	// Suffixes are appended to overlapping non-key column names from the
	// left and right side respectively.
	Suffixes [2]string

	// LeftName and RightName label the inputs in SchemaMismatchError.
	LeftName  string
	RightName string
}

// On is shorthand for joining on identically named keys.
func On(keys ...string) JoinOptions {
	return JoinOptions{LeftOn: keys, RightOn: keys, Suffixes: [2]string{"_x", "_y"}}
}

// OuterJoin returns the full outer join of left and right.
//
// Rows are emitted in left order, each followed by its right matches (all
// pairs for many-to-many keys); unmatched right rows follow in right order.
// Null keys compare equal to null keys. Key columns missing on either side
// produce a *types.SchemaMismatchError instead of a silently all-null join.
func OuterJoin(left, right *Table, opts JoinOptions) (*Table, error) {
	if len(opts.LeftOn) == 0 || len(opts.LeftOn) != len(opts.RightOn) {
		return nil, fmt.Errorf("table: join needs equal, non-empty key lists (left=%d right=%d)",
			len(opts.LeftOn), len(opts.RightOn))
	}
	if err := checkKeys(left, opts.LeftOn, nameOr(opts.LeftName, "left")); err != nil {
		return nil, err
	}
	if err := checkKeys(right, opts.RightOn, nameOr(opts.RightName, "right")); err != nil {
		return nil, err
	}

	// Keys shared by name collapse into one output column.
	sharedKey := make(map[string]int)
	for k := range opts.LeftOn {
		if opts.LeftOn[k] == opts.RightOn[k] {
			sharedKey[opts.RightOn[k]] = k
		}
	}

	var rightCols []int
	for j, c := range right.cols {
		if _, ok := sharedKey[c.Name]; !ok {
			rightCols = append(rightCols, j)
		}
	}

	overlap := make(map[string]bool)
	for _, j := range rightCols {
		name := right.cols[j].Name
		if _, ok := sharedKey[name]; ok {
			continue
		}
		if left.Has(name) {
			overlap[name] = true
		}
	}
	if len(overlap) > 0 && opts.Suffixes[0] == "" && opts.Suffixes[1] == "" {
		return nil, fmt.Errorf("table: columns overlap but no suffix specified: %v", keysOf(overlap))
	}

	cols := make([]Column, 0, len(left.cols)+len(rightCols))
	for _, c := range left.cols {
		if _, isKey := sharedKey[c.Name]; !isKey && overlap[c.Name] {
			c.Name += opts.Suffixes[0]
		}
		cols = append(cols, c)
	}
	for _, j := range rightCols {
		c := right.cols[j]
		if overlap[c.Name] {
			c.Name += opts.Suffixes[1]
		}
		cols = append(cols, c)
	}
	if err := checkUnique(cols); err != nil {
		return nil, err
	}
	out := New(cols...)

	leftKey := indexes(left, opts.LeftOn)
	rightKey := indexes(right, opts.RightOn)

	buckets := make(map[string][]int, right.Len())
	for i, r := range right.rows {
		k := rowKey(pick(r, rightKey))
		buckets[k] = append(buckets[k], i)
	}

	// Shared keys in the output come from whichever side has the row.
	sharedOut := make(map[int]int)
	for name, k := range sharedKey {
		sharedOut[left.index[name]] = rightKey[k]
	}

	matched := make([]bool, right.Len())
	width := len(cols)
	for _, lr := range left.rows {
		hits := buckets[rowKey(pick(lr, leftKey))]
		if len(hits) == 0 {
			row := make([]Cell, width)
			copy(row, lr)
			out.rows = append(out.rows, row)
			continue
		}
		for _, ri := range hits {
			matched[ri] = true
			row := make([]Cell, width)
			copy(row, lr)
			for k, j := range rightCols {
				row[len(left.cols)+k] = right.rows[ri][j]
			}
			out.rows = append(out.rows, row)
		}
	}
	for ri, rr := range right.rows {
		if matched[ri] {
			continue
		}
		row := make([]Cell, width)
		for lj, rj := range sharedOut {
			row[lj] = rr[rj]
		}
		for k, j := range rightCols {
			row[len(left.cols)+k] = rr[j]
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func checkKeys(t *Table, keys []string, name string) error {
	var missing []string
	for _, k := range keys {
		if !t.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &types.SchemaMismatchError{Table: name, Missing: missing}
	}
	return nil
}

func checkUnique(cols []Column) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c.Name] {
			return fmt.Errorf("table: join would produce duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func indexes(t *Table, names []string) []int {
	idx := make([]int, len(names))
	for k, n := range names {
		idx[k] = t.index[n]
	}
	return idx
}

func pick(row []Cell, idx []int) []Cell {
	out := make([]Cell, len(idx))
	for k, j := range idx {
		out[k] = row[j]
	}
	return out
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
