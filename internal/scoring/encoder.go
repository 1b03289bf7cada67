// Package scoring turns an experiment and an outcome specification into
// ranked factor scores. It encodes the design, resolves the target and
// mode, and drives the univariate, forest and stability engines behind the
// ports interfaces.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gofactor/domain/experiment"

	"gonum.org/v1/gonum/mat"
)

// Encode converts a design into an n×k matrix with one column per factor in
// design order. Numeric columns pass through as float64; any other column
// is replaced by the rank of each value among the column's sorted distinct
// values. The mapping is rebuilt on every call. Encode returns nil for a
// design without factors or runs; the design must otherwise be valid.
func Encode(design experiment.Design) *mat.Dense {
	rows, cols := design.Runs(), len(design.Columns)
	if rows == 0 || cols == 0 {
		return nil
	}
	X := mat.NewDense(rows, cols, nil)
	for j, c := range design.Columns {
		X.SetCol(j, EncodeColumn(c.Values))
	}
	return X
}

// EncodeColumn encodes a single column. It never fails: a column that is
// not entirely numeric is encoded categorically.
func EncodeColumn(values []any) []float64 {
	out := make([]float64, len(values))
	numeric := true
	for i, v := range values {
		f, ok := toFloat(v)
		if !ok {
			numeric = false
			break
		}
		out[i] = f
	}
	if numeric {
		return out
	}

	codes := make(map[string]float64)
	for i, key := range Categories(values) {
		codes[key] = float64(i)
	}
	for i, v := range values {
		out[i] = codes[categoryKey(v)]
	}
	return out
}

// Categories returns the distinct values of a column in encoding order,
// each rendered as its string form. Values with the same string form share
// a code. Forms that parse as numbers come first in numeric order, the rest
// follow lexicographically.
func Categories(values []any) []string {
	seen := make(map[string]bool, len(values))
	var keys []string
	for _, v := range values {
		k := categoryKey(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return categoryLess(keys[i], keys[j]) })
	return keys
}

func categoryLess(a, b string) bool {
	fa, aNum := numericKey(a)
	fb, bNum := numericKey(b)
	switch {
	case aNum && bNum && fa != fb:
		return fa < fb
	case aNum != bNum:
		return aNum
	default:
		return a < b
	}
}

func numericKey(k string) (float64, bool) {
	f, ok := toFloat(k)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether EncodeColumn passes the column through.
func IsNumeric(values []any) bool {
	for _, v := range values {
		if _, ok := toFloat(v); !ok {
			return false
		}
	}
	return true
}

func categoryKey(v any) string {
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
