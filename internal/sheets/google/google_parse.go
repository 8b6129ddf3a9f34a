package google

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"studiocharts/internal/core"
)

var errNoHeader = errors.New("range has no header row")

// parseValues converts a values matrix (as returned by the Sheets API) into a
// Table. The first row is the header.
func parseValues(values [][]interface{}) (core.Table, error) {
	if len(values) == 0 {
		return core.Table{}, errNoHeader
	}
	header := toStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, toStrings(v))
	}
	return core.NewTable(header, rows), nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders an unformatted cell. Numbers come back as float64 and
// are printed without exponent so they parse like the CSV text.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func toValues(t core.Table, cols []string) [][]interface{} {
	out := make([][]interface{}, 0, len(t.Records)+1)
	head := make([]interface{}, len(cols))
	for i, c := range cols {
		head[i] = c
	}
	out = append(out, head)
	for _, row := range t.Rows(cols) {
		r := make([]interface{}, len(row))
		for i, v := range row {
			r[i] = v
		}
		out = append(out, r)
	}
	return out
}
