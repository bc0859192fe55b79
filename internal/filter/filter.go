// Package filter keeps the rows of a table that belong to a given year.
package filter

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/saberlab/internal/table"
)

// ByYear returns the rows of t whose field equals year. The field value
// matches when its trimmed text is the year or parses to the same number
// ("2020", " 2020 ", "2020.0"). No matches yields an empty table with the
// input header. A missing field is an error.
func ByYear(t *table.Table, field string, year int, log *zap.Logger) (*table.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	idx, err := t.MustIndex(field)
	if err != nil {
		return nil, err
	}
	out := t.Where(func(row []string) bool { return YearEquals(row[idx], year) })
	log.Info("year filter applied",
		zap.String("field", field),
		zap.Int("year", year),
		zap.Int("rows_in", t.Len()),
		zap.Int("rows_out", out.Len()))
	return out, nil
}

// YearEquals reports whether the cell holds the given year.
func YearEquals(cell string, year int) bool {
	v := strings.TrimSpace(cell)
	if v == "" {
		return false
	}
	if v == strconv.Itoa(year) {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == float64(year)
}

// YearIn reports whether the cell holds any of the given years.
func YearIn(cell string, years []int) bool {
	for _, y := range years {
		if YearEquals(cell, y) {
			return true
		}
	}
	return false
}
