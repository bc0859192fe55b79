package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/saberlab/internal/filter"
	"github.com/KaramelBytes/saberlab/internal/table"
)

// ErrNoObservations is returned when no row survives preparation.
var ErrNoObservations = errors.New("no usable observations after filtering")

// MissingFieldsError lists required fields absent from the source table.
type MissingFieldsError struct {
	Table  string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s is missing required fields: %s", e.Table, strings.Join(e.Fields, ", "))
}

// Fields names the columns the model reads and the values it accepts.
type Fields struct {
	Year     string
	Years    []int
	Score    string
	Computer string
	Internet string
	Stratum  string
	// Affirmative and Negative are the accepted normalized amenity values,
	// "si" and "no" by default.
	Affirmative string
	Negative    string
}

// Dataset is the model input: one entry per observation in every slice.
type Dataset struct {
	Score    []float64
	Computer []float64
	Internet []float64
	Stratum  []float64
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.Score) }

// PrepStats counts rows read and rows dropped at each preparation step.
type PrepStats struct {
	Rows        int `json:"rows"`
	WrongYear   int `json:"wrong_year"`
	BadComputer int `json:"bad_computer"`
	BadInternet int `json:"bad_internet"`
	Missing     int `json:"missing"`
	BadStratum  int `json:"bad_stratum"`
	BadScore    int `json:"bad_score"`
	Kept        int `json:"kept"`
}

var digitsRe = regexp.MustCompile(`\d+`)

// ExtractStratum returns the first run of digits in s as a number.
// "Estrato 3" yields 3; "sin estrato" yields false.
func ExtractStratum(s string) (float64, bool) {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseScore parses a numeric score; non-finite values are rejected.
func ParseScore(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NormalizeAmenity lowercases and trims an amenity flag.
func NormalizeAmenity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Prepare derives the model input from a cleaned table. Rows are dropped,
// never imputed: wrong year, amenity values other than the accepted pair,
// missing values, a stratum without digits, or a non-numeric score.
func Prepare(t *table.Table, f Fields, log *zap.Logger) (*Dataset, PrepStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	aff, neg := f.Affirmative, f.Negative
	if aff == "" {
		aff = "si"
	}
	if neg == "" {
		neg = "no"
	}
	var missing []string
	idx := map[string]int{}
	for _, name := range []string{f.Year, f.Score, f.Computer, f.Internet, f.Stratum} {
		i := t.Index(name)
		if i < 0 {
			missing = append(missing, name)
			continue
		}
		idx[name] = i
	}
	var st PrepStats
	if len(missing) > 0 {
		return nil, st, &MissingFieldsError{Table: t.Name, Fields: missing}
	}

	ds := &Dataset{}
	for _, row := range t.Rows {
		st.Rows++
		if !filter.YearIn(row[idx[f.Year]], f.Years) {
			st.WrongYear++
			continue
		}
		compu := NormalizeAmenity(row[idx[f.Computer]])
		if compu != aff && compu != neg {
			st.BadComputer++
			continue
		}
		inet := NormalizeAmenity(row[idx[f.Internet]])
		if inet != aff && inet != neg {
			st.BadInternet++
			continue
		}
		scoreRaw := strings.TrimSpace(row[idx[f.Score]])
		stratumRaw := strings.TrimSpace(row[idx[f.Stratum]])
		if scoreRaw == "" || stratumRaw == "" {
			st.Missing++
			continue
		}
		estrato, ok := ExtractStratum(stratumRaw)
		if !ok {
			st.BadStratum++
			continue
		}
		score, ok := ParseScore(scoreRaw)
		if !ok {
			st.BadScore++
			continue
		}
		ds.Score = append(ds.Score, score)
		ds.Computer = append(ds.Computer, indicator(compu == aff))
		ds.Internet = append(ds.Internet, indicator(inet == aff))
		ds.Stratum = append(ds.Stratum, estrato)
	}
	st.Kept = ds.Len()
	log.Info("model input prepared",
		zap.Int("rows", st.Rows),
		zap.Int("kept", st.Kept),
		zap.Int("wrong_year", st.WrongYear),
		zap.Int("bad_computer", st.BadComputer),
		zap.Int("bad_internet", st.BadInternet),
		zap.Int("missing", st.Missing),
		zap.Int("bad_stratum", st.BadStratum),
		zap.Int("bad_score", st.BadScore))
	if st.Kept == 0 {
		return nil, st, ErrNoObservations
	}
	return ds, st, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
