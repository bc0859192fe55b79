// Package profile summarizes a survey table column by column so the
// model fields can be checked before fitting.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/saberlab/internal/table"
)

// Column kinds.
const (
	Numeric     = "numeric"
	Categorical = "categorical"
	Text        = "text"
	Empty       = "empty"
)

// Options controls profiling.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows is how many leading rows to include in the report.
	SampleRows int
	// GroupBy computes numeric means per combination of these columns.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// OutlierThreshold flags |robust z| above it; 0 disables outlier counts.
	OutlierThreshold float64
	// TopValues is how many frequent values to keep per categorical column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for survey tables.
func DefaultOptions() Options {
	return Options{
		MaxRows:          0,
		SampleRows:       5,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Groups    []GroupResult
	Corr      []PairCorr
	Warnings  []string
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64
	Median  float64
	// Outliers counts values with robust z (via MAD) above Threshold.
	Outliers  int
	Threshold float64
	TopValues []CategoryCount
	Examples  []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult holds numeric means for one group key.
type GroupResult struct {
	Key   string
	Size  int
	Means map[string]float64
}

// PairCorr is a correlation between two numeric columns over rows where
// both are present.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

type colAcc struct {
	nonNil, miss int
	// Welford
	n        int
	mean, m2 float64
	min, max float64
	nums     []float64
	txt      int
	cats     map[string]int
	examples []string
}

// Analyze profiles t.
func Analyze(t *table.Table, opt Options) (*Report, error) {
	rep := &Report{Name: t.Name, Rows: t.Len()}
	ncol := t.Width()
	if ncol == 0 {
		return rep, nil
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 || maxRows > t.Len() {
		maxRows = t.Len()
	}
	rep.Processed = maxRows
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}

	var groupIdx []int
	for _, name := range opt.GroupBy {
		i := t.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("group by: %w: %q", table.ErrColumnNotFound, name)
		}
		groupIdx = append(groupIdx, i)
	}

	cols := make([]*colAcc, ncol)
	for i := range cols {
		cols[i] = &colAcc{min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
	}
	// rowNums[r][j] is NaN when row r's column j is not numeric.
	rowNums := make([][]float64, maxRows)
	type gAcc struct {
		size int
		sum  []float64
		cnt  []int
	}
	groups := map[string]*gAcc{}

	for r := 0; r < maxRows; r++ {
		rec := t.Rows[r]
		if len(rep.Samples) < opt.SampleRows {
			rep.Samples = append(rep.Samples, append([]string(nil), rec...))
		}
		nums := make([]float64, ncol)
		for j := range nums {
			nums[j] = math.NaN()
		}
		for j := 0; j < ncol; j++ {
			v := strings.TrimSpace(rec[j])
			c := cols[j]
			if v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if x, ok := parseNumeric(v); ok {
				c.n++
				c.min = math.Min(c.min, x)
				c.max = math.Max(c.max, x)
				delta := x - c.mean
				c.mean += delta / float64(c.n)
				c.m2 += delta * (x - c.mean)
				c.nums = append(c.nums, x)
				nums[j] = x
				continue
			}
			c.txt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.examples) < 3 {
				c.examples = append(c.examples, v)
			}
		}
		rowNums[r] = nums

		if len(groupIdx) > 0 {
			parts := make([]string, len(groupIdx))
			for k, gi := range groupIdx {
				parts[k] = fmt.Sprintf("%s=%s", t.Header[gi], safeVal(strings.TrimSpace(rec[gi])))
			}
			key := strings.Join(parts, " | ")
			ga := groups[key]
			if ga == nil {
				ga = &gAcc{sum: make([]float64, ncol), cnt: make([]int, ncol)}
				groups[key] = ga
			}
			ga.size++
			for j, x := range nums {
				if !math.IsNaN(x) {
					ga.sum[j] += x
					ga.cnt[j]++
				}
			}
		}
	}

	var numCols []int
	for j, c := range cols {
		s := ColumnSummary{Name: t.Header[j], NonNull: c.nonNil, Missing: c.miss}
		switch {
		case c.nonNil == 0:
			s.Kind = Empty
		case c.n >= c.txt:
			s.Kind = Numeric
			numCols = append(numCols, j)
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			s.Median, _ = stats.Median(c.nums)
			if opt.OutlierThreshold > 0 && len(c.nums) >= 8 {
				s.Threshold = opt.OutlierThreshold
				s.Outliers = countOutliers(c.nums, s.Median, opt.OutlierThreshold)
			}
		case len(c.cats) > 0:
			s.Kind = Categorical
			s.Unique = len(c.cats)
			s.TopValues = topValues(c.cats, opt.TopValues)
		default:
			s.Kind = Text
			s.Examples = c.examples
		}
		rep.Cols = append(rep.Cols, s)
	}

	for key, ga := range groups {
		gr := GroupResult{Key: key, Size: ga.size, Means: map[string]float64{}}
		for _, j := range numCols {
			if ga.cnt[j] > 0 {
				gr.Means[t.Header[j]] = ga.sum[j] / float64(ga.cnt[j])
			}
		}
		rep.Groups = append(rep.Groups, gr)
	}
	sort.Slice(rep.Groups, func(i, j int) bool {
		if rep.Groups[i].Size == rep.Groups[j].Size {
			return rep.Groups[i].Key < rep.Groups[j].Key
		}
		return rep.Groups[i].Size > rep.Groups[j].Size
	})
	if len(rep.Groups) > 20 {
		rep.Groups = rep.Groups[:20]
	}

	if opt.Correlations {
		rep.Corr = correlations(t.Header, numCols, rowNums)
	}
	return rep, nil
}

func countOutliers(vals []float64, median, thr float64) int {
	mad, err := stats.MedianAbsoluteDeviation(vals)
	if err != nil || mad == 0 {
		return 0
	}
	cnt := 0
	for _, v := range vals {
		if math.Abs(0.6745*(v-median)/mad) > thr {
			cnt++
		}
	}
	return cnt
}

func topValues(cats map[string]int, k int) []CategoryCount {
	if k <= 0 {
		k = 8
	}
	tops := make([]CategoryCount, 0, len(cats))
	for v, n := range cats {
		tops = append(tops, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > k {
		tops = tops[:k]
	}
	return tops
}

// correlations returns the strongest pairs by |r|, computed on rows where
// both columns are numeric.
func correlations(header []string, numCols []int, rows [][]float64) []PairCorr {
	var pairs []PairCorr
	for a := 0; a < len(numCols); a++ {
		for b := a + 1; b < len(numCols); b++ {
			ia, ib := numCols[a], numCols[b]
			var xs, ys []float64
			for _, r := range rows {
				if !math.IsNaN(r[ia]) && !math.IsNaN(r[ib]) {
					xs = append(xs, r[ia])
					ys = append(ys, r[ib])
				}
			}
			if len(xs) < 2 {
				continue
			}
			rv := stat.Correlation(xs, ys, nil)
			if math.IsNaN(rv) || math.IsInf(rv, 0) {
				continue
			}
			pairs = append(pairs, PairCorr{A: header[ia], B: header[ib], R: rv, N: len(xs)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	return pairs
}

// parseNumeric accepts plain numbers plus a decimal comma ("3,5") or
// grouped thousands ("1.234,5", "1,234.5").
func parseNumeric(s string) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0 && cpos > dpos:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case cpos >= 0 && dpos >= 0:
		raw = strings.ReplaceAll(raw, ",", "")
	case cpos >= 0:
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Markdown renders a compact profile.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		b.WriteString(fmt.Sprintf("Rows: %d (processed %d)\n", r.Rows, r.Processed))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case Numeric:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std))
			if c.Threshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.Outliers, c.Threshold))
			}
		case Categorical:
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		case Text:
			b.WriteString(": e.g. ")
			for i, ex := range c.Examples {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(ex))
			}
		}
		b.WriteString("\n")
	}

	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Means))
			for k := range g.Means {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				if i == 6 {
					break
				}
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g\n", k, g.Means[k]))
			}
		}
	}
	if len(r.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
