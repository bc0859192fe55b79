// Package split turns a single delimited text column into named fields.
package split

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/saberlab/internal/table"
)

// WarningKind classifies a schema mismatch.
type WarningKind string

const (
	// ExtraColumns means splitting produced more columns than schema names;
	// the surplus columns are dropped.
	ExtraColumns WarningKind = "extra_columns"
	// UnusedNames means splitting produced fewer columns than schema names;
	// only the leading names are used.
	UnusedNames WarningKind = "unused_names"
	// ShortRows means some rows split into fewer parts than the widest row;
	// their trailing cells are empty.
	ShortRows WarningKind = "short_rows"
)

// SchemaWarning describes one mismatch between the split data and the schema.
type SchemaWarning struct {
	Kind    WarningKind `json:"kind"`
	Names   int         `json:"names"`
	Columns int         `json:"columns"`
	Rows    int         `json:"rows,omitempty"`
}

func (w SchemaWarning) String() string {
	switch w.Kind {
	case ExtraColumns:
		return fmt.Sprintf("split produced %d columns but schema has %d names; dropped %d trailing columns", w.Columns, w.Names, w.Columns-w.Names)
	case UnusedNames:
		return fmt.Sprintf("split produced %d columns but schema has %d names; last %d names unused", w.Columns, w.Names, w.Names-w.Columns)
	case ShortRows:
		return fmt.Sprintf("%d rows had fewer than %d parts; missing cells left empty", w.Rows, w.Columns)
	}
	return string(w.Kind)
}

// SchemaError is returned in strict mode when any schema warning is raised.
type SchemaError struct {
	Warnings []SchemaWarning
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		parts[i] = w.String()
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// Options controls splitting.
type Options struct {
	// Schema names assigned positionally to the split parts.
	Schema []string
	// Separator between parts inside the source cell. Defaults to ",".
	Separator string
	// Strict turns schema warnings into a *SchemaError.
	Strict bool
}

// Result is the cleaned table plus what happened while producing it.
type Result struct {
	Table        *table.Table
	SourceColumn string
	// Parts is the widest split observed, before truncation to the schema.
	Parts    int
	Warnings []SchemaWarning
}

// ErrNoSourceColumn is returned when the source table has no columns.
var ErrNoSourceColumn = errors.New("source table has no columns")

// Split reads the first column of src, splits every value on the separator,
// trims each part and names the resulting columns with the leading schema
// names. The output width is min(parts, len(schema)).
func Split(src *table.Table, opt Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if src.Width() == 0 {
		return nil, ErrNoSourceColumn
	}
	sep := opt.Separator
	if sep == "" {
		sep = ","
	}
	res := &Result{SourceColumn: src.Header[0]}

	parts := make([][]string, len(src.Rows))
	for i, r := range src.Rows {
		p := strings.Split(r[0], sep)
		for j := range p {
			p[j] = strings.TrimSpace(p[j])
		}
		parts[i] = p
		if len(p) > res.Parts {
			res.Parts = len(p)
		}
	}

	names := len(opt.Schema)
	width := min(res.Parts, names)
	switch {
	case res.Parts > names:
		res.Warnings = append(res.Warnings, SchemaWarning{Kind: ExtraColumns, Names: names, Columns: res.Parts})
	case res.Parts < names && len(src.Rows) > 0:
		res.Warnings = append(res.Warnings, SchemaWarning{Kind: UnusedNames, Names: names, Columns: res.Parts})
	}
	short := 0
	for _, p := range parts {
		if len(p) < res.Parts {
			short++
		}
	}
	if short > 0 {
		res.Warnings = append(res.Warnings, SchemaWarning{Kind: ShortRows, Names: names, Columns: res.Parts, Rows: short})
	}

	for _, w := range res.Warnings {
		log.Warn("schema mismatch",
			zap.String("kind", string(w.Kind)),
			zap.Int("names", w.Names),
			zap.Int("columns", w.Columns),
			zap.Int("rows", w.Rows))
	}
	if opt.Strict && len(res.Warnings) > 0 {
		return nil, &SchemaError{Warnings: res.Warnings}
	}

	res.Table = table.New(src.Name, opt.Schema[:width], parts)
	log.Info("split complete",
		zap.String("source_column", res.SourceColumn),
		zap.Int("rows", res.Table.Len()),
		zap.Int("columns", width))
	return res, nil
}
