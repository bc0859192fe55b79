package split

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/table"
)

func source(rows ...string) *table.Table {
	recs := make([][]string, len(rows))
	for i, r := range rows {
		recs[i] = []string{r}
	}
	return table.New("data.csv", []string{"datos"}, recs)
}

func TestSplitFullSchemaTrimsEveryCell(t *testing.T) {
	raw := make([]string, len(config.DefaultSchema))
	for i := range raw {
		raw[i] = "  v" + strings.Repeat("x", i) + " "
	}
	res, err := Split(source(strings.Join(raw, ",")), Options{Schema: config.DefaultSchema}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if diff := cmp.Diff(config.DefaultSchema, res.Table.Header); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	for i, got := range res.Table.Rows[0] {
		if want := strings.TrimSpace(raw[i]); got != want {
			t.Fatalf("cell %d = %q, want %q", i, got, want)
		}
	}
	if res.SourceColumn != "datos" {
		t.Fatalf("source column = %q", res.SourceColumn)
	}
}

func TestSplitMoreColumnsThanNamesTruncates(t *testing.T) {
	res, err := Split(source("F,2020,COL,extra,more"), Options{Schema: []string{"GÉNERO", "AÑO", "PAÍS"}}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Table.Width() != 3 {
		t.Fatalf("width = %d, want 3", res.Table.Width())
	}
	if diff := cmp.Diff([][]string{{"F", "2020", "COL"}}, res.Table.Rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != ExtraColumns {
		t.Fatalf("warnings = %#v", res.Warnings)
	}
}

func TestSplitFewerColumnsUsesLeadingNames(t *testing.T) {
	res, err := Split(source("F, 2020", "M,2021,COL"), Options{Schema: config.DefaultSchema}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if diff := cmp.Diff(config.DefaultSchema[:3], res.Table.Header); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	want := [][]string{{"F", "2020", ""}, {"M", "2021", "COL"}}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	kinds := []WarningKind{}
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	if diff := cmp.Diff([]WarningKind{UnusedNames, ShortRows}, kinds); diff != "" {
		t.Fatalf("warning kinds (-want +got):\n%s", diff)
	}
	if res.Warnings[1].Rows != 1 {
		t.Fatalf("short rows = %d", res.Warnings[1].Rows)
	}
}

func TestSplitStrictReturnsSchemaError(t *testing.T) {
	_, err := Split(source("a,b,c"), Options{Schema: []string{"x"}, Strict: true}, nil)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if !strings.Contains(se.Error(), "dropped 2 trailing columns") {
		t.Fatalf("message = %q", se.Error())
	}
}

func TestSplitCustomSeparatorAndEmpty(t *testing.T) {
	res, err := Split(source("a;b"), Options{Schema: []string{"x", "y"}, Separator: ";"}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if diff := cmp.Diff([][]string{{"a", "b"}}, res.Table.Rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}

	empty, err := Split(source(), Options{Schema: []string{"x"}}, nil)
	if err != nil {
		t.Fatalf("Split empty: %v", err)
	}
	if empty.Table.Len() != 0 || len(empty.Warnings) != 0 {
		t.Fatalf("empty split = %d rows, %v", empty.Table.Len(), empty.Warnings)
	}

	if _, err := Split(&table.Table{}, Options{Schema: []string{"x"}}, nil); !errors.Is(err, ErrNoSourceColumn) {
		t.Fatalf("expected ErrNoSourceColumn, got %v", err)
	}
}
