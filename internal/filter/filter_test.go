package filter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/saberlab/internal/table"
)

func periods() *table.Table {
	return table.New("data.csv", []string{"PERIODO", "PUNTAJE GLOBAL"}, [][]string{
		{"2019", "120"},
		{"2020", "150"},
		{" 2020 ", "160"},
		{"2020.0", "170"},
		{"20201", "180"},
		{"", "190"},
	})
}

func TestByYearSubset(t *testing.T) {
	in := periods()
	out, err := ByYear(in, "PERIODO", 2020, nil)
	if err != nil {
		t.Fatalf("ByYear: %v", err)
	}
	want := [][]string{{"2020", "150"}, {" 2020 ", "160"}, {"2020.0", "170"}}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.Header, out.Header); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	for _, r := range out.Rows {
		if !YearEquals(r[0], 2020) {
			t.Fatalf("row %v does not hold target year", r)
		}
	}
	if in.Len() != 6 {
		t.Fatalf("input mutated: %d rows", in.Len())
	}
}

func TestByYearNoMatchesKeepsHeader(t *testing.T) {
	out, err := ByYear(periods(), "PERIODO", 1999, nil)
	if err != nil {
		t.Fatalf("ByYear: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("rows = %d, want 0", out.Len())
	}
	if diff := cmp.Diff([]string{"PERIODO", "PUNTAJE GLOBAL"}, out.Header); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
}

func TestByYearMissingField(t *testing.T) {
	_, err := ByYear(periods(), "AÑO", 2020, nil)
	if !errors.Is(err, table.ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestYearIn(t *testing.T) {
	years := []int{2020, 2021}
	for cell, want := range map[string]bool{"2020": true, "2021": true, "2021.0": true, "2022": false, "nan": false, "": false} {
		if got := YearIn(cell, years); got != want {
			t.Errorf("YearIn(%q) = %v, want %v", cell, got, want)
		}
	}
}
