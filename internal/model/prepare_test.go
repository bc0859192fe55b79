package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/saberlab/internal/table"
)

func testFields() Fields {
	return Fields{
		Year:     "AÑO",
		Years:    []int{2020, 2021},
		Score:    "PUNTAJE GLOBAL",
		Computer: "COMPUTADOR EN VIVIENDA",
		Internet: "INTERNET EN VIVIENDA",
		Stratum:  "ESTRATO DE VIVIENDA",
	}
}

var testHeader = []string{"AÑO", "COMPUTADOR EN VIVIENDA", "INTERNET EN VIVIENDA", "ESTRATO DE VIVIENDA", "PUNTAJE GLOBAL", "--"}

func TestExtractStratum(t *testing.T) {
	v, ok := ExtractStratum("Estrato 3")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = ExtractStratum("Estrato 12 urbano 4")
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	_, ok = ExtractStratum("sin estrato")
	assert.False(t, ok)
}

func TestParseScore(t *testing.T) {
	v, ok := ParseScore(" 301.5 ")
	require.True(t, ok)
	assert.Equal(t, 301.5, v)

	for _, bad := range []string{"", "abc", "NaN", "+Inf", "300,5"} {
		_, ok := ParseScore(bad)
		assert.False(t, ok, bad)
	}
}

func TestPrepareDropsAndDerives(t *testing.T) {
	tbl := table.New("clean.csv", testHeader, [][]string{
		{"2020", "Si", " NO ", "Estrato 3", "310", "x"},
		{"2021", "no", "si", "Estrato 1", "250", "x"},
		{"2019", "si", "si", "Estrato 2", "280", "x"},      // wrong year
		{"2020", "tal vez", "si", "Estrato 2", "280", "x"}, // computer value
		{"2020", "si", "", "Estrato 2", "280", "x"},        // internet missing
		{"2020", "si", "no", "", "280", "x"},               // stratum missing
		{"2020", "si", "no", "sin estrato", "280", "x"},    // no digits
		{"2020", "si", "no", "Estrato 4", "N/A", "x"},      // score
		{"2021.0", "SI", "Si", "Estrato 6", " 400 ", "x"},
	})
	ds, st, err := Prepare(tbl, testFields(), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{310, 250, 400}, ds.Score)
	assert.Equal(t, []float64{1, 0, 1}, ds.Computer)
	assert.Equal(t, []float64{0, 1, 1}, ds.Internet)
	assert.Equal(t, []float64{3, 1, 6}, ds.Stratum)
	assert.Equal(t, PrepStats{
		Rows:        9,
		WrongYear:   1,
		BadComputer: 1,
		BadInternet: 1,
		Missing:     1,
		BadStratum:  1,
		BadScore:    1,
		Kept:        3,
	}, st)
	for i := range ds.Score {
		assert.Contains(t, []float64{0, 1}, ds.Computer[i])
		assert.Contains(t, []float64{0, 1}, ds.Internet[i])
	}
}

func TestPrepareMissingFields(t *testing.T) {
	tbl := table.New("clean.csv", []string{"AÑO", "PUNTAJE GLOBAL"}, nil)
	_, _, err := Prepare(tbl, testFields(), nil)
	var mf *MissingFieldsError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"COMPUTADOR EN VIVIENDA", "INTERNET EN VIVIENDA", "ESTRATO DE VIVIENDA"}, mf.Fields)
	assert.Contains(t, err.Error(), "clean.csv")
}

func TestPrepareNoObservations(t *testing.T) {
	tbl := table.New("clean.csv", testHeader, [][]string{
		{"2019", "si", "si", "Estrato 2", "280", "x"},
	})
	_, st, err := Prepare(tbl, testFields(), nil)
	require.ErrorIs(t, err, ErrNoObservations)
	assert.Equal(t, 1, st.WrongYear)
}
