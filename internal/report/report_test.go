package report

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/model"
)

func fakeTrace() *model.Trace {
	r := rand.New(rand.NewPCG(5, 5))
	tr := &model.Trace{Names: model.ParamNames, Draws: make([][][]float64, 2), Acceptance: []float64{0.3, 0.25}}
	for c := range tr.Draws {
		for i := 0; i < 200; i++ {
			tr.Draws[c] = append(tr.Draws[c], []float64{
				300 + r.NormFloat64(),
				10 + r.NormFloat64(),
				5 + r.NormFloat64(),
				8 + r.NormFloat64(),
				math.Abs(20 + r.NormFloat64()),
			})
		}
	}
	return tr
}

func sampleReport(t *testing.T) (*Report, *model.Trace) {
	t.Helper()
	tr := fakeTrace()
	sum, err := model.Summarize(tr, 0.8)
	require.NoError(t, err)
	sum[0].RHat = math.NaN()
	r := New("data/clean.csv", config.Default())
	r.Prep = model.PrepStats{Rows: 10, WrongYear: 2, Kept: 8}
	r.Observations = 8
	r.Summary = sum
	r.Acceptance = tr.Acceptance
	r.Predictive = &model.Predictive{
		HDIProb: 0.8, Observations: 8, Draws: 400, Mean: 330, Low: 305, High: 355,
		Profiles: []model.ProfileInterval{{Computer: 1, Internet: 0, Stratum: 3, Count: 8, Mean: 330, Low: 305, High: 355}},
		Sample:   []float64{300, 310, 320, 330, 340, 350, 360},
	}
	r.Notes = []string{"alpha: r_hat 1.200 exceeds 1.01"}
	return r, tr
}

func TestMarkdownSections(t *testing.T) {
	r, _ := sampleReport(t)
	md := r.Markdown()
	for _, want := range []string{
		"[RUN]", "ID: " + r.RunID, "Input: data/clean.csv",
		"[DATA]", "Observations: 8", "Dropped: year 2",
		"[POSTERIOR SUMMARY]", "hdi_80_low", "| beta_estrato |",
		"[PREDICTIVE INTERVAL]", "Average 80% HDI: [305.000, 355.000]",
		"[SAMPLER]", "chain 1: acceptance 0.25",
		"[NOTES]", "r_hat 1.200",
	} {
		assert.Contains(t, md, want)
	}
	assert.Contains(t, md, "| nan |")
	assert.NotContains(t, md, "[FIGURES]")
}

func TestWriteManifest(t *testing.T) {
	r, _ := sampleReport(t)
	dir := t.TempDir()
	mdPath, jsonPath, err := r.Write(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_report.md"), mdPath)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Equal(t, r.Markdown(), string(md))

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, r.RunID, m["run_id"])
	summary := m["summary"].([]any)
	require.Len(t, summary, 5)
	first := summary[0].(map[string]any)
	assert.Equal(t, "alpha", first["name"])
	assert.Nil(t, first["r_hat"])
	assert.Equal(t, 42.0, m["sampler"].(map[string]any)["seed"])
	_, hasSample := m["predictive"].(map[string]any)["Sample"]
	assert.False(t, hasSample)
}

func TestSummaryTable(t *testing.T) {
	r, _ := sampleReport(t)
	out := r.SummaryTable()
	for _, name := range model.ParamNames {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "y (predictive)")
	assert.Contains(t, out, "hdi 80% low")
}

func TestPlotsWritePNG(t *testing.T) {
	r, tr := sampleReport(t)
	dir := t.TempDir()
	post := filepath.Join(dir, "posterior.png")
	require.NoError(t, PosteriorPlot(post, tr, r.Summary, 20))
	pred := filepath.Join(dir, "predictive.png")
	require.NoError(t, PredictivePlot(pred, r.Predictive, 5))

	for _, p := range []string{post, pred} {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")), p)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}

	assert.Error(t, PredictivePlot(filepath.Join(dir, "x.png"), &model.Predictive{}, 5))
	assert.Error(t, PosteriorPlot(filepath.Join(dir, "y.png"), tr, nil, 5))
}
