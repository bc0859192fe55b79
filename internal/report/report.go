// Package report renders model results as a Markdown report, a JSON run
// manifest, a terminal table and PNG figures.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/model"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

// Report collects everything one model run produced.
type Report struct {
	RunID        string
	CreatedAt    time.Time
	Input        string
	Priors       config.Priors
	Sampler      config.Sampler
	HDIProb      float64
	Prep         model.PrepStats
	Observations int
	Summary      []model.ParamSummary
	Acceptance   []float64
	Predictive   *model.Predictive
	Notes        []string
	Plots        []string
}

// New starts a report for the given input file with a fresh run ID.
func New(input string, cfg *config.Global) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Input:     input,
		Priors:    cfg.Priors,
		Sampler:   cfg.Sampler,
		HDIProb:   cfg.HDIProb,
	}
}

// Markdown renders a compact report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[RUN]\n")
	b.WriteString(fmt.Sprintf("ID: %s\n", r.RunID))
	b.WriteString(fmt.Sprintf("Created: %s\n", r.CreatedAt.Format(time.RFC3339)))
	if r.Input != "" {
		b.WriteString(fmt.Sprintf("Input: %s\n", r.Input))
	}
	b.WriteString(fmt.Sprintf("Sampler: %d chains x %d draws (tune %d), seed %d\n",
		r.Sampler.Chains, r.Sampler.Draws, r.Sampler.Tune, r.Sampler.Seed))
	p := r.Priors
	b.WriteString(fmt.Sprintf("Priors: alpha~N(%g,%g), beta_compu~N(0,%g), beta_internet~N(0,%g), beta_estrato~N(0,%g), sigma~HalfN(%g)\n\n",
		p.AlphaMu, p.AlphaSD, p.BetaComputerSD, p.BetaInternetSD, p.BetaStratumSD, p.SigmaSD))

	b.WriteString("[DATA]\n")
	st := r.Prep
	b.WriteString(fmt.Sprintf("Rows read: %d\n", st.Rows))
	b.WriteString(fmt.Sprintf("Observations: %d\n", st.Kept))
	b.WriteString(fmt.Sprintf("Dropped: year %d, computer %d, internet %d, missing %d, stratum %d, score %d\n\n",
		st.WrongYear, st.BadComputer, st.BadInternet, st.Missing, st.BadStratum, st.BadScore))

	pct := int(math.Round(r.HDIProb * 100))
	b.WriteString("[POSTERIOR SUMMARY]\n")
	b.WriteString(fmt.Sprintf("| parameter | mean | sd | hdi_%d_low | hdi_%d_high | mcse | ess | r_hat |\n", pct, pct))
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, s := range r.Summary {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			s.Name, num(s.Mean), num(s.SD), num(s.HDILow), num(s.HDIHigh), num(s.MCSE), count(s.ESS), num(s.RHat)))
	}

	if pr := r.Predictive; pr != nil {
		b.WriteString("\n[PREDICTIVE INTERVAL]\n")
		b.WriteString(fmt.Sprintf("Average %d%% HDI: [%s, %s] (mean %s) over %d observations, %d draws each\n",
			pct, num(pr.Low), num(pr.High), num(pr.Mean), pr.Observations, pr.Draws))
		if len(pr.Profiles) > 0 {
			b.WriteString("| compu | internet | estrato | n | mean | low | high |\n")
			b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
			for _, pi := range pr.Profiles {
				b.WriteString(fmt.Sprintf("| %g | %g | %g | %d | %s | %s | %s |\n",
					pi.Computer, pi.Internet, pi.Stratum, pi.Count, num(pi.Mean), num(pi.Low), num(pi.High)))
			}
		}
	}

	if len(r.Acceptance) > 0 {
		b.WriteString("\n[SAMPLER]\n")
		for c, a := range r.Acceptance {
			b.WriteString(fmt.Sprintf("- chain %d: acceptance %.2f\n", c, a))
		}
	}
	if len(r.Plots) > 0 {
		b.WriteString("\n[FIGURES]\n")
		for _, p := range r.Plots {
			b.WriteString(fmt.Sprintf("- %s\n", filepath.Base(p)))
		}
	}
	if len(r.Notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range r.Notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "nan"
	}
	return fmt.Sprintf("%.3f", v)
}

func count(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "nan"
	}
	return fmt.Sprintf("%.0f", v)
}

// number marshals non-finite values as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

type paramJSON struct {
	Name    string `json:"name"`
	Mean    number `json:"mean"`
	SD      number `json:"sd"`
	HDILow  number `json:"hdi_low"`
	HDIHigh number `json:"hdi_high"`
	MCSE    number `json:"mcse"`
	ESS     number `json:"ess"`
	RHat    number `json:"r_hat"`
}

// Manifest is the machine-readable record of a run.
type Manifest struct {
	RunID        string            `json:"run_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Input        string            `json:"input,omitempty"`
	Priors       config.Priors     `json:"priors"`
	Sampler      config.Sampler    `json:"sampler"`
	HDIProb      float64           `json:"hdi_prob"`
	Prep         model.PrepStats   `json:"prep"`
	Summary      []paramJSON       `json:"summary"`
	Acceptance   []float64         `json:"acceptance,omitempty"`
	Predictive   *model.Predictive `json:"predictive,omitempty"`
	Notes        []string          `json:"notes,omitempty"`
	Plots        []string          `json:"plots,omitempty"`
	Observations int               `json:"observations"`
}

// Manifest converts the report to its JSON form.
func (r *Report) Manifest() Manifest {
	m := Manifest{
		RunID:        r.RunID,
		CreatedAt:    r.CreatedAt,
		Input:        r.Input,
		Priors:       r.Priors,
		Sampler:      r.Sampler,
		HDIProb:      r.HDIProb,
		Prep:         r.Prep,
		Acceptance:   r.Acceptance,
		Predictive:   r.Predictive,
		Notes:        r.Notes,
		Plots:        r.Plots,
		Observations: r.Observations,
	}
	for _, s := range r.Summary {
		m.Summary = append(m.Summary, paramJSON{
			Name:    s.Name,
			Mean:    number(s.Mean),
			SD:      number(s.SD),
			HDILow:  number(s.HDILow),
			HDIHigh: number(s.HDIHigh),
			MCSE:    number(s.MCSE),
			ESS:     number(s.ESS),
			RHat:    number(s.RHat),
		})
	}
	return m
}

// Write stores the Markdown report and JSON manifest in dir as
// model_report.md and model_report.json.
func (r *Report) Write(dir string) (mdPath, jsonPath string, err error) {
	mdPath = filepath.Join(dir, "model_report.md")
	jsonPath = filepath.Join(dir, "model_report.json")
	if err := utils.SafeWriteFile(mdPath, []byte(r.Markdown())); err != nil {
		return "", "", fmt.Errorf("write report: %w", err)
	}
	if err := utils.WriteJSON(jsonPath, r.Manifest()); err != nil {
		return "", "", fmt.Errorf("write manifest: %w", err)
	}
	return mdPath, jsonPath, nil
}
