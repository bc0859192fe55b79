package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Split.Schema) != 26 || c.Split.Schema[1] != "AÑO" {
		t.Fatalf("schema = %#v", c.Split.Schema)
	}
	if c.Filter.Field != "PERIODO" || c.Filter.Year != 2020 {
		t.Fatalf("filter = %#v", c.Filter)
	}
	if c.Sampler.Draws != 1000 || c.Sampler.Tune != 500 || c.Sampler.Seed != 42 {
		t.Fatalf("sampler = %#v", c.Sampler)
	}
	if c.HDIProb != 0.8 {
		t.Fatalf("hdi_prob = %v", c.HDIProb)
	}
	if len(c.Model.Years) != 2 || c.Model.Years[0] != 2020 || c.Model.Years[1] != 2021 {
		t.Fatalf("years = %#v", c.Model.Years)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SABERLAB_SAMPLER_SEED", "7")
	t.Setenv("SABERLAB_FILTER_YEAR", "2021")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Sampler.Seed != 7 || c.Filter.Year != 2021 {
		t.Fatalf("env overrides not applied: seed=%d year=%d", c.Sampler.Seed, c.Filter.Year)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	c := Default()
	if err := Set(c, "sampler.draws", "250"); err != nil {
		t.Fatalf("Set draws: %v", err)
	}
	if err := Set(c, "model.years", "2019, 2020"); err != nil {
		t.Fatalf("Set years: %v", err)
	}
	if err := Save(c, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Sampler.Draws != 250 {
		t.Fatalf("draws = %d", got.Sampler.Draws)
	}
	if len(got.Model.Years) != 2 || got.Model.Years[0] != 2019 {
		t.Fatalf("years = %#v", got.Model.Years)
	}
	if got.Split.Schema[0] != "GÉNERO" {
		t.Fatalf("schema not preserved: %#v", got.Split.Schema[:3])
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	c := Default()
	c.HDIProb = 1.5
	c.Sampler.Chains = 0
	c.Priors.SigmaSD = -1
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"hdi_prob", "sampler.chains", "priors.sigma_sd"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestSetRejectsUnknownAndInvalid(t *testing.T) {
	c := Default()
	if err := Set(c, "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if err := Set(c, "sampler.draws", "many"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := Set(c, "hdi_prob", "0"); err == nil {
		t.Fatalf("expected validation error for hdi_prob=0")
	}
}
