// Package pipeline chains the splitter, the year filter and the score model
// with typed values passed in-process, writing each intermediate table.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/filter"
	"github.com/KaramelBytes/saberlab/internal/model"
	"github.com/KaramelBytes/saberlab/internal/report"
	"github.com/KaramelBytes/saberlab/internal/split"
	"github.com/KaramelBytes/saberlab/internal/table"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

// ModelOptions controls the model stage.
type ModelOptions struct {
	// OutDir receives the report, manifest and figures.
	OutDir string
	Plots  bool
	// Progress is forwarded to the sampler.
	Progress func(steps int)
}

// Model fits the score model on a cleaned table and writes the report,
// manifest and, when enabled, the two figures into opt.OutDir.
func Model(ctx context.Context, t *table.Table, cfg *config.Global, opt ModelOptions, log *zap.Logger) (*report.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fields := model.Fields{
		Year:        cfg.Model.YearField,
		Years:       cfg.Model.Years,
		Score:       cfg.Model.ScoreField,
		Computer:    cfg.Model.ComputerField,
		Internet:    cfg.Model.InternetField,
		Stratum:     cfg.Model.StratumField,
		Affirmative: cfg.Model.Affirmative,
		Negative:    cfg.Model.Negative,
	}
	rep := report.New(t.Name, cfg)
	ds, prep, err := model.Prepare(t, fields, log)
	rep.Prep = prep
	if err != nil {
		return nil, err
	}
	rep.Observations = ds.Len()

	tr, err := model.Fit(ctx, ds, cfg.Priors, model.SamplerOptions{
		Draws:    cfg.Sampler.Draws,
		Tune:     cfg.Sampler.Tune,
		Chains:   cfg.Sampler.Chains,
		Seed:     cfg.Sampler.Seed,
		Progress: opt.Progress,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("sample posterior: %w", err)
	}
	rep.Acceptance = tr.Acceptance

	rep.Summary, err = model.Summarize(tr, cfg.HDIProb)
	if err != nil {
		return nil, fmt.Errorf("summarize posterior: %w", err)
	}
	rep.Notes = model.Diagnose(rep.Summary, tr)
	for _, n := range rep.Notes {
		log.Warn("convergence check", zap.String("note", n))
	}

	rep.Predictive, err = model.PosteriorPredictive(tr, ds, model.PredictiveOptions{
		Seed:          cfg.Sampler.Seed,
		HDIProb:       cfg.HDIProb,
		SampleColumns: cfg.Predictive.SampleColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("posterior predictive: %w", err)
	}
	log.Info("predictive interval",
		zap.Float64("low", rep.Predictive.Low),
		zap.Float64("high", rep.Predictive.High),
		zap.Int("profiles", len(rep.Predictive.Profiles)))

	if opt.Plots {
		post := filepath.Join(opt.OutDir, "posterior.png")
		if err := report.PosteriorPlot(post, tr, rep.Summary, cfg.Predictive.Bins); err != nil {
			return nil, err
		}
		pred := filepath.Join(opt.OutDir, "predictive.png")
		if err := report.PredictivePlot(pred, rep.Predictive, cfg.Predictive.Bins); err != nil {
			return nil, err
		}
		rep.Plots = []string{post, pred}
	}
	md, js, err := rep.Write(opt.OutDir)
	if err != nil {
		return nil, err
	}
	log.Info("report written", zap.String("markdown", md), zap.String("manifest", js), zap.String("run_id", rep.RunID))
	return rep, nil
}

// Options controls a full run.
type Options struct {
	Input  string
	OutDir string
	// Filter applies the year filter to the split table before modeling.
	Filter bool
	Plots  bool
	Read   table.ReadOptions
	// Progress is forwarded to the sampler.
	Progress func(steps int)
}

// Result lists what a full run produced.
type Result struct {
	Split        *split.Result
	SplitPath    string
	Filtered     *table.Table
	FilteredPath string
	Report       *report.Report
}

// Run splits the raw input, optionally filters it by year and fits the model.
func Run(ctx context.Context, cfg *config.Global, opt Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := table.Read(opt.Input, opt.Read)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	res.Split, err = split.Split(raw, split.Options{
		Schema:    cfg.Split.Schema,
		Separator: cfg.Split.Separator,
		Strict:    cfg.Split.Strict,
	}, log)
	if err != nil {
		return nil, err
	}
	res.SplitPath = utils.OutputPath("", opt.OutDir, opt.Input, "_split.csv")
	if err := table.WriteCSV(res.SplitPath, res.Split.Table); err != nil {
		return nil, err
	}
	log.Info("stage written", zap.String("stage", "split"), zap.String("path", res.SplitPath))

	clean := res.Split.Table
	if opt.Filter {
		res.Filtered, err = filter.ByYear(clean, cfg.Filter.Field, cfg.Filter.Year, log)
		if err != nil {
			return nil, err
		}
		res.FilteredPath = utils.OutputPath("", opt.OutDir, opt.Input, "_"+strconv.Itoa(cfg.Filter.Year)+".csv")
		if err := table.WriteCSV(res.FilteredPath, res.Filtered); err != nil {
			return nil, err
		}
		log.Info("stage written", zap.String("stage", "filter"), zap.String("path", res.FilteredPath))
		clean = res.Filtered
	}

	outDir := opt.OutDir
	if outDir == "" {
		outDir = filepath.Dir(opt.Input)
	}
	res.Report, err = Model(ctx, clean, cfg, ModelOptions{OutDir: outDir, Plots: opt.Plots, Progress: opt.Progress}, log)
	if err != nil {
		return nil, err
	}
	return res, nil
}
