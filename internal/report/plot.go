package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/saberlab/internal/model"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

var (
	barColor  = color.RGBA{R: 0x5B, G: 0x8D, B: 0xEF, A: 0xFF}
	hdiColor  = color.RGBA{R: 0xFF, G: 0x6B, B: 0x6B, A: 0xFF}
	meanColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}
)

// PosteriorPlot writes one density panel per parameter, each with its HDI
// marked along the base and a line at the posterior mean.
func PosteriorPlot(path string, tr *model.Trace, summary []model.ParamSummary, bins int) error {
	if len(summary) == 0 {
		return fmt.Errorf("posterior plot: no parameters")
	}
	row := make([]*plot.Plot, len(summary))
	for i, s := range summary {
		p, err := densityPanel(tr.Flat(i), s, bins)
		if err != nil {
			return fmt.Errorf("posterior plot %s: %w", s.Name, err)
		}
		row[i] = p
	}

	width := vg.Points(320) * vg.Length(len(row))
	img := vgimg.New(width, vg.Points(320))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(row),
		PadX:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return fmt.Errorf("encode posterior plot: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

func densityPanel(draws []float64, s model.ParamSummary, bins int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Name
	p.X.Label.Text = "value"
	p.Y.Label.Text = "density"

	h, err := plotter.NewHist(plotter.Values(draws), bins)
	if err != nil {
		return nil, err
	}
	h.Normalize(1)
	h.FillColor = barColor
	h.LineStyle.Width = 0
	p.Add(h)

	top := histTop(h)
	hdi, err := plotter.NewLine(plotter.XYs{{X: s.HDILow, Y: 0}, {X: s.HDIHigh, Y: 0}})
	if err != nil {
		return nil, err
	}
	hdi.LineStyle.Color = hdiColor
	hdi.LineStyle.Width = vg.Points(4)
	p.Add(hdi)
	p.Legend.Add(fmt.Sprintf("HDI [%.3g, %.3g]", s.HDILow, s.HDIHigh), hdi)

	mean, err := verticalLine(s.Mean, top, meanColor, false)
	if err != nil {
		return nil, err
	}
	p.Add(mean)
	p.Legend.Add(fmt.Sprintf("mean %.3g", s.Mean), mean)
	p.Legend.Top = true
	return p, nil
}

// PredictivePlot writes a histogram of the predictive sample with dashed
// lines at the averaged interval bounds.
func PredictivePlot(path string, pred *model.Predictive, bins int) error {
	if pred == nil || len(pred.Sample) == 0 {
		return fmt.Errorf("predictive plot: empty sample")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Posterior predictive (%d%% HDI)", int(math.Round(pred.HDIProb*100)))
	p.X.Label.Text = "score"
	p.Y.Label.Text = "density"

	h, err := plotter.NewHist(plotter.Values(pred.Sample), bins)
	if err != nil {
		return fmt.Errorf("predictive histogram: %w", err)
	}
	h.Normalize(1)
	h.FillColor = barColor
	p.Add(h)

	top := histTop(h)
	for _, b := range []struct {
		name string
		x    float64
	}{{"lower", pred.Low}, {"upper", pred.High}} {
		l, err := verticalLine(b.x, top, hdiColor, true)
		if err != nil {
			return fmt.Errorf("predictive bound: %w", err)
		}
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("%s %.1f", b.name, b.x), l)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(vg.Points(720), vg.Points(432), "png")
	if err != nil {
		return fmt.Errorf("render predictive plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode predictive plot: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

func histTop(h *plotter.Histogram) float64 {
	top := 0.0
	for _, b := range h.Bins {
		top = math.Max(top, b.Weight)
	}
	if top == 0 {
		top = 1
	}
	return top
}

func verticalLine(x, top float64, c color.Color, dashed bool) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1.5)
	if dashed {
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	}
	return l, nil
}
