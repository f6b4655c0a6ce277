package main

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotWeights writes two PNGs into outDir: a per-index scatter of the
// normalized weights and a histogram of their distribution.
func plotWeights(outDir string, normalized []float64) error {
	if err := ensureDir(outDir); err != nil {
		return err
	}

	// Scatter: normalized weight per instance index.
	p := plot.New()
	p.Title.Text = "Normalized instance weights"
	p.X.Label.Text = "instance"
	p.Y.Label.Text = "weight"

	pts := make(plotter.XYs, len(normalized))
	for i, w := range normalized {
		pts[i] = plotter.XY{X: float64(i), Y: w}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("weights", sc)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "weights_scatter.png")); err != nil {
		return err
	}

	// Histogram of the weight distribution.
	h := plot.New()
	h.Title.Text = "Weight distribution"
	h.X.Label.Text = "normalized weight"
	h.Y.Label.Text = "count"

	hist, err := plotter.NewHist(plotter.Values(normalized), 20)
	if err != nil {
		return err
	}
	hist.FillColor = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	h.Add(hist)
	h.Add(plotter.NewGrid())

	return h.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "weights_hist.png"))
}

// plotRMSECompare writes a two-bar chart comparing the holdout RMSE of the
// model trained on all instances against the one trained on the selection.
func plotRMSECompare(outDir string, full, selected float64) error {
	if err := ensureDir(outDir); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Holdout RMSE: full vs selected training set"
	p.Y.Label.Text = "RMSE"

	bars, err := plotter.NewBarChart(plotter.Values{full, selected}, vg.Points(40))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	p.Add(bars)
	p.NominalX("full", "selected")
	p.Add(plotter.NewGrid())

	return p.Save(6*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "rmse_compare.png"))
}

func ensureDir(path string) error {
	// Attempt to create directory if it doesn't exist (silently succeed if present).
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
