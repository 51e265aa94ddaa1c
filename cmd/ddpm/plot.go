// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func plotLoss(points plotter.XYs, path string) error {
	p := plot.New()

	p.Title.Text = "iterations vs cost"
	p.X.Label.Text = "iterations"
	p.Y.Label.Text = "cost"

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Length(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// plotSamples overlays the first two columns of the reference and generated samples
func plotSamples(reference, generated *mat.Dense, path string) error {
	p := plot.New()

	p.Title.Text = "reference vs generated"
	p.X.Label.Text = "x0"
	p.Y.Label.Text = "x1"

	for _, series := range []struct {
		name  string
		x     *mat.Dense
		color color.Color
	}{
		{"reference", reference, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}},
		{"generated", generated, color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}},
	} {
		scatter, err := plotter.NewScatter(columns(series.x))
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Radius = vg.Length(1)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = series.color
		p.Add(scatter)
		p.Legend.Add(series.name, scatter)
	}

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// columns projects samples onto their first two dimensions
func columns(x *mat.Dense) plotter.XYs {
	rows, cols := x.Dims()
	points := make(plotter.XYs, rows)
	for i := range points {
		points[i].X = x.At(i, 0)
		if cols > 1 {
			points[i].Y = x.At(i, 1)
		}
	}
	return points
}
