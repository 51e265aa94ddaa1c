// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rand is the source of randomness used by the diffusion processes.
// *rand.Rand satisfies it.
type Rand interface {
	NormFloat64() float64
	Intn(n int) int
}

// Gaussian returns a rows x cols matrix of independent standard normal draws
func Gaussian(rng Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// Corrupt draws fresh noise and returns x_t = sqrt(a_bar) x0 + sqrt(1 - a_bar) noise
// for every row of x0 along with the noise. t holds one step index per row.
func (s *Schedule) Corrupt(rng Rand, x0 *mat.Dense, t []int) (xt, noise *mat.Dense, err error) {
	rows, cols := x0.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil, &ShapeError{What: "empty batch", Want: 1, Got: 0}
	}
	noise = Gaussian(rng, rows, cols)
	xt, err = s.Noised(x0, noise, t)
	if err != nil {
		return nil, nil, err
	}
	return xt, noise, nil
}

// Noised is the deterministic half of Corrupt: it applies the closed form
// forward equation with the given noise
func (s *Schedule) Noised(x0, noise *mat.Dense, t []int) (*mat.Dense, error) {
	if err := s.checkBatch(x0, noise, t); err != nil {
		return nil, err
	}
	rows, cols := x0.Dims()
	xt := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		aBar := s.AlphaBar[t[i]]
		signal, scale := math.Sqrt(aBar), math.Sqrt(1-aBar)
		x, n, out := x0.RawRowView(i), noise.RawRowView(i), xt.RawRowView(i)
		for j := range out {
			out[j] = signal*x[j] + scale*n[j]
		}
	}
	return xt, nil
}

// PredictClean inverts the forward equation given a noise estimate,
// returning (x_t - sqrt(1 - a_bar) eps) / sqrt(a_bar) for every row
func (s *Schedule) PredictClean(xt, eps *mat.Dense, t []int) (*mat.Dense, error) {
	if err := s.checkBatch(xt, eps, t); err != nil {
		return nil, err
	}
	rows, cols := xt.Dims()
	x0 := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		aBar := s.AlphaBar[t[i]]
		signal, scale := math.Sqrt(aBar), math.Sqrt(1-aBar)
		x, e, out := xt.RawRowView(i), eps.RawRowView(i), x0.RawRowView(i)
		for j := range out {
			out[j] = (x[j] - scale*e[j]) / signal
		}
	}
	return x0, nil
}

func (s *Schedule) checkBatch(x, noise *mat.Dense, t []int) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return &ShapeError{What: "empty batch", Want: 1, Got: 0}
	}
	nr, nc := noise.Dims()
	if nr != rows {
		return &ShapeError{What: "noise rows", Want: rows, Got: nr}
	}
	if nc != cols {
		return &ShapeError{What: "noise columns", Want: cols, Got: nc}
	}
	if len(t) != rows {
		return &ShapeError{What: "step indices", Want: rows, Got: len(t)}
	}
	for _, step := range t {
		if err := s.checkStep(step); err != nil {
			return err
		}
	}
	return nil
}
