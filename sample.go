// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reverse applies the deterministic reverse mean update for step t in place:
// x <- (x - beta/sqrt(1 - a_bar) eps) / sqrt(alpha)
func (s *Schedule) Reverse(x, eps *mat.Dense, t int) error {
	if err := s.checkStep(t); err != nil {
		return err
	}
	rows, cols := x.Dims()
	r, c := eps.Dims()
	if r != rows {
		return &ShapeError{What: "noise estimate rows", Want: rows, Got: r}
	}
	if c != cols {
		return &ShapeError{What: "noise estimate columns", Want: cols, Got: c}
	}
	coef1 := 1 / math.Sqrt(s.Alpha[t])
	coef2 := s.Beta[t] / math.Sqrt(1-s.AlphaBar[t])
	for i := 0; i < rows; i++ {
		row, e := x.RawRowView(i), eps.RawRowView(i)
		for j := range row {
			row[j] = coef1 * (row[j] - coef2*e[j])
		}
	}
	return nil
}

// Sampler generates samples by running the reverse process from pure noise.
// It only reads its Approximator.
type Sampler struct {
	Schedule     *Schedule
	Approximator Approximator
	Rand         Rand

	// Trace, if not nil, observes the sample after the transition of each step
	Trace func(t int, x *mat.Dense)
}

// Sample returns n samples, one per row. The loop runs t from T-1 down to 0
// and injects sqrt(beta_t) scaled noise after every step except t = 0.
func (s *Sampler) Sample(ctx context.Context, n int) (*mat.Dense, error) {
	if n < 1 {
		return nil, &ShapeError{What: "number of samples", Want: 1, Got: n}
	}
	dim := s.Approximator.Dim()
	if dim < 1 {
		return nil, &ShapeError{What: "sample dimension", Want: 1, Got: dim}
	}
	x := Gaussian(s.Rand, n, dim)
	normalized := make([]float64, n)

	for t := s.Schedule.Steps() - 1; t >= 0; t-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tn := s.Schedule.Normalize(t)
		for i := range normalized {
			normalized[i] = tn
		}

		eps, err := predict(s.Approximator, x, normalized)
		if err != nil {
			return nil, err
		}
		if err := s.Schedule.Reverse(x, eps, t); err != nil {
			return nil, err
		}
		if t > 0 {
			sigma := math.Sqrt(s.Schedule.Beta[t])
			for i := 0; i < n; i++ {
				row := x.RawRowView(i)
				for j := range row {
					row[j] += sigma * s.Rand.NormFloat64()
				}
			}
		}

		for i := 0; i < n; i++ {
			if v, ok := finite(x.RawRowView(i)); !ok {
				return nil, &DivergenceError{Phase: "sampling", Step: t, Value: v}
			}
		}
		if s.Trace != nil {
			s.Trace(t, x)
		}
	}
	return x, nil
}
