// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Approximator predicts the noise that was added to x at normalized time t.
// x has one sample per row; t has one entry per row in [0, 1).
type Approximator interface {
	// Dim is the sample dimensionality the approximator accepts
	Dim() int
	PredictNoise(x *mat.Dense, t []float64) (*mat.Dense, error)
}

// Learner is an Approximator with a first order parameter update
type Learner interface {
	Approximator
	// Update applies one gradient step reducing the squared error between
	// PredictNoise(x, t) and target
	Update(x *mat.Dense, t []float64, target *mat.Dense) error
}

// Source produces clean samples, one per row
type Source interface {
	Dim() int
	Sample(rng *rand.Rand, n int) (*mat.Dense, error)
}

func predict(a Approximator, x *mat.Dense, t []float64) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != a.Dim() {
		return nil, &ShapeError{What: "sample dimension", Want: a.Dim(), Got: cols}
	}
	eps, err := a.PredictNoise(x, t)
	if err != nil {
		return nil, err
	}
	r, c := eps.Dims()
	if r != rows {
		return nil, &ShapeError{What: "noise estimate rows", Want: rows, Got: r}
	}
	if c != cols {
		return nil, &ShapeError{What: "noise estimate columns", Want: cols, Got: c}
	}
	return eps, nil
}
