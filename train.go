// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"context"
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Trainer fits a Learner to the noise prediction objective. A Trainer holds
// write access to its Learner and must not be used concurrently.
type Trainer struct {
	Schedule *Schedule
	Learner  Learner
	// Rand is a *rand.Rand rather than a Rand because Run hands it to
	// Source.Sample, so one seed reproduces both the data and the diffusion
	Rand *rand.Rand

	// Iteration counts completed calls to Step
	Iteration int
}

// Step performs one training step on a batch of clean samples and returns
// the mean squared error of the noise estimate, averaged over the batch
// and the dimensions, measured before the parameter update
func (tr *Trainer) Step(x0 *mat.Dense) (float64, error) {
	rows, cols := x0.Dims()
	if rows == 0 || cols == 0 {
		return 0, &ShapeError{What: "empty batch", Want: 1, Got: 0}
	}
	if cols != tr.Learner.Dim() {
		return 0, &ShapeError{What: "sample dimension", Want: tr.Learner.Dim(), Got: cols}
	}

	steps := tr.Schedule.Steps()
	t := make([]int, rows)
	normalized := make([]float64, rows)
	for i := range t {
		t[i] = tr.Rand.Intn(steps)
		normalized[i] = tr.Schedule.Normalize(t[i])
	}

	xt, noise, err := tr.Schedule.Corrupt(tr.Rand, x0, t)
	if err != nil {
		return 0, err
	}
	eps, err := predict(tr.Learner, xt, normalized)
	if err != nil {
		return 0, err
	}

	loss := MeanSquaredError(eps, noise)
	if _, ok := finite([]float64{loss}); !ok {
		return loss, &DivergenceError{Phase: "training", Step: tr.Iteration, Value: loss}
	}

	if err := tr.Learner.Update(xt, normalized, noise); err != nil {
		var divergence *DivergenceError
		if errors.As(err, &divergence) {
			divergence.Step = tr.Iteration
		}
		return loss, err
	}
	tr.Iteration++
	return loss, nil
}

// Run draws iterations batches of batchSize samples from source and trains
// on each. report, if not nil, is called after every step. Run stops between
// steps when ctx is done and returns ctx.Err().
func (tr *Trainer) Run(ctx context.Context, source Source, batchSize, iterations int, report func(iteration int, loss float64)) error {
	if source.Dim() != tr.Learner.Dim() {
		return &ShapeError{What: "source dimension", Want: tr.Learner.Dim(), Got: source.Dim()}
	}
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		x0, err := source.Sample(tr.Rand, batchSize)
		if err != nil {
			return err
		}
		loss, err := tr.Step(x0)
		if err != nil {
			return err
		}
		if report != nil {
			report(tr.Iteration-1, loss)
		}
	}
	return nil
}

// MeanSquaredError is the mean over every element of (a - b)^2
func MeanSquaredError(a, b *mat.Dense) float64 {
	rows, cols := a.Dims()
	var diff mat.Dense
	diff.Sub(a, b)
	sum := 0.0
	for i := 0; i < rows; i++ {
		for _, d := range diff.RawRowView(i) {
			sum += d * d
		}
	}
	return sum / float64(rows*cols)
}
