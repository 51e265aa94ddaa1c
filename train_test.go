// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"
)

// constantSource always returns copies of the same sample
type constantSource struct {
	sample []float64
}

func (c constantSource) Dim() int {
	return len(c.sample)
}

func (c constantSource) Sample(_ *rand.Rand, n int) (*mat.Dense, error) {
	x := mat.NewDense(n, len(c.sample), nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, c.sample)
	}
	return x, nil
}

func TestTrainerStep(t *testing.T) {
	s := mustSchedule(t)
	l := &learner{funcApproximator: zeroApproximator(2)}
	trainer := &Trainer{Schedule: s, Learner: l, Rand: rand.New(rand.NewSource(1))}

	x0, _ := constantSource{[]float64{1, -1}}.Sample(nil, 32)
	loss, err := trainer.Step(x0)
	if err != nil {
		t.Fatal(err)
	}
	if trainer.Iteration != 1 || len(l.targets) != 1 {
		t.Fatalf("got %d iterations and %d updates, want 1 and 1", trainer.Iteration, len(l.targets))
	}

	noise := l.targets[0]
	if want := MeanSquaredError(mat.NewDense(32, 2, nil), noise); loss != want {
		t.Errorf("loss = %v, want the mean squared noise %v", loss, want)
	}

	steps := make([]int, len(l.ts[0]))
	for i, tn := range l.ts[0] {
		if tn < 0 || tn >= 1 {
			t.Fatalf("normalized step %v out of [0, 1)", tn)
		}
		steps[i] = int(math.Round(tn * float64(s.Steps())))
	}
	want, err := s.Noised(x0, noise, steps)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(l.xs[0].RawMatrix().Data, want.RawMatrix().Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("Update input is not the corrupted batch; diff (-got +want)\n%s", diff)
	}
}

func TestTrainerSamplesEveryStep(t *testing.T) {
	s, err := NewSchedule(10, 0.001, 0.02)
	if err != nil {
		t.Fatal(err)
	}
	l := &learner{funcApproximator: zeroApproximator(1)}
	trainer := &Trainer{Schedule: s, Learner: l, Rand: rand.New(rand.NewSource(1))}
	if err := trainer.Run(context.Background(), constantSource{[]float64{0.5}}, 64, 50, nil); err != nil {
		t.Fatal(err)
	}

	counts := make([]int, s.Steps())
	total := 0
	for _, ts := range l.ts {
		for _, tn := range ts {
			counts[int(math.Round(tn*float64(s.Steps())))]++
			total++
		}
	}
	for step, count := range counts {
		// expected count is 320 with a standard deviation of about 17
		if want := total / s.Steps(); math.Abs(float64(count-want)) > 100 {
			t.Errorf("step %d drawn %d times, want about %d", step, count, want)
		}
	}
}

func TestTrainerRun(t *testing.T) {
	l := &learner{funcApproximator: zeroApproximator(2)}
	trainer := &Trainer{Schedule: mustSchedule(t), Learner: l, Rand: rand.New(rand.NewSource(1))}

	var reported []int
	report := func(iteration int, loss float64) {
		if loss <= 0 {
			t.Errorf("iteration %d: loss %v, want positive", iteration, loss)
		}
		reported = append(reported, iteration)
	}
	if err := trainer.Run(context.Background(), constantSource{[]float64{1, 2}}, 8, 5, report); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(reported, []int{0, 1, 2, 3, 4}); diff != "" {
		t.Errorf("Wrong reports; diff (-got +want)\n%s", diff)
	}
	if trainer.Iteration != 5 {
		t.Errorf("Iteration = %d, want 5", trainer.Iteration)
	}
}

func TestTrainerRunCancelled(t *testing.T) {
	l := &learner{funcApproximator: zeroApproximator(2)}
	trainer := &Trainer{Schedule: mustSchedule(t), Learner: l, Rand: rand.New(rand.NewSource(1))}

	ctx, cancel := context.WithCancel(context.Background())
	report := func(iteration int, _ float64) {
		if iteration == 2 {
			cancel()
		}
	}
	err := trainer.Run(ctx, constantSource{[]float64{1, 2}}, 8, 100, report)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want context.Canceled", err)
	}
	if trainer.Iteration != 3 || len(l.targets) != 3 {
		t.Errorf("got %d iterations and %d updates, want 3 and 3", trainer.Iteration, len(l.targets))
	}
}

func TestTrainerDivergence(t *testing.T) {
	l := &learner{funcApproximator: &funcApproximator{
		dim: 2,
		predict: func(x *mat.Dense, _ []float64) *mat.Dense {
			rows, cols := x.Dims()
			eps := mat.NewDense(rows, cols, nil)
			eps.Set(rows-1, cols-1, math.NaN())
			return eps
		},
	}}
	trainer := &Trainer{Schedule: mustSchedule(t), Learner: l, Rand: rand.New(rand.NewSource(1))}

	x0, _ := constantSource{[]float64{1, 2}}.Sample(nil, 4)
	_, err := trainer.Step(x0)
	var divergence *DivergenceError
	if !errors.As(err, &divergence) {
		t.Fatalf("got error %v, want a DivergenceError", err)
	}
	if divergence.Phase != "training" {
		t.Errorf("phase = %q, want training", divergence.Phase)
	}
	if len(l.targets) != 0 || trainer.Iteration != 0 {
		t.Errorf("parameters were updated after divergence")
	}
}

func TestTrainerReportsDivergingUpdateAtIteration(t *testing.T) {
	l := &learner{
		funcApproximator: zeroApproximator(2),
		fail:             &DivergenceError{Phase: "training", Step: 99, Value: math.Inf(1)},
		failAt:           2,
	}
	trainer := &Trainer{Schedule: mustSchedule(t), Learner: l, Rand: rand.New(rand.NewSource(1))}

	err := trainer.Run(context.Background(), constantSource{[]float64{1, 2}}, 4, 10, nil)
	var divergence *DivergenceError
	if !errors.As(err, &divergence) {
		t.Fatalf("got error %v, want a DivergenceError", err)
	}
	if divergence.Step != 2 {
		t.Errorf("divergence step = %d, want the trainer iteration 2", divergence.Step)
	}
	if trainer.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2", trainer.Iteration)
	}
}

func TestTrainerRejectsShapes(t *testing.T) {
	l := &learner{funcApproximator: zeroApproximator(2)}
	trainer := &Trainer{Schedule: mustSchedule(t), Learner: l, Rand: rand.New(rand.NewSource(1))}

	var shapeErr *ShapeError
	if _, err := trainer.Step(mat.NewDense(4, 3, nil)); !errors.As(err, &shapeErr) {
		t.Errorf("got error %v, want a ShapeError for the wrong dimension", err)
	}
	if err := trainer.Run(context.Background(), constantSource{[]float64{1}}, 4, 1, nil); !errors.As(err, &shapeErr) {
		t.Errorf("got error %v, want a ShapeError for the wrong source dimension", err)
	}
	if len(l.targets) != 0 {
		t.Errorf("parameters were updated for a rejected batch")
	}
}

func TestMeanSquaredError(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 0, 0, 4})
	if got, want := MeanSquaredError(a, b), (4.0+9.0)/4; got != want {
		t.Errorf("MeanSquaredError = %v, want %v", got, want)
	}
}
