// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ddpm implements a denoising diffusion probabilistic model for
// low dimensional continuous data: a linear noise schedule, the closed form
// forward corruption, the noise prediction training step and the reverse
// sampling recurrence.
package ddpm

import (
	"gonum.org/v1/gonum/floats"
)

// Schedule is the precomputed noise schedule for a fixed horizon of steps.
// It is immutable once built and may be shared by a trainer and a sampler.
type Schedule struct {
	// Beta is the per step noise variance
	Beta []float64
	// Alpha is 1 - Beta
	Alpha []float64
	// AlphaBar is the cumulative product of Alpha
	AlphaBar []float64
}

// NewSchedule builds a linear schedule of steps betas spaced between
// betaStart and betaEnd inclusive
func NewSchedule(steps int, betaStart, betaEnd float64) (*Schedule, error) {
	if steps < 1 {
		return nil, &ConfigurationError{Field: "steps", Value: float64(steps), Reason: "must be at least 1"}
	}
	if !(betaStart > 0 && betaStart < 1) {
		return nil, &ConfigurationError{Field: "beta start", Value: betaStart, Reason: "must be in (0, 1)"}
	}
	if !(betaEnd > 0 && betaEnd < 1) {
		return nil, &ConfigurationError{Field: "beta end", Value: betaEnd, Reason: "must be in (0, 1)"}
	}
	if betaStart >= betaEnd {
		return nil, &ConfigurationError{Field: "beta start", Value: betaStart, Reason: "must be less than beta end"}
	}

	s := &Schedule{
		Beta:     make([]float64, steps),
		Alpha:    make([]float64, steps),
		AlphaBar: make([]float64, steps),
	}
	if steps == 1 {
		s.Beta[0] = betaStart
	} else {
		floats.Span(s.Beta, betaStart, betaEnd)
	}

	product := 1.0
	for t, beta := range s.Beta {
		s.Alpha[t] = 1 - beta
		product *= s.Alpha[t]
		s.AlphaBar[t] = product
	}
	return s, nil
}

// Steps is the diffusion horizon T
func (s *Schedule) Steps() int {
	return len(s.Beta)
}

// Normalize maps a step index to t/T, the time input of the approximator
func (s *Schedule) Normalize(t int) float64 {
	return float64(t) / float64(len(s.Beta))
}

func (s *Schedule) checkStep(t int) error {
	if t < 0 || t >= len(s.Beta) {
		return &ShapeError{What: "step index out of range", Want: len(s.Beta), Got: t}
	}
	return nil
}
