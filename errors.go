// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddpm

import (
	"fmt"
	"math"
)

// ConfigurationError is returned for invalid schedule parameters
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ddpm: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// DivergenceError is returned when a loss or a sample becomes non-finite
type DivergenceError struct {
	// Phase is either "training" or "sampling"
	Phase string
	// Step is the training iteration or the diffusion step index
	Step  int
	Value float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("ddpm: %s diverged at step %d: %v", e.Phase, e.Step, e.Value)
}

// ShapeError is returned when a batch does not match the expected dimensions
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("ddpm: %s: want %d, got %d", e.What, e.Want, e.Got)
}

// finite returns the first non-finite value in x and false, or 0 and true
func finite(x []float64) (float64, bool) {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v, false
		}
	}
	return 0, true
}
