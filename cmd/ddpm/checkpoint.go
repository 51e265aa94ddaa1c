// Copyright 2022 The Diffusion Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"

	"github.com/pointlander/ddpm"
	"github.com/pointlander/ddpm/dataset"
	"github.com/pointlander/ddpm/mlp"
)

// Checkpoint is a trained model together with the schedule it was trained with
type Checkpoint struct {
	Steps     int
	BetaStart float64
	BetaEnd   float64
	Data      string
	Clusters  int
	Iteration int
	Model     mlp.Weights
}

func readCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening checkpoint file: %w", err)
	}
	defer f.Close()

	var checkpoint Checkpoint
	if err := gob.NewDecoder(f).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("while decoding checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func writeCheckpoint(path string, checkpoint *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(checkpoint); err != nil {
		return fmt.Errorf("while encoding checkpoint: %w", err)
	}
	return nil
}

// Schedule rebuilds the noise schedule the model was trained with
func (c *Checkpoint) Schedule() (*ddpm.Schedule, error) {
	return ddpm.NewSchedule(c.Steps, c.BetaStart, c.BetaEnd)
}

// loadSource resolves the --data flag: "mixture", "iris" or a path to a .npy file
func loadSource(data string, clusters int) (ddpm.Source, error) {
	switch data {
	case "mixture":
		return dataset.NewMixture(clusters, 2, .3)
	case "iris":
		return dataset.LoadIris()
	default:
		return dataset.LoadNPY(data)
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
