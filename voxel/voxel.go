// Package voxel defines a sparse, block based voxel layer and the voxel
// payloads stored in it.
//
// A Layer is made of cubic Blocks of VoxelsPerSide^3 voxels each. Blocks are
// addressed by a BlockIndex and only exist once allocated. Voxels never
// written keep the zero value of their type, so every payload type has a
// validity field that readers are expected to check.
package voxel

import (
	"image/color"
	"math"
)

// TsdfVoxel holds a truncated signed distance sample.
type TsdfVoxel struct {
	Distance float64
	Weight   float64
	Color    color.NRGBA
}

// Observed returns whether the voxel has received any measurement.
func (v TsdfVoxel) Observed() bool {
	return v.Weight > 0
}

// EsdfVoxel holds a euclidean signed distance sample.
type EsdfVoxel struct {
	Distance float64
	Observed bool
}

// OccupancyVoxel holds an occupancy probability in log-odds form.
type OccupancyVoxel struct {
	ProbabilityLog float64
	Observed       bool
}

// LogOddsFromProbability converts a probability in (0, 1) to log-odds.
func LogOddsFromProbability(p float64) float64 {
	return math.Log(p / (1 - p))
}

// ProbabilityFromLogOdds converts log-odds back to a probability.
func ProbabilityFromLogOdds(l float64) float64 {
	return 1 - 1/(1+math.Exp(l))
}
