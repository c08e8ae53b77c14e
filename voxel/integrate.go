package voxel

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	occupiedProbability = 0.9
	freeProbability     = 0.2
)

// Sphere is an analytic surface used to populate layers without a sensor.
type Sphere struct {
	Center r3.Vector
	Radius float64
	Color  color.NRGBA
}

// SignedDistance returns the distance from p to the sphere surface, negative inside.
func (s Sphere) SignedDistance(p r3.Vector) float64 {
	return p.Sub(s.Center).Norm() - s.Radius
}

func (s Sphere) validate(margin float64) error {
	if !(s.Radius > 0) || math.IsInf(s.Radius, 0) {
		return errors.Errorf("sphere radius must be positive and finite, got %v", s.Radius)
	}
	for _, c := range []float64{s.Center.X, s.Center.Y, s.Center.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Errorf("sphere center must be finite, got %v", s.Center)
		}
	}
	if !(margin > 0) || math.IsInf(margin, 0) {
		return errors.Errorf("integration margin must be positive, got %v", margin)
	}
	return nil
}

// forEachVoxelNear visits every voxel of every block overlapping the
// bounding box of the sphere grown by margin, allocating blocks as needed.
func forEachVoxelNear[V any](l *Layer[V], s Sphere, margin float64, fn func(v *V, p r3.Vector)) {
	ext := s.Radius + margin
	minIdx := l.BlockIndexFromCoordinates(s.Center.Sub(r3.Vector{X: ext, Y: ext, Z: ext}))
	maxIdx := l.BlockIndexFromCoordinates(s.Center.Add(r3.Vector{X: ext, Y: ext, Z: ext}))
	for z := minIdx.Z; z <= maxIdx.Z; z++ {
		for y := minIdx.Y; y <= maxIdx.Y; y++ {
			for x := minIdx.X; x <= maxIdx.X; x++ {
				b := l.AllocateBlockByIndex(BlockIndex{X: x, Y: y, Z: z})
				for i := 0; i < b.NumVoxels(); i++ {
					fn(b.VoxelByLinearIndex(i), b.CoordinatesFromLinearIndex(i))
				}
			}
		}
	}
}

// IntegrateTsdfSphere writes the sphere into every voxel within truncation of
// its surface. Overlapping spheres are merged as a union.
func IntegrateTsdfSphere(l *Layer[TsdfVoxel], s Sphere, truncation float64) error {
	if err := s.validate(truncation); err != nil {
		return err
	}
	forEachVoxelNear(l, s, truncation, func(v *TsdfVoxel, p r3.Vector) {
		d := s.SignedDistance(p)
		if math.Abs(d) > truncation {
			return
		}
		if v.Observed() && v.Distance <= d {
			return
		}
		v.Distance = d
		v.Weight = 1
		v.Color = s.Color
	})
	return nil
}

// IntegrateEsdfSphere marks every voxel within maxDistance of the sphere
// surface observed and stores its signed distance.
func IntegrateEsdfSphere(l *Layer[EsdfVoxel], s Sphere, maxDistance float64) error {
	if err := s.validate(maxDistance); err != nil {
		return err
	}
	forEachVoxelNear(l, s, maxDistance, func(v *EsdfVoxel, p r3.Vector) {
		d := s.SignedDistance(p)
		if d > maxDistance {
			return
		}
		if v.Observed && v.Distance <= d {
			return
		}
		v.Distance = d
		v.Observed = true
	})
	return nil
}

// IntegrateOccupancySphere marks voxels inside the sphere occupied and voxels
// within margin outside of it free.
func IntegrateOccupancySphere(l *Layer[OccupancyVoxel], s Sphere, margin float64) error {
	if err := s.validate(margin); err != nil {
		return err
	}
	occupied := LogOddsFromProbability(occupiedProbability)
	free := LogOddsFromProbability(freeProbability)
	forEachVoxelNear(l, s, margin, func(v *OccupancyVoxel, p r3.Vector) {
		d := s.SignedDistance(p)
		if d > margin {
			return
		}
		logOdds := free
		if d <= 0 {
			logOdds = occupied
		}
		if v.Observed && v.ProbabilityLog >= logOdds {
			return
		}
		v.ProbabilityLog = logOdds
		v.Observed = true
	})
	return nil
}
