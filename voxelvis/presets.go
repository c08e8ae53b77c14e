package voxelvis

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxelvis/pointcloud"
	"go.viam.com/voxelvis/ros"
	"go.viam.com/voxelvis/voxel"
)

// MinTsdfWeight is the weight a TSDF voxel needs before its distance is trusted.
const MinTsdfWeight = 1e-3

// NearSurfaceByDistance accepts observed TSDF voxels strictly closer than
// threshold to the surface, with the voxel's own color.
func NearSurfaceByDistance(threshold float64) ColorFunc[voxel.TsdfVoxel] {
	return func(v *voxel.TsdfVoxel, _ r3.Vector) (color.NRGBA, bool) {
		if v.Weight > 0 && math.Abs(v.Distance) < threshold {
			return v.Color, true
		}
		return color.NRGBA{}, false
	}
}

// TsdfDistanceAsIntensity emits the distance of every TSDF voxel with enough weight.
func TsdfDistanceAsIntensity(v *voxel.TsdfVoxel, _ r3.Vector) (float64, bool) {
	if v.Weight > MinTsdfWeight {
		return v.Distance, true
	}
	return 0, false
}

// EsdfDistanceAsIntensity emits the distance of every observed ESDF voxel.
func EsdfDistanceAsIntensity(v *voxel.EsdfVoxel, _ r3.Vector) (float64, bool) {
	if v.Observed {
		return v.Distance, true
	}
	return 0, false
}

// OccupiedBySign accepts TSDF voxels with enough weight lying on or behind the surface.
func OccupiedBySign(v *voxel.TsdfVoxel, _ r3.Vector) bool {
	return v.Weight > MinTsdfWeight && v.Distance <= 0
}

// TsdfDistanceNearSurface emits the distance of TSDF voxels with enough
// weight that are strictly closer than threshold to the surface.
func TsdfDistanceNearSurface(threshold float64) IntensityFunc[voxel.TsdfVoxel] {
	return func(v *voxel.TsdfVoxel, _ r3.Vector) (float64, bool) {
		if v.Weight > MinTsdfWeight && math.Abs(v.Distance) < threshold {
			return v.Distance, true
		}
		return 0, false
	}
}

// FreeEsdf emits the distance of observed ESDF voxels at least minDistance
// away from any obstacle.
func FreeEsdf(minDistance float64) IntensityFunc[voxel.EsdfVoxel] {
	return func(v *voxel.EsdfVoxel, _ r3.Vector) (float64, bool) {
		if v.Observed && v.Distance >= minDistance {
			return v.Distance, true
		}
		return 0, false
	}
}

// Axis selects a coordinate axis.
type Axis int

// The three axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis parses "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	default:
		return AxisZ, errors.Errorf("unknown axis %q", s)
	}
}

func (a Axis) of(p r3.Vector) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	default:
		return p.Z
	}
}

// EsdfSlice emits the distance of observed ESDF voxels whose center lies
// within half a voxel of the plane at level along axis.
func EsdfSlice(axis Axis, level, voxelSize float64) IntensityFunc[voxel.EsdfVoxel] {
	half := voxelSize / 2
	return func(v *voxel.EsdfVoxel, coord r3.Vector) (float64, bool) {
		if v.Observed && math.Abs(axis.of(coord)-level) < half {
			return v.Distance, true
		}
		return 0, false
	}
}

// OccupiedByProbability accepts observed occupancy voxels more likely than
// threshold to be occupied.
func OccupiedByProbability(threshold float64) OccupancyFunc[voxel.OccupancyVoxel] {
	logOdds := voxel.LogOddsFromProbability(threshold)
	return func(v *voxel.OccupancyVoxel, _ r3.Vector) bool {
		return v.Observed && v.ProbabilityLog > logOdds
	}
}

// SurfacePointCloudFromTsdfLayer colors the voxels closer than surfaceDistance to the surface.
func SurfacePointCloudFromTsdfLayer(
	layer voxel.LayerReader[voxel.TsdfVoxel],
	surfaceDistance float64,
	pc pointcloud.PointCloud,
) error {
	return ColorPointCloudFromLayer(layer, NearSurfaceByDistance(surfaceDistance), pc)
}

// DistancePointCloudFromTsdfLayer values every weighted TSDF voxel with its distance.
func DistancePointCloudFromTsdfLayer(layer voxel.LayerReader[voxel.TsdfVoxel], pc pointcloud.PointCloud) error {
	return IntensityPointCloudFromLayer(layer, TsdfDistanceAsIntensity, pc)
}

// DistancePointCloudFromEsdfLayer values every observed ESDF voxel with its distance.
func DistancePointCloudFromEsdfLayer(layer voxel.LayerReader[voxel.EsdfVoxel], pc pointcloud.PointCloud) error {
	return IntensityPointCloudFromLayer(layer, EsdfDistanceAsIntensity, pc)
}

// SurfaceDistancePointCloudFromTsdfLayer values TSDF voxels near the surface with their distance.
func SurfaceDistancePointCloudFromTsdfLayer(
	layer voxel.LayerReader[voxel.TsdfVoxel],
	surfaceDistance float64,
	pc pointcloud.PointCloud,
) error {
	return IntensityPointCloudFromLayer(layer, TsdfDistanceNearSurface(surfaceDistance), pc)
}

// FreePointCloudFromEsdfLayer values ESDF voxels at least minDistance from obstacles.
func FreePointCloudFromEsdfLayer(
	layer voxel.LayerReader[voxel.EsdfVoxel],
	minDistance float64,
	pc pointcloud.PointCloud,
) error {
	return IntensityPointCloudFromLayer(layer, FreeEsdf(minDistance), pc)
}

// SlicePointCloudFromEsdfLayer values ESDF voxels on one plane of the layer.
func SlicePointCloudFromEsdfLayer(
	layer voxel.LayerReader[voxel.EsdfVoxel],
	axis Axis,
	level float64,
	pc pointcloud.PointCloud,
) error {
	if layer == nil {
		return invalidArgument("layer")
	}
	return IntensityPointCloudFromLayer(layer, EsdfSlice(axis, level, layer.VoxelSize()), pc)
}

// OccupancyBlocksFromTsdfLayer draws a cube for every TSDF voxel on or behind the surface.
func OccupancyBlocksFromTsdfLayer(
	layer voxel.LayerReader[voxel.TsdfVoxel],
	frameID string,
	markers *ros.MarkerArray,
	opts ...MarkerOption,
) error {
	return OccupancyBlocksFromLayer(layer, OccupiedBySign, frameID, markers, opts...)
}

// OccupancyBlocksFromOccupancyLayer draws a cube for every voxel more likely
// than threshold to be occupied.
func OccupancyBlocksFromOccupancyLayer(
	layer voxel.LayerReader[voxel.OccupancyVoxel],
	threshold float64,
	frameID string,
	markers *ros.MarkerArray,
	opts ...MarkerOption,
) error {
	return OccupancyBlocksFromLayer(layer, OccupiedByProbability(threshold), frameID, markers, opts...)
}
