// Package voxelvis turns the voxels of a layer into things that can be
// drawn: colored point clouds, intensity point clouds and cube list markers.
//
// Every extraction walks the layer the same way. Blocks are visited in the
// order the layer lists them and the voxels of a block in ascending linear
// index. Each voxel and its center are handed to a classifier which decides
// whether the voxel is emitted. Classifiers are called for every slot,
// including slots that never received data, so they must check validity
// themselves. Classifiers receive a pointer into the layer and must not
// modify the voxel.
//
// Every accepted voxel is emitted, so a block listed twice is emitted twice.
// The order of the block listing is whatever the layer returns. voxel.Layer
// lists blocks in allocation order, other LayerReaders may not.
package voxelvis

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxelvis/colormap"
	"go.viam.com/voxelvis/pointcloud"
	"go.viam.com/voxelvis/ros"
	"go.viam.com/voxelvis/voxel"
)

// ErrInvalidArgument is returned, wrapped, when a layer, classifier or sink is missing.
var ErrInvalidArgument = errors.New("invalid argument")

// OccupiedVoxelsNamespace is the namespace of markers built by OccupancyBlocksFromLayer.
const OccupiedVoxelsNamespace = "occupied_voxels"

// ColorFunc decides whether a voxel is emitted and with which color. v points
// into the layer's storage and must only be read.
type ColorFunc[V any] func(v *V, coord r3.Vector) (color.NRGBA, bool)

// IntensityFunc decides whether a voxel is emitted and with which intensity.
// v must only be read.
type IntensityFunc[V any] func(v *V, coord r3.Vector) (float64, bool)

// OccupancyFunc decides whether a voxel is drawn as an occupied cube.
// v must only be read.
type OccupancyFunc[V any] func(v *V, coord r3.Vector) bool

func invalidArgument(what string) error {
	return errors.Wrapf(ErrInvalidArgument, "%s is nil", what)
}

func checkArgs[V any](layer voxel.LayerReader[V], fnIsNil, sinkIsNil bool) error {
	if layer == nil {
		return invalidArgument("layer")
	}
	if fnIsNil {
		return invalidArgument("classifier")
	}
	if sinkIsNil {
		return invalidArgument("sink")
	}
	return nil
}

// forEachVoxel calls fn for every voxel slot of every listed block. Listed
// blocks the layer cannot return are skipped.
func forEachVoxel[V any](layer voxel.LayerReader[V], fn func(v *V, coord r3.Vector)) {
	for _, idx := range layer.AllocatedBlocks() {
		block, ok := layer.BlockByIndex(idx)
		if !ok {
			continue
		}
		for i := 0; i < block.NumVoxels(); i++ {
			fn(block.VoxelByLinearIndex(i), block.CoordinatesFromLinearIndex(i))
		}
	}
}

// ColorPointCloudFromLayer clears pc and fills it with the center of every
// voxel fn accepts, colored by fn.
func ColorPointCloudFromLayer[V any](layer voxel.LayerReader[V], fn ColorFunc[V], pc pointcloud.PointCloud) error {
	if err := checkArgs(layer, fn == nil, pc == nil); err != nil {
		return err
	}
	pc.Clear()
	forEachVoxel(layer, func(v *V, coord r3.Vector) {
		if c, ok := fn(v, coord); ok {
			pc.Append(coord, pointcloud.NewColoredData(c))
		}
	})
	return nil
}

// IntensityPointCloudFromLayer clears pc and fills it with the center of every
// voxel fn accepts, valued with the intensity fn returns.
func IntensityPointCloudFromLayer[V any](layer voxel.LayerReader[V], fn IntensityFunc[V], pc pointcloud.PointCloud) error {
	if err := checkArgs(layer, fn == nil, pc == nil); err != nil {
		return err
	}
	pc.Clear()
	forEachVoxel(layer, func(v *V, coord r3.Vector) {
		if intensity, ok := fn(v, coord); ok {
			pc.Append(coord, pointcloud.NewValueData(intensity))
		}
	})
	return nil
}

// Default height coloring of occupancy markers.
const (
	DefaultHeightOffset = 5.0
	DefaultHeightScale  = 10.0
)

type markerOptions struct {
	heightOffset float64
	heightScale  float64
	colorMap     colormap.ColorMap
}

func newMarkerOptions(opts []MarkerOption) markerOptions {
	mo := markerOptions{
		heightOffset: DefaultHeightOffset,
		heightScale:  DefaultHeightScale,
		colorMap:     colormap.Rainbow,
	}
	for _, opt := range opts {
		opt(&mo)
	}
	return mo
}

func (mo markerOptions) colorAt(z float64) color.NRGBA {
	return mo.colorMap.Map((z - mo.heightOffset) * mo.heightScale)
}

// MarkerOption customizes the markers built by OccupancyBlocksFromLayer.
type MarkerOption func(*markerOptions)

// WithHeightColoring colors each cube with the color map applied to
// (z - offset) * scale.
func WithHeightColoring(offset, scale float64) MarkerOption {
	return func(mo *markerOptions) {
		mo.heightOffset = offset
		mo.heightScale = scale
	}
}

// WithColorMap sets the color map used for cube colors. A nil map keeps the default.
func WithColorMap(cm colormap.ColorMap) MarkerOption {
	return func(mo *markerOptions) {
		if cm != nil {
			mo.colorMap = cm
		}
	}
}

// OccupancyBlocksFromLayer replaces the contents of markers with a single
// cube list marker holding a cube for every voxel fn accepts. Cubes are
// as wide as a voxel and colored by height.
func OccupancyBlocksFromLayer[V any](
	layer voxel.LayerReader[V],
	fn OccupancyFunc[V],
	frameID string,
	markers *ros.MarkerArray,
	opts ...MarkerOption,
) error {
	if err := checkArgs(layer, fn == nil, markers == nil); err != nil {
		return err
	}
	mo := newMarkerOptions(opts)
	markers.Reset()

	size := layer.VoxelSize()
	markers.Markers = append(markers.Markers, ros.Marker{
		Header:    ros.Header{FrameID: frameID},
		Namespace: OccupiedVoxelsNamespace,
		ID:        0,
		Type:      ros.CubeList,
		Action:    ros.Add,
		Pose:      ros.IdentityPose,
		Scale:     ros.Vector3{X: size, Y: size, Z: size},
		Color:     ros.ColorRGBA{R: 1, G: 1, B: 1, A: 1},
		Points:    []ros.Point{},
		Colors:    []ros.ColorRGBA{},
	})
	marker := &markers.Markers[0]
	forEachVoxel(layer, func(v *V, coord r3.Vector) {
		if fn(v, coord) {
			marker.Points = append(marker.Points, ros.NewPoint(coord))
			marker.Colors = append(marker.Colors, ros.NewColorRGBA(mo.colorAt(coord.Z)))
		}
	})
	return nil
}
