package voxelvis

import (
	"image/color"
	"math"
	"slices"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/voxelvis/colormap"
	"go.viam.com/voxelvis/pointcloud"
	"go.viam.com/voxelvis/ros"
	"go.viam.com/voxelvis/voxel"
)

// listedLayer lists blocks in a fixed order that may name blocks the
// underlying layer does not have.
type listedLayer[V any] struct {
	*voxel.Layer[V]
	listing []voxel.BlockIndex
}

func (l *listedLayer[V]) AllocatedBlocks() []voxel.BlockIndex {
	return l.listing
}

func points(pc pointcloud.PointCloud) []pointcloud.PointAndData {
	var all []pointcloud.PointAndData
	pc.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		all = append(all, pointcloud.PointAndData{P: p, D: d})
		return true
	})
	return all
}

func acceptAllColor[V any](_ *V, _ r3.Vector) (color.NRGBA, bool) {
	return color.NRGBA{1, 2, 3, 255}, true
}

func acceptAllOccupied[V any](_ *V, _ r3.Vector) bool {
	return true
}

func newSphereLayer(t *testing.T) *voxel.Layer[voxel.TsdfVoxel] {
	t.Helper()
	l, err := voxel.NewLayer[voxel.TsdfVoxel](0.25, 4)
	test.That(t, err, test.ShouldBeNil)
	sphere := voxel.Sphere{Center: r3.Vector{X: 0.3, Y: -0.2, Z: 0.1}, Radius: 1, Color: color.NRGBA{200, 100, 50, 255}}
	test.That(t, voxel.IntegrateTsdfSphere(l, sphere, 0.5), test.ShouldBeNil)
	return l
}

func TestOneBlockSurface(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](0.1, 2)
	test.That(t, err, test.ShouldBeNil)
	block := l.AllocateBlockByIndex(voxel.BlockIndex{})
	test.That(t, block.NumVoxels(), test.ShouldEqual, 8)
	*block.VoxelByLinearIndex(0) = voxel.TsdfVoxel{Distance: 0.02, Weight: 1, Color: color.NRGBA{10, 20, 30, 255}}

	pc := pointcloud.New()
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, NearSurfaceByDistance(0.1), pc), test.ShouldBeNil)
	all := points(pc)
	test.That(t, all, test.ShouldHaveLength, 1)
	test.That(t, all[0].P, test.ShouldResemble, block.CoordinatesFromLinearIndex(0))
	test.That(t, all[0].P.X, test.ShouldAlmostEqual, 0.05)
	test.That(t, all[0].P.Y, test.ShouldAlmostEqual, 0.05)
	test.That(t, all[0].P.Z, test.ShouldAlmostEqual, 0.05)
	r, g, b := all[0].D.RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{10, 20, 30})
	test.That(t, all[0].D.HasValue(), test.ShouldBeFalse)
}

func TestExtractionDeterminism(t *testing.T) {
	l := newSphereLayer(t)

	first := pointcloud.New()
	second := pointcloud.New()
	test.That(t, SurfacePointCloudFromTsdfLayer(l, 0.2, first), test.ShouldBeNil)
	test.That(t, SurfacePointCloudFromTsdfLayer(l, 0.2, second), test.ShouldBeNil)
	test.That(t, first.Size(), test.ShouldBeGreaterThan, 0)
	test.That(t, points(second), test.ShouldResemble, points(first))

	var m1, m2 ros.MarkerArray
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "world", &m1), test.ShouldBeNil)
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "world", &m2), test.ShouldBeNil)
	test.That(t, m2, test.ShouldResemble, m1)
}

func TestCoordinateCorrectness(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](0.5, 3)
	test.That(t, err, test.ShouldBeNil)
	indexes := []voxel.BlockIndex{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 2, Z: 0}, {X: 3, Y: -4, Z: -2}}
	for _, idx := range indexes {
		l.AllocateBlockByIndex(idx)
	}

	pc := pointcloud.New()
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, acceptAllColor[voxel.TsdfVoxel], pc), test.ShouldBeNil)
	all := points(pc)
	test.That(t, all, test.ShouldHaveLength, 3*27)

	blockSize := 0.5 * 3
	for n, pd := range all {
		idx := indexes[n/27]
		slot := n % 27
		x, y, z := slot%3, (slot/3)%3, slot/9
		test.That(t, pd.P.X, test.ShouldAlmostEqual, float64(idx.X)*blockSize+(float64(x)+0.5)*0.5)
		test.That(t, pd.P.Y, test.ShouldAlmostEqual, float64(idx.Y)*blockSize+(float64(y)+0.5)*0.5)
		test.That(t, pd.P.Z, test.ShouldAlmostEqual, float64(idx.Z)*blockSize+(float64(z)+0.5)*0.5)
	}
}

func TestBlockListingOrder(t *testing.T) {
	base, err := voxel.NewLayer[voxel.TsdfVoxel](1, 1)
	test.That(t, err, test.ShouldBeNil)
	a := voxel.BlockIndex{X: 0}
	b := voxel.BlockIndex{X: 5}
	missing := voxel.BlockIndex{X: 9}
	base.AllocateBlockByIndex(a)
	base.AllocateBlockByIndex(b)

	l := &listedLayer[voxel.TsdfVoxel]{Layer: base, listing: []voxel.BlockIndex{b, missing, a}}
	pc := pointcloud.New()
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, acceptAllColor[voxel.TsdfVoxel], pc), test.ShouldBeNil)
	all := points(pc)
	test.That(t, all, test.ShouldHaveLength, 2)
	test.That(t, all[0].P, test.ShouldResemble, r3.Vector{X: 5.5, Y: 0.5, Z: 0.5})
	test.That(t, all[1].P, test.ShouldResemble, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
	_, ok := base.BlockByIndex(missing)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRepeatedBlockListing(t *testing.T) {
	base, err := voxel.NewLayer[voxel.TsdfVoxel](0.5, 2)
	test.That(t, err, test.ShouldBeNil)
	block := base.AllocateBlockByIndex(voxel.BlockIndex{})
	l := &listedLayer[voxel.TsdfVoxel]{Layer: base, listing: []voxel.BlockIndex{{}, {}}}
	want := 2 * block.NumVoxels()

	colored := pointcloud.New()
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, acceptAllColor[voxel.TsdfVoxel], colored), test.ShouldBeNil)
	test.That(t, colored.Size(), test.ShouldEqual, want)

	valued := pointcloud.New()
	intensity := func(_ *voxel.TsdfVoxel, coord r3.Vector) (float64, bool) {
		return coord.X, true
	}
	test.That(t, IntensityPointCloudFromLayer[voxel.TsdfVoxel](l, intensity, valued), test.ShouldBeNil)
	test.That(t, valued.Size(), test.ShouldEqual, want)

	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, acceptAllOccupied[voxel.TsdfVoxel], "world", &markers), test.ShouldBeNil)
	test.That(t, markers.NumPoints(), test.ShouldEqual, want)

	// the second pass repeats the first in the same order
	all := points(valued)
	for i := 0; i < block.NumVoxels(); i++ {
		test.That(t, all[i+block.NumVoxels()].P, test.ShouldResemble, all[i].P)
		test.That(t, markers.Markers[0].Points[i+block.NumVoxels()], test.ShouldResemble, markers.Markers[0].Points[i])
	}
}

func TestLargeCoordinates(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](1e7, 1)
	test.That(t, err, test.ShouldBeNil)
	l.AllocateBlockByIndex(voxel.BlockIndex{X: 2})

	pc := pointcloud.New()
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, acceptAllColor[voxel.TsdfVoxel], pc), test.ShouldBeNil)
	test.That(t, points(pc), test.ShouldHaveLength, 1)
	test.That(t, points(pc)[0].P.X, test.ShouldEqual, 2.5e7)

	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, acceptAllOccupied[voxel.TsdfVoxel], "world", &markers), test.ShouldBeNil)
	test.That(t, markers.NumPoints(), test.ShouldEqual, 1)
}

func TestEmptyLayer(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](0.1, 8)
	test.That(t, err, test.ShouldBeNil)

	pc := pointcloud.New()
	test.That(t, SurfacePointCloudFromTsdfLayer(l, 1, pc), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 0)

	test.That(t, DistancePointCloudFromTsdfLayer(l, pc), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 0)

	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "world", &markers), test.ShouldBeNil)
	test.That(t, markers.Markers, test.ShouldHaveLength, 1)
	test.That(t, markers.NumPoints(), test.ShouldEqual, 0)
}

func TestSinkReset(t *testing.T) {
	l := newSphereLayer(t)

	pc := pointcloud.New()
	test.That(t, pc.Set(r3.Vector{X: 100, Y: 100, Z: 100}, pointcloud.NewValueData(7)), test.ShouldBeNil)
	test.That(t, DistancePointCloudFromTsdfLayer(l, pc), test.ShouldBeNil)
	once := points(pc)
	test.That(t, pointcloud.CloudContains(pc, 100, 100, 100), test.ShouldBeFalse)

	test.That(t, DistancePointCloudFromTsdfLayer(l, pc), test.ShouldBeNil)
	test.That(t, points(pc), test.ShouldResemble, once)

	markers := ros.MarkerArray{Markers: []ros.Marker{{ID: 4}, {ID: 5}}}
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "map", &markers), test.ShouldBeNil)
	test.That(t, markers.Markers, test.ShouldHaveLength, 1)
	n := markers.NumPoints()
	test.That(t, n, test.ShouldBeGreaterThan, 0)
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "map", &markers), test.ShouldBeNil)
	test.That(t, markers.Markers, test.ShouldHaveLength, 1)
	test.That(t, markers.NumPoints(), test.ShouldEqual, n)
}

func TestInvalidArguments(t *testing.T) {
	l := newSphereLayer(t)
	pc := pointcloud.New()
	var markers ros.MarkerArray

	for _, err := range []error{
		ColorPointCloudFromLayer[voxel.TsdfVoxel](nil, NearSurfaceByDistance(1), pc),
		ColorPointCloudFromLayer[voxel.TsdfVoxel](l, nil, pc),
		ColorPointCloudFromLayer[voxel.TsdfVoxel](l, NearSurfaceByDistance(1), nil),
		IntensityPointCloudFromLayer[voxel.TsdfVoxel](nil, TsdfDistanceAsIntensity, pc),
		IntensityPointCloudFromLayer[voxel.TsdfVoxel](l, nil, pc),
		IntensityPointCloudFromLayer[voxel.TsdfVoxel](l, TsdfDistanceAsIntensity, nil),
		OccupancyBlocksFromLayer[voxel.TsdfVoxel](nil, OccupiedBySign, "world", &markers),
		OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, nil, "world", &markers),
		OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, OccupiedBySign, "world", nil),
		SlicePointCloudFromEsdfLayer(nil, AxisZ, 0, pc),
	} {
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
	}

	// nothing was touched before failing
	test.That(t, pc.Set(r3.Vector{X: 1}, nil), test.ShouldBeNil)
	test.That(t, ColorPointCloudFromLayer[voxel.TsdfVoxel](l, nil, pc), test.ShouldNotBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
}

func TestClassifierPanicKeepsPrefix(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](1, 2)
	test.That(t, err, test.ShouldBeNil)
	l.AllocateBlockByIndex(voxel.BlockIndex{})

	calls := 0
	fn := func(_ *voxel.TsdfVoxel, _ r3.Vector) (float64, bool) {
		calls++
		if calls == 3 {
			panic("boom")
		}
		return float64(calls), true
	}

	pc := pointcloud.New()
	func() {
		defer func() {
			test.That(t, recover(), test.ShouldEqual, "boom")
		}()
		//nolint:errcheck
		IntensityPointCloudFromLayer[voxel.TsdfVoxel](l, fn, pc)
	}()
	test.That(t, calls, test.ShouldEqual, 3)
	test.That(t, pc.Size(), test.ShouldEqual, 2)

	calls = 0
	occupied := func(_ *voxel.TsdfVoxel, _ r3.Vector) bool {
		calls++
		if calls == 3 {
			panic("boom")
		}
		return true
	}
	markers := ros.MarkerArray{Markers: []ros.Marker{{ID: 7}}}
	func() {
		defer func() {
			test.That(t, recover(), test.ShouldEqual, "boom")
		}()
		//nolint:errcheck
		OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, occupied, "world", &markers)
	}()
	test.That(t, markers.Markers, test.ShouldHaveLength, 1)
	test.That(t, markers.Markers[0].Namespace, test.ShouldEqual, OccupiedVoxelsNamespace)
	test.That(t, markers.Markers[0].Points, test.ShouldHaveLength, 2)
	test.That(t, markers.Markers[0].Colors, test.ShouldHaveLength, 2)
}

func TestClassifiersLeaveLayerUnchanged(t *testing.T) {
	l := newSphereLayer(t)
	snapshot := func() [][]voxel.TsdfVoxel {
		var all [][]voxel.TsdfVoxel
		for _, idx := range l.AllocatedBlocks() {
			block, ok := l.BlockByIndex(idx)
			test.That(t, ok, test.ShouldBeTrue)
			voxels := make([]voxel.TsdfVoxel, block.NumVoxels())
			for i := range voxels {
				voxels[i] = *block.VoxelByLinearIndex(i)
			}
			all = append(all, voxels)
		}
		return all
	}
	before := snapshot()

	pc := pointcloud.New()
	var markers ros.MarkerArray
	test.That(t, SurfacePointCloudFromTsdfLayer(l, 0.25, pc), test.ShouldBeNil)
	test.That(t, DistancePointCloudFromTsdfLayer(l, pc), test.ShouldBeNil)
	test.That(t, SurfaceDistancePointCloudFromTsdfLayer(l, 0.25, pc), test.ShouldBeNil)
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "world", &markers), test.ShouldBeNil)
	test.That(t, snapshot(), test.ShouldResemble, before)
}

func TestClassifierCalledOncePerSlot(t *testing.T) {
	l := newSphereLayer(t)
	seen := map[r3.Vector]int{}
	fn := func(_ *voxel.TsdfVoxel, coord r3.Vector) bool {
		seen[coord]++
		return false
	}
	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, fn, "world", &markers), test.ShouldBeNil)
	test.That(t, len(seen), test.ShouldEqual, l.NumBlocks()*64)
	for _, n := range seen {
		test.That(t, n, test.ShouldEqual, 1)
	}
}

func TestOccupancyMarker(t *testing.T) {
	l := newSphereLayer(t)

	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromTsdfLayer(l, "odom", &markers), test.ShouldBeNil)
	test.That(t, markers.Markers, test.ShouldHaveLength, 1)
	m := markers.Markers[0]
	test.That(t, m.Header.FrameID, test.ShouldEqual, "odom")
	test.That(t, m.Namespace, test.ShouldEqual, OccupiedVoxelsNamespace)
	test.That(t, m.ID, test.ShouldEqual, 0)
	test.That(t, m.Type, test.ShouldEqual, ros.CubeList)
	test.That(t, m.Action, test.ShouldEqual, ros.Add)
	test.That(t, m.Scale, test.ShouldResemble, ros.Vector3{X: 0.25, Y: 0.25, Z: 0.25})
	test.That(t, len(m.Points), test.ShouldBeGreaterThan, 0)
	test.That(t, len(m.Colors), test.ShouldEqual, len(m.Points))

	for i, p := range m.Points {
		want := ros.NewColorRGBA(colormap.Rainbow.Map((p.Z - 5) * 10))
		test.That(t, m.Colors[i], test.ShouldResemble, want)
		v, ok := l.VoxelByCoordinates(p.Vector())
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, v.Distance, test.ShouldBeLessThanOrEqualTo, 0)
	}

	// every accepted cube is present, in traversal order
	var want []ros.Point
	for _, idx := range l.AllocatedBlocks() {
		block, _ := l.BlockByIndex(idx)
		for i := 0; i < block.NumVoxels(); i++ {
			if OccupiedBySign(block.VoxelByLinearIndex(i), r3.Vector{}) {
				want = append(want, ros.NewPoint(block.CoordinatesFromLinearIndex(i)))
			}
		}
	}
	test.That(t, m.Points, test.ShouldResemble, want)
}

func TestOccupancyMarkerOptions(t *testing.T) {
	l, err := voxel.NewLayer[voxel.TsdfVoxel](0.5, 2)
	test.That(t, err, test.ShouldBeNil)
	l.AllocateBlockByIndex(voxel.BlockIndex{})

	var markers ros.MarkerArray
	test.That(t, OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, acceptAllOccupied[voxel.TsdfVoxel], "world", &markers,
		WithHeightColoring(0, 1), WithColorMap(colormap.Grayscale)), test.ShouldBeNil)
	m := markers.Markers[0]
	test.That(t, m.Points, test.ShouldHaveLength, 8)
	for i, p := range m.Points {
		test.That(t, m.Colors[i], test.ShouldResemble, ros.NewColorRGBA(colormap.Grayscale.Map(p.Z)))
	}
	zs := make([]float64, 0, len(m.Points))
	for _, p := range m.Points {
		zs = append(zs, p.Z)
	}
	test.That(t, slices.IsSorted(zs), test.ShouldBeTrue)

	// a nil map keeps the default
	test.That(t, OccupancyBlocksFromLayer[voxel.TsdfVoxel](l, acceptAllOccupied[voxel.TsdfVoxel], "world", &markers,
		WithColorMap(nil)), test.ShouldBeNil)
	p := markers.Markers[0].Points[0]
	test.That(t, markers.Markers[0].Colors[0], test.ShouldResemble,
		ros.NewColorRGBA(colormap.Rainbow.Map((p.Z-DefaultHeightOffset)*DefaultHeightScale)))
}

func TestMarkerColorsAreTotal(t *testing.T) {
	mo := newMarkerOptions(nil)
	for _, z := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), -1e300, 1e300, 0} {
		c := mo.colorAt(z)
		test.That(t, c.A, test.ShouldEqual, 255)
	}
}
