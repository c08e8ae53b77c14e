package pointcloud

import (
	"github.com/golang/geo/r3"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// a slice of points indexed by position.
type basicPointCloud struct {
	points storage
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: newMatrixStorage(size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return cloud.points.Size()
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(x, y, z float64) (Data, bool) {
	return cloud.points.At(x, y, z)
}

// Set validates that the point can be precisely stored before setting it in the cloud.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	if err := cloud.points.Set(p, d); err != nil {
		return err
	}
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Append(p r3.Vector, d Data) {
	cloud.points.Append(p, d)
	cloud.meta.Merge(p, d)
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	cloud.points.Iterate(numBatches, myBatch, fn)
}

func (cloud *basicPointCloud) Clear() {
	cloud.points.Clear()
	cloud.meta = NewMetaData()
}
