package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Points are written out as float32, so positions must stay within the range
// where a float32 holds every integer exactly.
const (
	maxPreciseFloat64 = float64(1 << 24)
	minPreciseFloat64 = -maxPreciseFloat64
)

// PointAndData is a tiny struct to facilitate returning nearest neighbors in a neat way.
type PointAndData struct {
	P r3.Vector
	D Data
}

type storage interface {
	Size() int
	Set(p r3.Vector, d Data) error
	Append(p r3.Vector, d Data)
	At(x, y, z float64) (Data, bool)
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
	Clear()
}

// matrixStorage keeps points in a slice for ordered iteration and a map from
// position to slice index for lookups.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func newMatrixStorage(size int) *matrixStorage {
	return &matrixStorage{
		points:   make([]PointAndData, 0, size),
		indexMap: make(map[r3.Vector]uint, size),
	}
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if err := validatePrecision(p); err != nil {
		return err
	}
	if i, ok := ms.indexMap[p]; ok {
		ms.points[i].D = d
		return nil
	}
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	ms.indexMap[p] = uint(len(ms.points) - 1)
	return nil
}

// Append adds a point even if its position is already stored. Lookups by
// position keep finding the first point stored there.
func (ms *matrixStorage) Append(p r3.Vector, d Data) {
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	if _, ok := ms.indexMap[p]; !ok {
		ms.indexMap[p] = uint(len(ms.points) - 1)
	}
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	i, ok := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return ms.points[i].D, true
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	lowerBound := 0
	upperBound := len(ms.points)
	if numBatches > 0 {
		batchSize := (len(ms.points) + numBatches - 1) / numBatches
		lowerBound = myBatch * batchSize
		upperBound = min(lowerBound+batchSize, len(ms.points))
	}
	for i := lowerBound; i < upperBound; i++ {
		if !fn(ms.points[i].P, ms.points[i].D) {
			return
		}
	}
}

func (ms *matrixStorage) Clear() {
	ms.points = ms.points[:0]
	clear(ms.indexMap)
}

// validateCloudPrecision checks every point of the cloud, for writers of
// float32 formats.
func validateCloudPrecision(cloud PointCloud) error {
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, _ Data) bool {
		err = validatePrecision(p)
		return err == nil
	})
	return err
}

func validatePrecision(p r3.Vector) error {
	if p.X < minPreciseFloat64 || p.X > maxPreciseFloat64 {
		return errors.Errorf("x component (%v) is out of range [%v,%v]", p.X, minPreciseFloat64, maxPreciseFloat64)
	}
	if p.Y < minPreciseFloat64 || p.Y > maxPreciseFloat64 {
		return errors.Errorf("y component (%v) is out of range [%v,%v]", p.Y, minPreciseFloat64, maxPreciseFloat64)
	}
	if p.Z < minPreciseFloat64 || p.Z > maxPreciseFloat64 {
		return errors.Errorf("z component (%v) is out of range [%v,%v]", p.Z, minPreciseFloat64, maxPreciseFloat64)
	}
	return nil
}
