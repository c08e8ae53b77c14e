package voxel

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// coordinateEpsilon absorbs floating point error when a coordinate lies
// exactly on a grid boundary.
const coordinateEpsilon = 1e-6

// BlockIndex addresses a block within a layer.
type BlockIndex struct {
	X, Y, Z int64
}

func (idx BlockIndex) String() string {
	return fmt.Sprintf("(%d, %d, %d)", idx.X, idx.Y, idx.Z)
}

// VoxelCoords addresses a voxel within a block.
type VoxelCoords struct {
	I, J, K int
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// Block is a dense cube of voxels. Voxel (i, j, k) is stored at linear index
// i + n*(j + n*k) where n is the number of voxels per side.
type Block[V any] struct {
	origin        r3.Vector
	voxelsPerSide int
	voxelSize     float64
	voxels        []V
}

// NewBlock returns a block whose minimum corner is at origin.
func NewBlock[V any](voxelsPerSide int, voxelSize float64, origin r3.Vector) *Block[V] {
	return &Block[V]{
		origin:        origin,
		voxelsPerSide: voxelsPerSide,
		voxelSize:     voxelSize,
		voxels:        make([]V, voxelsPerSide*voxelsPerSide*voxelsPerSide),
	}
}

// Origin returns the minimum corner of the block.
func (b *Block[V]) Origin() r3.Vector {
	return b.origin
}

// VoxelsPerSide returns the number of voxels along one edge.
func (b *Block[V]) VoxelsPerSide() int {
	return b.voxelsPerSide
}

// VoxelSize returns the edge length of one voxel.
func (b *Block[V]) VoxelSize() float64 {
	return b.voxelSize
}

// NumVoxels returns the number of voxel slots in the block.
func (b *Block[V]) NumVoxels() int {
	return len(b.voxels)
}

// VoxelCoordsFromLinearIndex converts a linear slot index to voxel coordinates.
func (b *Block[V]) VoxelCoordsFromLinearIndex(linearIndex int) VoxelCoords {
	n := b.voxelsPerSide
	k := linearIndex / (n * n)
	rem := linearIndex - k*n*n
	j := rem / n
	i := rem - j*n
	return VoxelCoords{I: i, J: j, K: k}
}

// LinearIndexFromVoxelCoords converts voxel coordinates to a linear slot index.
func (b *Block[V]) LinearIndexFromVoxelCoords(c VoxelCoords) int {
	n := b.voxelsPerSide
	return c.I + n*(c.J+n*c.K)
}

// CoordinatesFromLinearIndex returns the center of the voxel at the given slot.
func (b *Block[V]) CoordinatesFromLinearIndex(linearIndex int) r3.Vector {
	c := b.VoxelCoordsFromLinearIndex(linearIndex)
	return r3.Vector{
		X: b.origin.X + (float64(c.I)+0.5)*b.voxelSize,
		Y: b.origin.Y + (float64(c.J)+0.5)*b.voxelSize,
		Z: b.origin.Z + (float64(c.K)+0.5)*b.voxelSize,
	}
}

// VoxelByLinearIndex returns the voxel stored at the given slot.
func (b *Block[V]) VoxelByLinearIndex(linearIndex int) *V {
	return &b.voxels[linearIndex]
}

// VoxelCoordsFromCoordinates returns the coordinates of the voxel containing p,
// clamped to the block.
func (b *Block[V]) VoxelCoordsFromCoordinates(p r3.Vector) VoxelCoords {
	local := p.Sub(b.origin).Mul(1 / b.voxelSize)
	return VoxelCoords{
		I: b.clamp(int(math.Floor(local.X + coordinateEpsilon))),
		J: b.clamp(int(math.Floor(local.Y + coordinateEpsilon))),
		K: b.clamp(int(math.Floor(local.Z + coordinateEpsilon))),
	}
}

// VoxelByCoordinates returns the voxel containing p.
func (b *Block[V]) VoxelByCoordinates(p r3.Vector) *V {
	return b.VoxelByLinearIndex(b.LinearIndexFromVoxelCoords(b.VoxelCoordsFromCoordinates(p)))
}

func (b *Block[V]) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= b.voxelsPerSide {
		return b.voxelsPerSide - 1
	}
	return i
}
