package voxel

import (
	"fmt"
	"math"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// LayerReader is the read-only view of a layer.
type LayerReader[V any] interface {
	// AllocatedBlocks lists the indices of every allocated block. Callers
	// must not assume a spatial order.
	AllocatedBlocks() []BlockIndex

	// BlockByIndex returns the block at idx, if allocated.
	BlockByIndex(idx BlockIndex) (*Block[V], bool)

	// VoxelsPerSide returns the number of voxels along one block edge.
	VoxelsPerSide() int

	// VoxelSize returns the edge length of one voxel.
	VoxelSize() float64
}

// Layer is a sparse collection of blocks sharing a voxel size and block size.
// It is not safe for concurrent mutation; concurrent reads are fine.
type Layer[V any] struct {
	voxelSize     float64
	voxelsPerSide int
	blockSize     float64

	blocks map[BlockIndex]*Block[V]
	order  []BlockIndex
}

// NewLayer returns an empty layer.
func NewLayer[V any](voxelSize float64, voxelsPerSide int) (*Layer[V], error) {
	if voxelSize <= 0 || math.IsNaN(voxelSize) || math.IsInf(voxelSize, 0) {
		return nil, errors.Errorf("voxel size must be positive and finite, got %v", voxelSize)
	}
	if voxelsPerSide <= 0 {
		return nil, errors.Errorf("voxels per side must be positive, got %d", voxelsPerSide)
	}
	return &Layer[V]{
		voxelSize:     voxelSize,
		voxelsPerSide: voxelsPerSide,
		blockSize:     voxelSize * float64(voxelsPerSide),
		blocks:        map[BlockIndex]*Block[V]{},
	}, nil
}

// VoxelSize returns the edge length of one voxel.
func (l *Layer[V]) VoxelSize() float64 {
	return l.voxelSize
}

// VoxelsPerSide returns the number of voxels along one block edge.
func (l *Layer[V]) VoxelsPerSide() int {
	return l.voxelsPerSide
}

// BlockSize returns the edge length of one block.
func (l *Layer[V]) BlockSize() float64 {
	return l.blockSize
}

// NumBlocks returns the number of allocated blocks.
func (l *Layer[V]) NumBlocks() int {
	return len(l.order)
}

// AllocatedBlocks returns the allocated block indices in allocation order.
func (l *Layer[V]) AllocatedBlocks() []BlockIndex {
	return slices.Clone(l.order)
}

// BlockByIndex returns the block at idx, if allocated.
func (l *Layer[V]) BlockByIndex(idx BlockIndex) (*Block[V], bool) {
	b, ok := l.blocks[idx]
	return b, ok
}

// BlockIndexFromCoordinates returns the index of the block containing p.
func (l *Layer[V]) BlockIndexFromCoordinates(p r3.Vector) BlockIndex {
	inv := 1 / l.blockSize
	return BlockIndex{
		X: int64(math.Floor(p.X*inv + coordinateEpsilon)),
		Y: int64(math.Floor(p.Y*inv + coordinateEpsilon)),
		Z: int64(math.Floor(p.Z*inv + coordinateEpsilon)),
	}
}

// BlockOrigin returns the minimum corner of the block at idx.
func (l *Layer[V]) BlockOrigin(idx BlockIndex) r3.Vector {
	return r3.Vector{
		X: float64(idx.X) * l.blockSize,
		Y: float64(idx.Y) * l.blockSize,
		Z: float64(idx.Z) * l.blockSize,
	}
}

// AllocateBlockByIndex returns the block at idx, allocating it if needed.
func (l *Layer[V]) AllocateBlockByIndex(idx BlockIndex) *Block[V] {
	if b, ok := l.blocks[idx]; ok {
		return b
	}
	b := NewBlock[V](l.voxelsPerSide, l.voxelSize, l.BlockOrigin(idx))
	l.blocks[idx] = b
	l.order = append(l.order, idx)
	return b
}

// AllocateBlockByCoordinates returns the block containing p, allocating it if needed.
func (l *Layer[V]) AllocateBlockByCoordinates(p r3.Vector) *Block[V] {
	return l.AllocateBlockByIndex(l.BlockIndexFromCoordinates(p))
}

// VoxelByCoordinates returns the voxel containing p, if its block is allocated.
func (l *Layer[V]) VoxelByCoordinates(p r3.Vector) (*V, bool) {
	b, ok := l.blocks[l.BlockIndexFromCoordinates(p)]
	if !ok {
		return nil, false
	}
	return b.VoxelByCoordinates(p), true
}

// RemoveBlock deallocates the block at idx. It does nothing if the block
// does not exist.
func (l *Layer[V]) RemoveBlock(idx BlockIndex) {
	if _, ok := l.blocks[idx]; !ok {
		return
	}
	delete(l.blocks, idx)
	l.order = lo.Without(l.order, idx)
}

// String prints a table of the allocated blocks.
func (l *Layer[V]) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("layer: voxel size %v, %d voxels per side", l.voxelSize, l.voxelsPerSide))
	t.AppendHeader(table.Row{"#", "Index", "Origin"})
	for i, idx := range l.order {
		o := l.BlockOrigin(idx)
		t.AppendRow(table.Row{i, idx.String(), fmt.Sprintf("(%.3f, %.3f, %.3f)", o.X, o.Y, o.Z)})
	}
	return t.Render()
}
