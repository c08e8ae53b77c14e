package pointcloud

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CloudContains is a silly helper method.
func CloudContains(cloud PointCloud, x, y, z float64) bool {
	_, got := cloud.At(x, y, z)
	return got
}

// CloudCentroid returns the centroid of a pointcloud as a vector.
func CloudCentroid(pc PointCloud) r3.Vector {
	if pc.Size() == 0 {
		// This is done to match the centroid of an empty pointcloud
		return r3.Vector{X: 0, Y: 0, Z: 0}
	}
	totalX, totalY, totalZ := 0.0, 0.0, 0.0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		totalX += p.X
		totalY += p.Y
		totalZ += p.Z
		return true
	})
	return r3.Vector{
		X: totalX / float64(pc.Size()),
		Y: totalY / float64(pc.Size()),
		Z: totalZ / float64(pc.Size()),
	}
}

// CloudMatrixCol is a type that represents the columns of a CloudMatrix.
type CloudMatrixCol int

const (
	// CloudMatrixColX is the x column in the cloud matrix.
	CloudMatrixColX CloudMatrixCol = 0
	// CloudMatrixColY is the y column in the cloud matrix.
	CloudMatrixColY CloudMatrixCol = 1
	// CloudMatrixColZ is the z column in the cloud matrix.
	CloudMatrixColZ CloudMatrixCol = 2
	// CloudMatrixColR is the r column in the cloud matrix.
	CloudMatrixColR CloudMatrixCol = 3
	// CloudMatrixColG is the g column in the cloud matrix.
	CloudMatrixColG CloudMatrixCol = 4
	// CloudMatrixColB is the b column in the cloud matrix.
	CloudMatrixColB CloudMatrixCol = 5
	// CloudMatrixColV is the value column in the cloud matrix.
	CloudMatrixColV CloudMatrixCol = 6
)

// CloudMatrix Returns a Matrix representation of a Cloud along with a Header list.
// The Header list is a list of CloudMatrixCols that correspond to the columns in the matrix.
// Rows follow the cloud's iteration order.
// CloudMatrix is not guaranteed to return the same number of columns as any other CloudMatrix.
func CloudMatrix(pc PointCloud) (*mat.Dense, []CloudMatrixCol) {
	if pc.Size() == 0 {
		return nil, nil
	}
	header := []CloudMatrixCol{CloudMatrixColX, CloudMatrixColY, CloudMatrixColZ}
	pointSize := 3 // x, y, z
	if pc.MetaData().HasColor {
		pointSize += 3 // color
		header = append(header, CloudMatrixColR, CloudMatrixColG, CloudMatrixColB)
	}
	if pc.MetaData().HasValue {
		pointSize++ // value
		header = append(header, CloudMatrixColV)
	}

	matData := make([]float64, 0, pc.Size()*pointSize)

	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		matData = append(matData, p.X, p.Y, p.Z)
		if pc.MetaData().HasColor {
			var r, g, b uint8
			if d != nil {
				r, g, b = d.RGB255()
			}
			matData = append(matData, float64(r), float64(g), float64(b))
		}
		if pc.MetaData().HasValue {
			v := 0.0
			if d != nil {
				v = d.Value()
			}
			matData = append(matData, v)
		}
		return true
	})
	return mat.NewDense(pc.Size(), pointSize, matData), header
}

// ValueSummary describes the distribution of the scalar values in a cloud.
type ValueSummary struct {
	Count    int
	Mean     float64
	StdDev   float64
	Median   float64
	Min, Max float64
}

// ValueStats summarizes the values of every point carrying one. The second
// return is false if no point has a value.
func ValueStats(pc PointCloud) (ValueSummary, bool) {
	values := make([]float64, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if d != nil && d.HasValue() {
			values = append(values, d.Value())
		}
		return true
	})
	if len(values) == 0 {
		return ValueSummary{}, false
	}
	mean, std := stat.MeanStdDev(values, nil)
	// only fails on empty input
	median, _ := stats.Median(values)
	return ValueSummary{
		Count:  len(values),
		Mean:   mean,
		StdDev: std,
		Median: median,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}, true
}

// Summary prints a table describing the cloud's size, bounds and values.
func Summary(pc PointCloud) string {
	meta := pc.MetaData()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Property", "Value"})
	t.AppendRow(table.Row{"points", pc.Size()})
	t.AppendRow(table.Row{"color", meta.HasColor})
	t.AppendRow(table.Row{"value", meta.HasValue})
	if pc.Size() > 0 {
		t.AppendRow(table.Row{"x", fmt.Sprintf("[%.3f, %.3f]", meta.MinX, meta.MaxX)})
		t.AppendRow(table.Row{"y", fmt.Sprintf("[%.3f, %.3f]", meta.MinY, meta.MaxY)})
		t.AppendRow(table.Row{"z", fmt.Sprintf("[%.3f, %.3f]", meta.MinZ, meta.MaxZ)})
	}
	if s, ok := ValueStats(pc); ok {
		t.AppendRow(table.Row{"value mean", fmt.Sprintf("%.4f", s.Mean)})
		t.AppendRow(table.Row{"value stddev", fmt.Sprintf("%.4f", s.StdDev)})
		t.AppendRow(table.Row{"value median", fmt.Sprintf("%.4f", s.Median)})
		t.AppendRow(table.Row{"value range", fmt.Sprintf("[%.4f, %.4f]", s.Min, s.Max)})
	}
	return t.Render()
}
