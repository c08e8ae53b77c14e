package cli

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/voxelvis/pointcloud"
)

const histogramBins = 40

// writeHistogram plots the distribution of the cloud's values to a PNG.
// Clouds with fewer than two values are skipped and false is returned.
func writeHistogram(path, title string, pc pointcloud.PointCloud) (bool, error) {
	values := make(plotter.Values, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if d != nil && d.HasValue() {
			values = append(values, d.Value())
		}
		return true
	})
	if len(values) < 2 {
		return false, nil
	}

	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return false, errors.Wrapf(err, "building histogram for %q", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "distance"
	p.Y.Label.Text = "voxels"
	p.Add(hist)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return false, errors.Wrapf(err, "saving histogram %q", path)
	}
	return true, nil
}
