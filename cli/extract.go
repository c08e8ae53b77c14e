package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/voxelvis/config"
	"go.viam.com/voxelvis/logging"
	"go.viam.com/voxelvis/pointcloud"
	"go.viam.com/voxelvis/ros"
	"go.viam.com/voxelvis/voxelvis"
)

// Output file names.
const (
	SurfaceFile      = "surface.pcd"
	SurfaceLASFile   = "surface.las"
	TsdfDistanceFile = "tsdf_distance.pcd"
	EsdfDistanceFile = "esdf_distance.pcd"
	OccupancyFile    = "occupancy.json"

	TsdfHistogramFile = "tsdf_distance_hist.png"
	EsdfHistogramFile = "esdf_distance_hist.png"
)

// An Output describes one file written by Extract.
type Output struct {
	Name   string
	Path   string
	Points int
	Values *pointcloud.ValueSummary
}

// Extract runs every extraction over layers and writes the results to dir.
// Extractions run concurrently; each owns its sink and only reads the layers.
func Extract(ctx context.Context, cfg *config.Config, layers *Layers, dir string, logger logging.Logger) ([]Output, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %q", dir)
	}

	pcdType := cfg.Output.PCDType()
	outputs := make([]Output, 4)
	errs, ctx := errgroup.WithContext(ctx)

	errs.Go(func() error {
		pc := pointcloud.New()
		if err := voxelvis.SurfacePointCloudFromTsdfLayer(layers.Tsdf, cfg.SurfaceDistance, pc); err != nil {
			return errors.Wrap(err, "extracting surface")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, SurfaceFile)
		if err := writePCD(path, pc, pcdType); err != nil {
			return err
		}
		if cfg.Output.LAS {
			if err := pointcloud.WriteToLASFile(pc, filepath.Join(dir, SurfaceLASFile)); err != nil {
				return errors.Wrap(err, "writing surface las")
			}
		}
		outputs[0] = newCloudOutput("surface", path, pc)
		return nil
	})
	errs.Go(func() error {
		pc := pointcloud.New()
		if err := voxelvis.DistancePointCloudFromTsdfLayer(layers.Tsdf, pc); err != nil {
			return errors.Wrap(err, "extracting tsdf distances")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, TsdfDistanceFile)
		if err := writePCD(path, pc, pcdType); err != nil {
			return err
		}
		if cfg.Output.Histograms {
			if _, err := writeHistogram(filepath.Join(dir, TsdfHistogramFile), "tsdf distance", pc); err != nil {
				return err
			}
		}
		outputs[1] = newCloudOutput("tsdf distance", path, pc)
		return nil
	})
	errs.Go(func() error {
		pc := pointcloud.New()
		if err := voxelvis.DistancePointCloudFromEsdfLayer(layers.Esdf, pc); err != nil {
			return errors.Wrap(err, "extracting esdf distances")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, EsdfDistanceFile)
		if err := writePCD(path, pc, pcdType); err != nil {
			return err
		}
		if cfg.Output.Histograms {
			if _, err := writeHistogram(filepath.Join(dir, EsdfHistogramFile), "esdf distance", pc); err != nil {
				return err
			}
		}
		outputs[2] = newCloudOutput("esdf distance", path, pc)
		return nil
	})
	errs.Go(func() error {
		var markers ros.MarkerArray
		if err := voxelvis.OccupancyBlocksFromOccupancyLayer(
			layers.Occupancy,
			cfg.OccupancyThreshold,
			cfg.FrameID,
			&markers,
			voxelvis.WithHeightColoring(*cfg.Marker.HeightOffset, *cfg.Marker.HeightScale),
			voxelvis.WithColorMap(cfg.Marker.ColorMapOrDefault()),
		); err != nil {
			return errors.Wrap(err, "extracting occupancy")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, OccupancyFile)
		if err := writeMarkers(path, &markers); err != nil {
			return err
		}
		outputs[3] = Output{Name: "occupancy", Path: path, Points: markers.NumPoints()}
		return nil
	})
	if err := errs.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		keysAndValues := []interface{}{"name", out.Name, "path", out.Path, "points", out.Points}
		if out.Values != nil {
			keysAndValues = append(keysAndValues, "mean", out.Values.Mean, "stddev", out.Values.StdDev)
		}
		logger.Infow("wrote output", keysAndValues...)
	}
	return outputs, nil
}

func newCloudOutput(name, path string, pc pointcloud.PointCloud) Output {
	out := Output{Name: name, Path: path, Points: pc.Size()}
	if s, ok := pointcloud.ValueStats(pc); ok {
		out.Values = &s
	}
	return out
}

func writePCD(path string, pc pointcloud.PointCloud, typ pointcloud.PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return pointcloud.ToPCD(pc, f, typ)
}

func writeMarkers(path string, markers *ros.MarkerArray) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ros.WriteMarkerArrayJSON(markers, f)
}

// OutputTable renders the outputs as a table.
func OutputTable(outputs []Output) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Output", "File", "Points", "Mean", "StdDev"})
	for _, out := range outputs {
		row := table.Row{out.Name, filepath.Base(out.Path), out.Points, "", ""}
		if out.Values != nil {
			row[3] = out.Values.Mean
			row[4] = out.Values.StdDev
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func extractAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return err
	}
	dir := cfg.Output.Dir
	if c.IsSet(flagOut) {
		dir = c.String(flagOut)
	}
	if dir == "" {
		dir = "."
	}

	layers, err := BuildLayers(cfg, logger)
	if err != nil {
		return err
	}
	logger.Debugf("tsdf layer\n%s", layers.Tsdf)

	outputs, err := Extract(c.Context, cfg, layers, dir, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, OutputTable(outputs))
	return nil
}
