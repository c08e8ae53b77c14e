package cli

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/voxelvis/config"
	"go.viam.com/voxelvis/logging"
	"go.viam.com/voxelvis/voxel"
)

// Layers are the layers built from a config. They are only read once built.
type Layers struct {
	Tsdf      *voxel.Layer[voxel.TsdfVoxel]
	Esdf      *voxel.Layer[voxel.EsdfVoxel]
	Occupancy *voxel.Layer[voxel.OccupancyVoxel]
}

// BuildLayers integrates every source of cfg into fresh layers.
func BuildLayers(cfg *config.Config, logger logging.Logger) (*Layers, error) {
	tsdf, err := voxel.NewLayer[voxel.TsdfVoxel](cfg.VoxelSize, cfg.VoxelsPerSide)
	if err != nil {
		return nil, err
	}
	esdf, err := voxel.NewLayer[voxel.EsdfVoxel](cfg.VoxelSize, cfg.VoxelsPerSide)
	if err != nil {
		return nil, err
	}
	occupancy, err := voxel.NewLayer[voxel.OccupancyVoxel](cfg.VoxelSize, cfg.VoxelsPerSide)
	if err != nil {
		return nil, err
	}

	for idx, src := range cfg.Sources {
		sphereCfg, ok := src.ConvertedAttributes.(*config.SphereConfig)
		if !ok {
			return nil, errors.Errorf("source %d of type %q was not validated", idx, src.Type)
		}
		c, err := sphereCfg.NRGBA()
		if err != nil {
			return nil, err
		}
		sphere := voxel.Sphere{
			Center: r3.Vector{X: sphereCfg.Center[0], Y: sphereCfg.Center[1], Z: sphereCfg.Center[2]},
			Radius: sphereCfg.Radius,
			Color:  c,
		}
		if err := voxel.IntegrateTsdfSphere(tsdf, sphere, cfg.TruncationDistance); err != nil {
			return nil, errors.Wrapf(err, "integrating source %d", idx)
		}
		if err := voxel.IntegrateEsdfSphere(esdf, sphere, cfg.EsdfMaxDistance); err != nil {
			return nil, errors.Wrapf(err, "integrating source %d", idx)
		}
		if err := voxel.IntegrateOccupancySphere(occupancy, sphere, cfg.TruncationDistance); err != nil {
			return nil, errors.Wrapf(err, "integrating source %d", idx)
		}
		logger.Debugw("integrated source", "index", idx, "center", sphere.Center, "radius", sphere.Radius)
	}

	logger.Debugw("built layers",
		"tsdf_blocks", tsdf.NumBlocks(),
		"esdf_blocks", esdf.NumBlocks(),
		"occupancy_blocks", occupancy.NumBlocks(),
	)
	return &Layers{Tsdf: tsdf, Esdf: esdf, Occupancy: occupancy}, nil
}

func layersAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return err
	}
	layers, err := BuildLayers(cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, layers.Tsdf.String())
	return nil
}
