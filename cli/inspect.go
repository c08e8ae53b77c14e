package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/voxelvis/logging"
	"go.viam.com/voxelvis/pointcloud"
	"go.viam.com/voxelvis/ros"
)

func inspectAction(c *cli.Context, logger logging.Logger) error {
	if c.NArg() != 1 {
		return errors.New("inspect expects exactly one file")
	}
	summary, err := Inspect(c.Args().First(), logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, summary)
	return nil
}

// Inspect summarizes a point cloud file (.pcd, .las) or a marker file (.json).
func Inspect(path string, logger logging.Logger) (string, error) {
	if filepath.Ext(path) != ".json" {
		pc, err := pointcloud.NewFromFile(path, logger)
		if err != nil {
			return "", err
		}
		return pointcloud.Summary(pc), nil
	}

	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	markers, err := ros.ReadMarkerArrayJSON(f)
	if err != nil {
		return "", err
	}
	return markerSummary(markers), nil
}

func markerSummary(markers *ros.MarkerArray) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Namespace", "ID", "Frame", "Type", "Scale", "Points"})
	for _, m := range markers.Markers {
		t.AppendRow(table.Row{m.Namespace, m.ID, m.Header.FrameID, m.Type, m.Scale.X, len(m.Points)})
	}
	return t.Render()
}
