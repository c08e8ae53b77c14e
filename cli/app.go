// Package cli contains the voxelvis command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/voxelvis/logging"
)

const (
	// Flags.
	flagConfig  = "config"
	flagOut     = "out"
	flagDebug   = "debug"
	flagLogFile = "log-file"

	loggerName = "voxelvis"
)

// NewApp returns the voxelvis application writing its output to out.
func NewApp(out io.Writer) *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:   "voxelvis",
		Usage:  "extract point clouds and occupancy markers from voxel layers",
		Writer: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to a rotated `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			level := logging.INFO
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			switch {
			case c.String(flagLogFile) != "":
				logger = logging.NewLoggerWithFile(loggerName, level, c.String(flagLogFile))
			case level == logging.DEBUG:
				logger = logging.NewDebugLogger(loggerName)
			default:
				logger = logging.NewLogger(loggerName)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "build layers from a config and write every extraction",
				UsageText: "voxelvis extract --config FILE [--out DIR]",
				Flags: []cli.Flag{
					newConfigFlag(),
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "write outputs to `DIR`, overriding output.dir of the config",
					},
				},
				Action: func(c *cli.Context) error {
					return extractAction(c, logger)
				},
			},
			{
				Name:      "inspect",
				Usage:     "print a summary of a point cloud file",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					return inspectAction(c, logger)
				},
			},
			{
				Name:  "layers",
				Usage: "print the blocks the config allocates",
				Flags: []cli.Flag{newConfigFlag()},
				Action: func(c *cli.Context) error {
					return layersAction(c, logger)
				},
			},
		},
	}
}

func newConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Usage:    "load configuration from `FILE`",
		Required: true,
	}
}
