// Package main is the voxelvis command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/voxelvis/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
