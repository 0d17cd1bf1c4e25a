package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/roman-kulish/gantry-extractors/internal/extractor/mdcleaner"
	"github.com/roman-kulish/gantry-extractors/internal/extractor/netcdf"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "Path to the configuration file",
		EnvVar: "EXTRACTOR_CONFIG",
	},
	cli.StringFlag{
		Name:  "env",
		Usage: "Path to an env file, \".env\" is loaded when present",
	},
}

var commands = cli.Commands{
	cli.Command{
		Name:    "sensorposition",
		Aliases: []string{"sp"},
		Usage:   "Post sensor footprints of new captures to geostreams",
		Action:  sensorPositionAction,
	},
	cli.Command{
		Name:    "netcdf",
		Aliases: []string{"nc"},
		Usage:   "Dump NetCDF headers as CDL, XML and JSON",
		Action:  netcdfAction,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "output, o",
				Usage:  "Bucket URL or directory the dumps are written to",
				Value:  netcdf.DefaultOutput,
				EnvVar: "NETCDF_OUTPUT",
			},
			cli.BoolFlag{
				Name:   "overwrite",
				Usage:  "Regenerate dumps that already exist",
				EnvVar: "NETCDF_OVERWRITE",
			},
		},
	},
	cli.Command{
		Name:    "mdcleaner",
		Aliases: []string{"mc"},
		Usage:   "Replace dataset metadata with the cleaned source metadata",
		Action:  metadataCleanerAction,
		Flags: []cli.Flag{
			cli.BoolTFlag{
				Name:   "delete",
				Usage:  "Delete existing dataset metadata first",
				EnvVar: "DELETE_EXISTING_METADATA",
			},
			cli.StringFlag{
				Name:   "userid",
				Usage:  "User the cleaned metadata is attributed to",
				Value:  mdcleaner.DefaultUserID,
				EnvVar: "CLOWDER_USER_UUID",
			},
		},
	},
	cli.Command{
		Name:    "repairer",
		Aliases: []string{"r"},
		Usage:   "Re-upload missing raw files and re-run downstream extractors",
		Action:  repairerAction,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "callback",
				Usage:  "Extractor submitted instead of the sensor defaults",
				EnvVar: "CALLBACK_EXTRACTOR",
			},
		},
	},
	cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Update the ledger schema",
		Action:  migrateAction,
	},
	cli.Command{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "Print the version number",
		Action:  versionAction,
	},
}

func createCliApp() (app *cli.App) {
	app = cli.NewApp()
	app.Name = "gantry-extractors"
	app.Usage = "Run a field scanner extractor"
	app.Version = version
	app.Flags = globalFlags
	app.Commands = commands
	return
}
