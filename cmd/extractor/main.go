package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/roman-kulish/gantry-extractors/cmd/extractor/app"
)

var version = "dev"

var logLevel slog.LevelVar

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

func main() {
	if err := createCliApp().Run(os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func sensorPositionAction(c *cli.Context) error {
	return run(c, app.SensorPosition())
}

func netcdfAction(c *cli.Context) error {
	return run(c, app.NetCDF(c.String("output"), c.Bool("overwrite")))
}

func metadataCleanerAction(c *cli.Context) error {
	return run(c, app.MetadataCleaner(c.String("userid"), c.BoolT("delete")))
}

func repairerAction(c *cli.Context) error {
	return run(c, app.Repairer(c.String("callback")))
}

func migrateAction(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	return app.Migrate(context.Background(), config, logger)
}

func versionAction(c *cli.Context) error {
	fmt.Println(version)
	return nil
}

func run(c *cli.Context, build app.Builder) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx, config, build, logger)
}

func loadConfig(c *cli.Context) (*app.Config, error) {
	configPath := c.GlobalString("config")

	config, err := app.LoadConfig(configPath, c.GlobalString("env"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var level slog.Level
	if err = level.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		return nil, fmt.Errorf("settings.logLevel: %w", err)
	}
	logLevel.Set(level)

	return config, nil
}
