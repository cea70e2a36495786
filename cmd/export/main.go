// Package main is a CLI that renders a single map area to a PNG file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/config"
	"github.com/mapnest/mapnest/internal/db"
	"github.com/mapnest/mapnest/internal/export"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file")
	mapAreaID := flag.Int64("map-area", 0, "ID of the map area to render (required)")
	outDir := flag.String("out", "", "output directory (defaults to the configured export dir)")
	width := flag.Int("width", export.DefaultWidth, "image width in pixels")
	height := flag.Int("height", export.DefaultHeight, "image height in pixels")
	flag.Parse()

	if *help {
		fmt.Println("MapNest Export")
		fmt.Println()
		fmt.Println("Renders a map area's boundary and visible annotations to a PNG file.")
		fmt.Println()
		fmt.Println("Usage: export -map-area <id> [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *mapAreaID <= 0 {
		fmt.Fprintln(os.Stderr, "export: -map-area is required")
		flag.PrintDefaults()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx := context.Background()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	dir := *outDir
	if dir == "" {
		dir = cfg.ExportDir
	}

	renderer, err := export.NewRenderer(export.Options{Width: *width, Height: *height})
	if err != nil {
		logger.Error("failed to initialize renderer", "error", err)
		os.Exit(1)
	}

	service, err := export.NewService(export.ServiceConfig{
		Areas:       maparea.NewPostgresRepository(sqlDB, logger),
		Boundaries:  boundary.NewPostgresRepository(sqlDB, logger),
		Layers:      layer.NewPostgresRepository(sqlDB, logger),
		Annotations: annotation.NewPostgresRepository(sqlDB, logger),
		Renderer:    renderer,
		Dir:         dir,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to initialize export service", "error", err)
		os.Exit(1)
	}

	result, err := service.Export(ctx, *mapAreaID)
	if err != nil {
		logger.Error("export failed", "map_area_id", *mapAreaID, "error", err)
		os.Exit(1)
	}

	fmt.Println(result.ImageURL)
	if result.ThumbnailURL != "" {
		fmt.Println(result.ThumbnailURL)
	}
}
