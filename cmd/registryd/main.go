package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/registry"
	"github.com/nodemesh/datashare/service"
)

func main() {
	configFile := flag.String("config", "registry.yaml", "path to the registry config file")
	generate := flag.Bool("generate", false, "write a starter config to the config path and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *generate {
		if err := writeStarterConfig(*configFile); err != nil {
			logger.Error("Failed to write starter config", "path", *configFile, "error", err)
			os.Exit(1)
		}
		logger.Info("Starter config written", "path", *configFile)
		return
	}

	cfg, err := config.LoadRegistry(*configFile)
	if err != nil {
		logger.Error("Failed to load config", "path", *configFile, "error", err)
		os.Exit(1)
	}

	store, err := registry.NewStore(registry.StoreConfig{
		Logger:    logger,
		Directory: cfg.DataDir,
	})
	if err != nil {
		logger.Error("Failed to open node store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reg := registry.New(registry.Config{
		Logger:        logger,
		Store:         store,
		RefreshPeriod: cfg.RefreshPeriod,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reg.Run(ctx)

	api := service.NewRegistryAPI(ctx, logger, cfg, reg)
	api.Run()

	logger.Info("Registry exiting.")
}

func writeStarterConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}
	data, err := yaml.Marshal(config.GenerateRegistry())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
