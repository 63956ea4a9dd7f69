package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/orchestrate"
	"github.com/nodemesh/datashare/provider/memory"
	"github.com/nodemesh/datashare/service"
)

func main() {
	configFile := flag.String("config", "node.yaml", "path to the share-node config file")
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

	cfg, err := config.LoadNode(*configFile)
	if err != nil {
		logger.Error("Failed to load config", "path", *configFile, "error", err)
		os.Exit(1)
	}

	registries := make([]*client.Client, 0, len(cfg.RegistryURLs))
	for _, u := range cfg.RegistryURLs {
		c, err := client.New(client.Config{BaseURL: u, Logger: logger})
		if err != nil {
			logger.Error("Invalid registry URL", "url", u, "error", err)
			os.Exit(1)
		}
		registries = append(registries, c)
	}

	orch := orchestrate.New(orchestrate.Config{
		Logger:     logger,
		Node:       cfg,
		Provider:   memory.New(logger),
		Registries: registries,
	})
	defer orch.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go selfRegister(ctx, logger, cfg, registries)

	api := service.NewNodeAPI(ctx, logger, cfg, orch)
	api.Run()

	logger.Info("Share node exiting.")
}

// selfRegister keeps the node's record fresh on every configured
// registry. The first registration happens immediately so the node is
// resolvable as soon as it is up.
func selfRegister(ctx context.Context, logger *slog.Logger, cfg *config.Node, registries []*client.Client) {
	node := models.ShareNode{
		NodeID:   cfg.Identity.NodeID,
		URL:      cfg.Identity.URL,
		Name:     cfg.Identity.Name,
		TenantID: cfg.Identity.TenantID,
		Identity: cfg.Identity.Identity,
	}

	register := func() {
		for _, reg := range registries {
			callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, err := reg.Register(callCtx, node)
			cancel()
			if err != nil {
				logger.Error("Self-registration failed", "error", err)
			}
		}
	}

	register()

	ticker := time.NewTicker(cfg.RefreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			register()
		}
	}
}

func writeStarterConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}
	data, err := yaml.Marshal(config.GenerateNode())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
