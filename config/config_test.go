package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadNode(t *testing.T) {
	t.Run("starter config loads", func(t *testing.T) {
		path := writeConfig(t, GenerateNode())
		cfg, err := LoadNode(path)
		if err != nil {
			t.Fatalf("LoadNode() error = %v", err)
		}
		if cfg.Identity.NodeID == "" {
			t.Errorf("LoadNode() lost identity.nodeId")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadNode("does-not-exist.yaml"); !errors.Is(err, ErrConfigFileUnreadable) {
			t.Errorf("LoadNode() error = %v, want ErrConfigFileUnreadable", err)
		}
	})

	t.Run("validation sentinels", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*Node)
			want   error
		}{
			{"no binding", func(c *Node) { c.HTTPBinding = "" }, ErrHTTPBindingMissing},
			{"no node id", func(c *Node) { c.Identity.NodeID = "" }, ErrNodeIDMissing},
			{"no url", func(c *Node) { c.Identity.URL = "" }, ErrNodeURLMissing},
			{"no tenant", func(c *Node) { c.Identity.TenantID = "" }, ErrTenantIDMissing},
			{"no identity", func(c *Node) { c.Identity.Identity = "" }, ErrIdentityMissing},
			{"no registries", func(c *Node) { c.RegistryURLs = nil }, ErrRegistryURLsMissing},
			{"no refresh period", func(c *Node) { c.RefreshPeriod = 0 }, ErrRefreshPeriodMissing},
			{"no consume container", func(c *Node) { c.Consume.ContainerName = "" }, ErrConsumeContainerMissing},
			{"no consume folder", func(c *Node) { c.Consume.FolderFormat = "" }, ErrConsumeFolderMissing},
			{"no consume file name", func(c *Node) { c.Consume.FileNameFormat = "" }, ErrConsumeFileNameMissing},
			{"half a tls config", func(c *Node) { c.TLS.Cert = "server.crt" }, ErrTLSIncomplete},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := GenerateNode()
				tc.mutate(cfg)
				if _, err := LoadNode(writeConfig(t, cfg)); !errors.Is(err, tc.want) {
					t.Errorf("LoadNode() error = %v, want %v", err, tc.want)
				}
			})
		}
	})

	t.Run("cache ttl defaults to the refresh period", func(t *testing.T) {
		cfg := GenerateNode()
		cfg.NodeCacheTTL = 0
		cfg.RefreshPeriod = 90 * time.Second
		loaded, err := LoadNode(writeConfig(t, cfg))
		if err != nil {
			t.Fatalf("LoadNode() error = %v", err)
		}
		if loaded.NodeCacheTTL != 90*time.Second {
			t.Errorf("NodeCacheTTL = %v, want 90s", loaded.NodeCacheTTL)
		}
	})
}

func TestLoadRegistry(t *testing.T) {
	t.Run("starter config loads", func(t *testing.T) {
		path := writeConfig(t, GenerateRegistry())
		if _, err := LoadRegistry(path); err != nil {
			t.Fatalf("LoadRegistry() error = %v", err)
		}
	})

	t.Run("missing data dir", func(t *testing.T) {
		cfg := GenerateRegistry()
		cfg.DataDir = ""
		if _, err := LoadRegistry(writeConfig(t, cfg)); !errors.Is(err, ErrDataDirMissing) {
			t.Errorf("LoadRegistry() error = %v, want ErrDataDirMissing", err)
		}
	})

	t.Run("garbage content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadRegistry(path); !errors.Is(err, ErrConfigFileUnmarshallable) {
			t.Errorf("LoadRegistry() error = %v, want ErrConfigFileUnmarshallable", err)
		}
	})
}
