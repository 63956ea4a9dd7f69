package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type RateLimiterConfig struct {
	Limit float64 `yaml:"limit"` // Requests per second
	Burst int     `yaml:"burst"` // Burst size
}

type RateLimiters struct {
	Nodes   RateLimiterConfig `yaml:"nodes"`
	Share   RateLimiterConfig `yaml:"share"`
	Consume RateLimiterConfig `yaml:"consume"`
	Default RateLimiterConfig `yaml:"default"`
}

// Identity is the node's own registration record: what it posts to the
// registries and what the registries hand to provider nodes that want to
// share with it.
type Identity struct {
	NodeID   string `yaml:"nodeId"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenantId"`
	Identity string `yaml:"identity"`
}

// ProviderAccount locates the sharing-provider account all provider-side
// resources are created under.
type ProviderAccount struct {
	SubscriptionID    string `yaml:"subscriptionId"`
	AccountName       string `yaml:"accountName"`
	ResourceGroupName string `yaml:"resourceGroupName"`
}

// ConsumeTarget is the destination template for consumed datasets. Folder
// and file formats may carry {date}, {time}, {node_id} and {invitation_id}
// placeholders, expanded per consume call.
type ConsumeTarget struct {
	ResourceGroupName  string `yaml:"resourceGroupName"`
	StorageAccountName string `yaml:"storageAccountName"`
	ContainerName      string `yaml:"containerName"`
	FolderFormat       string `yaml:"folderFormat"`
	FileNameFormat     string `yaml:"fileNameFormat"`
}

// Node is the configuration for a share-node daemon.
type Node struct {
	HTTPBinding   string          `yaml:"httpBinding"`
	TLS           TLS             `yaml:"tls"`
	Identity      Identity        `yaml:"identity"`
	RegistryURLs  []string        `yaml:"registryUrls"`
	RefreshPeriod time.Duration   `yaml:"refreshPeriod"` // self-registration interval
	NodeCacheTTL  time.Duration   `yaml:"nodeCacheTTL"`  // resolved-node cache lifetime
	Provider      ProviderAccount `yaml:"provider"`
	Consume       ConsumeTarget   `yaml:"consume"`
	RateLimiters  RateLimiters    `yaml:"rateLimiters"`
}

// Registry is the configuration for a registry daemon.
type Registry struct {
	HTTPBinding   string        `yaml:"httpBinding"`
	TLS           TLS           `yaml:"tls"`
	DataDir       string        `yaml:"dataDir"`
	RefreshPeriod time.Duration `yaml:"refreshPeriod"` // liveness window and sweep interval
	RateLimiters  RateLimiters  `yaml:"rateLimiters"`
}

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrHTTPBindingMissing       = errors.New("httpBinding is missing in config")
	ErrNodeIDMissing            = errors.New("identity.nodeId is missing in config")
	ErrNodeURLMissing           = errors.New("identity.url is missing in config")
	ErrTenantIDMissing          = errors.New("identity.tenantId is missing in config")
	ErrIdentityMissing          = errors.New("identity.identity is missing in config")
	ErrRegistryURLsMissing      = errors.New("no registryUrls defined in config")
	ErrRefreshPeriodMissing     = errors.New("refreshPeriod is missing in config")
	ErrDataDirMissing           = errors.New("dataDir is missing in config and is required for the node store")
	ErrConsumeContainerMissing  = errors.New("consume.containerName is missing in config")
	ErrConsumeFolderMissing     = errors.New("consume.folderFormat is missing in config")
	ErrConsumeFileNameMissing   = errors.New("consume.fileNameFormat is missing in config")
	ErrTLSIncomplete            = errors.New("TLS configuration incomplete: both cert and key must be provided if one is specified")
)

// LoadNode reads and validates a share-node config file.
func LoadNode(configFile string) (*Node, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	var cfg Node
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ErrConfigFileUnmarshallable
	}

	if cfg.HTTPBinding == "" {
		return nil, ErrHTTPBindingMissing
	}
	if cfg.Identity.NodeID == "" {
		return nil, ErrNodeIDMissing
	}
	if cfg.Identity.URL == "" {
		return nil, ErrNodeURLMissing
	}
	if cfg.Identity.TenantID == "" {
		return nil, ErrTenantIDMissing
	}
	if cfg.Identity.Identity == "" {
		return nil, ErrIdentityMissing
	}
	if len(cfg.RegistryURLs) == 0 {
		return nil, ErrRegistryURLsMissing
	}
	if cfg.RefreshPeriod == 0 {
		return nil, ErrRefreshPeriodMissing
	}
	if cfg.Consume.ContainerName == "" {
		return nil, ErrConsumeContainerMissing
	}
	if cfg.Consume.FolderFormat == "" {
		return nil, ErrConsumeFolderMissing
	}
	if cfg.Consume.FileNameFormat == "" {
		return nil, ErrConsumeFileNameMissing
	}
	if err := validateTLS(cfg.TLS); err != nil {
		return nil, err
	}

	if cfg.NodeCacheTTL == 0 {
		cfg.NodeCacheTTL = cfg.RefreshPeriod
	}

	return &cfg, nil
}

// LoadRegistry reads and validates a registry config file.
func LoadRegistry(configFile string) (*Registry, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	var cfg Registry
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ErrConfigFileUnmarshallable
	}

	if cfg.HTTPBinding == "" {
		return nil, ErrHTTPBindingMissing
	}
	if cfg.DataDir == "" {
		return nil, ErrDataDirMissing
	}
	if cfg.RefreshPeriod == 0 {
		return nil, ErrRefreshPeriodMissing
	}
	if err := validateTLS(cfg.TLS); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateTLS(t TLS) error {
	if (t.Cert != "" && t.Key == "") || (t.Cert == "" && t.Key != "") {
		return ErrTLSIncomplete
	}
	return nil
}

// GenerateNode returns a starter share-node configuration.
func GenerateNode() *Node {
	return &Node{
		HTTPBinding: "127.0.0.1:8010",
		Identity: Identity{
			NodeID:   "node-a",
			Name:     "node-a",
			URL:      "http://127.0.0.1:8010",
			TenantID: "tenant-a",
			Identity: "identity-a",
		},
		RegistryURLs:  []string{"http://127.0.0.1:8000"},
		RefreshPeriod: 60 * time.Second,
		NodeCacheTTL:  60 * time.Second,
		Provider: ProviderAccount{
			SubscriptionID:    "00000000-0000-0000-0000-000000000000",
			AccountName:       "datashare-account",
			ResourceGroupName: "datashare-rg",
		},
		Consume: ConsumeTarget{
			ResourceGroupName:  "datashare-rg",
			StorageAccountName: "datasharestore",
			ContainerName:      "consume",
			FolderFormat:       "consume/{node_id}/dataset-{date}",
			FileNameFormat:     "output-00001.csv",
		},
		RateLimiters: RateLimiters{
			Nodes:   RateLimiterConfig{Limit: 100.0, Burst: 200},
			Share:   RateLimiterConfig{Limit: 50.0, Burst: 100},
			Consume: RateLimiterConfig{Limit: 50.0, Burst: 100},
			Default: RateLimiterConfig{Limit: 100.0, Burst: 200},
		},
	}
}

// GenerateRegistry returns a starter registry configuration.
func GenerateRegistry() *Registry {
	return &Registry{
		HTTPBinding:   "127.0.0.1:8000",
		DataDir:       "data/registry",
		RefreshPeriod: 120 * time.Second,
		RateLimiters: RateLimiters{
			Nodes:   RateLimiterConfig{Limit: 100.0, Burst: 200},
			Share:   RateLimiterConfig{Limit: 50.0, Burst: 100},
			Consume: RateLimiterConfig{Limit: 50.0, Burst: 100},
			Default: RateLimiterConfig{Limit: 100.0, Burst: 200},
		},
	}
}
