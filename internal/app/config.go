package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/solwatch/core/config"
	coredatabase "github.com/m3rciful/solwatch/core/database"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/ledger/solanarpc"
)

// EndpointConfig holds one cluster's URLs. Empty fields take the public defaults.
type EndpointConfig struct {
	RPC string `yaml:"rpc"`
	WS  string `yaml:"ws"`
}

// NetworksConfig selects the clusters every address is watched on.
type NetworksConfig struct {
	Enabled      []string                  `yaml:"enabled" envconfig:"NETWORKS_ENABLED"`
	Endpoints    map[string]EndpointConfig `yaml:"endpoints"`
	Commitment   string                    `yaml:"commitment" envconfig:"NETWORKS_COMMITMENT"`
	ExplorerBase string                    `yaml:"explorer_base" envconfig:"EXPLORER_BASE"`
}

// MonitorConfig tunes balance subscriptions.
type MonitorConfig struct {
	DetailAttempts int           `yaml:"detail_attempts"`
	DetailBackoff  time.Duration `yaml:"detail_backoff"`
	QueueSize      int           `yaml:"queue_size"`
	ReconnectMin   time.Duration `yaml:"reconnect_min"`
	ReconnectMax   time.Duration `yaml:"reconnect_max"`
}

// TransferConfig bounds submission and confirmation.
type TransferConfig struct {
	Timeout      time.Duration `yaml:"timeout" envconfig:"TRANSFER_TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SenderConfig sizes the outbound Telegram dispatcher.
type SenderConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// MetricsConfig enables the HTTP status server when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full process configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Networks NetworksConfig      `yaml:"networks"`
	Monitor  MonitorConfig       `yaml:"monitor"`
	Transfer TransferConfig      `yaml:"transfer"`
	Sender   SenderConfig        `yaml:"sender"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Database coredatabase.Config `yaml:"database"`

	networks  []ledger.Network
	endpoints map[ledger.Network]solanarpc.Endpoint
}

// CoreConfig implements coreconfig.Carrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// EnabledNetworks returns the validated network list.
func (c *Config) EnabledNetworks() []ledger.Network {
	return append([]ledger.Network(nil), c.networks...)
}

// Endpoints returns the configured endpoints keyed by network.
func (c *Config) Endpoints() map[ledger.Network]solanarpc.Endpoint {
	out := make(map[ledger.Network]solanarpc.Endpoint, len(c.endpoints))
	for k, v := range c.endpoints {
		out[k] = v
	}
	return out
}

// Load reads YAML at path, applies environment overrides, and validates
// every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the application sections and resolves networks.
func (c *Config) Normalize() error {
	enabled := c.Networks.Enabled
	if len(enabled) == 0 {
		for _, n := range ledger.Networks {
			enabled = append(enabled, string(n))
		}
	}
	seen := make(map[ledger.Network]struct{}, len(enabled))
	c.networks = c.networks[:0]
	for _, raw := range enabled {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := ledger.ParseNetwork(raw)
		if err != nil {
			return fmt.Errorf("networks.enabled: %w", err)
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		c.networks = append(c.networks, n)
	}
	if len(c.networks) == 0 {
		return fmt.Errorf("networks.enabled must name at least one network")
	}

	c.endpoints = make(map[ledger.Network]solanarpc.Endpoint, len(c.Networks.Endpoints))
	for name, ep := range c.Networks.Endpoints {
		n, err := ledger.ParseNetwork(name)
		if err != nil {
			return fmt.Errorf("networks.endpoints: %w", err)
		}
		c.endpoints[n] = solanarpc.Endpoint{RPC: strings.TrimSpace(ep.RPC), WS: strings.TrimSpace(ep.WS)}
	}

	c.Networks.Commitment = strings.ToLower(strings.TrimSpace(c.Networks.Commitment))
	if c.Networks.Commitment == "" {
		c.Networks.Commitment = "confirmed"
	}
	switch c.Networks.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid networks.commitment %q; allowed: processed, confirmed, finalized", c.Networks.Commitment)
	}
	c.Networks.ExplorerBase = strings.TrimRight(strings.TrimSpace(c.Networks.ExplorerBase), "/")
	if c.Networks.ExplorerBase == "" {
		c.Networks.ExplorerBase = ledger.DefaultExplorerBase
	}

	if c.Monitor.DetailAttempts < 0 {
		return fmt.Errorf("monitor.detail_attempts must be >= 0")
	}
	if c.Monitor.QueueSize < 0 {
		return fmt.Errorf("monitor.queue_size must be >= 0")
	}
	if c.Transfer.Timeout < 0 {
		return fmt.Errorf("transfer.timeout must be >= 0")
	}
	if c.Transfer.PollInterval < 0 {
		return fmt.Errorf("transfer.poll_interval must be >= 0")
	}
	if c.Sender.Workers < 0 || c.Sender.QueueSize < 0 {
		return fmt.Errorf("sender.workers and sender.queue_size must be >= 0")
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)

	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
