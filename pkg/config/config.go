// Package config loads the conductor's declarative YAML configuration
// (§6), the way the teacher's cmd/warren flags and manager.Config seed
// a Manager, generalized into a single validated file instead of CLI
// flags plus ad hoc defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/holochain/holochain-core/pkg/herr"
	"gopkg.in/yaml.v3"
)

// KeystoreKind selects which keystore implementation backs signing.
type KeystoreKind string

const (
	KeystoreDangerTest       KeystoreKind = "DangerTest"
	KeystoreLairServerInProc KeystoreKind = "LairServerInProc"
	KeystoreLairServer       KeystoreKind = "LairServer"
)

// KeystoreConfig selects and parameterizes the keystore.
type KeystoreConfig struct {
	Kind           KeystoreKind `yaml:"kind"`
	ConnectionURL  string       `yaml:"connection_url,omitempty"`
}

// AdminDriverKind enumerates admin interface transports. Only
// Websocket is implemented; the tag is kept open per §6.
type AdminDriverKind string

const (
	AdminDriverWebsocket AdminDriverKind = "Websocket"
)

// AdminInterface describes one admin ws listener.
type AdminInterface struct {
	Driver         AdminDriverKind `yaml:"driver"`
	Port           int             `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty"`
}

// NetworkConfig configures peer discovery and transport.
type NetworkConfig struct {
	BootstrapURL string `yaml:"bootstrap_url"`
	SignalURL    string `yaml:"signal_url,omitempty"`
}

// DbSyncStrategy maps a named strategy to a storage engine sync level.
type DbSyncStrategy string

const (
	SyncFast      DbSyncStrategy = "Fast"
	SyncResilient DbSyncStrategy = "Resilient"
)

// TuningParams are the operator-overridable timing constants named in §6.
type TuningParams struct {
	SysValidationRetryDelay              time.Duration `yaml:"sys_validation_retry_delay"`
	CountersigningResolutionRetryDelay   time.Duration `yaml:"countersigning_resolution_retry_delay"`
	CountersigningResolutionRetryLimit   int           `yaml:"countersigning_resolution_retry_limit,omitempty"`
	MinPublishInterval                   time.Duration `yaml:"min_publish_interval"`
}

// DefaultTuningParams returns the §6-specified defaults.
func DefaultTuningParams() TuningParams {
	return TuningParams{
		SysValidationRetryDelay:            10 * time.Second,
		CountersigningResolutionRetryDelay: 5 * time.Minute,
		MinPublishInterval:                 5 * time.Minute,
	}
}

// Config is the top-level conductor configuration surface.
type Config struct {
	DataRootPath                       string           `yaml:"data_root_path"`
	Keystore                           KeystoreConfig   `yaml:"keystore"`
	AdminInterfaces                    []AdminInterface `yaml:"admin_interfaces"`
	Network                            NetworkConfig    `yaml:"network"`
	DbSyncStrategy                     DbSyncStrategy   `yaml:"db_sync_strategy"`
	DbMaxReaders                       int              `yaml:"db_max_readers"`
	TuningParams                       TuningParams     `yaml:"tuning_params"`
	DeviceSeedLairTag                  string           `yaml:"device_seed_lair_tag,omitempty"`
	DangerGenerateThrowawayDeviceSeed  bool             `yaml:"danger_generate_throwaway_device_seed"`
}

const defaultDbMaxReaders = 32

// Load reads and validates a Config from path. A ConfigurationError
// fault here is fatal: per §7 the conductor refuses to start.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, herr.Configuration("config.Load", err)
	}

	cfg := Config{
		DbMaxReaders: defaultDbMaxReaders,
		TuningParams: DefaultTuningParams(),
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, herr.Configuration("config.Load", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, herr.Configuration("config.Validate", err)
	}
	return cfg, nil
}

// Validate checks the configuration is self-consistent, independent
// of whether the referenced paths/URLs are reachable.
func (c Config) Validate() error {
	if c.DataRootPath == "" {
		return fmt.Errorf("data_root_path is required")
	}
	switch c.Keystore.Kind {
	case KeystoreDangerTest, KeystoreLairServerInProc:
	case KeystoreLairServer:
		if c.Keystore.ConnectionURL == "" {
			return fmt.Errorf("keystore.connection_url is required for LairServer")
		}
	default:
		return fmt.Errorf("unrecognized keystore kind %q", c.Keystore.Kind)
	}
	for _, ai := range c.AdminInterfaces {
		if ai.Driver != AdminDriverWebsocket {
			return fmt.Errorf("unrecognized admin interface driver %q", ai.Driver)
		}
		if ai.Port <= 0 || ai.Port > 65535 {
			return fmt.Errorf("admin interface port %d out of range", ai.Port)
		}
	}
	switch c.DbSyncStrategy {
	case SyncFast, SyncResilient, "":
	default:
		return fmt.Errorf("unrecognized db_sync_strategy %q", c.DbSyncStrategy)
	}
	return nil
}

// SyncLevel is the storage engine's own enum (§6), mapped from the
// operator-facing named strategy.
type SyncLevel string

const (
	SyncOff    SyncLevel = "Off"
	SyncNormal SyncLevel = "Normal"
	SyncFull   SyncLevel = "Full"
)

// SyncLevel resolves the configured strategy to a storage sync level.
func (c Config) SyncLevel() SyncLevel {
	switch c.DbSyncStrategy {
	case SyncResilient:
		return SyncNormal
	case SyncFast, "":
		return SyncOff
	default:
		return SyncOff
	}
}
