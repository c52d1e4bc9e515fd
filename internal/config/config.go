// Package config loads process configuration: built-in defaults, then an
// optional YAML file, then CCX_* environment variables. Commands apply
// their flags last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"carbon-credit-exchange/internal/program"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CCX_"

type Config struct {
	Solana  SolanaConfig  `yaml:"solana"`
	Storage StorageConfig `yaml:"storage"`
	Content ContentConfig `yaml:"content"`
	Sync    SyncConfig    `yaml:"sync"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type SolanaConfig struct {
	RPCURL            string        `yaml:"rpc_url"`
	WSURL             string        `yaml:"ws_url"`
	ProgramID         string        `yaml:"program_id"`
	MetadataProgramID string        `yaml:"metadata_program_id"`
	KeypairPath       string        `yaml:"keypair_path"`
	Commitment        string        `yaml:"commitment"`
	ConfirmTimeout    time.Duration `yaml:"confirm_timeout"`
	RateLimit         float64       `yaml:"rate_limit"` // requests per second, 0 disables
}

type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`
}

type ContentConfig struct {
	IPFSAPI    string `yaml:"ipfs_api"`
	GatewayURL string `yaml:"gateway_url"`
}

type SyncConfig struct {
	Schedule string `yaml:"schedule"`
	Workers  int    `yaml:"workers"`
	Issuer   string `yaml:"issuer"` // placeholder scan is off when empty
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Solana: SolanaConfig{
			RPCURL:            "https://api.devnet.solana.com",
			WSURL:             "wss://api.devnet.solana.com",
			ProgramID:         program.DefaultExchangeProgramID,
			MetadataProgramID: "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s",
			Commitment:        "confirmed",
			ConfirmTimeout:    60 * time.Second,
			RateLimit:         10,
		},
		Content: ContentConfig{
			IPFSAPI:    "localhost:5001",
			GatewayURL: "https://gateway.pinata.cloud/ipfs",
		},
		Sync: SyncConfig{
			Schedule: "@every 1m",
			Workers:  4,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file at an
// explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Solana.RPCURL, "RPC_URL")
	setString(&c.Solana.WSURL, "WS_URL")
	setString(&c.Solana.ProgramID, "PROGRAM_ID")
	setString(&c.Solana.MetadataProgramID, "METADATA_PROGRAM_ID")
	setString(&c.Solana.KeypairPath, "KEYPAIR")
	setString(&c.Solana.Commitment, "COMMITMENT")
	setString(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	setString(&c.Content.IPFSAPI, "IPFS_API")
	setString(&c.Content.GatewayURL, "GATEWAY_URL")
	setString(&c.Sync.Schedule, "SYNC_SCHEDULE")
	setString(&c.Sync.Issuer, "ISSUER")
	setString(&c.Server.Addr, "HTTP_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		setDuration(&c.Solana.ConfirmTimeout, "CONFIRM_TIMEOUT"),
		setFloat(&c.Solana.RateLimit, "RPC_RATE_LIMIT"),
		setInt(&c.Sync.Workers, "SYNC_WORKERS"),
		setBool(&c.Storage.UseMemory, "USE_MEMORY"),
	)
	return errors.Join(errs...)
}

// Validate checks required fields.
func (c *Config) Validate() error {
	switch {
	case c.Solana.RPCURL == "":
		return fmt.Errorf("%sRPC_URL is required", EnvPrefix)
	case c.Solana.ProgramID == "":
		return fmt.Errorf("%sPROGRAM_ID is required", EnvPrefix)
	case c.Solana.ConfirmTimeout <= 0:
		return fmt.Errorf("%sCONFIRM_TIMEOUT must be positive", EnvPrefix)
	case c.Sync.Workers <= 0:
		return fmt.Errorf("%sSYNC_WORKERS must be positive", EnvPrefix)
	case !c.Storage.UseMemory && (c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == ""):
		return fmt.Errorf("%sPOSTGRES_DSN and %sCLICKHOUSE_DSN are required unless %sUSE_MEMORY is set",
			EnvPrefix, EnvPrefix, EnvPrefix)
	}
	return nil
}

// LoadEnvFile sets variables from a .env file that are not already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return v, ok && v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}
