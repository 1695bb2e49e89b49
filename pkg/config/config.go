package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the orchestrator configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Verifier     VerifierConfig     `yaml:"verifier"`
	Quote        QuoteConfig        `yaml:"quote"`
	Swap         SwapConfig         `yaml:"swap"`
	Auth         AuthConfig         `yaml:"auth"`
	Redis        RedisConfig        `yaml:"redis"`
	Price        PriceConfig        `yaml:"price"`
	StateSync    StateSyncConfig    `yaml:"state_sync"`
	Signer       SignerConfig       `yaml:"signer"`
	Chains       []ChainConfig      `yaml:"chains" validate:"min=2,dive"`
	Assets       []AssetConfig      `yaml:"assets" validate:"min=1,dive"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings. Driver "memory"
// keeps records in process and is meant for local development only.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" default:"postgres" validate:"oneof=postgres memory"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"orchestrator"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// OrchestratorConfig tunes the scheduler loop, leases and retry policy
type OrchestratorConfig struct {
	TickInterval        time.Duration `yaml:"tick_interval" default:"30s" validate:"gt=0"`
	LeaseDuration       time.Duration `yaml:"lease_duration" default:"2m" validate:"gt=0"`
	Workers             int           `yaml:"workers" default:"10" validate:"gt=0"`
	BatchSize           int           `yaml:"batch_size" default:"100" validate:"gt=0"`
	MaxAttempts         int           `yaml:"max_attempts" default:"5" validate:"gt=0"`
	BackoffBase         time.Duration `yaml:"backoff_base" default:"30s" validate:"gt=0"`
	BackoffMax          time.Duration `yaml:"backoff_max" default:"30m" validate:"gtefield=BackoffBase"`
	StepTimeout         time.Duration `yaml:"step_timeout" default:"60s" validate:"gt=0,ltfield=LeaseDuration"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" default:"10m" validate:"gt=0"`
}

// VerifierConfig bounds the source event scan
type VerifierConfig struct {
	MinConfirmations uint64        `yaml:"min_confirmations" default:"2" validate:"gt=0"`
	MaxScanRange     uint64        `yaml:"max_scan_range" default:"5000" validate:"gt=0"`
	MaxWait          time.Duration `yaml:"max_wait" default:"24h" validate:"gt=0"`
}

// QuoteConfig contains pricing and slippage settings
type QuoteConfig struct {
	Validity           time.Duration `yaml:"validity" default:"30s" validate:"gt=0"`
	ImpactCap          float64       `yaml:"impact_cap" default:"0.10" validate:"gt=0,lt=1"`
	ImpactCoefficient  float64       `yaml:"impact_coefficient" default:"1.0" validate:"gt=0"`
	DefaultSlippage    float64       `yaml:"default_slippage" default:"0.005" validate:"gt=0,ltefield=MaxSlippage"`
	MaxSlippage        float64       `yaml:"max_slippage" default:"0.05" validate:"gt=0,lt=1"`
	CompleteGasLimit   uint64        `yaml:"complete_gas_limit" default:"200000"`
	SwapGasLimit       uint64        `yaml:"swap_gas_limit" default:"400000"`
	AllowLowConfidence bool          `yaml:"allow_low_confidence"`
}

// SwapConfig controls destination swap behaviour
type SwapConfig struct {
	AutoRequoteOnSlippage bool `yaml:"auto_requote_on_slippage"`
}

// AuthConfig contains JWT settings for the HTTP API
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
	Issuer    string `yaml:"issuer" default:"xchain-orchestrator"`
}

// RedisConfig configures the state snapshot publisher
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Channel string `yaml:"channel" default:"transfers.status"`
}

// PriceConfig configures the external USD price feed
type PriceConfig struct {
	URL       string             `yaml:"url"`
	Timeout   time.Duration      `yaml:"timeout" default:"5s"`
	CacheSize int                `yaml:"cache_size" default:"256" validate:"gt=0"`
	MaxStale  time.Duration      `yaml:"max_stale" default:"10m"`
	Static    map[string]float64 `yaml:"static"`
}

// StateSyncConfig sizes the snapshot emission buffer
type StateSyncConfig struct {
	BufferSize int `yaml:"buffer_size" default:"1024" validate:"gt=0"`
}

// SignerConfig configures the keyed signer. EncryptedPrivateKey is sealed
// with the master key read from MasterKeyEnv; PrivateKey is plaintext hex
// for local development.
type SignerConfig struct {
	PrivateKey          string `yaml:"private_key"`
	EncryptedPrivateKey string `yaml:"encrypted_private_key" validate:"excluded_with=PrivateKey"`
	MasterKeyEnv        string `yaml:"master_key_env" default:"ORCHESTRATOR_MASTER_KEY"`
}

// ChainConfig describes one supported chain
type ChainConfig struct {
	ID                string        `yaml:"id" validate:"required"`
	ChainID           int64         `yaml:"chain_id" validate:"gt=0"`
	RPCURL            string        `yaml:"rpc_url" validate:"required"`
	BridgeContract    string        `yaml:"bridge_contract" validate:"required"`
	PortalContract    string        `yaml:"portal_contract"`
	AggregatorRouter  string        `yaml:"aggregator_router"`
	NativeDecimals    int           `yaml:"native_decimals" default:"18"`
	AddressFormat     string        `yaml:"address_format" default:"evm" validate:"oneof=evm"`
	BlockTime         time.Duration `yaml:"block_time" default:"12s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"10"`
	Burst             int           `yaml:"burst" default:"20"`
	MaxGasPrice       string        `yaml:"max_gas_price"`
}

// AssetConfig describes an asset and its per-chain deployments
type AssetConfig struct {
	Symbol       string            `yaml:"symbol" validate:"required"`
	LiquidityUSD float64           `yaml:"liquidity_usd" validate:"gte=0"`
	Deployments  []AssetDeployment `yaml:"deployments" validate:"min=1,dive"`
}

// AssetDeployment is an asset's token contract on a single chain
type AssetDeployment struct {
	Chain        string `yaml:"chain" validate:"required"`
	Address      string `yaml:"address" validate:"required"`
	Decimals     int    `yaml:"decimals" default:"18" validate:"gte=0,lte=36"`
	NativePortal bool   `yaml:"native_portal"`
}

// Load reads the YAML file at path, expands ${ENV} references, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	chains := make(map[string]bool, len(cfg.Chains))
	for _, c := range cfg.Chains {
		if chains[c.ID] {
			return fmt.Errorf("duplicate chain id %q", c.ID)
		}
		chains[c.ID] = true
	}

	symbols := make(map[string]bool, len(cfg.Assets))
	for _, a := range cfg.Assets {
		sym := strings.ToUpper(a.Symbol)
		if symbols[sym] {
			return fmt.Errorf("duplicate asset %q", a.Symbol)
		}
		symbols[sym] = true
		for _, d := range a.Deployments {
			if !chains[d.Chain] {
				return fmt.Errorf("asset %s deployed on unknown chain %q", a.Symbol, d.Chain)
			}
		}
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.User == "" {
		return errors.New("database.user is required")
	}
	return nil
}
