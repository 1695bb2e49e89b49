package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
database:
  driver: memory
auth:
  jwt_secret: ${TEST_JWT_SECRET}
chains:
  - id: ethereum
    chain_id: 1
    rpc_url: http://localhost:8545
    bridge_contract: "0x00000000000000000000000000000000000000b1"
  - id: arbitrum
    chain_id: 42161
    rpc_url: http://localhost:8546
    bridge_contract: "0x00000000000000000000000000000000000000b2"
    aggregator_router: "0x00000000000000000000000000000000000000a2"
assets:
  - symbol: USDC
    liquidity_usd: 5000000
    deployments:
      - chain: ethereum
        address: "0x00000000000000000000000000000000000000c1"
        decimals: 6
      - chain: arbitrum
        address: "0x00000000000000000000000000000000000000c2"
        decimals: 6
`

func TestLoad_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "super-secret-signing-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Auth.JWTSecret != "super-secret-signing-key" {
		t.Errorf("expected env expansion, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Orchestrator.TickInterval != 30*time.Second {
		t.Errorf("expected 30s tick, got %s", cfg.Orchestrator.TickInterval)
	}
	if cfg.Orchestrator.LeaseDuration != 2*time.Minute {
		t.Errorf("expected 2m lease, got %s", cfg.Orchestrator.LeaseDuration)
	}
	if cfg.Orchestrator.Workers != 10 {
		t.Errorf("expected 10 workers, got %d", cfg.Orchestrator.Workers)
	}
	if cfg.Verifier.MinConfirmations != 2 || cfg.Verifier.MaxScanRange != 5000 {
		t.Errorf("unexpected verifier defaults: %+v", cfg.Verifier)
	}
	if cfg.Verifier.MaxWait != 24*time.Hour {
		t.Errorf("expected 24h max wait, got %s", cfg.Verifier.MaxWait)
	}
	if cfg.Quote.Validity != 30*time.Second || cfg.Quote.ImpactCap != 0.10 {
		t.Errorf("unexpected quote defaults: %+v", cfg.Quote)
	}
	if cfg.Orchestrator.ConfirmationTimeout != 10*time.Minute {
		t.Errorf("expected 10m confirmation timeout, got %s", cfg.Orchestrator.ConfirmationTimeout)
	}
	if cfg.Chains[0].NativeDecimals != 18 || cfg.Chains[0].AddressFormat != "evm" {
		t.Errorf("expected chain defaults, got %+v", cfg.Chains[0])
	}
}

func TestParse_RejectsUnknownDeploymentChain(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "super-secret-signing-key")
	raw := strings.Replace(sampleConfig, "chain: arbitrum", "chain: optimism", 1)

	_, err := Parse([]byte(raw))
	if err == nil || !strings.Contains(err.Error(), "unknown chain") {
		t.Fatalf("expected unknown chain error, got %v", err)
	}
}

func TestParse_RequiresSecret(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "")

	if _, err := Parse([]byte(sampleConfig)); err == nil {
		t.Fatal("expected validation error for empty jwt secret")
	}
}

func TestParse_PostgresRequiresUser(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "super-secret-signing-key")
	raw := strings.Replace(sampleConfig, "driver: memory", "driver: postgres", 1)

	_, err := Parse([]byte(raw))
	if err == nil || !strings.Contains(err.Error(), "database.user") {
		t.Fatalf("expected database.user error, got %v", err)
	}
}

func TestParse_StepTimeoutMustFitInLease(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "super-secret-signing-key")

	raw := sampleConfig + "orchestrator:\n  lease_duration: 2m\n  step_timeout: 5m\n"
	_, err := Parse([]byte(raw))
	if err == nil || !strings.Contains(err.Error(), "StepTimeout") {
		t.Fatalf("expected step timeout validation error, got %v", err)
	}

	raw = sampleConfig + "orchestrator:\n  lease_duration: 2m\n  step_timeout: 2m\n"
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatal("expected a step timeout equal to the lease to be rejected")
	}

	raw = sampleConfig + "orchestrator:\n  lease_duration: 5m\n  step_timeout: 90s\n"
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Orchestrator.StepTimeout != 90*time.Second {
		t.Errorf("expected 90s step timeout, got %s", cfg.Orchestrator.StepTimeout)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("expected invalid level error")
	}
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	_ = logger.Sync()
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("ORCHESTRATOR_DB_PASSWORD", "password")
	t.Setenv("ORCHESTRATOR_JWT_SECRET", "example-signing-key-0001")
	t.Setenv("ORCHESTRATOR_SEALED_SIGNER_KEY", "c2VhbGVk")
	t.Setenv("ETHEREUM_RPC_URL", "http://localhost:8545")
	t.Setenv("ARBITRUM_RPC_URL", "http://localhost:8547")

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Chains) != 2 || len(cfg.Assets) != 2 {
		t.Errorf("unexpected registry size: %d chains, %d assets", len(cfg.Chains), len(cfg.Assets))
	}
	if cfg.Chains[1].BlockTime != 250*time.Millisecond {
		t.Errorf("expected 250ms block time, got %s", cfg.Chains[1].BlockTime)
	}
	if cfg.Signer.EncryptedPrivateKey != "c2VhbGVk" || cfg.Signer.MasterKeyEnv != "ORCHESTRATOR_MASTER_KEY" {
		t.Errorf("unexpected signer config: %+v", cfg.Signer)
	}
	if cfg.Price.Static["WETH"] != 3200 {
		t.Errorf("expected static WETH price, got %v", cfg.Price.Static)
	}
}
