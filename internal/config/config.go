package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ledger service ids used by the local replica when nothing else is configured.
const (
	DefaultProofOfStateID = "umunu-kh777-77774-qaaca-cai"
	DefaultBTCSignerID    = "uxrrr-q7777-77774-qaaaq-cai"
	DefaultCrossChainID   = "u6s2n-gx777-77774-qaaba-cai"
	DefaultEVMRPCID       = "uzt4z-lp777-77774-qaabq-cai"
)

// LoadEnv reads KEY=VALUE pairs from envFile into the process environment.
// A missing file is not an error.
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}
	return nil
}

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("IQUBE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("allowed_origin", "http://localhost:3000")
		viper.SetDefault("db_path", "./dev_iqube_ops.db")
		viper.SetDefault("log_level", "debug")
		viper.SetDefault("ledger.host", "http://127.0.0.1:4943")
		viper.SetDefault("ledger.fetch_root_key", true)
		viper.SetDefault("ledger.fallback_enabled", true)
	} else if env == "production" {
		viper.SetDefault("allowed_origin", "https://ops.iqube.example")
		viper.SetDefault("db_path", "/var/lib/iqube-ops/ops.db")
		viper.SetDefault("log_level", "info")
		viper.SetDefault("ledger.host", "https://icp-api.io")
		viper.SetDefault("ledger.fetch_root_key", false)
		viper.SetDefault("ledger.fallback_enabled", false)
	}

	viper.SetDefault("api_port", 9003)
	viper.SetDefault("log_file", "iqube-ops.log")
	viper.SetDefault("jwt_keys_dir", "./jwtkeys")
	viper.SetDefault("user_pubkey", "")
	viper.SetDefault("nats_url", "")

	viper.SetDefault("ledger.proof_of_state_id", DefaultProofOfStateID)
	viper.SetDefault("ledger.btc_signer_id", DefaultBTCSignerID)
	viper.SetDefault("ledger.cross_chain_id", DefaultCrossChainID)
	viper.SetDefault("ledger.evm_rpc_id", DefaultEVMRPCID)
	viper.SetDefault("ledger.solana_signer_id", "")
	viper.SetDefault("ledger.transport", "agent") // or "gateway"
	viper.SetDefault("ledger.timeout", "30s")

	viper.SetDefault("status.match_mode", "latest") // or "exact"
	viper.SetDefault("status.resolve_depth", false)
	viper.SetDefault("status.required_depth", 6)

	viper.SetDefault("explorer.esplora_url", "https://blockstream.info/testnet/api")
	viper.SetDefault("explorer.mempool_url", "https://mempool.space/testnet/api")
	viper.SetDefault("explorer.electrum_server", "testnet.aranguren.org:51002")
	viper.SetDefault("explorer.electrum_ssl", true)

	viper.SetDefault("btc.proxy_base", "http://localhost:9003")
	viper.SetDefault("btc.utxo_timeout", "15s")
	viper.SetDefault("btc.default_fee_rate", 5) // in sat/vB
	viper.SetDefault("btc.fee_buffer", 100)     // in satoshis
	viper.SetDefault("btc.dust_limit", 546)     // in satoshis
	viper.SetDefault("btc.enable_rbf", false)
	viper.SetDefault("btc.network", "testnet3")
	viper.SetDefault("btc.vault_path", "./vault.json")
	viper.SetDefault("btc.vault_ttl", "5m")

	viper.SetDefault("evm.chain_id", 80002)
	viper.SetDefault("evm.chain_name", "Polygon Amoy")
	viper.SetDefault("evm.rpc_url", "https://rpc-amoy.polygon.technology")
	viper.SetDefault("evm.explorer_url", "https://amoy.polygonscan.com")
	viper.SetDefault("evm.currency_symbol", "POL")
	viper.SetDefault("evm.contract_address", "0x632E1d32e34F0A690635BBcbec0D066daa448ede")
	viper.SetDefault("evm.private_key", "")

	viper.SetDefault("rate_limit.per_sec", 15)
	viper.SetDefault("rate_limit.burst", 50)
}

// Duration reads a duration key, falling back to def when it is unset or malformed.
func Duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
