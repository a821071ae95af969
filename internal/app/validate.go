package app

import (
	"encoding/hex"
	"fmt"
	"os"

	"codeshare/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the loaded
// configuration before starting long-running services.
func validateConfig(cfg *config.Config) error {
	if cfg.Server.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CODESHARE_DB_PATH env, or server.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if mk := cfg.Security.MasterKeyHex; mk != "" {
		raw, err := hex.DecodeString(mk)
		if err != nil {
			return fmt.Errorf("invalid master_key_hex: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("master_key_hex must decode to 32 bytes, got %d", len(raw))
		}
	}

	if cfg.Security.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if cfg.Cache.MaxBytes.Int64() <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive")
	}
	return nil
}
