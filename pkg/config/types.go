package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Cache    CacheConfig    `yaml:"cache"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Compile  CompileConfig  `yaml:"compile"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds http, storage and page-template settings.
type ServerConfig struct {
	Address      string    `yaml:"address"`
	Port         int       `yaml:"port"`
	DBPath       string    `yaml:"db_path"`
	TemplatesDir string    `yaml:"templates_dir"`
	PageTemplate string    `yaml:"page_template"`
	StaticDir    string    `yaml:"static_dir"`
	TLS          TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds the master key, captcha and rate limit settings.
// The master key and captcha secret are normally supplied via environment
// (CODESHARE_MASTER_KEY, CODESHARE_CAPTCHA_SECRET); the yaml fields exist
// for development setups only.
type SecurityConfig struct {
	MasterKeyHex string        `yaml:"master_key_hex"`
	Captcha      CaptchaConfig `yaml:"captcha"`
	RateLimit    RateLimit     `yaml:"rate_limit"`
}

// CaptchaConfig points at the remote captcha verification service.
type CaptchaConfig struct {
	VerifyURL string `yaml:"verify_url"`
	Secret    string `yaml:"secret"`
}

// RateLimit drives the per-IP request throttle and the signup account cap.
type RateLimit struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
	MaxAccounts int      `yaml:"max_accounts"`
}

// CacheConfig bounds the template cache and maps template names to files.
type CacheConfig struct {
	MaxBytes SizeBytes         `yaml:"max_bytes"`
	Mappings map[string]string `yaml:"mappings"`
}

// RankingConfig controls the browse-list rebuild schedule and paging.
type RankingConfig struct {
	Cron     string `yaml:"cron"`
	PageSize int    `yaml:"page_size"`
}

// CompileConfig points at the remote compile service and throttles
// outbound calls to it.
type CompileConfig struct {
	Endpoint string  `yaml:"endpoint"`
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns the listen address in host:port form. An address that
// already carries a port (e.g. the --addr flag value) wins outright.
func (c *Config) Addr() string {
	host := c.Server.Address
	if strings.Contains(host, ":") {
		return host
	}
	port := c.Server.Port
	if port == 0 {
		port = 3000
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "10MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "60s" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
