package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, env nor flags provide a value.
const (
	DefaultAddr         = "0.0.0.0"
	DefaultPort         = 3000
	DefaultDBPath       = "./data"
	DefaultTemplatesDir = "./pages"
	DefaultPageTemplate = "./page-template.html"
	DefaultStaticDir    = "."
	DefaultCacheBytes   = 10 * 1024 * 1024
	DefaultMaxRequests  = 50
	DefaultWindow       = 60 * time.Second
	DefaultMaxAccounts  = 7
	DefaultRankingCron  = "*/10 * * * *"
	DefaultPageSize     = 16
	DefaultCaptchaURL   = "https://www.google.com/recaptcha/api/siteverify"
	DefaultCompileURL   = "https://wasmexplorer-service.herokuapp.com/service.php"
)

// Load reads the YAML config at path. A missing file is not an error: the
// zero config plus defaults is returned so the server can run from env
// alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyDefaults(cfg)
				applyEnv(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddr
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = DefaultDBPath
	}
	if cfg.Server.TemplatesDir == "" {
		cfg.Server.TemplatesDir = DefaultTemplatesDir
	}
	if cfg.Server.PageTemplate == "" {
		cfg.Server.PageTemplate = DefaultPageTemplate
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = DefaultStaticDir
	}
	if cfg.Cache.MaxBytes <= 0 {
		cfg.Cache.MaxBytes = DefaultCacheBytes
	}
	if len(cfg.Cache.Mappings) == 0 {
		dir := cfg.Server.TemplatesDir
		cfg.Cache.Mappings = map[string]string{
			"main":                 cfg.Server.PageTemplate,
			"computer-programming": dir + "/computer-programming/computer-programming.html",
			"program":              dir + "/computer-programming/program.html",
			"course":               dir + "/computer-programming/course.html",
			"browse":               dir + "/computer-programming/browse.html",
			"home":                 dir + "/home/home.html",
			"login":                dir + "/login/login.html",
			"profile":              dir + "/profile/profile.html",
			"logs/dev":             dir + "/logs/dev.html",
			"tos":                  dir + "/tos/tos.html",
			"privacy-policy":       dir + "/privacy-policy/privacy-policy.html",
		}
	}
	if cfg.Security.RateLimit.MaxRequests <= 0 {
		cfg.Security.RateLimit.MaxRequests = DefaultMaxRequests
	}
	if cfg.Security.RateLimit.Window.Duration() <= 0 {
		cfg.Security.RateLimit.Window = Duration(DefaultWindow)
	}
	if cfg.Security.RateLimit.MaxAccounts <= 0 {
		cfg.Security.RateLimit.MaxAccounts = DefaultMaxAccounts
	}
	if cfg.Security.Captcha.VerifyURL == "" {
		cfg.Security.Captcha.VerifyURL = DefaultCaptchaURL
	}
	if cfg.Ranking.Cron == "" {
		cfg.Ranking.Cron = DefaultRankingCron
	}
	if cfg.Ranking.PageSize <= 0 {
		cfg.Ranking.PageSize = DefaultPageSize
	}
	if cfg.Compile.Endpoint == "" {
		cfg.Compile.Endpoint = DefaultCompileURL
	}
	if cfg.Compile.RPS <= 0 {
		cfg.Compile.RPS = 1
	}
	if cfg.Compile.Burst <= 0 {
		cfg.Compile.Burst = 2
	}
}

// applyEnv lets environment variables override file values. Secrets are
// only ever read from env or the file; they never appear in logs.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODESHARE_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CODESHARE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CODESHARE_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CODESHARE_MASTER_KEY"); v != "" {
		cfg.Security.MasterKeyHex = v
	}
	if v := os.Getenv("CODESHARE_CAPTCHA_SECRET"); v != "" {
		cfg.Security.Captcha.Secret = v
	}
	if v := os.Getenv("CODESHARE_LOG_LEVEL"); v != "" && cfg.Logging.Level == "" {
		cfg.Logging.Level = v
	}
}
