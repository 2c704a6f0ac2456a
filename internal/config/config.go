package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type MetaAPI struct {
	Token              string `json:"token"`
	Endpoint           string `json:"endpoint"`
	MinIntervalSec     int    `json:"min_interval_sec"`
	BatchMaxConcurrent int    `json:"batch_max_concurrent"`
	// MaxRequestsPerMinute switches the limiter to a token bucket with
	// Burst capacity; when 0, the min-interval gate applies instead.
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`
	Burst                int `json:"burst"`
}

type Binance struct {
	Endpoint string `json:"endpoint"`
}

type Cache struct {
	RefreshTTLSec int `json:"refresh_ttl_sec"`
	BatchTTLSec   int `json:"batch_ttl_sec"`
}

type Refresh struct {
	// IntervalSec enables the periodic full-refresh loop when > 0.
	// 0 leaves refresh on-demand only (POST /refresh).
	IntervalSec int `json:"interval_sec"`
}

type Config struct {
	Server  Server  `json:"server"`
	MetaAPI MetaAPI `json:"metaapi"`
	Binance Binance `json:"binance"`
	Cache   Cache   `json:"cache"`
	Refresh Refresh `json:"refresh"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		MetaAPI: MetaAPI{
			MinIntervalSec:     1,
			BatchMaxConcurrent: 4,
		},
		Binance: Binance{
			Endpoint: "https://api.binance.com",
		},
		Cache: Cache{
			RefreshTTLSec: 30,
			BatchTTLSec:   2,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("METAAPI_TOKEN"); v != "" {
		cfg.MetaAPI.Token = v
	}
	if v := os.Getenv("METAAPI_ENDPOINT"); v != "" {
		cfg.MetaAPI.Endpoint = v
	}
	if v := os.Getenv("METAAPI_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MetaAPI.MinIntervalSec = x
		}
	}
	if v := os.Getenv("METAAPI_BATCH_MAX_CONCURRENT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.MetaAPI.BatchMaxConcurrent = x
		}
	}
	if v := os.Getenv("METAAPI_MAX_REQUESTS_PER_MINUTE"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MetaAPI.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("METAAPI_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.MetaAPI.Burst = x
		}
	}
	if v := os.Getenv("BINANCE_ENDPOINT"); v != "" {
		cfg.Binance.Endpoint = v
	}
	if v := os.Getenv("CACHE_REFRESH_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.RefreshTTLSec = x
		}
	}
	if v := os.Getenv("CACHE_BATCH_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.BatchTTLSec = x
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Refresh.IntervalSec = x
		}
	}
}
