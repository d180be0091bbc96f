// Package config loads the settings shared by the server and the cli and
// assembles the discovery stack from them.
package config

import (
	"fmt"
	"os"
	"time"

	"pastpapers-backend/internal/components/configutil"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/scrapers/papacambridge"
	"pastpapers-backend/internal/scrapers/xtremepapers"
	"pastpapers-backend/internal/subjectcache"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "PASTPAPERS_CONFIG"

const DefaultConfigPath = "config.json5"

type HttpConfig struct {
	UserAgent string `json:"user_agent"`
	// Timeout is a go duration string, ex. "30s".
	Timeout string `json:"timeout"`
	// Rate is the number of requests per second allowed against a single host.
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
	// DumpDir receives a dump of every http message when set.
	DumpDir string `json:"dump_dir"`
}

type SourcesConfig struct {
	XtremepapersUrl  string `json:"xtremepapers_url"`
	PapacambridgeUrl string `json:"papacambridge_url"`
}

type CacheConfig struct {
	Database subjectcache.Config `json:"database"`
	// Lifetime is a go duration string, empty or "0" keeps entries forever.
	Lifetime string `json:"lifetime"`
}

type Config struct {
	DownloadRoot string `json:"download_root"`
	Concurrency  int    `json:"concurrency"`
	// StrictSources returns adapter failures instead of empty listings.
	StrictSources bool `json:"strict_sources"`
	// StrictMerge fails a merge when an input is missing.
	StrictMerge bool                 `json:"strict_merge"`
	Http        HttpConfig           `json:"http"`
	Sources     SourcesConfig        `json:"sources"`
	Cache       CacheConfig          `json:"cache"`
	Otlp        telemetry.OtlpConfig `json:"otlp"`
	Port        int                  `json:"port"`
	Verbose     bool                 `json:"verbose"`
}

func Default() Config {
	return Config{
		DownloadRoot: "temp_downloads",
		Concurrency:  3,
		Http: HttpConfig{
			Timeout: "30s",
			Rate:    10,
			Burst:   1,
		},
		Sources: SourcesConfig{
			XtremepapersUrl:  xtremepapers.DefaultBaseUrl,
			PapacambridgeUrl: papacambridge.DefaultBaseUrl,
		},
		Cache: CacheConfig{
			Lifetime: "24h",
		},
		Port: 8000,
	}
}

// Load reads the dotenv files (`.env` when none are given), then the config
// file named by PASTPAPERS_CONFIG (or config.json5) merged over the defaults.
// A missing file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	err := configutil.LoadEnv(envFiles...)
	if err != nil {
		return Config{}, err
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := configutil.ReadConfigOr(path, Default())
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DownloadRoot == "" {
		return fmt.Errorf("download_root must not be empty")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.Http.Rate < 0 {
		return fmt.Errorf("http.rate must not be negative, got %v", c.Http.Rate)
	}
	_, err := c.Timeout()
	if err != nil {
		return err
	}
	_, err = c.CacheLifetime()
	return err
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}

func (c Config) Timeout() (time.Duration, error) {
	return parseDuration("http.timeout", c.Http.Timeout)
}

func (c Config) CacheLifetime() (time.Duration, error) {
	return parseDuration("cache.lifetime", c.Cache.Lifetime)
}
