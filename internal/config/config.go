// Package config handles kiosk configuration: defaults, an optional JSON or
// YAML file, KIOSK_* environment variables and command-line flags, applied
// in that order (later sources win).
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the kiosk.
//
// The session store is enabled only when both StoreURL and StoreKey are set;
// otherwise the kiosk runs in degraded mode (identification only).
type Config struct {
	RosterSource string

	StoreURL     string
	StoreKey     string
	StoreTimeout time.Duration

	ScanTimeout  time.Duration
	PollInterval time.Duration
	CameraDir    string
	ScannerDev   string

	HTTPAddr           string
	CORSAllowedOrigins string
	HealthAddr         string
	StoreCheckInterval time.Duration

	LogLevel  string
	LogFormat string

	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// StoreConfigured reports whether both store settings are present.
func (c *Config) StoreConfigured() bool {
	return c.StoreURL != "" && c.StoreKey != ""
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.RosterSource = "assets/data.csv"
	c.StoreURL = ""
	c.StoreKey = ""
	c.StoreTimeout = 5 * time.Second
	c.ScanTimeout = 30 * time.Second
	c.PollInterval = 200 * time.Millisecond
	c.CameraDir = "/run/qrkiosk/frames"
	c.ScannerDev = ""
	c.HTTPAddr = ":8080"
	c.CORSAllowedOrigins = "*"
	c.HealthAddr = ":50052"
	c.StoreCheckInterval = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3AccessKey = ""
	c.S3SecretKey = ""
}

// LoadConfig builds a Config from defaults, the config file named by -c,
// the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, os.Args[1:])
	parseEnv(cfg)
	parseFlags(cfg, os.Args[1:])
	return cfg
}
