package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/flagx"
	"github.com/dmitrijs2005/qrkiosk/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Durations accept
// strings like "30s" or integer nanoseconds. Empty values leave the
// current setting untouched.
type FileConfig struct {
	RosterSource       string         `json:"roster_source" yaml:"roster_source"`
	StoreURL           string         `json:"store_url" yaml:"store_url"`
	StoreKey           string         `json:"store_key" yaml:"store_key"`
	StoreTimeout       timex.Duration `json:"store_timeout" yaml:"store_timeout"`
	ScanTimeout        timex.Duration `json:"scan_timeout" yaml:"scan_timeout"`
	PollInterval       timex.Duration `json:"poll_interval" yaml:"poll_interval"`
	CameraDir          string         `json:"camera_dir" yaml:"camera_dir"`
	ScannerDev         string         `json:"scanner_device" yaml:"scanner_device"`
	HTTPAddr           string         `json:"http_addr" yaml:"http_addr"`
	CORSAllowedOrigins string         `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	HealthAddr         string         `json:"health_addr" yaml:"health_addr"`
	StoreCheckInterval timex.Duration `json:"store_check_interval" yaml:"store_check_interval"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	LogFormat          string         `json:"log_format" yaml:"log_format"`
	S3Region           string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3AccessKey        string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key" yaml:"s3_secret_key"`
}

// parseFile overlays cfg with the file given via -c / -config.
// The format follows the extension: .yaml/.yml is YAML, anything else JSON.
// Read or decode errors panic; a broken config file is a deployment error.
func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.RosterSource, fc.RosterSource)
	setString(&cfg.StoreURL, fc.StoreURL)
	setString(&cfg.StoreKey, fc.StoreKey)
	setDuration(&cfg.StoreTimeout, fc.StoreTimeout)
	setDuration(&cfg.ScanTimeout, fc.ScanTimeout)
	setDuration(&cfg.PollInterval, fc.PollInterval)
	setString(&cfg.CameraDir, fc.CameraDir)
	setString(&cfg.ScannerDev, fc.ScannerDev)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.CORSAllowedOrigins, fc.CORSAllowedOrigins)
	setString(&cfg.HealthAddr, fc.HealthAddr)
	setDuration(&cfg.StoreCheckInterval, fc.StoreCheckInterval)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
