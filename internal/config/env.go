package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the settings that may come from the environment.
// Unset variables leave the current value untouched.
type envConfig struct {
	RosterSource       string        `env:"KIOSK_ROSTER_SOURCE"`
	StoreURL           string        `env:"KIOSK_STORE_URL"`
	StoreKey           string        `env:"KIOSK_STORE_KEY"`
	StoreTimeout       time.Duration `env:"KIOSK_STORE_TIMEOUT"`
	ScanTimeout        time.Duration `env:"KIOSK_SCAN_TIMEOUT"`
	PollInterval       time.Duration `env:"KIOSK_POLL_INTERVAL"`
	CameraDir          string        `env:"KIOSK_CAMERA_DIR"`
	ScannerDev         string        `env:"KIOSK_SCANNER_DEVICE"`
	HTTPAddr           string        `env:"KIOSK_HTTP_ADDR"`
	CORSAllowedOrigins string        `env:"KIOSK_CORS_ALLOWED_ORIGINS"`
	HealthAddr         string        `env:"KIOSK_HEALTH_ADDR"`
	StoreCheckInterval time.Duration `env:"KIOSK_STORE_CHECK_INTERVAL"`
	LogLevel           string        `env:"KIOSK_LOG_LEVEL"`
	LogFormat          string        `env:"KIOSK_LOG_FORMAT"`
	S3Region           string        `env:"KIOSK_S3_REGION"`
	S3BaseEndpoint     string        `env:"KIOSK_S3_BASE_ENDPOINT"`
	S3AccessKey        string        `env:"KIOSK_S3_ACCESS_KEY"`
	S3SecretKey        string        `env:"KIOSK_S3_SECRET_KEY"`
}

// parseEnv overlays cfg with KIOSK_* variables. Malformed values panic.
func parseEnv(cfg *Config) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		panic(err)
	}

	setString(&cfg.RosterSource, e.RosterSource)
	setString(&cfg.StoreURL, e.StoreURL)
	setString(&cfg.StoreKey, e.StoreKey)
	setEnvDuration(&cfg.StoreTimeout, e.StoreTimeout)
	setEnvDuration(&cfg.ScanTimeout, e.ScanTimeout)
	setEnvDuration(&cfg.PollInterval, e.PollInterval)
	setString(&cfg.CameraDir, e.CameraDir)
	setString(&cfg.ScannerDev, e.ScannerDev)
	setString(&cfg.HTTPAddr, e.HTTPAddr)
	setString(&cfg.CORSAllowedOrigins, e.CORSAllowedOrigins)
	setString(&cfg.HealthAddr, e.HealthAddr)
	setEnvDuration(&cfg.StoreCheckInterval, e.StoreCheckInterval)
	setString(&cfg.LogLevel, e.LogLevel)
	setString(&cfg.LogFormat, e.LogFormat)
	setString(&cfg.S3Region, e.S3Region)
	setString(&cfg.S3BaseEndpoint, e.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, e.S3AccessKey)
	setString(&cfg.S3SecretKey, e.S3SecretKey)
}

func setEnvDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
