package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   roster source (path, http(s) URL or s3://bucket/key)
//	-d string   session store URL (postgres://, sqlite://, redis://, memory://)
//	-k string   session store access key
//	-t int      scan timeout, seconds
//	-v string   camera frame spool directory
//	-w string   line scanner device (overrides the camera when set)
//	-a string   HTTP API address ("" disables)
//	-g string   gRPC health address ("" disables)
//	-i int      store connectivity check interval, seconds
//	-l string   log level
//
// Only the flags above are parsed; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-r", "-d", "-k", "-t", "-v", "-w", "-a", "-g", "-i", "-l"})

	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.RosterSource, "r", cfg.RosterSource, "roster source")
	fs.StringVar(&cfg.StoreURL, "d", cfg.StoreURL, "session store URL")
	fs.StringVar(&cfg.StoreKey, "k", cfg.StoreKey, "session store access key")
	scanTimeout := fs.Int("t", int(cfg.ScanTimeout.Seconds()), "scan timeout (in seconds)")
	fs.StringVar(&cfg.CameraDir, "v", cfg.CameraDir, "camera frame spool directory")
	fs.StringVar(&cfg.ScannerDev, "w", cfg.ScannerDev, "line scanner device")
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP API address")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "gRPC health address")
	checkInterval := fs.Int("i", int(cfg.StoreCheckInterval.Seconds()), "store check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Second-granularity flags would truncate sub-second values from
	// earlier sources, so they only apply when given explicitly.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.ScanTimeout = time.Duration(*scanTimeout) * time.Second
		case "i":
			cfg.StoreCheckInterval = time.Duration(*checkInterval) * time.Second
		}
	})
}
