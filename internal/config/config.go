package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs to run: where to listen,
// how to log, and the capability ceilings it negotiates down to
// (§4.3). Precedence is defaults < environment < flags — flags always
// win, since they're given the env-resolved value as their own
// default.
type Config struct {
	ListenAddr  string `env:"WSPD_LISTEN"`
	LogLevel    string `env:"WSPD_LOG_LEVEL"`
	LogEncoding string `env:"WSPD_LOG_ENCODING"`

	MaxClientSDU    uint64 `env:"WSPD_MAX_CLIENT_SDU"`
	MaxServerSDU    uint64 `env:"WSPD_MAX_SERVER_SDU"`
	ProtocolOptions uint8  `env:"WSPD_PROTOCOL_OPTIONS"`
	MaxMORMethod    uint8  `env:"WSPD_MAX_MOR_METHOD"`
	MaxMORPush      uint8  `env:"WSPD_MAX_MOR_PUSH"`

	// DLRMatchDestination resolves the §9 Open Question: whether the
	// DLR store also compares the destination address when matching a
	// delivery report, or only (SMSC, timestamp) as the source this
	// core was distilled from does. Defaults to false to preserve
	// that behavior exactly.
	DLRMatchDestination bool `env:"WSPD_DLR_MATCH_DESTINATION"`

	MetricsAddr string `env:"WSPD_METRICS_LISTEN"`
}

// Load reads config from flags, environment variables, or defaults, in
// that order of increasing-then-overridden priority (env overlays
// defaults; flags overlay env).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      ":9200",
		LogLevel:        "info",
		LogEncoding:     "console",
		MaxClientSDU:    30000,
		MaxServerSDU:    30000,
		ProtocolOptions: 0x00,
		MaxMORMethod:    1,
		MaxMORPush:      1,
		MetricsAddr:     ":9201",
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	listen := flag.String("listen", cfg.ListenAddr, "Address the WTP listener binds to (e.g. :9200)")
	loglevel := flag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	logEncoding := flag.String("log-encoding", cfg.LogEncoding, "Log encoding (console, json)")
	maxClientSDU := flag.Uint64("max-client-sdu", cfg.MaxClientSDU, "Ceiling offered for the client SDU size capability, 0 = unbounded")
	maxServerSDU := flag.Uint64("max-server-sdu", cfg.MaxServerSDU, "Ceiling offered for the server SDU size capability, 0 = unbounded")
	maxMORMethod := flag.Uint("max-mor-method", uint(cfg.MaxMORMethod), "Maximum method multiple-outstanding-requests this server accepts")
	maxMORPush := flag.Uint("max-mor-push", uint(cfg.MaxMORPush), "Maximum push multiple-outstanding-requests this server accepts")
	dlrMatchDestination := flag.Bool("dlr-match-destination", cfg.DLRMatchDestination, "Also require the destination address to match when correlating a delivery report")
	metricsAddr := flag.String("metrics-listen", cfg.MetricsAddr, "Address the Prometheus metrics endpoint binds to")

	flag.Parse()

	cfg.ListenAddr = *listen
	cfg.LogLevel = *loglevel
	cfg.LogEncoding = *logEncoding
	cfg.MaxClientSDU = *maxClientSDU
	cfg.MaxServerSDU = *maxServerSDU
	cfg.MaxMORMethod = uint8(*maxMORMethod)
	cfg.MaxMORPush = uint8(*maxMORPush)
	cfg.DLRMatchDestination = *dlrMatchDestination
	cfg.MetricsAddr = *metricsAddr

	return cfg, nil
}
