package main

import (
	"flag"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type config struct {
	port     int
	env      string
	logLevel string
	db       struct {
		dsn         string
		maxConns    int
		maxIdleTime time.Duration
	}
	limiter struct {
		enabled    bool
		rps        float64
		burst      int
		inputRPS   float64
		inputBurst int
	}
	shutdown struct {
		timeout time.Duration
	}
	sessions struct {
		ttl             time.Duration
		cleanupInterval time.Duration
	}
}

// newConfigDefaults returns a viper instance holding the defaults, overridden
// by REGFORM_* environment variables (REGFORM_DB_DSN, REGFORM_LIMITER_RPS, ...).
func newConfigDefaults() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("regform")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 4000)
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 25)
	v.SetDefault("db.max_idle_time", "15m")
	v.SetDefault("limiter.enabled", true)
	v.SetDefault("limiter.rps", 2.0)
	v.SetDefault("limiter.burst", 4)
	v.SetDefault("limiter.input_rps", 20.0)
	v.SetDefault("limiter.input_burst", 40)
	v.SetDefault("shutdown.timeout", "30s")
	v.SetDefault("sessions.ttl", "30m")
	v.SetDefault("sessions.cleanup_interval", "1m")

	return v
}

// loadConfig parses command-line flags. Every flag defaults to the
// environment value, or the built-in default when that is unset.
func loadConfig(args []string) (config, error) {
	var cfg config
	v := newConfigDefaults()

	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	fs.IntVar(&cfg.port, "port", v.GetInt("port"), "API server port")
	fs.StringVar(&cfg.env, "env", v.GetString("env"), "Environment (development|staging|production)")
	fs.StringVar(&cfg.logLevel, "log-level", v.GetString("log.level"), "Minimum log level (debug|info|warn|error)")

	fs.StringVar(&cfg.db.dsn, "db-dsn", v.GetString("db.dsn"), "PostgreSQL DSN for statistics (empty keeps them in memory)")
	fs.IntVar(&cfg.db.maxConns, "db-max-conns", v.GetInt("db.max_conns"), "PostgreSQL max open connections")
	fs.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", v.GetDuration("db.max_idle_time"), "PostgreSQL max connection idle time")

	fs.BoolVar(&cfg.limiter.enabled, "limiter-enabled", v.GetBool("limiter.enabled"), "Enable per-IP rate limiting")
	fs.Float64Var(&cfg.limiter.rps, "limiter-rps", v.GetFloat64("limiter.rps"), "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.limiter.burst, "limiter-burst", v.GetInt("limiter.burst"), "Rate limiter maximum burst")
	fs.Float64Var(&cfg.limiter.inputRPS, "limiter-input-rps", v.GetFloat64("limiter.input_rps"), "Rate limit for field value events, per second")
	fs.IntVar(&cfg.limiter.inputBurst, "limiter-input-burst", v.GetInt("limiter.input_burst"), "Maximum burst of field value events")

	fs.DurationVar(&cfg.shutdown.timeout, "shutdown-timeout", v.GetDuration("shutdown.timeout"), "Graceful shutdown timeout")

	fs.DurationVar(&cfg.sessions.ttl, "session-ttl", v.GetDuration("sessions.ttl"), "Idle time after which a form session expires (0 disables expiry)")
	fs.DurationVar(&cfg.sessions.cleanupInterval, "session-cleanup-interval", v.GetDuration("sessions.cleanup_interval"), "How often expired form sessions are removed")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	return cfg, nil
}
