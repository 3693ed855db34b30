package config

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/internal/db"
	"github.com/determined-ai/hpcoords/internal/trials"
	"github.com/determined-ai/hpcoords/pkg/check"
	"github.com/determined-ai/hpcoords/pkg/logger"
)

const defaultPort = 8090

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// StreamConfig holds the defaults for trials snapshot streams.
type StreamConfig struct {
	// PeriodSeconds is how often the database is polled for new rows.
	PeriodSeconds int `json:"period_seconds"`
	// MaxPeriodSeconds caps the poll interval a client may ask for.
	MaxPeriodSeconds int `json:"max_period_seconds"`
	BatchesMargin    int `json:"batches_margin"`
	// ExperimentCacheSize is how many experiments' metadata is kept in memory.
	ExperimentCacheSize int `json:"experiment_cache_size"`
}

// Period is PeriodSeconds as a duration.
func (s StreamConfig) Period() time.Duration {
	return time.Duration(s.PeriodSeconds) * time.Second
}

// MaxPeriod is MaxPeriodSeconds as a duration.
func (s StreamConfig) MaxPeriod() time.Duration {
	return time.Duration(s.MaxPeriodSeconds) * time.Second
}

// Validate implements the check.Validatable interface.
func (s StreamConfig) Validate() []error {
	return []error{
		check.GreaterThan(s.PeriodSeconds, 0, "stream.period_seconds must be positive"),
		check.GreaterThanOrEqualTo(s.MaxPeriodSeconds, s.PeriodSeconds,
			"stream.max_period_seconds must be at least stream.period_seconds"),
		check.GreaterThanOrEqualTo(s.BatchesMargin, 0, "stream.batches_margin must be >= 0"),
		check.GreaterThan(s.ExperimentCacheSize, 0, "stream.experiment_cache_size must be positive"),
	}
}

// Config is the configuration of the hpcoords server.
type Config struct {
	ConfigFile string        `json:"config_file"`
	Log        logger.Config `json:"log"`
	DB         db.Config     `json:"db"`
	Port       int           `json:"port"`
	Stream     StreamConfig  `json:"stream"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: *logger.DefaultConfig(),
		DB:  *db.DefaultConfig(),
		Stream: StreamConfig{
			PeriodSeconds:       int(trials.DefaultPeriod / time.Second),
			MaxPeriodSeconds:    60,
			BatchesMargin:       trials.DefaultBatchesMargin,
			ExperimentCacheSize: 256,
		},
	}
}

// Resolve fills in values derived from others.
func (c *Config) Resolve() error {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Stream.MaxPeriodSeconds == 0 {
		c.Stream.MaxPeriodSeconds = c.Stream.PeriodSeconds
	}
	return nil
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	errs := []error{
		check.GreaterThan(c.Port, 0, "port must be positive"),
		check.GreaterThan(65536, c.Port, "port must be less than 65536"),
		check.Validate(c.Log),
		check.Validate(c.Stream),
		check.Contains(c.DB.SSLMode, sslModes, "db.ssl_mode"),
	}
	if c.DB.Host == "" {
		errs = append(errs, errors.New("db.host must be set"))
	}
	return errs
}

// Printable returns the configuration as JSON with secrets hidden.
func (c Config) Printable() ([]byte, error) {
	const hiddenValue = "********"
	if c.DB.Password != "" {
		c.DB.Password = hiddenValue
	}
	optJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return optJSON, nil
}
