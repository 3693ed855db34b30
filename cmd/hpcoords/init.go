package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/determined-ai/hpcoords/internal/config"
)

var v *viper.Viper

// viperKeyDelimiter marks nested values in the configuration. It is ".." rather than "." so that
// keys containing a single dot are not split into objects.
const viperKeyDelimiter = ".."

//nolint:gochecknoinits
func init() {
	// Set here because link-time variable assignments are not applied when package-scoped
	// variables are initialized.
	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd, newWatchCmd(), newVersionCmd())
	registerConfig(serveCmd.Flags())
}

type configKey []string

func (c configKey) EnvName() string {
	return "HPCOORDS_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerBool(flags *pflag.FlagSet, name configKey, value bool, usage string) {
	flags.Bool(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig(flags *pflag.FlagSet) {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := config.DefaultConfig()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"),
		defaults.ConfigFile, "location of config file")

	registerString(flags, name("log", "level"),
		defaults.Log.Level, "choose logging level from [trace, debug, info, warn, error, fatal]")
	registerBool(flags, name("log", "color"),
		defaults.Log.Color, "output logs in color")
	registerBool(flags, name("log", "json"),
		defaults.Log.JSON, "output logs as JSON")

	registerString(flags, name("db", "user"),
		defaults.DB.User, "database username")
	registerString(flags, name("db", "password"),
		defaults.DB.Password, "database password")
	registerString(flags, name("db", "host"),
		defaults.DB.Host, "database host")
	registerString(flags, name("db", "port"),
		defaults.DB.Port, "database port")
	registerString(flags, name("db", "name"),
		defaults.DB.Name, "database name")
	registerString(flags, name("db", "ssl-mode"),
		defaults.DB.SSLMode, "database ssl mode (disable, verify-ca, ...)")
	registerString(flags, name("db", "ssl-root-cert"),
		defaults.DB.SSLRootCert, "database ssl root cert path")
	registerInt(flags, name("db", "max-open-conns"),
		defaults.DB.MaxOpenConns, "maximum open database connections")
	registerInt(flags, name("db", "connect-retries"),
		int(defaults.DB.ConnectRetries), "database connection attempts before giving up")
	registerBool(flags, name("db", "debug"),
		defaults.DB.Debug, "log every database query")

	registerInt(flags, name("port"),
		defaults.Port, "server port")

	registerInt(flags, name("stream", "period-seconds"),
		defaults.Stream.PeriodSeconds, "seconds between trials snapshot polls")
	registerInt(flags, name("stream", "max-period-seconds"),
		defaults.Stream.MaxPeriodSeconds, "longest poll interval a client may request")
	registerInt(flags, name("stream", "batches-margin"),
		defaults.Stream.BatchesMargin, "default batches margin of a snapshot")
	registerInt(flags, name("stream", "experiment-cache-size"),
		defaults.Stream.ExperimentCacheSize, "number of experiments kept in the metadata cache")
}
