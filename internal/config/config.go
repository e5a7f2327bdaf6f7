// Package config holds the viper-backed runtime configuration.
//
// Settings resolve in the usual precedence order: command-line flags, then
// NOTEMIGRATE_* environment variables, then notemigrate.yaml, then built-in
// defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call once at
// startup, before any accessor. The config file is optional; flags may be
// nil when the caller has none to bind.
func Initialize(flags *pflag.FlagSet) error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Precedence for the config file: explicit NOTEMIGRATE_CONFIG path,
	// then notemigrate.yaml next to the working directory, then
	// ~/.config/notemigrate/notemigrate.yaml.
	configFileSet := false
	if path := os.Getenv("NOTEMIGRATE_CONFIG"); path != "" {
		v.SetConfigFile(path)
		configFileSet = true
	}
	if !configFileSet {
		if cwd, err := os.Getwd(); err == nil {
			path := filepath.Join(cwd, "notemigrate.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(configDir, "notemigrate", "notemigrate.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("NOTEMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("work-dir", defaultWorkDir())
	v.SetDefault("source.export-dir", "")
	v.SetDefault("source.utc-offset-hours", 8)
	v.SetDefault("source.skip-missing", false)
	v.SetDefault("target.host", "localhost")
	v.SetDefault("target.port", 41184)
	v.SetDefault("target.token", "")
	v.SetDefault("target.timeout", "60s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.console", true)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return err
		}
	}

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

func defaultWorkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notemigrate"
	}
	return filepath.Join(home, ".notemigrate")
}

// WorkDir is where the sync cache database and default log file live.
func WorkDir() string { return v.GetString("work-dir") }

// CachePath is the sync cache database location.
func CachePath() string { return filepath.Join(WorkDir(), "sync.db") }

// ExportDir is the directory holding the source export to migrate.
func ExportDir() string { return v.GetString("source.export-dir") }

// UTCOffsetHours is the fixed offset applied when parsing the source's
// naive local timestamps.
func UTCOffsetHours() int { return v.GetInt("source.utc-offset-hours") }

// SkipMissing reports whether documents referencing files absent from the
// export are migrated without them instead of aborting the run.
func SkipMissing() bool { return v.GetBool("source.skip-missing") }

// TargetHost is the note service's data API host.
func TargetHost() string { return v.GetString("target.host") }

// TargetPort is the note service's data API port.
func TargetPort() int { return v.GetInt("target.port") }

// TargetToken is the data API authorization token. The --token flag wins
// over the config file.
func TargetToken() string {
	if t := v.GetString("token"); t != "" {
		return t
	}
	return v.GetString("target.token")
}

// TargetTimeout bounds each individual API request.
func TargetTimeout() time.Duration {
	d := v.GetDuration("target.timeout")
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}

// LogLevel is the zerolog level name. The --log-level flag wins over the
// config file.
func LogLevel() string {
	if l := v.GetString("log-level"); l != "" {
		return l
	}
	return v.GetString("log.level")
}

// LogFile is the rotating log file path; empty means the default file under
// the work directory.
func LogFile() string {
	if path := v.GetString("log.file"); path != "" {
		return path
	}
	return filepath.Join(WorkDir(), "notemigrate.log")
}

// LogMaxSizeMB caps a log file before rotation.
func LogMaxSizeMB() int { return v.GetInt("log.max-size-mb") }

// LogMaxBackups caps how many rotated files are kept.
func LogMaxBackups() int { return v.GetInt("log.max-backups") }

// LogConsole reports whether log lines also go to stderr.
func LogConsole() bool { return v.GetBool("log.console") }
