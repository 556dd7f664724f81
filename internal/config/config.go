// Package config supplies the coordinator's environment-derived settings.
//
// Per the data model, Config is never stored on coordinator state: every
// reader calls Load to recompute it from the environment at the moment it
// is needed (peer boot, reboot, or a status report).
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the per-peer init_config tuple sent on start_link.
type Config struct {
	Interval time.Duration `mapstructure:"interval"`
	TopN     int           `mapstructure:"topn"`
	SMP      bool          `mapstructure:"smp"`
}

const (
	defaultIntervalMS = 300000
	defaultTopN       = 30
	defaultSMP        = true
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DOGHAIR")
	v.AutomaticEnv()
	v.SetDefault("interval_ms", defaultIntervalMS)
	v.SetDefault("topn", defaultTopN)
	v.SetDefault("smp", defaultSMP)
	return v
}

// Load recomputes Config from the process environment.
func Load() Config {
	v := newViper()
	return Config{
		Interval: time.Duration(v.GetInt64("interval_ms")) * time.Millisecond,
		TopN:     v.GetInt("topn"),
		SMP:      v.GetBool("smp"),
	}
}

// HomeDir is the directory under which doghair_* pull repositories are
// created. Read fresh from DOGHAIR_HOME on every call, same as Load.
func HomeDir() string {
	v := newViper()
	v.SetDefault("home", defaultHomeDir())
	return v.GetString("home")
}

func defaultHomeDir() string {
	return "/var/lib/doghair"
}

// SocketPath is the Unix-domain-socket path the operator commands dial to
// reach a running coordinator. Read fresh from DOGHAIR_SOCKET on every call.
func SocketPath() string {
	v := newViper()
	v.SetDefault("socket", defaultSocketPath())
	return v.GetString("socket")
}

func defaultSocketPath() string {
	return "/var/run/doghair/control.sock"
}
