package storage

import (
	"strconv"
	"time"
)

// Config defines fields used for opening the local key-value database
type Config struct {
	Path        string        `env:"DB_PATH" envDefault:"pocketchat.db"`
	BusyTimeout time.Duration `env:"DB_BUSY_TIMEOUT" envDefault:"5s"`
}

// DSN builds the sqlite data source name for the configured path
func (c Config) DSN() string {
	return "file:" + c.Path + "?_busy_timeout=" + strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10)
}

// Option alters the default Config used during new Store construction
type Option interface {
	apply(*Config)
}

type optionFunc func(c *Config)

func (f optionFunc) apply(c *Config) { f(c) }

// BusyTimeout sets how long sqlite waits on a locked database before
// giving up
func BusyTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.BusyTimeout = d
	})
}
