package main

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

type config struct {
	Log    logConfig
	Whois  whoisConfig
	Listen listenConfig
	Cache  cacheConfig
	Syslog syslogConfig
}

type logConfig struct {
	Level  string
	Format string
}

type whoisConfig struct {
	Host    string
	Port    int
	Timeout duration
}

type listenConfig struct {
	Address string
	Port    int
	URL     string
}

type cacheConfig struct {
	Backend  string
	Address  string
	TTL      duration
	Attempts int
}

type syslogConfig struct {
	Enabled bool
	Network string
	Address string
	Tag     string
}

// duration makes time.Duration TOML-decodable from strings like "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// loadConfig reads a config file and returns the decoded structure.
func loadConfig(name string) (config, error) {
	var c config
	f, err := os.Open(name)
	if err != nil {
		return c, err
	}
	defer f.Close()
	_, err = toml.NewDecoder(f).Decode(&c)
	return c, err
}

// applyConfig copies config file values into the options for every flag the
// user didn't set explicitly. Flags win over the file.
func applyConfig(cmd *cobra.Command, opt *options, c config) {
	set := func(name string, fn func()) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			return
		}
		fn()
	}
	if c.Log.Level != "" {
		set("log-level", func() { opt.logLevel = c.Log.Level })
	}
	if c.Log.Format != "" {
		set("log-format", func() { opt.logFormat = c.Log.Format })
	}
	if c.Whois.Host != "" {
		set("whois-host", func() { opt.whoisHost = c.Whois.Host })
	}
	if c.Whois.Port != 0 {
		set("whois-port", func() { opt.whoisPort = c.Whois.Port })
	}
	if c.Whois.Timeout.Duration != 0 {
		set("timeout", func() { opt.timeout = c.Whois.Timeout.Duration })
	}
	if c.Listen.Address != "" {
		set("listen", func() { opt.listenAddr = c.Listen.Address })
	}
	if c.Listen.Port != 0 {
		set("port", func() { opt.listenPort = c.Listen.Port })
	}
	if c.Listen.URL != "" {
		set("url", func() { opt.url = c.Listen.URL })
	}
	if c.Cache.Backend != "" {
		set("cache", func() { opt.cacheBackend = c.Cache.Backend })
	}
	if c.Cache.Address != "" {
		set("cache-addr", func() { opt.cacheAddr = c.Cache.Address })
	}
	if c.Cache.TTL.Duration != 0 {
		set("cache-ttl", func() { opt.cacheTTL = c.Cache.TTL.Duration })
	}
	if c.Cache.Attempts != 0 {
		set("cache-attempts", func() { opt.cacheAttempts = c.Cache.Attempts })
	}
	if c.Syslog.Enabled {
		set("syslog", func() { opt.syslogEnabled = true })
	}
	if c.Syslog.Network != "" {
		set("syslog-network", func() { opt.syslogNetwork = c.Syslog.Network })
	}
	if c.Syslog.Address != "" {
		set("syslog-addr", func() { opt.syslogAddr = c.Syslog.Address })
	}
	if c.Syslog.Tag != "" {
		set("syslog-tag", func() { opt.syslogTag = c.Syslog.Tag })
	}
}
