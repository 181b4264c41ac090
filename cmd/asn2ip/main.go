package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/g0dsCookie/asn2ip"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = ""
)

type options struct {
	configFile string
	logLevel   string
	logFormat  string
	whoisHost  string
	whoisPort  int
	timeout    time.Duration

	// fetch
	ipv4     bool
	ipv6     bool
	describe bool
	dnsAddr  string
	mmdbFile string

	// run
	listenAddr    string
	listenPort    int
	url           string
	cacheBackend  string
	cacheAddr     string
	cacheTTL      time.Duration
	cacheAttempts int
	syslogEnabled bool
	syslogNetwork string
	syslogAddr    string
	syslogTag     string
}

func main() {
	var opt options

	cmd := &cobra.Command{
		Use:   "asn2ip",
		Short: "Map AS numbers to the networks they originate",
		Long: `Map AS numbers to the networks they originate.

Queries a routing registry (whois.radb.net by default) using its
bulk query protocol and prints or serves the sorted IPv4 and IPv6
prefixes per ASN. Results can be cached in memcached, Redis, or
in process memory.
`,
		Example: `  asn2ip fetch 2906
  asn2ip run --cache memcache --cache-addr 127.0.0.1:11211`,
		Version:      fmt.Sprintf("%s (build %s)", version, revision),
		SilenceUsage: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&opt.configFile, "config", "c", "", "TOML config file")
	pf.StringVarP(&opt.logLevel, "log-level", "l", "warning", "log level (debug, info, warning, error)")
	pf.StringVar(&opt.logFormat, "log-format", "plain", "log format (plain, json)")
	pf.StringVar(&opt.whoisHost, "whois-host", "whois.radb.net", "whois host to query")
	pf.IntVar(&opt.whoisPort, "whois-port", 43, "whois port to query")
	pf.DurationVar(&opt.timeout, "timeout", asn2ip.DefaultTimeout, "connect and read timeout per registry session")

	fetchCmd := &cobra.Command{
		Use:     "fetch ASN...",
		Aliases: []string{"get", "g", "f"},
		Short:   "fetch the networks of the given AS numbers and exit",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(cmd, &opt); err != nil {
				return err
			}
			return runFetch(opt, args)
		},
	}
	ff := fetchCmd.Flags()
	ff.BoolVar(&opt.ipv4, "ipv4", true, "fetch IPv4 networks")
	ff.BoolVar(&opt.ipv6, "ipv6", true, "fetch IPv6 networks")
	ff.BoolVar(&opt.describe, "describe", false, "look up and print AS registration info")
	ff.StringVar(&opt.dnsAddr, "dns", "1.1.1.1:53", "DNS server for AS registration lookups")
	ff.StringVar(&opt.mmdbFile, "mmdb", "", "resolve from a local GeoLite2-ASN database instead of the registry")

	runCmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"daemon", "r", "d"},
		Short:   "run asn2ip as an http daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(cmd, &opt); err != nil {
				return err
			}
			return runDaemon(opt)
		},
	}
	rf := runCmd.Flags()
	rf.StringVarP(&opt.listenAddr, "listen", "L", "0.0.0.0", "listen address for the http service")
	rf.IntVarP(&opt.listenPort, "port", "P", 8080, "listen port for the http service")
	rf.StringVar(&opt.url, "url", "", "public base URL shown on the help page")
	rf.StringVar(&opt.cacheBackend, "cache", "none", "cache backend (none, memory, memcache, redis)")
	rf.StringVar(&opt.cacheAddr, "cache-addr", "127.0.0.1:11211", "host:port or socket path of the cache backend")
	rf.DurationVar(&opt.cacheTTL, "cache-ttl", asn2ip.DefaultTTL, "cache entry lifetime")
	rf.IntVar(&opt.cacheAttempts, "cache-attempts", asn2ip.DefaultCacheAttempts, "total attempts per cache operation")
	rf.StringVar(&opt.dnsAddr, "dns", "1.1.1.1:53", "DNS server for AS registration lookups")
	rf.BoolVar(&opt.syslogEnabled, "syslog", false, "log resolutions to syslog")
	rf.StringVar(&opt.syslogNetwork, "syslog-network", "udp", "syslog network (udp, tcp, unix)")
	rf.StringVar(&opt.syslogAddr, "syslog-addr", "", "syslog address, empty for the local server")
	rf.StringVar(&opt.syslogTag, "syslog-tag", "asn2ip", "syslog tag")

	cmd.AddCommand(fetchCmd, runCmd)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the optional config file, lets explicit flags win and
// configures logging.
func setup(cmd *cobra.Command, opt *options) error {
	if opt.configFile != "" {
		conf, err := loadConfig(opt.configFile)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		applyConfig(cmd, opt, conf)
	}
	return setupLogging(opt.logLevel, opt.logFormat)
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "unknown log-level '%s'", level)
	}
	asn2ip.Log.SetOutput(os.Stdout)
	asn2ip.Log.SetLevel(lvl)
	switch format {
	case "plain":
		asn2ip.Log.SetFormatter(&logrus.TextFormatter{})
	case "json":
		asn2ip.Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log-format '%s'", format)
	}
	return nil
}

func runFetch(opt options, args []string) error {
	var fetcher asn2ip.Fetcher
	if opt.mmdbFile != "" {
		mmdb, err := asn2ip.OpenMMDB(opt.mmdbFile)
		if err != nil {
			return err
		}
		fetcher = mmdb
	} else {
		fetcher = asn2ip.NewResolver(asn2ip.ResolverOptions{
			Server:  opt.whoisHost,
			Port:    opt.whoisPort,
			IPv4:    opt.ipv4,
			IPv6:    opt.ipv6,
			Timeout: opt.timeout,
		})
	}

	result, err := fetcher.Fetch(args...)
	if err != nil {
		return err
	}

	asns := make([]string, 0, len(result))
	for asn := range result {
		asns = append(asns, asn)
	}
	sort.Strings(asns)

	for _, asn := range asns {
		fmt.Println(asn)
		if opt.describe {
			info, err := asn2ip.LookupASInfo(asn2ip.ASN(asn), opt.dnsAddr)
			if err != nil {
				asn2ip.Log.WithError(err).WithField("asn", asn).Warn("failed to look up AS registration info")
			} else {
				fmt.Printf("  %s (%s, %s)\n", info.Name, info.Country, info.Registry)
			}
		}
		nets := result[asn]
		if len(nets.IPv4) > 0 {
			fmt.Println("  IPv4:")
			for _, p := range nets.IPv4 {
				fmt.Printf("    %s\n", p)
			}
		}
		if len(nets.IPv6) > 0 {
			fmt.Println("  IPv6:")
			for _, p := range nets.IPv6 {
				fmt.Printf("    %s\n", p)
			}
		}
	}
	return nil
}

func runDaemon(opt options) error {
	cache, err := newCache(opt)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	var syslogOpt *asn2ip.SyslogOptions
	if opt.syslogEnabled {
		network := opt.syslogNetwork
		if opt.syslogAddr == "" {
			// An empty address means the local syslog socket.
			network = ""
		}
		syslogOpt = &asn2ip.SyslogOptions{
			Network: network,
			Address: opt.syslogAddr,
			Tag:     opt.syslogTag,
		}
	}

	handler := newServer(serverOptions{
		WhoisHost: opt.whoisHost,
		WhoisPort: opt.whoisPort,
		Timeout:   opt.timeout,
		DNSAddr:   opt.dnsAddr,
		URL:       opt.url,
	}, cache, syslogOpt)

	addr := opt.listenAddr + ":" + strconv.Itoa(opt.listenPort)
	asn2ip.Log.WithField("addr", addr).Info("starting http daemon")
	return http.ListenAndServe(addr, handler)
}

func newCache(opt options) (*asn2ip.Cache, error) {
	var backend asn2ip.CacheBackend
	switch opt.cacheBackend {
	case "", "none":
		return nil, nil
	case "memory":
		backend = asn2ip.NewMemoryBackend(asn2ip.MemoryBackendOptions{TTL: opt.cacheTTL})
	case "memcache":
		backend = asn2ip.NewMemcacheBackend(asn2ip.MemcacheBackendOptions{
			Addr:    opt.cacheAddr,
			TTL:     opt.cacheTTL,
			Timeout: opt.timeout,
		})
	case "redis":
		backend = asn2ip.NewRedisBackend(asn2ip.RedisBackendOptions{
			RedisOptions: redis.Options{Addr: opt.cacheAddr},
			TTL:          opt.cacheTTL,
		})
	default:
		return nil, errors.Errorf("unknown cache backend '%s'", opt.cacheBackend)
	}
	return asn2ip.NewCache(asn2ip.CacheOptions{
		Backend:  backend,
		Attempts: opt.cacheAttempts,
	}), nil
}
