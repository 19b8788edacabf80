package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/czerwonk/delay_tracker/config"
	"github.com/czerwonk/delay_tracker/delay"
	"github.com/czerwonk/delay_tracker/probe"
	"github.com/czerwonk/delay_tracker/render"
	"github.com/czerwonk/delay_tracker/sampler"
	log "github.com/sirupsen/logrus"
)

const version string = "0.1.0"

var (
	showVersion      = kingpin.Flag("version", "Print version information").Default().Bool()
	listenAddress    = kingpin.Flag("web.listen-address", "Address on which to expose the chart, metrics and web interface").Default(":9428").String()
	metricsPath      = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics").Default("/metrics").String()
	configFile       = kingpin.Flag("config.path", "Path to config file").Default("").String()
	samplingInterval = kingpin.Flag("sampling.interval", "Interval between two probes of a target").Default("1s").Duration()
	samplingLength   = kingpin.Flag("sampling.length", "Time span of history shown per target").Default("20s").Duration()
	scaleFloor       = kingpin.Flag("sampling.scale-floor", "Initial upper bound of the delay axis in millis").Default("100").Uint32()
	probeMode        = kingpin.Flag("probe.mode", "How to send echo requests. Valid choices: [command, icmp]").Default(config.ModeCommand).String()
	probeCommand     = kingpin.Flag("probe.command", "Ping utility used in command mode").Default("ping").String()
	probeTimeout     = kingpin.Flag("probe.timeout", "Timeout for a single probe (defaults to sampling.interval)").Default("0s").Duration()
	probeFormat      = kingpin.Flag("probe.format", "Output format of the ping utility. Valid choices: [auto, windows, unix]").Default("auto").String()
	probeSize        = kingpin.Flag("probe.size", "Payload size for ICMP echo requests").Default("56").Uint16()
	preferIPv6       = kingpin.Flag("probe.prefer-ipv6", "Prefer IPv6 addresses of hosts in icmp mode").Default("false").Bool()
	dnsRefresh       = kingpin.Flag("dns.refresh", "Interval for refreshing DNS records of targets in icmp mode (0 if disabled)").Default("1m").Duration()
	dnsNameServer    = kingpin.Flag("dns.nameserver", "DNS server used to resolve hostname of targets").Default("").String()
	dnsK8s           = kingpin.Flag("dns.k8s", "Resolve targets <service>.<namespace> using Kubernetes endpoints").Default("false").Bool()
	tailnet          = kingpin.Flag("tailscale.tailnet", "Add all devices of this tailnet as targets (API key in TS_API_KEY)").Default("").String()
	logLevel         = kingpin.Flag("log.level", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error, fatal]").Default("info").String()
	consoleTable     = kingpin.Flag("render.console", "Print a table of the latest samples after every tick").Default("false").Bool()
	targetFlag       = kingpin.Arg("targets", "A list of targets to ping").Strings()
)

var (
	delayMetricsUnit = unitMillis
	delayUnitFlag    = kingpin.Flag("metrics.rttunit", "Export delays as either millis (default), or seconds, or both. Valid choices: [ms, s, both]").Default("ms").String()
)

func main() {
	kingpin.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	setLogLevel(*logLevel)

	if delayMetricsUnit = delayUnitFromString(*delayUnitFlag); delayMetricsUnit == unitInvalid {
		kingpin.FatalUsage("metrics.rttunit must be `ms` for millis, or `s` for seconds, or `both`")
	}

	if mpath := *metricsPath; mpath == "" {
		log.Warnln("web.telemetry-path is empty, correcting to `/metrics`")
		mpath = "/metrics"
		metricsPath = &mpath
	} else if mpath[0] != '/' {
		mpath = "/" + mpath
		metricsPath = &mpath
	}

	cfg, err := loadConfig()
	if err != nil {
		kingpin.FatalUsage("could not load config.path: %v", err)
	}

	if *tailnet != "" {
		hosts, err := tsDiscover(context.Background(), *tailnet, os.Getenv("TS_API_KEY"))
		if err != nil {
			log.Fatalf("could not discover tailnet devices: %v", err)
		}
		cfg.Targets = append(cfg.Targets, config.TargetsFromHosts(hosts)...)
	}

	if err := cfg.Validate(); err != nil {
		kingpin.FatalUsage("%v", err)
	}

	p, err := setupProber(cfg)
	if err != nil {
		log.Errorln(err)
		os.Exit(2)
	}

	s, err := sampler.New(cfg.Hosts(), p, sampler.Options{
		Capacity:   cfg.Capacity(),
		Interval:   cfg.Sampling.Interval.Duration(),
		Timeout:    cfg.Probe.Timeout.Duration(),
		ScaleFloor: cfg.Sampling.ScaleFloor,
		Parser:     parserFor(cfg),
	})
	if err != nil {
		kingpin.FatalUsage("%v", err)
	}

	log.Infof("Checking delay to %v", cfg.Hosts())
	if *consoleTable {
		s.Subscribe(func(snap sampler.Snapshot) {
			render.Table(os.Stdout, snap)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(s, cfg)
	if err != nil {
		log.Fatal(err)
	}
	go srv.serve(ctx)

	ticker := time.NewTicker(cfg.Sampling.Interval.Duration())
	defer ticker.Stop()

	log.Infoln("Press Ctrl-C to exit")
	if err := s.Run(ctx, ticker.C); err != nil && err != context.Canceled {
		log.Errorln(err)
	}
}

func printVersion() {
	fmt.Println("delay-tracker")
	fmt.Printf("Version: %s\n", version)
	fmt.Println("Author(s): Philip Berndroth, Daniel Czerwonk")
	fmt.Println("Live chart of network delays")
}

func setupProber(cfg *config.Config) (probe.Prober, error) {
	if cfg.Probe.Mode == config.ModeCommand {
		log.Infof("Using %s to send echo requests", cfg.Probe.Command)
		return probe.NewCommand(cfg.Probe.Command, cfg.Probe.Timeout.Duration()), nil
	}

	resolver, err := setupResolver(cfg)
	if err != nil {
		return nil, err
	}

	p, err := probe.NewICMP(probe.ICMPOptions{
		Resolver:   resolver,
		Refresh:    cfg.DNS.Refresh.Duration(),
		Size:       cfg.Probe.Size,
		PreferIPv6: cfg.Probe.PreferIPv6,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot start monitoring: %w", err)
	}
	log.Infof("Sending ICMP echo requests (size=%d, dns refresh=%s)", cfg.Probe.Size, cfg.DNS.Refresh.Duration())

	return p, nil
}

// parserFor returns the format of the probe output. The in-process ICMP prober
// always reports replies like the Windows ping utility.
func parserFor(cfg *config.Config) delay.Format {
	format := cfg.Probe.Format
	if cfg.Probe.Mode == config.ModeICMP {
		format = "windows"
	}
	if format == "auto" {
		format = runtime.GOOS
	}

	if format == "windows" {
		return delay.WindowsFormat
	}

	return delay.UnixFormat
}

func loadConfig() (*config.Config, error) {
	if *configFile == "" {
		cfg := config.Config{}
		addFlagToConfig(&cfg)

		return &cfg, nil
	}

	f, err := os.Open(*configFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load config file: %w", err)
	}
	defer f.Close()

	cfg, err := config.FromYAML(f)
	if err == nil {
		addFlagToConfig(cfg)
	}

	return cfg, err
}

// addFlagToConfig updates cfg with command line flag values, unless the
// config has non-zero values.
func addFlagToConfig(cfg *config.Config) {
	if len(cfg.Targets) == 0 {
		cfg.Targets = config.TargetsFromHosts(*targetFlag)
	}
	if cfg.Sampling.Interval == 0 {
		cfg.Sampling.Interval.Set(*samplingInterval)
	}
	if cfg.Sampling.Length == 0 {
		cfg.Sampling.Length.Set(*samplingLength)
	}
	if cfg.Sampling.ScaleFloor == 0 {
		cfg.Sampling.ScaleFloor = *scaleFloor
	}
	if cfg.Probe.Mode == "" {
		cfg.Probe.Mode = *probeMode
	}
	if cfg.Probe.Command == "" {
		cfg.Probe.Command = *probeCommand
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout.Set(*probeTimeout)
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = cfg.Sampling.Interval
	}
	if cfg.Probe.Format == "" {
		cfg.Probe.Format = *probeFormat
	}
	if cfg.Probe.Size == 0 {
		cfg.Probe.Size = *probeSize
	}
	if !cfg.Probe.PreferIPv6 {
		cfg.Probe.PreferIPv6 = *preferIPv6
	}
	if cfg.DNS.Refresh == 0 {
		cfg.DNS.Refresh.Set(*dnsRefresh)
	}
	if cfg.DNS.Nameserver == "" {
		cfg.DNS.Nameserver = *dnsNameServer
	}
	if !cfg.DNS.K8s {
		cfg.DNS.K8s = *dnsK8s
	}
}
