// Command chainrotate validates a proxy list and rotates the valid
// proxies through a proxychains configuration until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/grishkovelli/proxyrot"
	"github.com/grishkovelli/proxyrot/pkg/chainconf"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run stops after the validation pass when ctx is done by then, so an
// interrupted run never exports or rotates.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	s, err := parseSettings(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := proxyrot.NewLogger(s.Verbose, stdout)

	strategy, err := chainconf.ParseStrategy(s.Strategy)
	if err != nil {
		log.Error(err)
		return 1
	}
	proxyType, err := chainconf.ParseProxyType(s.ProxyType)
	if err != nil {
		log.Error(err)
		return 1
	}

	addrs, err := proxyrot.LoadAddresses(s.File, log)
	if err != nil {
		log.Errorf("%v, exiting", err)
		return 1
	}
	if len(addrs) == 0 {
		log.Warnf("%s has no usable ip:port lines", s.File)
	}

	stat := &proxyrot.Stat{}
	var monitor *proxyrot.Monitor
	if s.StatusAddr != "" {
		monitor = proxyrot.NewMonitor(stat, log)
		go func() {
			if err := monitor.Run(ctx, s.StatusAddr); err != nil {
				log.Errorf("status server: %v", err)
			}
		}()
	}

	prober := proxyrot.NewHTTPProber(s.TimeoutDuration(), s.URL, s.ProbeScheme, log)
	validator := proxyrot.NewValidator(prober, s.Workers, log)
	validator.Stat = stat
	validator.Monitor = monitor
	if s.Progress {
		validator.Bar = pb.New(0)
		validator.Bar.SetWriter(os.Stderr)
		validator.Bar.SetTemplate(`{{counters . }} {{bar . }} {{percent . }} {{etime . }}`)
	}

	valid := validator.ValidateAll(ctx, addrs)
	log.Infof("validation finished, %d valid proxies", len(valid))

	if err := ctx.Err(); err != nil {
		log.Warnf("interrupted during validation, skipping export and rotation: %v", err)
		return 1
	}

	if s.OutputFile != "" {
		if err := proxyrot.Export(s.OutputFile, valid, log); err != nil {
			return 1
		}
	}

	if len(valid) == 0 {
		if s.NoUpdate {
			log.Info("nothing valid, done")
			return 0
		}
		log.Errorf("cannot update %s: %v", s.Conf, proxyrot.ErrNoValidProxies)
		return 1
	}

	if s.NoUpdate {
		if s.OutputFile == "" {
			for _, a := range valid {
				fmt.Fprintln(stdout, a)
			}
		}
		log.Info("validate only, config left untouched")
		return 0
	}

	rotator := proxyrot.NewRotator(chainconf.NewFile(s.Conf, "", log), strategy, proxyType, s.SleepDuration(), log)
	rotator.Stat = stat
	rotator.Monitor = monitor

	log.Info("rotation started, press Ctrl+C to stop")
	if err := rotator.Run(ctx, valid); err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

// shorthands maps short flag names to the long ones used as settings keys.
var shorthands = map[string]string{
	"f": "file",
	"o": "output-file",
	"t": "timeout",
	"u": "url",
	"w": "workers",
	"c": "conf",
	"s": "sleep",
	"v": "verbose",
}

// parseSettings resolves flags over an optional YAML settings file over
// the built-in defaults.
func parseSettings(args []string) (proxyrot.Settings, error) {
	s := proxyrot.DefaultSettings()
	var settingsPath string

	fs := flag.NewFlagSet("chainrotate", flag.ContinueOnError)
	fs.StringVar(&settingsPath, "settings", "", "YAML file with the long flag names as keys")

	str := func(p *string, long, usage string) {
		fs.StringVar(p, long, *p, usage)
	}
	num := func(p *int, long, usage string) {
		fs.IntVar(p, long, *p, usage)
	}

	str(&s.File, "file", "proxy list, one ip:port per line")
	str(&s.OutputFile, "output-file", "write valid proxies to this file")
	num(&s.Timeout, "timeout", "probe timeout in seconds")
	str(&s.URL, "url", "URL requested through every proxy")
	num(&s.Workers, "workers", "concurrent probes")
	str(&s.Conf, "conf", "proxychains config path")
	num(&s.Sleep, "sleep", "seconds between proxy switches")
	str(&s.ProxyType, "proxy-type", "proxy type written to the config: http, https, socks4, socks5")
	str(&s.Strategy, "strategy", "chain strategy written to the config")
	str(&s.ProbeScheme, "probe-scheme", "talk to candidates as http or socks5 proxies")
	str(&s.StatusAddr, "status-addr", "serve status JSON and websocket on this address")
	fs.BoolVar(&s.NoUpdate, "no-update", false, "validate and export only")
	fs.BoolVar(&s.Verbose, "verbose", false, "debug logging")
	fs.BoolVar(&s.Progress, "progress", false, "show a progress bar while validating")

	for short, long := range shorthands {
		f := fs.Lookup(long)
		fs.Var(f.Value, short, "shorthand for -"+long)
	}

	if err := fs.Parse(args); err != nil {
		return s, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := shorthands[name]; ok {
			name = long
		}
		explicit[name] = true
	})

	if settingsPath != "" {
		if err := proxyrot.LoadSettings(settingsPath, &s, explicit); err != nil {
			return s, err
		}
	}

	return s, s.Validate()
}
