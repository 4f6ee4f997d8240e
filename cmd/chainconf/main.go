// Command chainconf writes a list of already validated proxies into a
// proxychains configuration and selects its chain strategy.
package main

import (
	"errors"
	"flag"
	"io"
	"os"

	"github.com/grishkovelli/proxyrot"
	"github.com/grishkovelli/proxyrot/pkg/chainconf"
)

const defaultConf = "/etc/proxychains4.conf"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	var (
		input, conf, strategy, proxyType string
		verbose                          bool
	)

	fs := flag.NewFlagSet("chainconf", flag.ContinueOnError)
	fs.StringVar(&input, "input-file", "", "validated proxy list, one ip:port per line (required)")
	fs.StringVar(&input, "i", "", "shorthand for -input-file")
	fs.StringVar(&conf, "conf", defaultConf, "proxychains config path")
	fs.StringVar(&conf, "c", defaultConf, "shorthand for -conf")
	fs.StringVar(&strategy, "strategy", string(chainconf.RandomChain), "chain strategy: random_chain, round_robin_chain, strict_chain, dynamic_chain")
	fs.StringVar(&strategy, "s", string(chainconf.RandomChain), "shorthand for -strategy")
	fs.StringVar(&proxyType, "proxy-type", string(chainconf.HTTP), "type of every proxy: http, https, socks4, socks5")
	fs.StringVar(&proxyType, "pt", string(chainconf.HTTP), "shorthand for -proxy-type")
	fs.BoolVar(&verbose, "verbose", false, "debug logging")
	fs.BoolVar(&verbose, "v", false, "shorthand for -verbose")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	log := proxyrot.NewLogger(verbose, stdout)

	if input == "" {
		log.Error("-input-file is required")
		fs.Usage()
		return 1
	}

	st, err := chainconf.ParseStrategy(strategy)
	if err != nil {
		log.Error(err)
		return 1
	}
	pt, err := chainconf.ParseProxyType(proxyType)
	if err != nil {
		log.Error(err)
		return 1
	}

	addrs, err := proxyrot.LoadAddresses(input, log)
	if err != nil {
		log.Errorf("%v, exiting", err)
		return 1
	}
	if len(addrs) == 0 {
		log.Errorf("%s: %v, exiting", input, proxyrot.ErrNoAddresses)
		return 1
	}

	if err := chainconf.NewFile(conf, "pool", log).Update(st, pt, chainconf.Strings(addrs)); err != nil {
		log.Errorf("proxychains config update failed: %v", err)
		return 1
	}

	log.Info("proxychains config updated")
	return 0
}
