package chainconf

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	ErrMalformedAddress = errors.New("malformed address")
	ErrUnknownStrategy  = errors.New("unknown chain strategy")
	ErrUnknownProxyType = errors.New("unknown proxy type")
)

//   █████╗ ██████╗ ██████╗ ██████╗ ███████╗███████╗███████╗
//  ██╔══██╗██╔══██╗██╔══██╗██╔══██╗██╔════╝██╔════╝██╔════╝
//  ███████║██║  ██║██║  ██║██████╔╝█████╗  ███████╗███████╗
//  ██╔══██║██║  ██║██║  ██║██╔══██╗██╔══╝  ╚════██║╚════██║
//  ██║  ██║██████╔╝██████╔╝██║  ██║███████╗███████║███████║
//  ╚═╝  ╚═╝╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚══════╝╚══════╝╚══════╝
//

// Address is a proxy endpoint. The zero value is not a valid address;
// build one with ParseAddress.
type Address struct {
	Host string
	Port int
}

// ParseAddress parses "host:port". It requires exactly one colon, a
// non-empty host and a numeric port in 1..65535.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") != 1 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}

	host, port, _ := strings.Cut(s, ":")
	if host == "" {
		return Address{}, fmt.Errorf("%w: %q: empty host", ErrMalformedAddress, s)
	}

	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return Address{}, fmt.Errorf("%w: %q: bad port", ErrMalformedAddress, s)
	}

	return Address{Host: host, Port: p}, nil
}

func (a Address) String() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Entry formats the address as a [ProxyList] line.
func (a Address) Entry(t ProxyType) string {
	return fmt.Sprintf("%s %s %d", t, a.Host, a.Port)
}

// Strings converts addresses back to "host:port" form.
func Strings(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

//  ████████╗██╗   ██╗██████╗ ███████╗███████╗
//  ╚══██╔══╝╚██╗ ██╔╝██╔══██╗██╔════╝██╔════╝
//     ██║    ╚████╔╝ ██████╔╝█████╗  ███████╗
//     ██║     ╚██╔╝  ██╔═══╝ ██╔══╝  ╚════██║
//     ██║      ██║   ██║     ███████╗███████║
//     ╚═╝      ╚═╝   ╚═╝     ╚══════╝╚══════╝
//

// ProxyType is the protocol written in front of every [ProxyList] entry.
type ProxyType string

const (
	HTTP   ProxyType = "http"
	HTTPS  ProxyType = "https"
	SOCKS4 ProxyType = "socks4"
	SOCKS5 ProxyType = "socks5"
)

var proxyTypes = []ProxyType{HTTP, HTTPS, SOCKS4, SOCKS5}

func ParseProxyType(s string) (ProxyType, error) {
	for _, t := range proxyTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProxyType, s)
}

// Strategy is a proxychains chain directive.
type Strategy string

const (
	RandomChain     Strategy = "random_chain"
	RoundRobinChain Strategy = "round_robin_chain"
	StrictChain     Strategy = "strict_chain"
	DynamicChain    Strategy = "dynamic_chain"
)

// Order matters: it is the order directives are matched against a line.
var strategies = []Strategy{RandomChain, RoundRobinChain, StrictChain, DynamicChain}

// ParseStrategy accepts the directive name or its short form
// ("random", "round-robin", "strict", "dynamic").
func ParseStrategy(s string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.ReplaceAll(n, "-", "_")
	for _, st := range strategies {
		if n == string(st) || n+"_chain" == string(st) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Satisfies reports whether directive d activates strategy s.
// dynamic_chain and strict_chain stand in for each other.
func (s Strategy) Satisfies(d Strategy) bool {
	if s == d {
		return true
	}
	alias := map[Strategy]Strategy{StrictChain: DynamicChain, DynamicChain: StrictChain}
	return alias[s] == d
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
