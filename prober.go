package proxyrot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/grishkovelli/proxyrot/pkg/chainconf"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

var errStatus = errors.New("unexpected status")

// Result is the outcome of probing one address.
type Result struct {
	Address chainconf.Address
	Valid   bool
	Latency time.Duration
	Err     error
}

// Prober classifies a single proxy. Implementations report failures in
// the Result instead of returning errors.
type Prober interface {
	Probe(ctx context.Context, a chainconf.Address) Result
}

// HTTPProber requests TestURL through the candidate proxy. A proxy is
// valid when the answer is exactly 200 within Timeout. https test URLs go
// through the proxy with CONNECT.
type HTTPProber struct {
	// Timeout bounds the whole request
	Timeout time.Duration
	// TestURL is fetched through the proxy
	TestURL string
	// Scheme is "http" (default) or "socks5"
	Scheme string
	// TLSClientConfig is used for https test URLs; nil means system roots
	TLSClientConfig *tls.Config

	log logrus.FieldLogger
}

func NewHTTPProber(timeout time.Duration, testURL, scheme string, log logrus.FieldLogger) *HTTPProber {
	return &HTTPProber{Timeout: timeout, TestURL: testURL, Scheme: scheme, log: orDiscard(log)}
}

func (p *HTTPProber) Probe(ctx context.Context, a chainconf.Address) Result {
	startedAt := time.Now()
	err := p.request(ctx, a)
	r := Result{Address: a, Valid: err == nil, Latency: time.Since(startedAt), Err: err}

	log := orDiscard(p.log).WithField("proxy", a.String())
	if r.Valid {
		log.Debugf("valid in %d ms", r.Latency.Milliseconds())
	} else {
		log.Warnf("invalid: %v", err)
	}
	return r
}

func (p *HTTPProber) request(ctx context.Context, a chainconf.Address) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	tr, err := p.transport(a)
	if err != nil {
		return err
	}
	defer tr.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.TestURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", agents.pick())

	client := &http.Client{Transport: tr}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s", p.Timeout)
		}
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w %d", errStatus, resp.StatusCode)
	}
	return nil
}

func (p *HTTPProber) transport(a chainconf.Address) (*http.Transport, error) {
	tr := &http.Transport{DisableKeepAlives: true, TLSClientConfig: p.TLSClientConfig}

	switch p.Scheme {
	case "", "http":
		tr.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: a.String()})
	case "socks5":
		d, err := proxy.SOCKS5("tcp", a.String(), nil, &net.Dialer{Timeout: p.Timeout})
		if err != nil {
			return nil, err
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported probe scheme %q", p.Scheme)
	}

	return tr, nil
}
