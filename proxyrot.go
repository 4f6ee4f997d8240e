// Package proxyrot validates candidate proxies over HTTP and rotates the
// validated ones through a proxychains configuration file.
package proxyrot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/grishkovelli/proxyrot/pkg/chainconf"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoAddresses    = errors.New("no proxy addresses")
	ErrNoValidProxies = errors.New("no valid proxies")
)

// LoadAddresses reads a proxy list: one host:port per line. Blank lines,
// lines starting with '#' and lines without ':' are ignored; lines that
// still do not parse are dropped with a warning.
func LoadAddresses(path string, log logrus.FieldLogger) ([]chainconf.Address, error) {
	log = orDiscard(log)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	var addrs []chainconf.Address
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, ":") {
			continue
		}

		a, err := chainconf.ParseAddress(line)
		if err != nil {
			log.Warnf("%s:%d: %v", path, n, err)
			continue
		}
		addrs = append(addrs, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}

	log.Infof("read %d proxies from %s", len(addrs), path)
	return addrs, nil
}

// Export writes addrs to path, one per line. Nothing is written when
// addrs is empty.
func Export(path string, addrs []chainconf.Address, log logrus.FieldLogger) error {
	log = orDiscard(log)

	if len(addrs) == 0 {
		log.Info("no valid proxies to export")
		return nil
	}

	var b strings.Builder
	for _, a := range addrs {
		b.WriteString(a.String())
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		log.Errorf("exporting valid proxies to %s: %v", path, err)
		return fmt.Errorf("export: %w", err)
	}

	log.Infof("exported %d valid proxies to %s", len(addrs), path)
	return nil
}
