package chainconf

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ProxyListMarker opens the section holding proxy entries.
const ProxyListMarker = "[ProxyList]"

// Summary describes what a Rewrite did to the document.
type Summary struct {
	// Entries is the number of proxy lines written
	Entries int
	// Skipped counts addresses that could not be formatted
	Skipped int
	// Dropped counts stale lines removed from the proxy list section
	Dropped int
	// StrategyInserted is set when no existing directive could be reused
	StrategyInserted bool
	// MarkerAppended is set when the document had no [ProxyList] section
	MarkerAppended bool
}

// Rewrite returns doc with strategy as the only active chain directive and
// the [ProxyList] section replaced by addrs, each written as
// "<type> <host> <port>". Lines it does not own are kept verbatim and in
// order. Malformed addresses are logged and skipped. Output lines end
// with "\n" whatever the input used.
//
// The first directive satisfying strategy and the first [ProxyList] marker
// are the ones that take effect. Later satisfying directives are commented
// out, later markers are kept but receive no entries.
func Rewrite(doc string, strategy Strategy, addrs []string, t ProxyType, log logrus.FieldLogger) (string, Summary) {
	log = orDiscard(log)

	var sum Summary
	entries := formatEntries(addrs, t, log, &sum)

	lines := splitLines(doc)
	out := make([]string, 0, len(lines)+len(entries)+3)

	strategySet, markerSeen, inList := false, false, false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if d, commented, ok := directive(trimmed); ok {
			switch {
			case !strategySet && strategy.Satisfies(d):
				out = append(out, string(d))
				strategySet = true
				log.Debugf("chain strategy set by %s", d)
			case commented:
				out = append(out, line)
			default:
				out = append(out, "#"+string(d))
			}
			continue
		}

		if trimmed == ProxyListMarker {
			out = append(out, ProxyListMarker)
			if !markerSeen {
				out = append(out, entries...)
				markerSeen = true
			} else {
				log.Warnf("duplicate %s section, entries are written to the first one only", ProxyListMarker)
			}
			inList = true
			continue
		}

		if inList {
			switch {
			case trimmed == "", strings.HasPrefix(trimmed, "#"):
				out = append(out, line)
			case strings.HasPrefix(trimmed, "["):
				out = append(out, line)
				inList = false
			default:
				sum.Dropped++
				log.Debugf("dropping stale proxy line: %s", trimmed)
			}
			continue
		}

		out = append(out, line)
	}

	if !strategySet {
		log.Warnf("no existing line could be set to %s, adding it at the top", strategy)
		out = append([]string{string(strategy)}, out...)
		sum.StrategyInserted = true
	}

	if !markerSeen {
		log.Warnf("no %s section found, appending it", ProxyListMarker)
		if len(out) > 0 {
			out = append(out, "")
		}
		out = append(out, ProxyListMarker)
		out = append(out, entries...)
		sum.MarkerAppended = true
	}

	return strings.Join(out, "\n") + "\n", sum
}

// directive recognizes "name" and "#name" lines for every known strategy.
func directive(trimmed string) (Strategy, bool, bool) {
	for _, s := range strategies {
		if strings.HasPrefix(trimmed, string(s)) {
			return s, false, true
		}
		if strings.HasPrefix(trimmed, "#"+string(s)) {
			return s, true, true
		}
	}
	return "", false, false
}

func formatEntries(addrs []string, t ProxyType, log logrus.FieldLogger, sum *Summary) []string {
	entries := make([]string, 0, len(addrs))
	for _, raw := range addrs {
		a, err := ParseAddress(raw)
		if err != nil {
			log.WithField("proxy", raw).Warnf("skipping proxy: %v", err)
			sum.Skipped++
			continue
		}
		entries = append(entries, a.Entry(t))
	}
	sum.Entries = len(entries)
	return entries
}

// splitLines splits doc into lines, accepting \r\n endings.
func splitLines(doc string) []string {
	if doc == "" {
		return nil
	}
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(doc, "\n"), "\n")
}
