package chainconf

import (
	"strings"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const sampleConf = `# proxychains.conf  VER 4.x
#
#random_chain
round_robin_chain
#strict_chain
chain_len = 2
proxy_dns

[ProxyList]
# add proxy here ...
socks4 127.0.0.1 9050
http 9.9.9.9 3128
`

var _ = Describe("Rewrite", func() {
	var (
		log  *logrus.Logger
		hook *test.Hook
	)

	BeforeEach(func() {
		log, hook = test.NewNullLogger()
		log.SetLevel(logrus.DebugLevel)
	})

	warnings := func() []string {
		var msgs []string
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel {
				msgs = append(msgs, e.Message)
			}
		}
		return msgs
	}

	It("switches strategy and replaces stale entries", func() {
		out, sum := Rewrite(sampleConf, StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)

		Expect(out).To(Equal(`# proxychains.conf  VER 4.x
#
#random_chain
#round_robin_chain
strict_chain
chain_len = 2
proxy_dns

[ProxyList]
http 1.2.3.4 8080
# add proxy here ...
`))
		Expect(sum.Entries).To(Equal(1))
		Expect(sum.Dropped).To(Equal(2))
		Expect(sum.StrategyInserted).To(BeFalse())
		Expect(sum.MarkerAppended).To(BeFalse())
	})

	It("is idempotent", func() {
		addrs := []string{"1.2.3.4:8080", "5.6.7.8:3128"}
		first, _ := Rewrite(sampleConf, RandomChain, addrs, SOCKS5, log)
		second, _ := Rewrite(first, RandomChain, addrs, SOCKS5, log)
		Expect(second).To(Equal(first))
		Expect(strings.Count(second, "socks5 1.2.3.4 8080")).To(Equal(1))
		Expect(strings.Count(second, "\nrandom_chain\n")).To(Equal(1))
	})

	It("is idempotent when the strategy and marker had to be added", func() {
		first, sum := Rewrite("proxy_dns\n", RoundRobinChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(sum.StrategyInserted).To(BeTrue())
		Expect(sum.MarkerAppended).To(BeTrue())

		second, sum := Rewrite(first, RoundRobinChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(second).To(Equal(first))
		Expect(sum.StrategyInserted).To(BeFalse())
		Expect(sum.MarkerAppended).To(BeFalse())
	})

	It("activates a commented dynamic_chain for strict_chain", func() {
		out, _ := Rewrite("#dynamic_chain\n#random_chain\n[ProxyList]\n", StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(out).To(Equal("dynamic_chain\n#random_chain\n[ProxyList]\nhttp 1.2.3.4 8080\n"))
		Expect(out).NotTo(ContainSubstring("strict_chain"))
	})

	It("activates strict_chain for dynamic_chain", func() {
		out, _ := Rewrite("#strict_chain\nrandom_chain\n[ProxyList]\n", DynamicChain, nil, HTTP, log)
		Expect(out).To(Equal("strict_chain\n#random_chain\n[ProxyList]\n"))
	})

	It("keeps only the first directive that satisfies the strategy active", func() {
		out, _ := Rewrite("#random_chain\nrandom_chain\n#strict_chain\n", RandomChain, nil, HTTP, log)
		Expect(out).To(HavePrefix("random_chain\n#random_chain\n#strict_chain\n"))

		out, _ = Rewrite("strict_chain\ndynamic_chain\n", StrictChain, nil, HTTP, log)
		Expect(out).To(HavePrefix("strict_chain\n#dynamic_chain\n"))
	})

	It("leaves already commented unrelated directives untouched", func() {
		out, _ := Rewrite("  #round_robin_chain\nrandom_chain\n", RandomChain, nil, HTTP, log)
		Expect(out).To(HavePrefix("  #round_robin_chain\nrandom_chain\n"))
	})

	It("inserts the strategy at the top when no directive exists", func() {
		out, sum := Rewrite("proxy_dns\n[ProxyList]\n", RandomChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(out).To(Equal("random_chain\nproxy_dns\n[ProxyList]\nhttp 1.2.3.4 8080\n"))
		Expect(sum.StrategyInserted).To(BeTrue())
		Expect(warnings()).To(ContainElement(ContainSubstring("no existing line")))
	})

	It("appends the proxy list when the marker is missing", func() {
		out, sum := Rewrite("strict_chain\nproxy_dns", StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(out).To(Equal("strict_chain\nproxy_dns\n\n[ProxyList]\nhttp 1.2.3.4 8080\n"))
		Expect(sum.MarkerAppended).To(BeTrue())
	})

	It("builds a document from nothing", func() {
		out, _ := Rewrite("", StrictChain, []string{"1.2.3.4:8080"}, HTTPS, log)
		Expect(out).To(Equal("strict_chain\n\n[ProxyList]\nhttps 1.2.3.4 8080\n"))
	})

	It("leaves the proxy list at the next section header", func() {
		doc := "strict_chain\n[ProxyList]\nhttp 1.1.1.1 1\n\n[Other]\nkeep me\nhttp 2.2.2.2 2\n"
		out, sum := Rewrite(doc, StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(out).To(Equal("strict_chain\n[ProxyList]\nhttp 1.2.3.4 8080\n\n[Other]\nkeep me\nhttp 2.2.2.2 2\n"))
		Expect(sum.Dropped).To(Equal(1))
	})

	It("writes entries only under the first marker", func() {
		doc := "strict_chain\n[ProxyList]\nhttp 1.1.1.1 1\n[ProxyList]\nhttp 2.2.2.2 2\n"
		out, _ := Rewrite(doc, StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)
		Expect(out).To(Equal("strict_chain\n[ProxyList]\nhttp 1.2.3.4 8080\n[ProxyList]\n"))
		Expect(warnings()).To(ContainElement(ContainSubstring("duplicate")))
	})

	It("skips malformed addresses with a warning", func() {
		addrs := []string{"not-an-address", "1.1.1.1:80", "2.2.2.2:81"}
		out, sum := Rewrite("[ProxyList]\n", StrictChain, addrs, SOCKS4, log)

		Expect(out).To(HaveSuffix("[ProxyList]\nsocks4 1.1.1.1 80\nsocks4 2.2.2.2 81\n"))
		Expect(out).NotTo(ContainSubstring("not-an-address"))
		Expect(sum.Entries).To(Equal(2))
		Expect(sum.Skipped).To(Equal(1))
		Expect(warnings()).To(ContainElement(ContainSubstring("skipping proxy")))
	})

	It("keeps unrelated lines in order", func() {
		out, _ := Rewrite(sampleConf, StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)

		var kept []string
		for _, l := range strings.Split(out, "\n") {
			if _, _, ok := directive(strings.TrimSpace(l)); ok || strings.HasPrefix(l, "http ") {
				continue
			}
			kept = append(kept, l)
		}
		Expect(kept).To(Equal([]string{
			"# proxychains.conf  VER 4.x", "#", "chain_len = 2", "proxy_dns", "",
			"[ProxyList]", "# add proxy here ...", "",
		}))
	})

	It("reads CRLF line endings and writes LF", func() {
		doc := "#random_chain\r\nstrict_chain\r\nproxy_dns\r\n[ProxyList]\r\nsocks4 127.0.0.1 9050\r\n"
		out, sum := Rewrite(doc, StrictChain, []string{"1.2.3.4:8080"}, HTTP, log)

		Expect(out).To(Equal("#random_chain\nstrict_chain\nproxy_dns\n[ProxyList]\nhttp 1.2.3.4 8080\n"))
		Expect(out).NotTo(ContainSubstring("\r"))
		Expect(sum.Dropped).To(Equal(1))
	})

	It("accepts a nil logger", func() {
		out, _ := Rewrite("", RandomChain, []string{"bad"}, HTTP, nil)
		Expect(out).To(Equal("random_chain\n\n[ProxyList]\n"))
	})
})
