package proxyrot

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("userAgents", func() {
	Describe("pick()", func() {
		It("returns an agent from the pool", func() {
			Expect([]string(agents)).To(ContainElement(agents.pick()))
		})

		It("returns different agents over many calls", func() {
			seen := map[string]bool{}
			for i := 0; i < 100; i++ {
				seen[agents.pick()] = true
			}
			Expect(len(seen)).To(BeNumerically(">", 1))
		})
	})
})
