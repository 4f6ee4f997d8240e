package proxyrot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Monitor", func() {
	var (
		stat    *Stat
		monitor *Monitor
		srv     *httptest.Server
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		stat = &Stat{}
		stat.begin(7)
		monitor = NewMonitor(stat, nil)
		monitor.Interval = time.Hour
		monitor.Start(ctx)
		srv = httptest.NewServer(monitor.Handler())
	})

	AfterEach(func() {
		cancel()
		srv.Close()
	})

	It("serves the stat as JSON", func() {
		resp, err := http.Get(srv.URL)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var m map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&m)).To(Succeed())
		Expect(m).To(HaveKeyWithValue("total", 7.0))
	})

	It("pushes published payloads to websocket clients", func() {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Eventually(func() int {
			monitor.m.Lock()
			defer monitor.m.Unlock()
			return len(monitor.clients)
		}).Should(Equal(1))

		monitor.Publish("progress", Progress{Checked: 3, Total: 7, Valid: 1})

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var p struct {
			Kind string   `json:"kind"`
			Body Progress `json:"body"`
		}
		Expect(conn.ReadJSON(&p)).To(Succeed())
		Expect(p.Kind).To(Equal("progress"))
		Expect(p.Body.Checked).To(Equal(3))
	})

	It("does not block when nobody drains the queue", func() {
		idle := NewMonitor(stat, nil)
		for i := 0; i < 200; i++ {
			idle.Publish("stat", stat)
		}
	})

	It("ignores Publish on nil", func() {
		var m *Monitor
		m.Publish("stat", nil)
	})
})
