package proxyrot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Payload is one message pushed to websocket clients.
type Payload struct {
	Kind string `json:"kind"`
	Body any    `json:"body"`
}

// Monitor serves Stat as JSON on "/" and pushes it, together with
// progress and rotation events, to websocket clients on "/ws".
// Publish is safe on a nil *Monitor.
type Monitor struct {
	// Interval between periodic stat pushes
	Interval time.Duration

	stat      *Stat
	log       logrus.FieldLogger
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	m         sync.Mutex
}

func NewMonitor(stat *Stat, log logrus.FieldLogger) *Monitor {
	return &Monitor{
		Interval:  2 * time.Second,
		stat:      stat,
		log:       orDiscard(log),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
	}
}

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.serveStat)
	mux.HandleFunc("/ws", m.wsHandler)
	return mux
}

// Run serves Handler on addr until ctx is done.
func (m *Monitor) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: m.Handler()}

	m.Start(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	m.log.Infof("status server started on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start launches the broadcast loop and the periodic stat push.
func (m *Monitor) Start(ctx context.Context) {
	go m.handleMessages(ctx)
	go m.sendStatistics(ctx)
}

// Publish queues a payload for every connected client. It never blocks;
// payloads are dropped while the queue is full.
func (m *Monitor) Publish(kind string, body any) {
	if m == nil {
		return
	}

	p, err := json.Marshal(Payload{kind, body})
	if err != nil {
		m.log.Warnf("encoding %s payload: %v", kind, err)
		return
	}

	select {
	case m.broadcast <- p:
	default:
		m.log.Debugf("status queue full, dropping %s payload", kind)
	}
}

func (m *Monitor) serveStat(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.stat)
}

func (m *Monitor) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnf("upgrade: %v", err)
		return
	}

	m.m.Lock()
	m.clients[conn] = true
	m.m.Unlock()
}

func (m *Monitor) handleMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.m.Lock()
			for c := range m.clients {
				c.Close()
				delete(m.clients, c)
			}
			m.m.Unlock()
			return
		case msg := <-m.broadcast:
			m.m.Lock()
			for c := range m.clients {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					c.Close()
					delete(m.clients, c)
				}
			}
			m.m.Unlock()
		}
	}
}

func (m *Monitor) sendStatistics(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Publish("stat", m.stat)
		}
	}
}
