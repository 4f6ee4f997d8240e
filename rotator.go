package proxyrot

import (
	"context"
	"math/rand"
	"time"

	"github.com/grishkovelli/proxyrot/pkg/chainconf"
	"github.com/sirupsen/logrus"
)

// ConfigUpdater applies a strategy and proxy list to a configuration.
// *chainconf.File is the production implementation.
type ConfigUpdater interface {
	Update(strategy chainconf.Strategy, t chainconf.ProxyType, addrs []string) error
}

// Rotator switches the configuration to a randomly chosen valid proxy
// every Interval until its context is done.
type Rotator struct {
	Config   ConfigUpdater
	Strategy chainconf.Strategy
	Type     chainconf.ProxyType
	Interval time.Duration

	// Optional observers
	Stat    *Stat
	Monitor *Monitor

	log  logrus.FieldLogger
	pick func(n int) int
}

func NewRotator(cfg ConfigUpdater, strategy chainconf.Strategy, t chainconf.ProxyType, interval time.Duration, log logrus.FieldLogger) *Rotator {
	return &Rotator{
		Config:   cfg,
		Strategy: strategy,
		Type:     t,
		Interval: interval,
		log:      orDiscard(log),
		pick:     rand.Intn,
	}
}

// Run rotates through valid until ctx is done. A failed update is logged
// and retried with a new pick on the next cycle.
func (r *Rotator) Run(ctx context.Context, valid []chainconf.Address) error {
	if len(valid) == 0 {
		return ErrNoValidProxies
	}

	log := orDiscard(r.log)
	log.Infof("rotating %d proxies every %s", len(valid), r.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("rotation stopped")
			return nil
		case <-timer.C:
		}

		r.rotate(valid[r.pick(len(valid))])
		timer.Reset(r.Interval)
	}
}

func (r *Rotator) rotate(a chainconf.Address) {
	log := orDiscard(r.log).WithField("proxy", a.String())
	log.Infof("switching to %s proxy", r.Type)

	err := r.Config.Update(r.Strategy, r.Type, []string{a.String()})
	r.Stat.rotated(a.String(), err)

	if err != nil {
		log.Warnf("update failed, retrying next cycle: %v", err)
		r.Monitor.Publish("rotation", map[string]any{"proxy": a.String(), "error": err.Error()})
		return
	}
	r.Monitor.Publish("rotation", map[string]any{"proxy": a.String()})
}
