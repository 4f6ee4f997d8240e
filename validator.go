package proxyrot

import (
	"context"
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/grishkovelli/proxyrot/pkg/chainconf"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Progress is reported at milestones of a validation pass.
type Progress struct {
	Pass    string `json:"pass"`
	Checked int    `json:"checked"`
	Total   int    `json:"total"`
	Valid   int    `json:"valid"`
}

// Validator fans addresses out to at most Workers concurrent goroutines
// running Prober.
type Validator struct {
	Prober  Prober
	Workers int

	// Optional observers
	Stat    *Stat
	Monitor *Monitor
	Bar     *pb.ProgressBar

	log logrus.FieldLogger
}

func NewValidator(p Prober, workers int, log logrus.FieldLogger) *Validator {
	return &Validator{Prober: p, Workers: workers, log: orDiscard(log)}
}

// ValidateAll probes every address once and returns the valid ones in
// completion order. A failing probe never stops the pass. ctx is used for
// its values only.
func (v *Validator) ValidateAll(ctx context.Context, addrs []chainconf.Address) []chainconf.Address {
	valid := []chainconf.Address{}
	if len(addrs) == 0 {
		return valid
	}

	total := len(addrs)
	workers := max(1, min(v.Workers, total))
	step := max(1, v.Workers/2)

	pass := v.Stat.begin(total)
	log := orDiscard(v.log).WithField("pass", pass)
	log.Infof("checking %d proxies with %d workers", total, workers)

	if v.Bar != nil {
		v.Bar.SetTotal(int64(total))
		v.Bar.Start()
		defer v.Bar.Finish()
	}

	probeCtx := context.WithoutCancel(ctx)
	results := make(chan Result, workers)

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, a := range addrs {
			a := a
			g.Go(func() error {
				results <- v.probe(probeCtx, a)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	checked := 0
	for r := range results {
		checked++
		if r.Valid {
			valid = append(valid, r.Address)
		}

		v.Stat.probed(r.Valid)
		if v.Bar != nil {
			v.Bar.Increment()
		}

		if checked%step == 0 || checked == total {
			p := Progress{Pass: pass, Checked: checked, Total: total, Valid: len(valid)}
			log.Infof("checked %d/%d proxies, %d valid so far", checked, total, len(valid))
			v.Monitor.Publish("progress", p)
		}
	}

	return valid
}

// probe shields the pool from a panicking Prober.
func (v *Validator) probe(ctx context.Context, a chainconf.Address) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			orDiscard(v.log).WithField("proxy", a.String()).Errorf("probe panicked: %v", rec)
			r = Result{Address: a, Err: fmt.Errorf("probe panicked: %v", rec)}
		}
	}()
	return v.Prober.Probe(ctx, a)
}
