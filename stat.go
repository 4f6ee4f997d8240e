package proxyrot

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stat is the live state of a validation pass and the rotation that
// follows it. All methods are safe on a nil *Stat.
type Stat struct {
	// Pass identifies the current validation pass
	Pass string `json:"pass"`
	// Total is the number of addresses in the pass
	Total int `json:"total"`
	// Checked is the number of completed probes
	Checked int `json:"checked"`
	// Valid is the number of proxies found valid so far
	Valid int `json:"valid"`
	// Current is the proxy the config was last switched to
	Current string `json:"current"`
	// Rotations counts successful config updates
	Rotations int `json:"rotations"`
	// Failures counts failed config updates
	Failures int `json:"failures"`

	m          sync.RWMutex
	startedAt  time.Time
	timestamps []time.Time
}

// MarshalJSON implements the json.Marshaler interface for Stat
func (s *Stat) MarshalJSON() ([]byte, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	type Alias Stat

	return json.Marshal(&struct {
		RPM     int   `json:"rpm"`
		Elapsed int64 `json:"elapsed"`
		*Alias
	}{
		RPM:     s.rpm(),
		Elapsed: s.elapsed().Milliseconds(),
		Alias:   (*Alias)(s),
	})
}

// begin starts a new pass over total addresses and returns its id.
func (s *Stat) begin(total int) string {
	pass := uuid.NewString()
	if s == nil {
		return pass
	}

	s.m.Lock()
	defer s.m.Unlock()
	s.Pass = pass
	s.Total = total
	s.Checked = 0
	s.Valid = 0
	s.startedAt = time.Now()
	s.timestamps = s.timestamps[:0]
	return pass
}

func (s *Stat) probed(valid bool) {
	if s == nil {
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	s.Checked++
	if valid {
		s.Valid++
	}
	s.timestamps = append(s.timestamps, time.Now())
}

func (s *Stat) rotated(addr string, err error) {
	if s == nil {
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	if err != nil {
		s.Failures++
		return
	}
	s.Rotations++
	s.Current = addr
}

// rpm is the number of probes completed during the last minute
func (s *Stat) rpm() int {
	rpm, lastMinute := 0, time.Now().Add(-time.Minute)
	for i := len(s.timestamps) - 1; i >= 0; i-- {
		if s.timestamps[i].Compare(lastMinute) >= 0 {
			rpm++
		} else {
			break
		}
	}
	return rpm
}

func (s *Stat) elapsed() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
