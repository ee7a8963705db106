// Package health probes the remote engine services behind the pipeline.
// Each service is polled on a fixed interval; a service is marked unhealthy
// only after a configurable number of consecutive failures so a single
// dropped probe does not flap the status.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Target names one engine service to watch.
type Target struct {
	Name string
	URL  string
}

// Status is the current health state of one engine service.
type Status struct {
	Healthy          bool      `json:"healthy"`
	LastCheck        time.Time `json:"last_check"`
	ConsecutiveFails int       `json:"consecutive_fails"`
	Error            string    `json:"error,omitempty"`
}

// Monitor polls engine services in the background. Safe for concurrent use.
type Monitor struct {
	targets       []Target
	client        *http.Client
	interval      time.Duration
	failThreshold int
	logger        *slog.Logger

	mu     sync.RWMutex
	status map[string]Status

	stop chan struct{}
	done chan struct{}
}

// NewMonitor builds a Monitor over targets. Interval defaults to one minute
// and failThreshold to 3. Services start out healthy until a probe says
// otherwise.
func NewMonitor(targets []Target, interval time.Duration, failThreshold int, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	status := make(map[string]Status, len(targets))
	for _, t := range targets {
		status[t.Name] = Status{Healthy: true}
	}
	return &Monitor{
		targets:       targets,
		client:        &http.Client{Timeout: 10 * time.Second},
		interval:      interval,
		failThreshold: failThreshold,
		logger:        logger,
		status:        status,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the polling loop. It probes once immediately so the first
// snapshot reflects reality, then ticks until Stop is called or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		m.CheckAll(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CheckAll(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

// CheckAll probes every target once and updates the snapshot.
func (m *Monitor) CheckAll(ctx context.Context) {
	for _, t := range m.targets {
		err := m.probe(ctx, t)
		m.record(t.Name, err)
	}
}

func (m *Monitor) probe(ctx context.Context, t Target) error {
	url := strings.TrimRight(t.URL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", t.Name, resp.StatusCode)
	}
	return nil
}

func (m *Monitor) record(name string, probeErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.status[name]
	st.LastCheck = time.Now()
	if probeErr == nil {
		if !st.Healthy && m.logger != nil {
			m.logger.Info("engine service recovered", "service", name)
		}
		st.Healthy = true
		st.ConsecutiveFails = 0
		st.Error = ""
	} else {
		st.ConsecutiveFails++
		st.Error = probeErr.Error()
		if st.ConsecutiveFails >= m.failThreshold {
			if st.Healthy && m.logger != nil {
				m.logger.Warn("engine service marked unhealthy",
					"service", name, "fails", st.ConsecutiveFails, "error", probeErr)
			}
			st.Healthy = false
		}
	}
	m.status[name] = st
}

// Snapshot returns a copy of the per-service status map.
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

// Healthy reports whether every watched service is currently healthy.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.status {
		if !st.Healthy {
			return false
		}
	}
	return true
}
