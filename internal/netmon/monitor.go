// Package netmon tracks network reachability. The workflow reads a single
// boolean gate; the monitor refreshes it on a fixed interval.
package netmon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// probeRetries is how many quick retries a single probe tick performs
// before declaring the network unreachable.
const probeRetries = 2

// Monitor periodically probes a known external host
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	lastProbe time.Time

	cfg        *config.NetworkConfig
	httpClient *http.Client
	logger     *loggy.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a network monitor from the given configuration
func NewMonitor(cfg *config.Config, logger *loggy.Logger) *Monitor {
	return &Monitor{
		cfg: &cfg.Network,
		httpClient: &http.Client{
			Timeout: cfg.Network.ProbeTimeout,
		},
		logger: logger,
	}
}

// Start launches the probe loop. It probes once immediately so the gate is
// meaningful before the first interval elapses.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.probe(ctx)

		ticker := time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// Online returns the last observed reachability
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// LastProbe returns the time of the last probe attempt
func (m *Monitor) LastProbe() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProbe
}

// probe performs one reachability check. It retries briefly with
// exponential backoff inside the tick; a still-failing probe just sets
// the flag false. Probe failures never propagate.
func (m *Monitor) probe(ctx context.Context) {
	operation := func() error {
		return m.probeOnce(ctx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, probeRetries), ctx))

	m.mu.Lock()
	wasOnline := m.online
	m.online = err == nil
	m.lastProbe = time.Now()
	m.mu.Unlock()

	if err != nil && wasOnline {
		m.logger.Warn("Network unreachable", "url", m.cfg.ProbeURL, "error", err)
	} else if err == nil && !wasOnline {
		m.logger.Info("Network reachable", "url", m.cfg.ProbeURL)
	}
}

func (m *Monitor) probeOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", m.cfg.ProbeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe returned %d", resp.StatusCode)
	}
	return nil
}

// CheckNow runs a probe immediately and returns the result. Used by the
// manual sync path so a just-started agent doesn't wait for the first tick.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	m.probe(ctx)
	return m.Online()
}
