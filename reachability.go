package netguard

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Reachability reports whether the network is usable before a request is
// sent. An unreachable network fails the request with NO_INTERNET_CONNECTION.
type Reachability interface {
	Reachable() bool
}

// ReachabilityFunc adapts a function to Reachability.
type ReachabilityFunc func() bool

// Reachable implements Reachability.
func (f ReachabilityFunc) Reachable() bool {
	return f()
}

// ReachabilityMonitor probes a TCP address periodically and caches the result.
type ReachabilityMonitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	logger   Logger

	reachable atomic.Bool
	probes    singleflight.Group
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// NewReachabilityMonitor creates a monitor for addr ("host:port"). The
// network is assumed reachable until the first probe says otherwise.
func NewReachabilityMonitor(addr string, interval, timeout time.Duration, logger Logger) *ReachabilityMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	m := &ReachabilityMonitor{
		addr:     addr,
		interval: interval,
		timeout:  timeout,
		dial:     (&net.Dialer{}).DialContext,
		logger:   loggerOrNop(logger),
	}
	m.reachable.Store(true)
	return m
}

// Reachable implements Reachability.
func (m *ReachabilityMonitor) Reachable() bool {
	return m.reachable.Load()
}

// Check probes once and stores the result. Concurrent callers share a
// single dial.
func (m *ReachabilityMonitor) Check(ctx context.Context) bool {
	v, _, _ := m.probes.Do(m.addr, func() (interface{}, error) {
		return m.probe(ctx), nil
	})
	return v.(bool)
}

func (m *ReachabilityMonitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx, "tcp", m.addr)
	ok := err == nil
	if ok {
		conn.Close()
	}
	if previous := m.reachable.Swap(ok); previous != ok {
		if ok {
			m.logger.Info("Network reachable", "addr", m.addr)
		} else {
			m.logger.Warn("Network unreachable", "addr", m.addr, "error", err.Error())
		}
	}
	return ok
}

// Start probes immediately and then every interval until ctx is done or Stop
// is called. Calling Start on a running monitor is a no-op.
func (m *ReachabilityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.Check(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop ends background probing and waits for it to finish.
func (m *ReachabilityMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
}
