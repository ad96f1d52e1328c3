package fxrates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"orbitfolio/domain"
)

// DefaultPeriod how often the cache refreshes
const DefaultPeriod = 30 * time.Minute

// ErrStopped a refresh was requested or completed after Stop.
var ErrStopped = errors.New("rate cache stopped")

// Status of the most recently applied refresh
type Status string

const (
	StatusNotFetched Status = "not_fetched"
	StatusFetching   Status = "fetching"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Table a complete set of conversion factors, one per converted currency.
// Factors are units of reporting currency per one native unit.
type Table struct {
	Factors   domain.Rates
	FetchedAt time.Time
}

// Factor returns the conversion factor for c. The reporting currency
// converts with 1. A nil table has no factors.
func (t *Table) Factor(c domain.Currency) (domain.Rate, bool) {
	if t == nil {
		return 0, false
	}
	if c == domain.ReportingCurrency {
		return 1, true
	}
	r, ok := t.Factors[c]
	return r, ok
}

// Snapshot what readers of the cache see at one instant. Table is nil when
// no refresh ever succeeded or when the last good table is older than the
// cache's maximum age (Stale is then true).
type Snapshot struct {
	Table     *Table
	Status    Status
	Stale     bool
	LastError string
}

// Cache keeps a periodically refreshed table of conversion factors. A
// failed refresh leaves the previous table in place.
//
// Refreshes may overlap (a tick never waits for a pending one). Each
// refresh is numbered when it starts and its result is applied only when
// it is newer than the last applied result.
type Cache struct {
	// next the provider the cache pulls from
	next Service

	// currencies requested on every refresh
	currencies []domain.Currency

	// period between scheduled refreshes
	period time.Duration

	// maxAge after which a table is no longer trusted, <= 0 disables
	maxAge time.Duration

	now    func() time.Time
	logger log.Logger

	// lock guards everything below
	lock     sync.RWMutex
	table    *Table
	status   Status
	lastErr  string
	started  uint64
	applied  uint64
	stopped  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithMaxAge sets how old a table may get before it is reported as absent.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.maxAge = d
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithCurrencies overrides the currencies requested from the provider.
func WithCurrencies(cs ...domain.Currency) CacheOption {
	return func(c *Cache) {
		c.currencies = cs
	}
}

// NewCache returns a Cache over s refreshing every period. The default
// maximum age is three periods.
func NewCache(s Service, period time.Duration, opts ...CacheOption) *Cache {
	if period <= 0 {
		period = DefaultPeriod
	}
	c := &Cache{
		next:       s,
		currencies: domain.ConvertedCurrencies(),
		period:     period,
		maxAge:     3 * period,
		now:        time.Now,
		logger:     log.NewNopLogger(),
		status:     StatusNotFetched,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start refreshes once immediately and then every period until Stop is
// called or ctx is done. Calling Start on a running cache does nothing.
func (c *Cache) Start(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.cancel != nil || c.stopped {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.loopDone = make(chan struct{})
	go c.refreshPeriodically(ctx, c.loopDone)
}

// Stop ends the schedule. Refreshes already in flight run to completion
// but their results are dropped.
func (c *Cache) Stop() {
	c.lock.Lock()
	c.stopped = true
	cancel, done := c.cancel, c.loopDone
	c.lock.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// refreshPeriodically must be invoked from a go routine.
func (c *Cache) refreshPeriodically(ctx context.Context, done chan struct{}) {
	defer close(done)

	// in-flight fetches outlive the schedule, Stop only discards their result
	fetchCtx := context.WithoutCancel(ctx)
	refresh := func() {
		go func() {
			_ = c.Refresh(fetchCtx)
		}()
	}

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	level.Info(c.logger).Log("msg", "scheduling periodic refresh", "period", c.period)
	refresh()
	for {
		select {
		case <-ticker.C:
			level.Debug(c.logger).Log("msg", "periodic refresh")
			refresh()
		case <-ctx.Done():
			level.Info(c.logger).Log("msg", "shutting down periodic refresh")
			c.lock.Lock()
			c.stopped = true
			c.lock.Unlock()
			return
		}
	}
}

// Refresh fetches a new table. On failure the status becomes failed and
// the previous table stays. The error is returned for callers that want
// it; readers only ever see it through the snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return ErrStopped
	}
	c.started++
	seq := c.started
	c.status = StatusFetching
	c.lock.Unlock()

	quotes, err := c.next.LatestRates(ctx, c.currencies)
	var table *Table
	if err == nil {
		table, err = c.tableFrom(quotes)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.stopped {
		level.Debug(c.logger).Log("msg", "discarding refresh after stop", "seq", seq)
		return ErrStopped
	}
	if seq < c.applied {
		level.Debug(c.logger).Log("msg", "discarding superseded refresh", "seq", seq, "applied", c.applied)
		return nil
	}
	c.applied = seq

	if err != nil {
		c.status = StatusFailed
		c.lastErr = err.Error()
		level.Warn(c.logger).Log("msg", "refresh failed, keeping previous rates", "seq", seq, "err", err)
		return fmt.Errorf("refresh rates: %w", err)
	}
	c.table = table
	c.status = StatusSucceeded
	c.lastErr = ""
	level.Info(c.logger).Log("msg", "refreshed rates", "seq", seq, "factors", fmt.Sprint(table.Factors))
	return nil
}

// tableFrom inverts quotes into conversion factors. Either every requested
// currency gets a factor or none does.
func (c *Cache) tableFrom(quotes Quotes) (*Table, error) {
	factors := domain.Rates{}
	for _, cur := range c.currencies {
		q, ok := quotes[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrMissingRate, cur)
		}
		if q <= 0 {
			return nil, fmt.Errorf("%w: %v=%v", ErrInvalidRate, cur, q)
		}
		factors[cur] = domain.Rate(1 / q)
	}
	return &Table{Factors: factors, FetchedAt: c.now()}, nil
}

// Snapshot returns the current table and status.
func (c *Cache) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()

	s := Snapshot{
		Table:     c.table,
		Status:    c.status,
		LastError: c.lastErr,
	}
	if s.Table != nil && c.maxAge > 0 && c.now().Sub(s.Table.FetchedAt) > c.maxAge {
		s.Table = nil
		s.Stale = true
	}
	return s
}

// Period returns the refresh period.
func (c *Cache) Period() time.Duration {
	return c.period
}
