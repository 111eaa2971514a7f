// Package usage implements the usage ledger: per-provider daily token and
// cost accounting with quota alerting and durable, debounced persistence.
package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/services/providers"
)

const (
	// DefaultDebounce coalesces bursty updates into one deferred write.
	DefaultDebounce = 500 * time.Millisecond

	warningThreshold  = 0.8
	criticalThreshold = 0.95
	warningDedupe     = 24 * time.Hour

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// RecordRequest carries one usage update. Explicit counts take precedence;
// otherwise both texts are estimated independently.
type RecordRequest struct {
	ProviderID string
	InputText  string
	OutputText string
	Explicit   *providers.TokenUsage
	Pricing    providers.Pricing
	Quota      *providers.QuotaLimits
}

// Snapshot is a copy of the ledger's current totals.
type Snapshot struct {
	Day         string             `json:"day"`
	Providers   map[string]Record  `json:"providers"`
	MonthlyCost map[string]float64 `json:"monthly_cost"`
}

// Ledger is the single shared mutable resource of the dispatch layer. All
// updates are serialized behind one mutex so Record and ResetDaily never
// interleave partially, and persistence is a single pending deadline
// rather than a queue of writes.
type Ledger struct {
	mu        sync.Mutex
	path      string
	state     ledgerState
	debounce  time.Duration
	saveTimer *time.Timer
	dirty     bool
	listener  Listener
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedger loads the persisted ledger at path, reinitializing to an empty
// state on a missing file, parse failure, or stale day stamp.
func NewLedger(path string, debounce time.Duration, logger *zap.Logger) *Ledger {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	l := &Ledger{
		path:     path,
		debounce: debounce,
		logger:   logger,
		now:      time.Now,
	}
	now := l.now()
	state, restored := loadLedgerState(path, now.Format(dayLayout), now.Format(monthLayout))
	l.state = state
	if restored {
		logger.Info("usage ledger restored",
			zap.String("path", path),
			zap.Int("providers", len(state.Providers)))
	} else {
		logger.Info("usage ledger initialized", zap.String("path", path))
	}
	return l
}

// SetListener registers the event listener. Call before concurrent use.
func (l *Ledger) SetListener(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = fn
}

// Record applies one usage update and returns the provider's updated daily
// record. It schedules a debounced persistence write and emits quota
// events when a threshold is crossed.
func (l *Ledger) Record(req RecordRequest) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rolloverLocked(now)

	inTokens, outTokens := resolveTokens(req)
	cost := float64(inTokens)*req.Pricing.InputRate + float64(outTokens)*req.Pricing.OutputRate

	rec := l.state.Providers[req.ProviderID]
	if rec == nil {
		rec = &Record{}
		l.state.Providers[req.ProviderID] = rec
	}
	rec.InputTokens += int64(inTokens)
	rec.OutputTokens += int64(outTokens)
	rec.Cost += cost
	rec.RequestCount++
	rec.LastUsedAt = now
	l.state.MonthlyCost[req.ProviderID] += cost

	l.checkQuotaLocked(req.ProviderID, req.Quota, rec, now)
	l.dirty = true
	l.scheduleSaveLocked()

	l.logger.Debug("usage recorded",
		zap.String("provider", req.ProviderID),
		zap.Int("input_tokens", inTokens),
		zap.Int("output_tokens", outTokens),
		zap.Float64("cost", cost))

	return *rec
}

func resolveTokens(req RecordRequest) (int, int) {
	if req.Explicit != nil {
		return req.Explicit.InputTokens, req.Explicit.OutputTokens
	}
	return EstimateTokens(req.InputText), EstimateTokens(req.OutputText)
}

// Snapshot returns a copy of the current totals.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	snap := Snapshot{
		Day:         l.state.Daily,
		Providers:   make(map[string]Record, len(l.state.Providers)),
		MonthlyCost: make(map[string]float64, len(l.state.MonthlyCost)),
	}
	for id, rec := range l.state.Providers {
		snap.Providers[id] = *rec
	}
	for id, cost := range l.state.MonthlyCost {
		snap.MonthlyCost[id] = cost
	}
	return snap
}

// ResetDaily snapshots the prior totals, zeroes every provider's counters,
// stamps the new date, persists synchronously, and emits a reset event
// carrying the snapshot.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyLocked(l.now())
}

func (l *Ledger) resetDailyLocked(now time.Time) {
	prior := l.snapshotLocked()

	for id := range l.state.Providers {
		l.state.Providers[id] = &Record{}
	}
	l.state.Daily = now.Format(dayLayout)
	if month := now.Format(monthLayout); month != l.state.Month {
		l.state.Month = month
		l.state.MonthlyCost = make(map[string]float64)
	}

	l.dirty = true
	l.persistNowLocked()
	l.emitLocked(Event{
		Type:     EventDailyReset,
		Snapshot: prior.Providers,
		At:       now,
	})
	l.logger.Info("daily usage reset", zap.String("day", l.state.Daily))
}

// rolloverLocked resets counters when a record lands past the stamped day
// boundary before the midnight scheduler fires.
func (l *Ledger) rolloverLocked(now time.Time) {
	if l.state.Daily != now.Format(dayLayout) {
		l.resetDailyLocked(now)
	}
}

// RunMidnightScheduler blocks until ctx is done, firing a daily reset at
// each local midnight.
func (l *Ledger) RunMidnightScheduler(ctx context.Context) {
	for {
		now := l.now()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			l.ResetDaily()
		}
	}
}

// Flush persists synchronously, bypassing the debounce.
func (l *Ledger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistNowLocked()
}

// Close flushes pending state. The ledger must not be used afterward.
func (l *Ledger) Close() {
	l.Flush()
}

func (l *Ledger) checkQuotaLocked(providerID string, quota *providers.QuotaLimits, rec *Record, now time.Time) {
	if quota == nil {
		return
	}
	if quota.Daily > 0 {
		l.emitThresholdLocked(providerID, PeriodDaily, rec.Cost/quota.Daily, now)
	}
	if quota.Monthly > 0 {
		l.emitThresholdLocked(providerID, PeriodMonthly, l.state.MonthlyCost[providerID]/quota.Monthly, now)
	}
}

// emitThresholdLocked emits the highest crossed severity, at most once per
// (provider, period, severity) per rolling 24h.
func (l *Ledger) emitThresholdLocked(providerID string, period Period, ratio float64, now time.Time) {
	var evType EventType
	switch {
	case ratio >= criticalThreshold:
		evType = EventQuotaCritical
	case ratio >= warningThreshold:
		evType = EventQuotaWarning
	default:
		return
	}

	key := providerID + "|" + string(period) + "|" + string(evType)
	if last, ok := l.state.Warnings[key]; ok && now.Sub(last) < warningDedupe {
		return
	}
	l.state.Warnings[key] = now

	l.logger.Warn("quota threshold crossed",
		zap.String("provider", providerID),
		zap.String("period", string(period)),
		zap.Float64("ratio", ratio))
	l.emitLocked(Event{
		Type:       evType,
		ProviderID: providerID,
		Period:     period,
		Ratio:      ratio,
		At:         now,
	})
}

func (l *Ledger) emitLocked(ev Event) {
	if l.listener != nil {
		l.listener(ev)
	}
}

// scheduleSaveLocked extends the single pending write deadline; an elapsed
// deadline triggers exactly one flush.
func (l *Ledger) scheduleSaveLocked() {
	if l.saveTimer != nil {
		l.saveTimer.Reset(l.debounce)
		return
	}
	l.saveTimer = time.AfterFunc(l.debounce, l.debouncedFlush)
}

func (l *Ledger) debouncedFlush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saveTimer = nil
	l.writeLocked()
}

// persistNowLocked cancels any pending deadline and writes synchronously.
func (l *Ledger) persistNowLocked() {
	if l.saveTimer != nil {
		l.saveTimer.Stop()
		l.saveTimer = nil
	}
	l.writeLocked()
}

// writeLocked persists the ledger when there are unsaved changes. A Reset
// that races an already-fired timer can deliver two flushes; the dirty flag
// makes the second one a no-op. A failed write never rolls back the
// in-memory state; it is logged and emitted, and the dirty flag stays set
// so the next write retries.
func (l *Ledger) writeLocked() {
	if !l.dirty {
		return
	}
	if err := saveLedgerState(l.path, l.state); err != nil {
		l.logger.Error("failed to persist usage ledger",
			zap.String("path", l.path), zap.Error(err))
		l.emitLocked(Event{Type: EventPersistFailed, Err: err, At: l.now()})
		return
	}
	l.dirty = false
}
