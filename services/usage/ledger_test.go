package usage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/services/providers"
)

func newTestLedger(t *testing.T, clock time.Time) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.json")
	l := NewLedger(path, time.Hour, zap.NewNop())
	l.now = func() time.Time { return clock }
	l.state.Daily = clock.Format(dayLayout)
	l.state.Month = clock.Format(monthLayout)
	return l, path
}

func TestLedgerRecordExplicitTokens(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	rec := l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 1000, OutputTokens: 500},
		Pricing:    providers.Pricing{InputRate: 0.001, OutputRate: 0.002},
	})

	assert.Equal(t, int64(1000), rec.InputTokens)
	assert.Equal(t, int64(500), rec.OutputTokens)
	assert.InDelta(t, 2.0, rec.Cost, 1e-9)
	assert.Equal(t, int64(1), rec.RequestCount)
	assert.Equal(t, clock, rec.LastUsedAt)
}

func TestLedgerRecordAccumulates(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	req := RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 10, OutputTokens: 20},
		Pricing:    providers.Pricing{InputRate: 0.5, OutputRate: 0.25},
	}
	l.Record(req)
	rec := l.Record(req)

	assert.Equal(t, int64(20), rec.InputTokens)
	assert.Equal(t, int64(40), rec.OutputTokens)
	assert.Equal(t, int64(2), rec.RequestCount)
	assert.InDelta(t, 20.0, rec.Cost, 1e-9)

	snap := l.Snapshot()
	assert.InDelta(t, 20.0, snap.MonthlyCost["openai"], 1e-9)
}

func TestLedgerRecordEstimatesWhenNoExplicitCounts(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	rec := l.Record(RecordRequest{
		ProviderID: "ollama",
		InputText:  "the quick brown fox",
		OutputText: "jumps over the lazy dog",
	})

	assert.Equal(t, int64(EstimateTokens("the quick brown fox")), rec.InputTokens)
	assert.Equal(t, int64(EstimateTokens("jumps over the lazy dog")), rec.OutputTokens)
	assert.Zero(t, rec.Cost)
}

func TestLedgerPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	logger := zap.NewNop()

	l := NewLedger(path, time.Hour, logger)
	l.Record(RecordRequest{
		ProviderID: "anthropic",
		Explicit:   &providers.TokenUsage{InputTokens: 7, OutputTokens: 11},
		Pricing:    providers.Pricing{InputRate: 1, OutputRate: 1},
	})
	l.Flush()

	reloaded := NewLedger(path, time.Hour, logger)
	snap := reloaded.Snapshot()
	rec, ok := snap.Providers["anthropic"]
	require.True(t, ok)
	assert.Equal(t, int64(7), rec.InputTokens)
	assert.Equal(t, int64(11), rec.OutputTokens)
	assert.Equal(t, int64(1), rec.RequestCount)
	assert.InDelta(t, 18.0, snap.MonthlyCost["anthropic"], 1e-9)
}

func TestLedgerReinitializesOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	l := NewLedger(path, time.Hour, zap.NewNop())
	snap := l.Snapshot()
	assert.Empty(t, snap.Providers)
}

func TestLedgerDebouncedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	l := NewLedger(path, 20*time.Millisecond, zap.NewNop())

	l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 1, OutputTokens: 1},
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "debounced write never landed")
}

func TestLedgerQuotaEvents(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	var events []Event
	l.SetListener(func(ev Event) { events = append(events, ev) })

	quota := &providers.QuotaLimits{Daily: 10}
	req := RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 1, OutputTokens: 0},
		Pricing:    providers.Pricing{InputRate: 8.5},
		Quota:      quota,
	}

	// 8.5 of 10: warning threshold crossed.
	l.Record(req)
	require.Len(t, events, 1)
	assert.Equal(t, EventQuotaWarning, events[0].Type)
	assert.Equal(t, "openai", events[0].ProviderID)
	assert.Equal(t, PeriodDaily, events[0].Period)
	assert.InDelta(t, 0.85, events[0].Ratio, 1e-9)

	// 17 of 10: critical, emitted once despite the warning threshold also
	// being exceeded.
	l.Record(req)
	require.Len(t, events, 2)
	assert.Equal(t, EventQuotaCritical, events[1].Type)

	// Another crossing within 24h is deduplicated.
	l.Record(req)
	assert.Len(t, events, 2)

	// Past the dedup window the same severity fires again.
	clock = clock.Add(25 * time.Hour)
	l.now = func() time.Time { return clock }
	l.state.Daily = clock.Format(dayLayout)
	l.Record(req)
	last := events[len(events)-1]
	assert.Equal(t, EventQuotaCritical, last.Type)
}

func TestLedgerResetDaily(t *testing.T) {
	clock := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 100, OutputTokens: 50},
		Pricing:    providers.Pricing{InputRate: 0.01, OutputRate: 0.01},
	})

	var events []Event
	l.SetListener(func(ev Event) { events = append(events, ev) })

	clock = time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.ResetDaily()

	require.Len(t, events, 1)
	assert.Equal(t, EventDailyReset, events[0].Type)
	prior, ok := events[0].Snapshot["openai"]
	require.True(t, ok)
	assert.Equal(t, int64(100), prior.InputTokens)

	snap := l.Snapshot()
	assert.Equal(t, "2025-03-11", snap.Day)
	assert.Zero(t, snap.Providers["openai"].InputTokens)
	assert.Zero(t, snap.Providers["openai"].RequestCount)
	// Month-to-date cost survives a daily reset within the same month.
	assert.InDelta(t, 1.5, snap.MonthlyCost["openai"], 1e-9)
}

func TestLedgerResetDailyIdempotent(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	var events []Event
	l.SetListener(func(ev Event) { events = append(events, ev) })

	l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 1, OutputTokens: 0},
		Pricing:    providers.Pricing{InputRate: 9},
		Quota:      &providers.QuotaLimits{Daily: 10},
	})
	require.Len(t, events, 1)
	assert.Equal(t, EventQuotaWarning, events[0].Type)

	clock = time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.ResetDaily()

	// A second reset on the already-empty ledger emits one more reset event
	// with an empty snapshot and no quota events, and restamps the day.
	clock = time.Date(2025, 3, 12, 0, 0, 1, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.ResetDaily()

	require.Len(t, events, 3)
	assert.Equal(t, EventDailyReset, events[1].Type)
	assert.Equal(t, EventDailyReset, events[2].Type)
	assert.Zero(t, events[2].Snapshot["openai"].InputTokens)
	assert.Zero(t, events[2].Snapshot["openai"].RequestCount)

	snap := l.Snapshot()
	assert.Equal(t, "2025-03-12", snap.Day)
	assert.Zero(t, snap.Providers["openai"].InputTokens)
}

func TestLedgerLazyRolloverOnRecord(t *testing.T) {
	clock := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, clock)

	req := RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 10, OutputTokens: 0},
		Pricing:    providers.Pricing{InputRate: 1},
	}
	l.Record(req)

	var events []Event
	l.SetListener(func(ev Event) { events = append(events, ev) })

	// A record landing past midnight resets first, so the new day starts
	// from zero. Crossing into April also clears month-to-date cost.
	clock = time.Date(2025, 4, 1, 0, 10, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	rec := l.Record(req)

	require.NotEmpty(t, events)
	assert.Equal(t, EventDailyReset, events[0].Type)
	assert.Equal(t, int64(10), rec.InputTokens)
	assert.Equal(t, int64(1), rec.RequestCount)

	snap := l.Snapshot()
	assert.Equal(t, "2025-04-01", snap.Day)
	assert.InDelta(t, 10.0, snap.MonthlyCost["openai"], 1e-9)
}

func TestLedgerPersistFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	// The ledger path is a directory, so the atomic rename fails.
	path := filepath.Join(dir, "usage.json")
	require.NoError(t, os.Mkdir(path, 0o700))

	l := NewLedger(path, time.Hour, zap.NewNop())
	var events []Event
	l.SetListener(func(ev Event) { events = append(events, ev) })

	l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 5, OutputTokens: 5},
	})
	l.Flush()

	require.NotEmpty(t, events)
	assert.Equal(t, EventPersistFailed, events[len(events)-1].Type)
	assert.Error(t, events[len(events)-1].Err)

	// In-memory totals are intact despite the failed write.
	snap := l.Snapshot()
	assert.Equal(t, int64(5), snap.Providers["openai"].InputTokens)
}

func TestLedgerStaleFileReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	stale := newLedgerState("2020-01-01", "2020-01")
	stale.Providers["openai"] = &Record{InputTokens: 999}
	require.NoError(t, saveLedgerState(path, stale))

	l := NewLedger(path, time.Hour, zap.NewNop())
	snap := l.Snapshot()
	assert.Empty(t, snap.Providers)
	assert.Equal(t, time.Now().Format(dayLayout), snap.Day)
}

func TestLedgerFlushSkipsCleanState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	l := NewLedger(path, time.Hour, zap.NewNop())

	// Nothing recorded yet, so a flush writes nothing.
	l.Flush()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	l.Record(RecordRequest{
		ProviderID: "openai",
		Explicit:   &providers.TokenUsage{InputTokens: 1, OutputTokens: 1},
	})
	l.Flush()
	_, err = os.Stat(path)
	require.NoError(t, err)

	// Once persisted, repeat flushes with no new updates stay quiet.
	require.NoError(t, os.Remove(path))
	l.Flush()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadLedgerStateDayStaleKeepsMonthlyCost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	saved := newLedgerState("2025-03-09", "2025-03")
	saved.Providers["openai"] = &Record{InputTokens: 42, RequestCount: 3}
	saved.MonthlyCost["openai"] = 12.5
	saved.Warnings["openai|monthly|quota_warning"] = time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	require.NoError(t, saveLedgerState(path, saved))

	// Same month, later day: daily records drop, monthly cost and warning
	// dedup entries carry over.
	state, restored := loadLedgerState(path, "2025-03-10", "2025-03")
	assert.False(t, restored)
	assert.Empty(t, state.Providers)
	assert.InDelta(t, 12.5, state.MonthlyCost["openai"], 1e-9)
	assert.Contains(t, state.Warnings, "openai|monthly|quota_warning")
	assert.Equal(t, "2025-03-10", state.Daily)

	// A new month reinitializes everything.
	state, restored = loadLedgerState(path, "2025-04-01", "2025-04")
	assert.False(t, restored)
	assert.Empty(t, state.Providers)
	assert.Empty(t, state.MonthlyCost)
	assert.Empty(t, state.Warnings)
}
