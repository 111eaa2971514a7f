package usage

import "time"

// EventType identifies a ledger event.
type EventType string

const (
	// EventQuotaWarning fires when a period crosses 80% of its limit.
	EventQuotaWarning EventType = "quota_warning"
	// EventQuotaCritical fires when a period crosses 95% of its limit.
	EventQuotaCritical EventType = "quota_critical"
	// EventDailyReset fires after counters are zeroed at a day boundary.
	EventDailyReset EventType = "daily_reset"
	// EventPersistFailed fires when a ledger write fails. The in-memory
	// state stays correct; the next debounced write retries.
	EventPersistFailed EventType = "persist_failed"
)

// Period is a quota accounting window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Event carries a ledger notification to the registered listener.
type Event struct {
	Type       EventType
	ProviderID string
	Period     Period
	Ratio      float64
	// Snapshot holds the prior totals on a daily reset.
	Snapshot map[string]Record
	Err      error
	At       time.Time
}

// Listener receives ledger events. It is invoked synchronously under the
// ledger's writer discipline and must not call back into the ledger.
type Listener func(Event)
