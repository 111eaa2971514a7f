package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Record accumulates one provider's usage for the current day.
type Record struct {
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	RequestCount int64     `json:"request_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// ledgerState is the persisted ledger document: per-provider daily records
// keyed by provider id, a day stamp, month-to-date cost, and the warning
// dedup map keyed "provider|period|severity".
type ledgerState struct {
	Daily       string               `json:"daily"`
	Month       string               `json:"month"`
	Providers   map[string]*Record   `json:"providers"`
	MonthlyCost map[string]float64   `json:"monthly_cost"`
	Warnings    map[string]time.Time `json:"warnings"`
}

func newLedgerState(day, month string) ledgerState {
	return ledgerState{
		Daily:       day,
		Month:       month,
		Providers:   make(map[string]*Record),
		MonthlyCost: make(map[string]float64),
		Warnings:    make(map[string]time.Time),
	}
}

// loadLedgerState reads the persisted ledger. A missing file, a parse
// failure, or a stale month stamp all reinitialize to an empty ledger
// instead of failing. A stale day within the current month drops only the
// daily records: month-to-date cost and warning dedup entries carry over,
// so a restart after midnight does not forget monthly spend.
func loadLedgerState(path, day, month string) (ledgerState, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return newLedgerState(day, month), false
	}
	var state ledgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return newLedgerState(day, month), false
	}
	if state.Month != month {
		return newLedgerState(day, month), false
	}
	if state.Daily != day {
		fresh := newLedgerState(day, month)
		for id, cost := range state.MonthlyCost {
			fresh.MonthlyCost[id] = cost
		}
		for key, at := range state.Warnings {
			fresh.Warnings[key] = at
		}
		return fresh, false
	}
	if state.Providers == nil {
		state.Providers = make(map[string]*Record)
	}
	if state.MonthlyCost == nil {
		state.MonthlyCost = make(map[string]float64)
	}
	if state.Warnings == nil {
		state.Warnings = make(map[string]time.Time)
	}
	return state, true
}

// saveLedgerState writes the ledger atomically with owner-only permissions:
// temp file in the same directory, then rename.
func saveLedgerState(path string, state ledgerState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
