package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/utils"
)

// GetUsage returns the current accounting snapshot
func GetUsage(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := deps.Ledger.Snapshot()
		if err := utils.WriteOK(w, snap); err != nil {
			deps.Logger.Error("failed to write usage response", zap.Error(err))
		}
	}
}

// ResetUsage zeroes the daily counters immediately, as the midnight
// scheduler would, and returns the snapshot taken before the reset.
func ResetUsage(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prior := deps.Ledger.Snapshot()
		deps.Ledger.ResetDaily()

		deps.Logger.Info("daily usage reset requested",
			zap.String("prior_day", prior.Day))
		if err := utils.WriteOK(w, prior); err != nil {
			deps.Logger.Error("failed to write usage reset response", zap.Error(err))
		}
	}
}
