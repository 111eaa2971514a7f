package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/app"
	"github.com/modelrelay/modelrelay/utils"
)

// ProviderSummary is the wire form of a registered provider.
type ProviderSummary struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Kind          string `json:"kind"`
	DefaultModel  string `json:"default_model,omitempty"`
	Persistent    bool   `json:"persistent"`
	HasCredential bool   `json:"has_credential"`
}

// ListProviders returns every registered provider in stable order
func ListProviders(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descriptors := deps.Registry.List()
		out := make([]ProviderSummary, 0, len(descriptors))
		for _, d := range descriptors {
			_, _, hasCred := deps.Credentials.Lookup(d.ID)
			out = append(out, ProviderSummary{
				ID:            d.ID,
				DisplayName:   d.DisplayName,
				Kind:          string(d.Kind),
				DefaultModel:  d.DefaultModel,
				Persistent:    d.Persistent,
				HasCredential: hasCred,
			})
		}

		if err := utils.WriteOK(w, out); err != nil {
			deps.Logger.Error("failed to write providers response", zap.Error(err))
		}
	}
}
