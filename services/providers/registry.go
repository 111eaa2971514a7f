package providers

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// Registry is the immutable provider catalog. Descriptors are validated
// once at construction and each one is bound to its adapter; there is no
// mutation and no per-call string dispatch afterward.
type Registry struct {
	descriptors map[string]*Descriptor
	logger      *zap.Logger
}

// NewRegistry validates catalog entries, binds adapters, and returns the
// loaded registry. Duplicate IDs and malformed entries fail the load.
func NewRegistry(entries []CatalogEntry, logger *zap.Logger) (*Registry, error) {
	if len(entries) == 0 {
		return nil, llmerr.New(llmerr.KindValidation, "provider catalog is empty", nil)
	}

	validate := validator.New()
	descriptors := make(map[string]*Descriptor, len(entries))

	for _, entry := range entries {
		if err := validate.Struct(entry); err != nil {
			return nil, llmerr.New(llmerr.KindValidation,
				fmt.Sprintf("invalid provider %q", entry.ID), err)
		}

		kind := BackendKind(entry.Kind)
		if !kind.Valid() {
			return nil, llmerr.New(llmerr.KindValidation,
				fmt.Sprintf("provider %q: unsupported backend kind %q", entry.ID, entry.Kind), nil)
		}
		if _, dup := descriptors[entry.ID]; dup {
			return nil, llmerr.New(llmerr.KindValidation,
				fmt.Sprintf("duplicate provider id %q", entry.ID), nil)
		}

		switch kind {
		case KindLocalHTTP:
			if _, _, err := SplitLocalHTTPConnection(entry.Connection); err != nil {
				return nil, llmerr.New(llmerr.KindValidation,
					fmt.Sprintf("provider %q: localHttp connection must be \"baseUrl|model\"", entry.ID), nil)
			}
		case KindLocalProcess:
			if entry.Connection == "" {
				return nil, llmerr.New(llmerr.KindValidation,
					fmt.Sprintf("provider %q: localProcess requires an executable", entry.ID), nil)
			}
		}

		adapterName := entry.Adapter
		if adapterName == "" {
			// Local kinds have a natural default schema.
			switch kind {
			case KindLocalHTTP:
				adapterName = "local-http"
			case KindLocalProcess:
				adapterName = "local-process"
			}
		}
		adapter, err := adapterByName(adapterName)
		if err != nil {
			return nil, llmerr.New(llmerr.KindValidation,
				fmt.Sprintf("provider %q", entry.ID), err)
		}

		if entry.Persistent && kind != KindLocalProcess {
			return nil, llmerr.New(llmerr.KindValidation,
				fmt.Sprintf("provider %q: only localProcess providers can be persistent", entry.ID), nil)
		}

		displayName := entry.DisplayName
		if displayName == "" {
			displayName = entry.ID
		}

		descriptors[entry.ID] = &Descriptor{
			ID:           entry.ID,
			DisplayName:  displayName,
			Kind:         kind,
			Host:         entry.Host,
			Path:         entry.Path,
			Connection:   entry.Connection,
			DefaultModel: entry.DefaultModel,
			Pricing:      entry.Pricing,
			Quota:        entry.Quota,
			Persistent:   entry.Persistent,
			AdapterName:  adapterName,
			adapter:      adapter,
		}
	}

	logger.Info("provider registry loaded", zap.Int("providers", len(descriptors)))
	return &Registry{descriptors: descriptors, logger: logger}, nil
}

// Resolve returns the descriptor for a provider id.
func (r *Registry) Resolve(providerID string) (*Descriptor, error) {
	d, ok := r.descriptors[providerID]
	if !ok {
		return nil, llmerr.New(llmerr.KindUnknownProvider,
			fmt.Sprintf("provider %q is not configured", providerID), nil)
	}
	return d, nil
}

// List returns all descriptors sorted by id.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of configured providers.
func (r *Registry) Count() int {
	return len(r.descriptors)
}
