// Package credentials supplies provider secrets. The secret string may
// embed a selected-model suffix after a separator: "sk-...|gpt-4o".
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ModelSeparator splits the secret from an optional selected-model suffix.
const ModelSeparator = "|"

// Store looks up the opaque secret for a provider. ok is false when no
// credential is configured.
type Store interface {
	// Lookup returns the secret and the embedded selected model, if any.
	Lookup(providerID string) (secret, model string, ok bool)
}

// SplitModel separates an optional selected-model suffix from a raw secret.
func SplitModel(raw string) (secret, model string) {
	if i := strings.LastIndex(raw, ModelSeparator); i >= 0 {
		return raw[:i], raw[i+len(ModelSeparator):]
	}
	return raw, ""
}

// FileStore is a per-user secret file (owner-only permissions) keyed by
// provider id, with environment variables taking precedence: the variable
// MODELRELAY_CREDENTIAL_<PROVIDER> overrides the file entry.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type secretFile struct {
	Keys map[string]string `json:"keys"`
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Lookup implements Store.
func (s *FileStore) Lookup(providerID string) (string, string, bool) {
	if raw := os.Getenv(envKey(providerID)); raw != "" {
		secret, model := SplitModel(raw)
		return secret, model, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return "", "", false
	}
	raw, ok := sf.Keys[providerID]
	if !ok || raw == "" {
		return "", "", false
	}
	secret, model := SplitModel(raw)
	return secret, model, true
}

// Set stores a raw credential (secret, optionally "secret|model").
func (s *FileStore) Set(providerID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return err
	}
	if sf.Keys == nil {
		sf.Keys = make(map[string]string)
	}
	sf.Keys[providerID] = raw
	return s.save(sf)
}

// Delete removes a provider's credential.
func (s *FileStore) Delete(providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.load()
	if err != nil {
		return err
	}
	delete(sf.Keys, providerID)
	return s.save(sf)
}

func (s *FileStore) load() (secretFile, error) {
	var sf secretFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return secretFile{}, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, err
	}
	return sf, nil
}

func (s *FileStore) save(sf secretFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func envKey(providerID string) string {
	id := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(providerID))
	return "MODELRELAY_CREDENTIAL_" + id
}
