package providers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is the on-disk form of a provider descriptor. The built-in
// catalog and the optional YAML override file both use this shape.
type CatalogEntry struct {
	ID           string       `yaml:"id" validate:"required"`
	DisplayName  string       `yaml:"display_name"`
	Kind         string       `yaml:"kind" validate:"required,oneof=remoteApi localHttp localProcess"`
	Host         string       `yaml:"host" validate:"required_if=Kind remoteApi"`
	Path         string       `yaml:"path" validate:"required_if=Kind remoteApi"`
	Connection   string       `yaml:"connection"`
	DefaultModel string       `yaml:"default_model"`
	Adapter      string       `yaml:"adapter" validate:"required_if=Kind remoteApi"`
	Pricing      Pricing      `yaml:"pricing"`
	Quota        *QuotaLimits `yaml:"quota"`
	Persistent   bool         `yaml:"persistent"`
}

type catalogFile struct {
	Providers []CatalogEntry `yaml:"providers"`
}

// DefaultCatalog returns the built-in provider set. Rates are USD per
// token; local backends are free.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{
			ID:           "openai",
			DisplayName:  "OpenAI",
			Kind:         "remoteApi",
			Host:         "api.openai.com",
			Path:         "/v1/chat/completions",
			DefaultModel: "gpt-4o-mini",
			Adapter:      "chat-completion",
			Pricing:      Pricing{InputRate: 0.00000015, OutputRate: 0.0000006},
			Quota:        &QuotaLimits{Daily: 5, Monthly: 50},
		},
		{
			ID:           "anthropic",
			DisplayName:  "Anthropic",
			Kind:         "remoteApi",
			Host:         "api.anthropic.com",
			Path:         "/v1/messages",
			DefaultModel: "claude-3-5-haiku-latest",
			Adapter:      "message-array",
			Pricing:      Pricing{InputRate: 0.0000008, OutputRate: 0.000004},
			Quota:        &QuotaLimits{Daily: 5, Monthly: 50},
		},
		{
			ID:           "gemini",
			DisplayName:  "Gemini",
			Kind:         "remoteApi",
			Host:         "generativelanguage.googleapis.com",
			Path:         "/v1beta/models/gemini-2.0-flash:generateContent",
			DefaultModel: "gemini-2.0-flash",
			Adapter:      "generation-metadata",
			Pricing:      Pricing{InputRate: 0.0000001, OutputRate: 0.0000004},
			Quota:        &QuotaLimits{Daily: 5, Monthly: 50},
		},
		{
			ID:           "ollama",
			DisplayName:  "Ollama (local)",
			Kind:         "localHttp",
			Connection:   "http://127.0.0.1:11434/v1/chat/completions|llama3.2",
			Adapter:      "local-http",
			DefaultModel: "llama3.2",
		},
		{
			ID:           "claude-cli",
			DisplayName:  "Claude CLI",
			Kind:         "localProcess",
			Connection:   "claude",
			Adapter:      "local-process",
			Persistent:   true,
		},
	}
}

// LoadCatalogFile reads catalog entries from a YAML override file.
func LoadCatalogFile(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}
	if len(f.Providers) == 0 {
		return nil, fmt.Errorf("provider catalog %s declares no providers", path)
	}
	return f.Providers, nil
}
