package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

func TestNewRegistryDefaultCatalog(t *testing.T) {
	r, err := NewRegistry(DefaultCatalog(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, r.Count())

	d, err := r.Resolve("openai")
	require.NoError(t, err)
	assert.Equal(t, KindRemoteAPI, d.Kind)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", d.Endpoint())
	assert.Equal(t, "chat-completion", d.Adapter().Name())
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []CatalogEntry
	}{
		{
			name:    "empty catalog",
			entries: nil,
		},
		{
			name: "missing id",
			entries: []CatalogEntry{
				{Kind: "remoteApi", Host: "h", Path: "/p", Adapter: "chat-completion"},
			},
		},
		{
			name: "unsupported kind",
			entries: []CatalogEntry{
				{ID: "x", Kind: "carrier-pigeon"},
			},
		},
		{
			name: "remote missing host",
			entries: []CatalogEntry{
				{ID: "x", Kind: "remoteApi", Path: "/p", Adapter: "chat-completion"},
			},
		},
		{
			name: "duplicate id",
			entries: []CatalogEntry{
				{ID: "x", Kind: "localProcess", Connection: "tool"},
				{ID: "x", Kind: "localProcess", Connection: "tool"},
			},
		},
		{
			name: "localHttp connection without model",
			entries: []CatalogEntry{
				{ID: "x", Kind: "localHttp", Connection: "http://127.0.0.1:11434"},
			},
		},
		{
			name: "localHttp connection with trailing separator",
			entries: []CatalogEntry{
				{ID: "x", Kind: "localHttp", Connection: "http://127.0.0.1:11434|"},
			},
		},
		{
			name: "localHttp connection with leading separator",
			entries: []CatalogEntry{
				{ID: "x", Kind: "localHttp", Connection: "|llama3.2"},
			},
		},
		{
			name: "localProcess without executable",
			entries: []CatalogEntry{
				{ID: "x", Kind: "localProcess"},
			},
		},
		{
			name: "unknown adapter",
			entries: []CatalogEntry{
				{ID: "x", Kind: "remoteApi", Host: "h", Path: "/p", Adapter: "bogus"},
			},
		},
		{
			name: "persistent remote provider",
			entries: []CatalogEntry{
				{ID: "x", Kind: "remoteApi", Host: "h", Path: "/p", Adapter: "chat-completion", Persistent: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entries, zap.NewNop())
			require.Error(t, err)
			assert.True(t, llmerr.IsKind(err, llmerr.KindValidation))
		})
	}
}

func TestSplitLocalHTTPConnection(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		wantBase string
		wantMod  string
		wantErr  bool
	}{
		{"valid", "http://127.0.0.1:11434/v1/chat|llama3.2", "http://127.0.0.1:11434/v1/chat", "llama3.2", false},
		{"missing separator", "http://127.0.0.1:11434", "", "", true},
		{"empty model", "http://127.0.0.1:11434|", "", "", true},
		{"leading separator", "|model", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, model, err := SplitLocalHTTPConnection(tt.conn)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, llmerr.IsKind(err, llmerr.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantMod, model)
		})
	}
}

func TestNewRegistryDefaultsLocalAdapters(t *testing.T) {
	r, err := NewRegistry([]CatalogEntry{
		{ID: "srv", Kind: "localHttp", Connection: "http://127.0.0.1:8080/v1/chat/completions|m"},
		{ID: "cli", Kind: "localProcess", Connection: "tool"},
	}, zap.NewNop())
	require.NoError(t, err)

	srv, err := r.Resolve("srv")
	require.NoError(t, err)
	assert.Equal(t, "local-http", srv.AdapterName)

	cli, err := r.Resolve("cli")
	require.NoError(t, err)
	assert.Equal(t, "local-process", cli.AdapterName)
	assert.Equal(t, "cli", cli.DisplayName)
}

func TestRegistryResolveUnknown(t *testing.T) {
	r, err := NewRegistry(DefaultCatalog(), zap.NewNop())
	require.NoError(t, err)

	_, err = r.Resolve("missing")
	require.Error(t, err)
	assert.True(t, llmerr.IsKind(err, llmerr.KindUnknownProvider))
}

func TestRegistryListSorted(t *testing.T) {
	r, err := NewRegistry(DefaultCatalog(), zap.NewNop())
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	doc := `providers:
  - id: lmstudio
    kind: localHttp
    connection: "http://127.0.0.1:1234/v1/chat/completions|qwen2.5"
  - id: custom
    kind: remoteApi
    host: api.example.com
    path: /v1/chat
    adapter: chat-completion
    default_model: example-1
    pricing:
      input_rate: 0.000001
      output_rate: 0.000002
    quota:
      daily: 2
      monthly: 20
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	entries, err := LoadCatalogFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "lmstudio", entries[0].ID)
	assert.Equal(t, "api.example.com", entries[1].Host)
	assert.InDelta(t, 0.000002, entries[1].Pricing.OutputRate, 1e-12)
	require.NotNil(t, entries[1].Quota)
	assert.InDelta(t, 2.0, entries[1].Quota.Daily, 1e-9)

	_, err = NewRegistry(entries, zap.NewNop())
	require.NoError(t, err)
}

func TestLoadCatalogFileErrors(t *testing.T) {
	_, err := LoadCatalogFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("providers: []\n"), 0o600))
	_, err = LoadCatalogFile(empty)
	assert.Error(t, err)
}
