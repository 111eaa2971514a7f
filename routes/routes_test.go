package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modelrelay/modelrelay/config"
)

func TestRequestBudgetCoversSlowestTransport(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DispatchConfig
		want time.Duration
	}{
		{
			name: "local http is the slowest under defaults",
			cfg: config.DispatchConfig{
				RemoteTimeout:    30 * time.Second,
				LocalHTTPTimeout: 600 * time.Second,
				ProcessTimeout:   300 * time.Second,
				MaxRetries:       3,
			},
			want: 630 * time.Second,
		},
		{
			name: "process timeout dominates when raised",
			cfg: config.DispatchConfig{
				RemoteTimeout:    30 * time.Second,
				LocalHTTPTimeout: 60 * time.Second,
				ProcessTimeout:   700 * time.Second,
				MaxRetries:       3,
			},
			want: 730 * time.Second,
		},
		{
			name: "full remote retry sequence dominates",
			cfg: config.DispatchConfig{
				RemoteTimeout:    300 * time.Second,
				LocalHTTPTimeout: 60 * time.Second,
				ProcessTimeout:   60 * time.Second,
				MaxRetries:       3,
			},
			want: 930 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := requestBudget(tt.cfg)
			assert.Equal(t, tt.want, got)
			// The budget must never undercut any single transport deadline.
			assert.GreaterOrEqual(t, got, tt.cfg.LocalHTTPTimeout)
			assert.GreaterOrEqual(t, got, tt.cfg.ProcessTimeout)
			assert.GreaterOrEqual(t, got, tt.cfg.RemoteTimeout)
		})
	}
}
