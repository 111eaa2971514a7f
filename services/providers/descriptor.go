// Package providers holds the provider catalog and the per-backend wire
// adapters. Descriptors are loaded and validated once at startup; after
// load they are immutable and each one carries its bound adapter.
package providers

import (
	"fmt"
	"strings"

	"github.com/modelrelay/modelrelay/internal/llmerr"
)

// BackendKind selects the transport model for a provider.
type BackendKind string

const (
	// KindRemoteAPI is a remote HTTPS JSON API requiring a credential.
	KindRemoteAPI BackendKind = "remoteApi"
	// KindLocalHTTP is an HTTP endpoint on loopback/LAN (local inference server).
	KindLocalHTTP BackendKind = "localHttp"
	// KindLocalProcess is a command-line tool spawned per call.
	KindLocalProcess BackendKind = "localProcess"
)

// Valid reports whether k is one of the three supported kinds.
func (k BackendKind) Valid() bool {
	switch k {
	case KindRemoteAPI, KindLocalHTTP, KindLocalProcess:
		return true
	}
	return false
}

// Pricing holds per-token USD rates.
type Pricing struct {
	InputRate  float64 `yaml:"input_rate"`
	OutputRate float64 `yaml:"output_rate"`
}

// QuotaLimits holds spending limits in USD. A zero value means unlimited
// for that period.
type QuotaLimits struct {
	Daily   float64 `yaml:"daily"`
	Monthly float64 `yaml:"monthly"`
}

// Descriptor describes one configured provider. Connection carries
// kind-specific info: request host+path for remoteApi, a "baseUrl|model"
// pair for localHttp, and the executable path for localProcess.
type Descriptor struct {
	ID           string
	DisplayName  string
	Kind         BackendKind
	Host         string // remoteApi API hostname
	Path         string // remoteApi request path
	Connection   string // localHttp "baseUrl|model" / localProcess executable
	DefaultModel string
	Pricing      Pricing
	Quota        *QuotaLimits
	Persistent   bool
	AdapterName  string

	adapter Adapter // bound at registry load
}

// Adapter returns the wire adapter bound to this descriptor at load time.
func (d *Descriptor) Adapter() Adapter {
	return d.adapter
}

// Endpoint returns the full HTTPS URL for a remoteApi descriptor.
func (d *Descriptor) Endpoint() string {
	return fmt.Sprintf("https://%s%s", d.Host, d.Path)
}

// SplitLocalHTTPConnection parses the localHttp "baseUrl|model" form. Both
// sides must be non-empty. Registry load and dispatch share this rule so a
// connection string that loads also splits.
func SplitLocalHTTPConnection(conn string) (string, string, error) {
	i := strings.LastIndex(conn, "|")
	if i <= 0 || i == len(conn)-1 {
		return "", "", llmerr.New(llmerr.KindValidation,
			"localHttp connection must be \"baseUrl|model\"", nil)
	}
	return conn[:i], conn[i+1:], nil
}
