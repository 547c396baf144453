// Package env resolves process-wide defaults for ring binaries.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const appID = "tokenring"

// NodeID derives a stable node ID from the machine ID, falling back to
// the hostname when the machine ID isn't available.
func NodeID() string {
	if id, err := machineid.ProtectedID(appID); err == nil && len(id) >= 12 {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "node"
}
