// Package privacy holds the IP anonymization used across the ingestion pipeline.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
)

// AnonymizeIP replaces an IP address with its SHA-256 hex digest when enabled.
// The digest is deterministic, so the same client can still be correlated
// across events without storing the raw address. When disabled the input is
// returned unchanged.
func AnonymizeIP(ipAddress string, enabled bool) string {
	if !enabled {
		return ipAddress
	}
	sum := sha256.Sum256([]byte(ipAddress))
	return hex.EncodeToString(sum[:])
}
