// Package idhash derives deterministic identifiers so that re-running the
// same configuration yields the same IDs and persistence stays idempotent.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run ID using SHA256.
// Formula: SHA256(name|strategy|start_ms|end_ms).
// Returns hex-encoded hash (64 characters).
func ComputeRunID(name, strategy string, start, end time.Time) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		name,
		strategy,
		start.UnixMilli(),
		end.UnixMilli(),
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ShortRunID returns the 12-character prefix used in log lines and console
// output. Collisions are irrelevant there; stores always keep the full ID.
func ShortRunID(runID string) string {
	if len(runID) <= 12 {
		return runID
	}
	return runID[:12]
}
