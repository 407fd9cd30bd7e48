package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"token-forge/internal/domain"
)

// ComputeLedgerID computes a deterministic ledger identifier using SHA256.
// Formula: SHA256(creator|symbol|sequence|created_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeLedgerID(
	creator domain.Address,
	symbol string,
	sequence uint64,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		creator.String(),
		symbol,
		sequence,
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
