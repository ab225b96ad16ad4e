package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// IdempotencyLog stores the canonical response of a mutating call so a retry
// with the same key replays it instead of moving money twice.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "centre:staff:operation:client_key"
	RequestHash  string    `json:"request_hash"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Idempotent operations.
const (
	OpCreateWallet = "create_wallet"
	OpRecharge     = "recharge"
	OpDebit        = "debit"
	OpTransfer     = "transfer"
)

// BuildIdempotencyKey scopes a client key to the caller and the operation.
func BuildIdempotencyKey(centreID, staffID int64, op, clientKey string) string {
	return strconv.FormatInt(centreID, 10) + ":" + strconv.FormatInt(staffID, 10) + ":" + op + ":" + clientKey
}

// Fingerprint hashes the request fields that must match on replay.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
