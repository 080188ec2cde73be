package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// NewInvestorID generates a new external investor identifier.
// This is the stable, externally visible id, distinct from the database row id.
func NewInvestorID() string {
	return "INV-" + uuid.NewString()
}

// NewSubscriptionCode generates a human-readable subscription code for
// subscriptions created without a user-supplied one
func NewSubscriptionCode(now time.Time) string {
	return fmt.Sprintf("SUB-%d", now.UnixMilli())
}

// NewDistributionTxHash derives a mock transaction hash for a distribution.
// Distributions are modeled, not executed on-chain, but the hash keeps the
// on-chain shape: 0x-prefixed lowercase keccak-256 hex.
func NewDistributionTxHash(allocationID uint64, at time.Time) string {
	payload := fmt.Sprintf("%d:%d:%s", allocationID, at.UnixNano(), uuid.NewString())
	return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(payload)))
}
