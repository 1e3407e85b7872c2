package redisx

import "time"

const (
	// idem:purchase:{principal_id}:{idempotency_key} -> transaction_id, or
	// PendingMarker while the first request holding the key is still purchasing
	KeyIdemPurchase = "idem:purchase:%s:%s"

	PendingMarker = "pending"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLClaim       = 30 * time.Second
)
