package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrPending is returned by Lookup while another request holds the key.
var ErrPending = errors.New("idempotency key held by an in-flight request")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PurchaseKeys remembers which transaction a client supplied idempotency key produced,
// scoped to the principal that sent it.
type PurchaseKeys struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	claimTTL time.Duration
}

func NewPurchaseKeys(rdb redis.Cmdable, ttl time.Duration) *PurchaseKeys {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &PurchaseKeys{rdb: rdb, ttl: ttl, claimTTL: TTLClaim}
}

func purchaseKey(principalID, key string) string {
	return fmt.Sprintf(KeyIdemPurchase, principalID, key)
}

// Claim marks the key as pending. It reports false when the key is already pending or
// already resolved to a transaction.
func (k *PurchaseKeys) Claim(ctx context.Context, principalID, key string) (bool, error) {
	ok, err := k.rdb.SetNX(ctx, purchaseKey(principalID, key), PendingMarker, k.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

func (k *PurchaseKeys) Lookup(ctx context.Context, principalID, key string) (string, bool, error) {
	txID, err := k.rdb.Get(ctx, purchaseKey(principalID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if txID == PendingMarker {
		return "", true, ErrPending
	}
	return txID, true, nil
}

// Remember resolves the key to txID. A pending claim is overwritten; a key that already
// names a transaction is left alone.
func (k *PurchaseKeys) Remember(ctx context.Context, principalID, key, txID string) error {
	rk := purchaseKey(principalID, key)
	current, err := k.rdb.Get(ctx, rk).Result()
	switch {
	case errors.Is(err, redis.Nil), err == nil && current == PendingMarker:
	case err != nil:
		return fmt.Errorf("store idempotency key: %w", err)
	default:
		return nil
	}

	if err := k.rdb.Set(ctx, rk, txID, k.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

// Release drops a pending claim so a later request may retry. Resolved keys are kept.
func (k *PurchaseKeys) Release(ctx context.Context, principalID, key string) error {
	err := releaseScript.Run(ctx, k.rdb, []string{purchaseKey(principalID, key)}, PendingMarker).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
