// Package payment wraps the transfer side of the payment processor. The
// gateway's idempotency key is the load-bearing guarantee: repeated calls with
// the same key never move money twice, which is what makes "retry on ambiguous
// outcome" safe for the settlement batch.
package payment

import "context"

type Gateway interface {
	// Transfer moves amountCents to the payee's connected account and returns
	// the processor's transfer id. Safe to call repeatedly with the same
	// idempotency key.
	Transfer(ctx context.Context, idempotencyKey string, amountCents int64, payeeAccountID string) (string, error)
}
