// Package provider defines the upstream market and chain data abstractions.
//
// This package contains:
//   - Client interface: price quote and transaction list endpoints
//   - Monitor: latency and rate limit tracking shared by implementations
//   - Error classification for provider failures
package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

// Client is the market/chain data source consumed by the poller.
type Client interface {
	// FetchPrice returns the current fiat price of one coin.
	// An unknown price is reported as an invalid NullDecimal plus the cause.
	FetchPrice(ctx context.Context) (decimal.NullDecimal, error)

	// FetchTransactions returns up to limit transactions for address,
	// newest first, in provider order.
	FetchTransactions(ctx context.Context, address domain.Address, limit int) ([]domain.Transaction, error)

	// RetryAfter reports how long callers should back off after throttling.
	RetryAfter() time.Duration
}
