// Package ledger defines the Solana-facing contract used by the monitor and
// the transfer pipeline, together with cluster, address, and unit helpers.
package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
)

var (
	// ErrUnknownNetwork is returned by a Directory without a client for the cluster.
	ErrUnknownNetwork = errors.New("ledger: network not configured")
	// ErrFeedClosed is returned by ActivityFeed.Next after Close.
	ErrFeedClosed = errors.New("ledger: activity feed closed")
	// ErrInsufficientFunds marks a transfer rejected for lack of balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// Activity is one notification that a transaction mentioned a watched address.
type Activity struct {
	Signature string
	Slot      uint64
}

// TxDetail is the subset of a confirmed transaction the monitor needs.
type TxDetail struct {
	Signature string
	Slot      uint64
	Failed    bool
}

// ActivityFeed streams activity for one address on one cluster.
type ActivityFeed interface {
	// Next blocks until the next notification, ctx cancellation, or feed failure.
	Next(ctx context.Context) (Activity, error)
	Close() error
}

// Client is the per-cluster RPC surface.
type Client interface {
	Balance(ctx context.Context, addr Address) (uint64, error)
	SubscribeActivity(ctx context.Context, addr Address) (ActivityFeed, error)
	// TransactionDetail returns nil, nil when the transaction is not indexed yet.
	TransactionDetail(ctx context.Context, signature string) (*TxDetail, error)
	// SubmitTransfer signs, broadcasts, and waits for confirmation of a single
	// system transfer, returning its signature.
	SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, to Address, lamports uint64) (string, error)
}

// Directory resolves the client for a cluster.
type Directory interface {
	Client(network Network) (Client, error)
}

// StaticDirectory is a fixed cluster → client map.
type StaticDirectory map[Network]Client

// Client implements Directory.
func (d StaticDirectory) Client(network Network) (Client, error) {
	c, ok := d[network]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return c, nil
}

// Close closes every client that holds connections.
func (d StaticDirectory) Close() error {
	var errs []error
	for _, c := range d {
		if closer, ok := c.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
