// Package solanarpc implements ledger.Client on top of solana-go's JSON-RPC
// and websocket clients.
package solanarpc

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/ledger"
)

const (
	component           = "ledger"
	defaultPollInterval = time.Second
)

// Config describes one cluster's endpoints.
type Config struct {
	Network    ledger.Network
	RPCURL     string
	WSURL      string
	Commitment string
	// PollInterval spaces signature status checks while confirming.
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// Client talks to one cluster.
type Client struct {
	network    ledger.Network
	rpc        *rpc.Client
	wsURL      string
	commitment rpc.CommitmentType
	poll       time.Duration
}

var _ ledger.Client = (*Client)(nil)

// New validates cfg and builds the RPC client. No connection is opened.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("solanarpc: %s: rpc url is required", cfg.Network)
	}
	if strings.TrimSpace(cfg.WSURL) == "" {
		return nil, fmt.Errorf("solanarpc: %s: ws url is required", cfg.Network)
	}
	commitment, err := parseCommitment(cfg.Commitment)
	if err != nil {
		return nil, err
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	var rpcClient *rpc.Client
	if cfg.HTTPClient != nil {
		rpcClient = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(cfg.RPCURL, &jsonrpc.RPCClientOpts{
			HTTPClient: cfg.HTTPClient,
		}))
	} else {
		rpcClient = rpc.New(cfg.RPCURL)
	}
	return &Client{
		network:    cfg.Network,
		rpc:        rpcClient,
		wsURL:      cfg.WSURL,
		commitment: commitment,
		poll:       poll,
	}, nil
}

func parseCommitment(s string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	case "processed":
		return rpc.CommitmentProcessed, nil
	}
	return "", fmt.Errorf("solanarpc: unknown commitment %q", s)
}

// Network returns the cluster this client serves.
func (c *Client) Network() ledger.Network { return c.network }

// Balance reads the lamport balance at the configured commitment.
func (c *Client) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, solana.PublicKeyFromBytes(addr[:]), c.commitment)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return res.Value, nil
}

// TransactionDetail returns nil, nil while the node has not indexed sig.
func (c *Client) TransactionDetail(ctx context.Context, signature string) (*ledger.TxDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	return &ledger.TxDetail{
		Signature: signature,
		Slot:      res.Slot,
		Failed:    res.Meta != nil && res.Meta.Err != nil,
	}, nil
}

// SubscribeActivity opens a dedicated websocket and subscribes to logs that
// mention addr.
func (c *Client) SubscribeActivity(ctx context.Context, addr ledger.Address) (ledger.ActivityFeed, error) {
	conn, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("ws connect: %w", err)
	}
	sub, err := conn.LogsSubscribeMentions(solana.PublicKeyFromBytes(addr[:]), c.commitment)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("logs subscribe: %w", err)
	}
	logger.Debug(ctx, component, "feed.opened",
		slog.String("status", "ok"),
		slog.String("network", string(c.network)),
		slog.String("address", logger.ShortAddress(addr.String())),
	)
	return &logFeed{conn: conn, sub: sub}, nil
}

// SubmitTransfer builds a single system transfer, signs it with signer, sends
// it with preflight, and polls its status until the configured commitment is
// reached or ctx ends.
func (c *Client) SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, to ledger.Address, lamports uint64) (string, error) {
	if len(signer) != ed25519.PrivateKeySize {
		return "", errors.New("solanarpc: signer must be 64 bytes")
	}
	key := solana.PrivateKey(signer)
	from := key.PublicKey()

	latest, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, solana.PublicKeyFromBytes(to[:])).Build(),
		},
		latest.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(from) {
			return &key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", classifySendError(err)
	}
	logger.Info(ctx, component, "transfer.sent",
		slog.String("status", "ok"),
		slog.String("network", string(c.network)),
		slog.String("signature", sig.String()),
		slog.Uint64("lamports", lamports),
	)
	return sig.String(), c.awaitConfirmation(ctx, sig)
}

func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed: %v", st.Err)
			}
			if reached(st.ConfirmationStatus, c.commitment) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case "processed":
			return 1
		case "confirmed":
			return 2
		case "finalized":
			return 3
		}
		return 0
	}
	got := rank(string(status))
	return got > 0 && got >= rank(string(want))
}

// classifySendError maps preflight rejections for lack of funds to
// ledger.ErrInsufficientFunds.
func classifySendError(err error) error {
	msg := strings.ToLower(err.Error())
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Data != nil {
		msg += " " + strings.ToLower(fmt.Sprint(rpcErr.Data))
	}
	if strings.Contains(msg, "insufficient") || strings.Contains(msg, "no record of a prior credit") {
		return fmt.Errorf("%w: %v", ledger.ErrInsufficientFunds, err)
	}
	return fmt.Errorf("send transaction: %w", err)
}
