// Package transfer submits SOL transfers and waits for their confirmation.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/metrics"
	"github.com/m3rciful/solwatch/internal/wallet"
)

const (
	component = "transfer"
	// DefaultTimeout bounds submission plus confirmation.
	DefaultTimeout = 60 * time.Second
)

// Config tunes the submitter.
type Config struct {
	Timeout      time.Duration
	ExplorerBase string
}

// Result describes a confirmed transfer.
type Result struct {
	Signature   string
	ExplorerURL string
}

// Submitter sends one system transfer per call. It never retries.
type Submitter struct {
	dir     ledger.Directory
	cfg     Config
	metrics *metrics.Metrics
}

// NewSubmitter returns a submitter using the directory's clients.
func NewSubmitter(dir ledger.Directory, cfg Config, m *metrics.Metrics) *Submitter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ExplorerBase == "" {
		cfg.ExplorerBase = ledger.DefaultExplorerBase
	}
	return &Submitter{dir: dir, cfg: cfg, metrics: m}
}

// Submit transfers lamports from the signer's account to recipient on
// network and blocks until confirmation or the configured timeout.
func (s *Submitter) Submit(ctx context.Context, signer *wallet.SigningMaterial, recipient ledger.Address, lamports uint64, network ledger.Network) (Result, error) {
	start := time.Now()
	res, err := s.submit(ctx, signer, recipient, lamports, network)

	attrs := []slog.Attr{
		slog.String("network", string(network)),
		slog.String("address", logger.ShortAddress(recipient.String())),
		slog.Uint64("lamports", lamports),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		reason := ReasonOf(err)
		s.metrics.Transfer(string(network), string(reason))
		logger.Warn(ctx, component, "transfer.submit", append(attrs,
			slog.String("status", "fail"),
			slog.String("err_code", string(reason)),
			slog.String("err", err.Error()),
		)...)
		return Result{}, err
	}
	s.metrics.Transfer(string(network), "ok")
	logger.Info(ctx, component, "transfer.submit", append(attrs,
		slog.String("status", "ok"),
		slog.String("signature", res.Signature),
	)...)
	return res, nil
}

func (s *Submitter) submit(ctx context.Context, signer *wallet.SigningMaterial, recipient ledger.Address, lamports uint64, network ledger.Network) (Result, error) {
	fail := func(reason Reason, sig string, err error) (Result, error) {
		return Result{}, &Error{Reason: reason, Network: network, Signature: sig, Err: err}
	}
	if lamports == 0 {
		return fail(ReasonRejected, "", errors.New("amount must be at least one lamport"))
	}
	key, err := signer.PrivateKey()
	if err != nil {
		return fail(ReasonRejected, "", err)
	}
	defer clear(key)

	client, err := s.dir.Client(network)
	if err != nil {
		return fail(ReasonRejected, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	sig, err := client.SubmitTransfer(ctx, key, recipient, lamports)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, ctx.Err())
		}
		return fail(classify(err), sig, err)
	}
	return Result{
		Signature:   sig,
		ExplorerURL: ledger.ExplorerURL(s.cfg.ExplorerBase, network, sig),
	}, nil
}
