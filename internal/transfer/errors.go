package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/solwatch/internal/ledger"
)

// ErrSubmissionFailed matches every submission failure via errors.Is.
var ErrSubmissionFailed = errors.New("transfer: submission failed")

// Reason classifies a submission failure.
type Reason string

const (
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonTimeout           Reason = "timeout"
	ReasonRejected          Reason = "rejected"
)

// Error carries the failure reason and, when the transaction was broadcast
// before failing, its signature.
type Error struct {
	Reason    Reason
	Network   ledger.Network
	Signature string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transfer on %s failed: %s", e.Network, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSubmissionFailed) hold.
func (e *Error) Is(target error) bool { return target == ErrSubmissionFailed }

// Code is logged as err_code by the router.
func (e *Error) Code() string { return "transfer." + string(e.Reason) }

// ReasonOf extracts the Reason, or "" for foreign errors.
func ReasonOf(err error) Reason {
	var te *Error
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonRejected
	}
}
