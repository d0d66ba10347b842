package ledger

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ErrAmountOutOfRange is returned when an amount cannot be expressed in lamports.
var ErrAmountOutOfRange = errors.New("amount out of range")

// SOLToLamports converts a positive SOL amount to lamports, rounding to the
// nearest lamport.
func SOLToLamports(sol float64) (uint64, error) {
	if math.IsNaN(sol) || math.IsInf(sol, 0) || sol <= 0 {
		return 0, ErrAmountOutOfRange
	}
	v := math.Round(sol * LamportsPerSOL)
	if v < 1 || v >= math.MaxUint64 {
		return 0, ErrAmountOutOfRange
	}
	return uint64(v), nil
}

// FormatSOL renders lamports as a decimal SOL string without float rounding.
func FormatSOL(lamports uint64) string {
	whole := lamports / LamportsPerSOL
	frac := lamports % LamportsPerSOL
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strconv.FormatUint(frac, 10)
	fs = strings.Repeat("0", 9-len(fs)) + fs
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fs, "0")
}
