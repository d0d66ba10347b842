package ledger

import (
	"fmt"
	"strings"
)

// Network identifies one isolated Solana cluster.
type Network string

const (
	// MainnetBeta is the production cluster.
	MainnetBeta Network = "mainnet-beta"
	// Devnet is the developer cluster with faucet funds.
	Devnet Network = "devnet"
	// Testnet is the validator staging cluster.
	Testnet Network = "testnet"
)

// Networks lists every supported cluster in menu order (choice 1, 2, 3).
var Networks = []Network{MainnetBeta, Devnet, Testnet}

// String returns the cluster name used by RPC endpoints and explorers.
func (n Network) String() string { return string(n) }

// Title is the label shown on choice buttons.
func (n Network) Title() string {
	switch n {
	case MainnetBeta:
		return "Mainnet"
	case Devnet:
		return "Devnet"
	case Testnet:
		return "Testnet"
	}
	return string(n)
}

// Valid reports whether n is one of the supported clusters.
func (n Network) Valid() bool {
	for _, known := range Networks {
		if n == known {
			return true
		}
	}
	return false
}

// ParseNetwork accepts a cluster name, case-insensitively.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if n == "mainnet" {
		n = MainnetBeta
	}
	if !n.Valid() {
		return "", fmt.Errorf("unknown network %q", s)
	}
	return n, nil
}

// NetworkByChoice maps the dialogue's numeric choice "1".."3" to a cluster.
func NetworkByChoice(choice string) (Network, bool) {
	switch strings.TrimSpace(choice) {
	case "1":
		return MainnetBeta, true
	case "2":
		return Devnet, true
	case "3":
		return Testnet, true
	}
	return "", false
}

// ExplorerURL builds the Solscan link for a transaction signature.
func ExplorerURL(base string, network Network, signature string) string {
	if base == "" {
		base = DefaultExplorerBase
	}
	return fmt.Sprintf("%s/tx/%s?cluster=%s", strings.TrimRight(base, "/"), signature, network)
}

// DefaultExplorerBase is the block explorer used for links.
const DefaultExplorerBase = "https://solscan.io"
