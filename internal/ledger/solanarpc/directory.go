package solanarpc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/m3rciful/solwatch/internal/ledger"
)

// Endpoint holds one cluster's URLs.
type Endpoint struct {
	RPC string
	WS  string
}

// DefaultEndpoints are the public Solana Labs endpoints.
var DefaultEndpoints = map[ledger.Network]Endpoint{
	ledger.MainnetBeta: {RPC: "https://api.mainnet-beta.solana.com", WS: "wss://api.mainnet-beta.solana.com"},
	ledger.Devnet:      {RPC: "https://api.devnet.solana.com", WS: "wss://api.devnet.solana.com"},
	ledger.Testnet:     {RPC: "https://api.testnet.solana.com", WS: "wss://api.testnet.solana.com"},
}

// NewDirectory builds one client per network, filling missing endpoints
// from DefaultEndpoints.
func NewDirectory(networks []ledger.Network, endpoints map[ledger.Network]Endpoint, commitment string, poll time.Duration, httpClient *http.Client) (ledger.StaticDirectory, error) {
	dir := make(ledger.StaticDirectory, len(networks))
	for _, n := range networks {
		ep := endpoints[n]
		def := DefaultEndpoints[n]
		if ep.RPC == "" {
			ep.RPC = def.RPC
		}
		if ep.WS == "" {
			ep.WS = def.WS
		}
		c, err := New(Config{
			Network:      n,
			RPCURL:       ep.RPC,
			WSURL:        ep.WS,
			Commitment:   commitment,
			PollInterval: poll,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", n, err)
		}
		dir[n] = c
	}
	return dir, nil
}
