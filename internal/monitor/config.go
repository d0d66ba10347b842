package monitor

import (
	"time"

	"github.com/m3rciful/solwatch/internal/ledger"
)

// Config tunes subscriptions. Zero values take defaults.
type Config struct {
	Networks []ledger.Network

	ExplorerBase string

	// DetailAttempts bounds TransactionDetail lookups per notification.
	DetailAttempts int
	// DetailBackoff is multiplied by the attempt number between lookups.
	// A negative value disables the wait.
	DetailBackoff time.Duration

	QueueSize int

	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

const (
	DefaultDetailAttempts = 3
	DefaultDetailBackoff  = 400 * time.Millisecond
	DefaultQueueSize      = 64
	DefaultReconnectMin   = 500 * time.Millisecond
	DefaultReconnectMax   = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if len(c.Networks) == 0 {
		c.Networks = append([]ledger.Network(nil), ledger.Networks...)
	}
	if c.ExplorerBase == "" {
		c.ExplorerBase = ledger.DefaultExplorerBase
	}
	if c.DetailAttempts <= 0 {
		c.DetailAttempts = DefaultDetailAttempts
	}
	if c.DetailBackoff < 0 {
		c.DetailBackoff = 0
	} else if c.DetailBackoff == 0 {
		c.DetailBackoff = DefaultDetailBackoff
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = DefaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = DefaultReconnectMax
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	return c
}
