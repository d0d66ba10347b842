// Package session keeps per-user conversational state in memory.
package session

// State is one step of the conversation with a user.
type State uint8

const (
	// StateIdle is the implicit state of a user without an entry.
	StateIdle State = iota
	StateAwaitingAddress
	StateMonitoring
	StateAwaitingKeyChoice
	StateAwaitingRecoveryPhrase
	StateAwaitingRawKey
	StateAwaitingNetworkChoice
	StateAwaitingRecipient
	StateAwaitingAmount
	StateStopped
)

var stateNames = [...]string{
	StateIdle:                   "idle",
	StateAwaitingAddress:        "awaiting_address",
	StateMonitoring:             "monitoring",
	StateAwaitingKeyChoice:      "awaiting_key_choice",
	StateAwaitingRecoveryPhrase: "awaiting_recovery_phrase",
	StateAwaitingRawKey:         "awaiting_raw_key",
	StateAwaitingNetworkChoice:  "awaiting_network_choice",
	StateAwaitingRecipient:      "awaiting_recipient",
	StateAwaitingAmount:         "awaiting_amount",
	StateStopped:                "stopped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// States lists every state in declaration order.
func States() []State {
	out := make([]State, 0, len(stateNames))
	for i := range stateNames {
		out = append(out, State(i))
	}
	return out
}

// InSendFlow reports whether the state belongs to the transfer dialogue.
func (s State) InSendFlow() bool {
	return s >= StateAwaitingKeyChoice && s <= StateAwaitingAmount
}
