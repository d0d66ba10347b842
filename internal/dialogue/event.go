package dialogue

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAmount is returned for amounts that are not a positive number
	// of at least one lamport.
	ErrInvalidAmount = errors.New("dialogue: invalid amount")
	// ErrInvalidNetworkChoice is returned for anything but "1", "2" or "3".
	ErrInvalidNetworkChoice = errors.New("dialogue: invalid network choice")
)

// EventKind is the class of an inbound event.
type EventKind uint8

const (
	EventStart EventKind = iota + 1
	EventSend
	EventStop
	EventText
	EventChoice
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventSend:
		return "send"
	case EventStop:
		return "stop"
	case EventText:
		return "text"
	case EventChoice:
		return "choice"
	}
	return "unknown"
}

// Event is one inbound user action.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	MessageID int
	// Text holds message text for EventText and callback data for EventChoice.
	Text string
}

// Choice is one inline button.
type Choice struct {
	Label string
	Data  string
}

// Message is one outbound reply. Choices are rows of buttons.
type Message struct {
	Text    string
	Choices [][]Choice
}

// Replier delivers replies to a user.
type Replier interface {
	Reply(ctx context.Context, userID int64, msg Message) error
}

// Eraser removes a user's message. Repliers that implement it get key
// material messages deleted from the chat once read.
type Eraser interface {
	Erase(ctx context.Context, chatID int64, messageID int) error
}
