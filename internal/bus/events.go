package bus

import (
	"time"

	"wagateway/internal/domain"
)

// Kind identifies the variant carried by an Event.
type Kind int

const (
	TokenIssued Kind = iota + 1
	Ready
	LoggedOut
	InboundMessage
)

func (k Kind) String() string {
	switch k {
	case TokenIssued:
		return "token_issued"
	case Ready:
		return "ready"
	case LoggedOut:
		return "logged_out"
	case InboundMessage:
		return "inbound_message"
	}
	return "unknown"
}

// Event is a session lifecycle or message event. Token is set for
// TokenIssued, Message for InboundMessage.
type Event struct {
	Kind      Kind
	Token     string
	Message   domain.InboundMessage
	Timestamp time.Time
}

func NewTokenIssued(token string) Event {
	return Event{Kind: TokenIssued, Token: token, Timestamp: time.Now()}
}

func NewReady() Event {
	return Event{Kind: Ready, Timestamp: time.Now()}
}

func NewLoggedOut() Event {
	return Event{Kind: LoggedOut, Timestamp: time.Now()}
}

func NewInbound(msg domain.InboundMessage) Event {
	return Event{Kind: InboundMessage, Message: msg, Timestamp: time.Now()}
}
