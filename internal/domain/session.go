package domain

import "context"

// Messenger is the command surface of the session engine used by the
// outbound gateway.
type Messenger interface {
	ResolveChat(ctx context.Context, handle ChatHandle) (ChatHandle, error)
	SendMessage(ctx context.Context, chat ChatHandle, text string) error
	SetPresence(ctx context.Context, chat ChatHandle, state PresenceState) error
}

// Responder is the part of the session engine the inbound pipeline needs.
type Responder interface {
	Reply(ctx context.Context, msg InboundMessage, text string) error
	ResolveContact(ctx context.Context, msg InboundMessage) (Contact, error)
}

// Forwarder delivers normalized payloads to the backend.
type Forwarder interface {
	Forward(ctx context.Context, payload ForwardPayload) error
}

// TokenSource exposes the latest session token for display.
type TokenSource interface {
	Token() (string, bool)
}
