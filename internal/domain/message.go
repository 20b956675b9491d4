package domain

import "time"

// ChatKind distinguishes one-to-one conversations from group chats.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// InboundMessage is a message received by the session, translated out of the
// engine's wire types. It is never persisted.
type InboundMessage struct {
	ID         string
	From       string // chat handle of the sender, e.g. 5491112345678@s.whatsapp.net
	SenderUser string // raw network identifier (user part of From)
	Chat       ChatKind
	ChatName   string
	NotifyName string // push name carried with the message itself
	Body       string
	HasMedia   bool
	Timestamp  time.Time

	// Ref is engine-owned data needed to quote the message in a reply.
	Ref any
}

// IsGroup reports whether the message originated in a group chat.
func (m InboundMessage) IsGroup() bool { return m.Chat == ChatGroup }

// Contact is the best-effort identity of a sender as known to the session.
type Contact struct {
	Number    string // canonical phone number, if known
	RawID     string // network identifier user part
	PushName  string
	SavedName string
}

// ForwardPayload is the normalized body POSTed to the backend webhook.
type ForwardPayload struct {
	RestaurantID string `json:"restaurantId"`
	Platform     string `json:"platform"`
	ExternalID   string `json:"externalId"`
	CustomerName string `json:"customerName"`
	Content      string `json:"content"`
}

// PlatformTag identifies this gateway to the backend.
const PlatformTag = "whatsapp_js"
