package session

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"wagateway/internal/domain"
)

// translateMessage converts a whatsmeow message event into an
// InboundMessage. Protocol messages, reactions and other events that carry
// neither relayable text nor media are skipped.
func translateMessage(evt *events.Message) (domain.InboundMessage, bool) {
	if evt == nil || evt.Message == nil {
		return domain.InboundMessage{}, false
	}

	body := messageText(evt.Message)
	media := hasMedia(evt.Message)
	if body == "" && !media {
		return domain.InboundMessage{}, false
	}

	info := evt.Info
	kind := domain.ChatDirect
	if info.IsGroup || info.Chat.Server == types.GroupServer || info.Chat.Server == types.BroadcastServer {
		kind = domain.ChatGroup
	}

	sender := senderAddress(info.MessageSource)
	return domain.InboundMessage{
		ID:         string(info.ID),
		From:       sender.String(),
		SenderUser: info.Sender.User,
		Chat:       kind,
		ChatName:   info.Chat.String(),
		NotifyName: info.PushName,
		Body:       body,
		HasMedia:   media,
		Timestamp:  info.Timestamp,
		Ref:        evt,
	}, true
}

// senderAddress prefers the phone-number JID when the message is addressed
// by LID, so operators can match senders by number.
func senderAddress(src types.MessageSource) types.JID {
	sender := src.Sender.ToNonAD()
	if sender.Server == types.HiddenUserServer && src.SenderAlt.Server == types.DefaultUserServer {
		return src.SenderAlt.ToNonAD()
	}
	return sender
}

// messageText returns the relayable text of msg: the body of text messages,
// the vCard of shared contacts, a readable location or a poll question.
func messageText(msg *waE2E.Message) string {
	if text := msg.GetConversation(); text != "" {
		return text
	}
	if text := msg.GetExtendedTextMessage().GetText(); text != "" {
		return text
	}
	if contact := msg.GetContactMessage(); contact != nil {
		return contact.GetVcard()
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		return locationText(loc)
	}
	if poll := msg.GetPollCreationMessage(); poll != nil {
		return poll.GetName()
	}
	return msg.GetPollCreationMessageV3().GetName()
}

func locationText(loc *waE2E.LocationMessage) string {
	var parts []string
	for _, s := range []string{loc.GetName(), loc.GetAddress()} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, fmt.Sprintf("%.6f,%.6f", loc.GetDegreesLatitude(), loc.GetDegreesLongitude()))
	return strings.Join(parts, "\n")
}

func hasMedia(msg *waE2E.Message) bool {
	return msg.GetImageMessage() != nil ||
		msg.GetVideoMessage() != nil ||
		msg.GetAudioMessage() != nil ||
		msg.GetDocumentMessage() != nil ||
		msg.GetDocumentWithCaptionMessage() != nil ||
		msg.GetStickerMessage() != nil ||
		msg.GetPtvMessage() != nil
}

// parseHandle turns a chat handle into a JID. The legacy c.us server is the
// user server under its current name.
func parseHandle(handle domain.ChatHandle) (types.JID, error) {
	jid, err := types.ParseJID(string(handle))
	if err != nil {
		return types.JID{}, fmt.Errorf("parse chat handle %q: %w", handle, err)
	}
	if jid.User == "" && jid.Server != types.BroadcastServer {
		return types.JID{}, fmt.Errorf("chat handle %q has no user part", handle)
	}
	if jid.Server == types.LegacyUserServer {
		jid.Server = types.DefaultUserServer
	}
	return jid, nil
}

// presenceFor maps a presence state onto whatsmeow's chat presence pair.
func presenceFor(state domain.PresenceState) (types.ChatPresence, types.ChatPresenceMedia, error) {
	switch state {
	case domain.PresenceTyping:
		return types.ChatPresenceComposing, types.ChatPresenceMediaText, nil
	case domain.PresenceRecording:
		return types.ChatPresenceComposing, types.ChatPresenceMediaAudio, nil
	case domain.PresenceClear:
		return types.ChatPresencePaused, types.ChatPresenceMediaText, nil
	}
	return "", "", &domain.ValidationError{Field: "state", Message: fmt.Sprintf("unsupported presence state %q", state)}
}
