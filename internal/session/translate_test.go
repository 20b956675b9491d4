package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"wagateway/internal/domain"
)

func newEvent(chat, sender types.JID, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:    chat,
				Sender:  sender,
				IsGroup: chat.Server == types.GroupServer,
			},
			ID:        "3EB0ABC",
			PushName:  "Ana",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: msg,
	}
}

func TestTranslateDirectText(t *testing.T) {
	sender := types.NewJID("5491122334455", types.DefaultUserServer)
	evt := newEvent(sender, sender, &waE2E.Message{Conversation: proto.String("Hola")})

	msg, ok := translateMessage(evt)
	require.True(t, ok)
	assert.Equal(t, domain.ChatDirect, msg.Chat)
	assert.False(t, msg.IsGroup())
	assert.Equal(t, "Hola", msg.Body)
	assert.False(t, msg.HasMedia)
	assert.Equal(t, "5491122334455@s.whatsapp.net", msg.From)
	assert.Equal(t, "5491122334455", msg.SenderUser)
	assert.Equal(t, "Ana", msg.NotifyName)
	assert.Equal(t, "3EB0ABC", msg.ID)
	assert.Same(t, evt, msg.Ref, "engine reference kept for quoting")
}

func TestTranslateExtendedText(t *testing.T) {
	sender := types.NewJID("111", types.DefaultUserServer)
	evt := newEvent(sender, sender, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("with link https://example.com")},
	})
	msg, ok := translateMessage(evt)
	require.True(t, ok)
	assert.Equal(t, "with link https://example.com", msg.Body)
}

func TestTranslateStructuredContent(t *testing.T) {
	sender := types.NewJID("111", types.DefaultUserServer)
	vcard := "BEGIN:VCARD\nVERSION:3.0\nFN:Juan\nTEL:+5491112345678\nEND:VCARD"

	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{
			name: "contact card",
			msg: &waE2E.Message{ContactMessage: &waE2E.ContactMessage{
				DisplayName: proto.String("Juan"),
				Vcard:       proto.String(vcard),
			}},
			want: vcard,
		},
		{
			name: "location",
			msg: &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
				DegreesLatitude:  proto.Float64(-34.6037),
				DegreesLongitude: proto.Float64(-58.3816),
				Name:             proto.String("Obelisco"),
				Address:          proto.String("Av. 9 de Julio"),
			}},
			want: "Obelisco\nAv. 9 de Julio\n-34.603700,-58.381600",
		},
		{
			name: "bare location",
			msg: &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
				DegreesLatitude:  proto.Float64(1.5),
				DegreesLongitude: proto.Float64(2.25),
			}},
			want: "1.500000,2.250000",
		},
		{
			name: "poll",
			msg: &waE2E.Message{PollCreationMessage: &waE2E.PollCreationMessage{
				Name: proto.String("¿Mesa para cuántos?"),
			}},
			want: "¿Mesa para cuántos?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := translateMessage(newEvent(sender, sender, tt.msg))
			require.True(t, ok)
			assert.Equal(t, tt.want, msg.Body)
			assert.False(t, msg.HasMedia)
		})
	}
}

func TestTranslateGroupAndBroadcast(t *testing.T) {
	sender := types.NewJID("111", types.DefaultUserServer)
	body := &waE2E.Message{Conversation: proto.String("hi all")}

	msg, ok := translateMessage(newEvent(types.NewJID("120363000000000000", types.GroupServer), sender, body))
	require.True(t, ok)
	assert.True(t, msg.IsGroup(), "group chat")

	msg, ok = translateMessage(newEvent(types.StatusBroadcastJID, sender, body))
	require.True(t, ok)
	assert.True(t, msg.IsGroup(), "status broadcast")
}

func TestTranslateMedia(t *testing.T) {
	sender := types.NewJID("111", types.DefaultUserServer)
	cases := map[string]*waE2E.Message{
		"image":    {ImageMessage: &waE2E.ImageMessage{}},
		"audio":    {AudioMessage: &waE2E.AudioMessage{}},
		"video":    {VideoMessage: &waE2E.VideoMessage{}},
		"document": {DocumentMessage: &waE2E.DocumentMessage{}},
		"sticker":  {StickerMessage: &waE2E.StickerMessage{}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			msg, ok := translateMessage(newEvent(sender, sender, m))
			require.True(t, ok)
			assert.True(t, msg.HasMedia)
		})
	}
}

func TestTranslateSkipsEmpty(t *testing.T) {
	sender := types.NewJID("111", types.DefaultUserServer)

	_, ok := translateMessage(newEvent(sender, sender, &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")},
	}))
	assert.False(t, ok, "reaction")

	_, ok = translateMessage(newEvent(sender, sender, nil))
	assert.False(t, ok, "nil message")

	_, ok = translateMessage(nil)
	assert.False(t, ok, "nil event")
}

func TestTranslatePrefersPhoneNumberForLID(t *testing.T) {
	lid := types.NewJID("98765", types.HiddenUserServer)
	pn := types.NewJID("5491100000000", types.DefaultUserServer)
	evt := newEvent(lid, lid, &waE2E.Message{Conversation: proto.String("hi")})
	evt.Info.SenderAlt = pn

	msg, ok := translateMessage(evt)
	require.True(t, ok)
	assert.Equal(t, pn.String(), msg.From)
	assert.Equal(t, "98765", msg.SenderUser)
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in   domain.ChatHandle
		want types.JID
	}{
		{"5491122334455@c.us", types.NewJID("5491122334455", types.DefaultUserServer)},
		{"5491122334455@s.whatsapp.net", types.NewJID("5491122334455", types.DefaultUserServer)},
		{"120363000000000000@g.us", types.NewJID("120363000000000000", types.GroupServer)},
	}
	for _, tt := range tests {
		got, err := parseHandle(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseHandle("@c.us")
	assert.Error(t, err)
}

func TestPresenceFor(t *testing.T) {
	tests := []struct {
		state    domain.PresenceState
		presence types.ChatPresence
		media    types.ChatPresenceMedia
	}{
		{domain.PresenceTyping, types.ChatPresenceComposing, types.ChatPresenceMediaText},
		{domain.PresenceRecording, types.ChatPresenceComposing, types.ChatPresenceMediaAudio},
		{domain.PresenceClear, types.ChatPresencePaused, types.ChatPresenceMediaText},
	}
	for _, tt := range tests {
		p, m, err := presenceFor(tt.state)
		require.NoError(t, err)
		assert.Equal(t, tt.presence, p, tt.state)
		assert.Equal(t, tt.media, m, tt.state)
	}

	_, _, err := presenceFor(domain.PresenceState("dancing"))
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}
