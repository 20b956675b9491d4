package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in   string
		want ChatHandle
	}{
		{"5491122334455", "5491122334455@c.us"},
		{" 5491122334455 ", "5491122334455@c.us"},
		{"5491122334455@c.us", "5491122334455@c.us"},
		{"120363000000000000@g.us", "120363000000000000@g.us"},
		{"5491122334455@s.whatsapp.net", "5491122334455@s.whatsapp.net"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTarget(tt.in), "NormalizeTarget(%q)", tt.in)
	}
}

func TestParsePresenceState(t *testing.T) {
	for _, s := range []string{"typing", "recording", "clear"} {
		got, ok := ParsePresenceState(s)
		assert.True(t, ok, s)
		assert.Equal(t, s, string(got))
	}
	for _, s := range []string{"", "Typing", "online", "paused"} {
		_, ok := ParsePresenceState(s)
		assert.False(t, ok, "ParsePresenceState(%q) should be rejected", s)
	}
}

func TestInboundMessageIsGroup(t *testing.T) {
	assert.False(t, InboundMessage{Chat: ChatDirect}.IsGroup())
	assert.True(t, InboundMessage{Chat: ChatGroup}.IsGroup())
}
