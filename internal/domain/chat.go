package domain

import "strings"

// ChatHandle is a fully-qualified conversation identifier (user@server).
type ChatHandle string

// LegacyUserSuffix is appended to bare recipient addresses.
const LegacyUserSuffix = "@c.us"

// NormalizeTarget turns a raw recipient address into a chat handle. Targets
// already carrying a server part are returned as-is.
func NormalizeTarget(to string) ChatHandle {
	to = strings.TrimSpace(to)
	if strings.Contains(to, "@") {
		return ChatHandle(to)
	}
	return ChatHandle(to + LegacyUserSuffix)
}

func (h ChatHandle) String() string { return string(h) }

// PresenceState is a transient chat indicator or its cancellation.
type PresenceState string

const (
	PresenceTyping    PresenceState = "typing"
	PresenceRecording PresenceState = "recording"
	PresenceClear     PresenceState = "clear"
)

// ParsePresenceState validates s against the supported presence states.
func ParsePresenceState(s string) (PresenceState, bool) {
	switch p := PresenceState(s); p {
	case PresenceTyping, PresenceRecording, PresenceClear:
		return p, true
	}
	return "", false
}
