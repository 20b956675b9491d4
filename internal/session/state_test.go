package session

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateLifecycle(t *testing.T) {
	s := NewState()
	assert.Equal(t, StatusUnauthenticated, s.Status())
	_, ok := s.Token()
	assert.False(t, ok, "no token before pairing")

	s.IssueToken("first")
	s.IssueToken("second")
	tok, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "second", tok)
	assert.Equal(t, StatusAwaitingScan, s.Status())

	s.MarkReady()
	_, ok = s.Token()
	assert.False(t, ok, "token cleared once ready")
	assert.Equal(t, StatusReady, s.Status())

	s.Reset()
	assert.Equal(t, StatusUnauthenticated, s.Status())
}

func TestStateConcurrentReaders(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Token()
				s.Status()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.IssueToken("tok")
	}
	s.MarkReady()
	wg.Wait()

	assert.Equal(t, StatusReady, s.Status())
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := NewLogger(logger, "client")
	l.Debugf("hidden %d", 1)
	l.Infof("connected to %s", "server")
	l.Sub("socket").Warnf("frame dropped")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "debug line filtered")
	assert.Contains(t, out, `msg="connected to server"`)
	assert.Contains(t, out, "module=client\n")
	assert.Contains(t, out, "module=client/socket")
}
