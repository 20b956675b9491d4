package qr

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleToken = "2@Xk9fQm1+abc==,pubkey==,identity==,adv=="

func TestPNG(t *testing.T) {
	png, err := PNG(sampleToken)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestDataURL(t *testing.T) {
	url, err := DataURL(sampleToken)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}

func TestEmptyToken(t *testing.T) {
	_, err := DataURL("")
	assert.Error(t, err)
	_, err = Terminal("")
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(sampleToken)
	require.NoError(t, err)
	assert.Greater(t, strings.Count(out, "\n"), 10)
}
