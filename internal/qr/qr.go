// Package qr renders session tokens as scannable QR codes.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// imageSize is the PNG edge length in pixels.
const imageSize = 256

var errEmptyToken = errors.New("empty session token")

// PNG encodes token as a PNG image.
func PNG(token string) ([]byte, error) {
	if token == "" {
		return nil, errEmptyToken
	}
	png, err := qrcode.Encode(token, qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DataURL encodes token as a base64 PNG data URL suitable for an <img> src.
func DataURL(token string) (string, error) {
	png, err := PNG(token)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Terminal renders token with half-block characters for printing to a TTY.
func Terminal(token string) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	q, err := qrcode.New(token, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return q.ToSmallString(false), nil
}
