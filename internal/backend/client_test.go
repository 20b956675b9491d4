package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagateway/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestForward_PostsPayload(t *testing.T) {
	var got map[string]string
	var path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", Timeout: time.Second, Logger: testLogger()})
	err := c.Forward(context.Background(), domain.ForwardPayload{
		RestaurantID: "rest-42",
		Platform:     domain.PlatformTag,
		ExternalID:   "5491112345678",
		CustomerName: "Juan",
		Content:      "Hola",
	})
	require.NoError(t, err)

	assert.Equal(t, "/messages/webhook", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]string{
		"restaurantId": "rest-42",
		"platform":     "whatsapp_js",
		"externalId":   "5491112345678",
		"customerName": "Juan",
		"content":      "Hola",
	}, got)
}

func TestForward_RejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "restaurant not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Logger: testLogger()})
	err := c.Forward(context.Background(), domain.ForwardPayload{Content: "x"})

	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusNotFound, de.StatusCode)
	assert.Contains(t, de.Body, "restaurant not found")
}

func TestForward_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second, Logger: testLogger()})
	err := c.Forward(context.Background(), domain.ForwardPayload{Content: "x"})

	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Zero(t, de.StatusCode)
	assert.Error(t, de.Unwrap())
}

func TestEndpoint(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "https://api.gusteau.test/v1/", Logger: testLogger()})
	assert.Equal(t, "https://api.gusteau.test/v1/messages/webhook", c.Endpoint())
}
