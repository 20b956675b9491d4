package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wagateway/internal/domain"
	"wagateway/internal/qr"
)

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type chatStateRequest struct {
	To    string `json:"to"`
	State string `json:"state"`
}

const invalidStateMessage = "Invalid state. Use 'typing', 'recording', or 'clear'"

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		s.rejectAuth(w, err)
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.To) == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing 'to' or 'message'")
		return
	}

	err := s.send(r.Context(), domain.NormalizeTarget(req.To), req.Message)
	observe("send", err)
	if err != nil {
		s.logger.Error("send failed", "to", req.To, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// send resolves the chat, clears any typing indicator and sends text.
func (s *Server) send(ctx context.Context, target domain.ChatHandle, text string) error {
	chat, err := s.messenger.ResolveChat(ctx, target)
	if err != nil {
		return err
	}
	if err := s.messenger.SetPresence(ctx, chat, domain.PresenceClear); err != nil {
		return err
	}
	return s.messenger.SendMessage(ctx, chat, text)
}

func (s *Server) handleChatState(w http.ResponseWriter, r *http.Request) {
	var req chatStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	// An unknown state is a malformed request regardless of the credential.
	state, valid := domain.ParsePresenceState(req.State)
	if req.State != "" && !valid {
		writeError(w, http.StatusBadRequest, invalidStateMessage)
		return
	}

	if err := s.authorize(r); err != nil {
		s.rejectAuth(w, err)
		return
	}
	if strings.TrimSpace(req.To) == "" || req.State == "" {
		writeError(w, http.StatusBadRequest, "Missing 'to' or 'state'")
		return
	}

	err := s.setState(r.Context(), domain.NormalizeTarget(req.To), state)
	observe("chat_state", err)
	if err != nil {
		s.logger.Error("chat state update failed", "to", req.To, "state", state, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to update chat state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) setState(ctx context.Context, target domain.ChatHandle, state domain.PresenceState) error {
	chat, err := s.messenger.ResolveChat(ctx, target)
	if err != nil {
		return err
	}
	return s.messenger.SetPresence(ctx, chat, state)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	token, ok := s.session.Token()
	if !ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "Waiting for QR...")
		return
	}

	src, err := qr.DataURL(token)
	if err != nil {
		s.logger.Error("qr render failed", "err", err)
		http.Error(w, "Error generating QR", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<img src="%s" />`, src)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": string(s.session.Status()),
	})
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodySize {
		return errors.New("request body too large")
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
