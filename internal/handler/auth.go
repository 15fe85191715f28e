package handler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/neurodive/neurodive-server/internal/auth"
	"github.com/neurodive/neurodive-server/internal/ws"
)

const authTimeout = 10 * time.Second

// AuthHandler handles authentication messages.
type AuthHandler struct {
	verifier *auth.TicketVerifier
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(verifier *auth.TicketVerifier) *AuthHandler {
	return &AuthHandler{verifier: verifier}
}

type authenticateRequest struct {
	Method string `json:"method"`

	// Ticket auth
	Ticket string `json:"ticket,omitempty"`

	// Guest auth
	Nickname string `json:"nickname,omitempty"`
}

type authSuccessResponse struct {
	Success  bool   `json:"success"`
	Nickname string `json:"nickname"`
}

type authFailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HandleAuthenticate processes an authentication request.
func (h *AuthHandler) HandleAuthenticate(client *ws.Client, msg ws.Message) {
	if client.Authenticated {
		client.SendMessage(ws.NewErrorMessage("already authenticated"))
		return
	}

	var req authenticateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.sendFailure(client, "invalid auth data")
		return
	}

	switch req.Method {
	case "ticket":
		h.handleTicket(client, req)
	case "guest":
		h.handleGuest(client, req)
	default:
		h.sendFailure(client, "unknown auth method: "+req.Method)
	}
}

func (h *AuthHandler) handleTicket(client *ws.Client, req authenticateRequest) {
	if !h.verifier.Enabled() {
		h.sendFailure(client, "ticket auth is not configured")
		return
	}

	nickname, err := h.verifier.Verify(req.Ticket, time.Now())
	if err != nil {
		slog.Warn("ticket verification failed", "error", err, "client", client.ID)
		h.sendFailure(client, "verification failed")
		return
	}

	h.authenticateClient(client, nickname)
}

// handleGuest admits a nickname without credentials. Guests exist for
// local play and development; once a ticket secret is configured they
// are turned away.
func (h *AuthHandler) handleGuest(client *ws.Client, req authenticateRequest) {
	if h.verifier.Enabled() {
		h.sendFailure(client, "guest login is disabled")
		return
	}
	if req.Nickname == "" {
		h.sendFailure(client, "nickname is required for guest login")
		return
	}

	h.authenticateClient(client, req.Nickname)
}

func (h *AuthHandler) authenticateClient(client *ws.Client, nickname string) {
	client.Nickname = nickname
	client.Authenticated = true

	resp, _ := ws.NewMessage(ws.TypeAuthResult, authSuccessResponse{
		Success:  true,
		Nickname: nickname,
	})
	client.SendMessage(resp)

	slog.Info("client authenticated", "client", client.ID, "nickname", nickname)
}

func (h *AuthHandler) sendFailure(client *ws.Client, errMsg string) {
	resp, _ := ws.NewMessage(ws.TypeAuthResult, authFailureResponse{
		Success: false,
		Error:   errMsg,
	})
	client.SendMessage(resp)
}

// StartAuthTimeout closes the connection if the client doesn't authenticate in time.
func (h *AuthHandler) StartAuthTimeout(client *ws.Client) {
	time.AfterFunc(authTimeout, func() {
		if !client.Authenticated {
			slog.Info("auth timeout, closing connection", "client", client.ID)
			client.SendMessage(ws.NewErrorMessage("authentication timeout"))
			client.Conn.Close()
		}
	})
}
