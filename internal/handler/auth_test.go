package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodive/neurodive-server/internal/auth"
	"github.com/neurodive/neurodive-server/internal/room"
	"github.com/neurodive/neurodive-server/internal/tuning"
	"github.com/neurodive/neurodive-server/internal/ws"
)

func newTestRouter(secret string) *Router {
	rm := room.NewManager(room.Deps{Tuning: tuning.Default()})
	return NewRouter(rm, auth.NewTicketVerifier(secret))
}

func newTestClient(id string) *ws.Client {
	return &ws.Client{ID: id, Send: make(chan []byte, 64)}
}

// recvType drains the client's send buffer until a message of the
// given type appears.
func recvType(t *testing.T, client *ws.Client, msgType string) json.RawMessage {
	t.Helper()
	for {
		select {
		case data := <-client.Send:
			var msg ws.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == msgType {
				return msg.Data
			}
		default:
			t.Fatalf("no %q message received", msgType)
			return nil
		}
	}
}

func send(t *testing.T, router *Router, client *ws.Client, msgType string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(msgType, payload)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	router.HandleMessage(&ws.ClientMessage{Client: client, Data: data})
}

func TestGuestAuthWithoutSecret(t *testing.T) {
	router := newTestRouter("")
	client := newTestClient("c1")

	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method":   "guest",
		"nickname": "deep-diver",
	})

	var resp authSuccessResponse
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeAuthResult), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "deep-diver", resp.Nickname)
	assert.True(t, client.Authenticated)
}

func TestGuestAuthRejectedWithSecret(t *testing.T) {
	router := newTestRouter("topsecret")
	client := newTestClient("c1")

	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method":   "guest",
		"nickname": "deep-diver",
	})

	var resp authFailureResponse
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeAuthResult), &resp))
	assert.False(t, resp.Success)
	assert.False(t, client.Authenticated)
}

func TestGuestAuthRequiresNickname(t *testing.T) {
	router := newTestRouter("")
	client := newTestClient("c1")

	send(t, router, client, ws.TypeAuthenticate, map[string]string{"method": "guest"})

	var resp authFailureResponse
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeAuthResult), &resp))
	assert.False(t, resp.Success)
}

func TestTicketAuth(t *testing.T) {
	router := newTestRouter("topsecret")
	client := newTestClient("c1")

	ticket := auth.Mint("topsecret", "deep-diver", time.Now().Add(time.Hour))
	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method": "ticket",
		"ticket": ticket,
	})

	var resp authSuccessResponse
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeAuthResult), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "deep-diver", resp.Nickname)
}

func TestTicketAuthRejectsForgeries(t *testing.T) {
	router := newTestRouter("topsecret")
	client := newTestClient("c1")

	ticket := auth.Mint("wrongsecret", "impostor", time.Now().Add(time.Hour))
	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method": "ticket",
		"ticket": ticket,
	})

	var resp authFailureResponse
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeAuthResult), &resp))
	assert.False(t, resp.Success)
	assert.False(t, client.Authenticated)
}

func TestAuthGuardBlocksUnauthenticated(t *testing.T) {
	router := newTestRouter("")
	client := newTestClient("c1")

	send(t, router, client, ws.TypeCreateRoom, nil)

	var errMsg ws.ErrorMessage
	require.NoError(t, json.Unmarshal(recvType(t, client, ws.TypeError), &errMsg))
	assert.Equal(t, "authentication required", errMsg.Message)
}

func TestDoubleAuthenticationRejected(t *testing.T) {
	router := newTestRouter("")
	client := newTestClient("c1")

	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method":   "guest",
		"nickname": "deep-diver",
	})
	recvType(t, client, ws.TypeAuthResult)

	send(t, router, client, ws.TypeAuthenticate, map[string]string{
		"method":   "guest",
		"nickname": "someone-else",
	})
	recvType(t, client, ws.TypeError)
	assert.Equal(t, "deep-diver", client.Nickname)
}
