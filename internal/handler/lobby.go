package handler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/room"
	"github.com/neurodive/neurodive-server/internal/ws"
)

// LobbyHandler handles lobby-related messages.
type LobbyHandler struct {
	rm     *room.Manager
	router *Router
}

// NewLobbyHandler creates a new lobby handler.
func NewLobbyHandler(rm *room.Manager, router *Router) *LobbyHandler {
	return &LobbyHandler{
		rm:     rm,
		router: router,
	}
}

type roomJoinedResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// HandleCreateRoom handles room creation. The nickname comes from
// authentication, not the request.
func (h *LobbyHandler) HandleCreateRoom(client *ws.Client, _ ws.Message) {
	if h.router.GetPlayerID(client.ID) != "" {
		client.SendMessage(ws.NewErrorMessage("already in a room"))
		return
	}

	r := h.rm.CreateRoom()
	player := game.NewPlayer(client.Nickname)
	r.AddPlayer(player, client)
	h.router.RegisterPlayer(client.ID, player.ID)

	resp, _ := ws.NewMessage(ws.TypeCreateRoom, roomJoinedResponse{
		Code:     r.Code,
		PlayerID: player.ID,
	})
	client.SendMessage(resp)

	slog.Info("player created room", "player", player.Nickname, "room", r.Code)
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

// HandleJoinRoom handles joining an existing room.
func (h *LobbyHandler) HandleJoinRoom(client *ws.Client, msg ws.Message) {
	var req joinRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Code == "" {
		client.SendMessage(ws.NewErrorMessage("room code is required"))
		return
	}
	if h.router.GetPlayerID(client.ID) != "" {
		client.SendMessage(ws.NewErrorMessage("already in a room"))
		return
	}

	r := h.rm.GetRoom(req.Code)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("room not found"))
		return
	}

	player := game.NewPlayer(client.Nickname)
	if !r.AddPlayer(player, client) {
		client.SendMessage(ws.NewErrorMessage("room is full"))
		return
	}
	h.router.RegisterPlayer(client.ID, player.ID)

	resp, _ := ws.NewMessage(ws.TypeJoinRoom, roomJoinedResponse{
		Code:     r.Code,
		PlayerID: player.ID,
	})
	client.SendMessage(resp)

	h.broadcastRoomInfo(r)

	slog.Info("player joined room", "player", player.Nickname, "room", r.Code)
}

type selectRoleRequest struct {
	Role string `json:"role"` // "explorer" or "protector"
}

// HandleSelectRole handles role selection. Each role seats one player.
func (h *LobbyHandler) HandleSelectRole(client *ws.Client, msg ws.Message) {
	var req selectRoleRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendMessage(ws.NewErrorMessage("invalid role selection"))
		return
	}

	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayerID(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	role := game.ParseRole(req.Role)
	if role == game.RoleNone {
		client.SendMessage(ws.NewErrorMessage("invalid role"))
		return
	}
	if !r.SetPlayerRole(playerID, role) {
		client.SendMessage(ws.NewErrorMessage("role is taken"))
		return
	}
	h.broadcastRoomInfo(r)

	slog.Info("player selected role", "player", playerID, "role", role.String())
}

// HandlePlayerReady handles player ready status. When the lineup is
// complete and everyone is ready the game starts.
func (h *LobbyHandler) HandlePlayerReady(client *ws.Client, _ ws.Message) {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayerID(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}

	allReady := r.SetPlayerReady(playerID, true)
	h.broadcastRoomInfo(r)

	slog.Info("player ready", "player", playerID, "room", r.Code)

	if allReady {
		h.startGame(r)
	}
}

// startGame builds the session and pushes the topology before the
// first tick so clients can render from the first state message.
func (h *LobbyHandler) startGame(r *room.Room) {
	r.PrepareGame(time.Now().UnixNano())

	startMsg, _ := ws.NewMessage(ws.TypeGameStart, gameStartResponse{
		Players: r.GetPlayerList(),
	})
	r.BroadcastMessage(startMsg)

	netMsg, err := ws.NewMessage(ws.TypeNetwork, r.Network())
	if err != nil {
		slog.Error("failed to marshal network", "room", r.Code, "error", err)
		return
	}
	r.BroadcastMessage(netMsg)

	r.StartGameLoop()
	slog.Info("all players ready, game starting", "room", r.Code)
}

// HandleReturnToLobby returns an ended room to the waiting state.
func (h *LobbyHandler) HandleReturnToLobby(client *ws.Client, _ ws.Message) {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayerID(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return
	}
	if r.Playing() {
		client.SendMessage(ws.NewErrorMessage("game is still running"))
		return
	}

	r.Reset()
	h.broadcastRoomInfo(r)
}

// HandleLeaveRoom handles a player leaving a room.
func (h *LobbyHandler) HandleLeaveRoom(client *ws.Client, _ ws.Message) {
	h.removePlayer(client)
}

// HandleDisconnect handles client disconnection.
func (h *LobbyHandler) HandleDisconnect(client *ws.Client) {
	h.removePlayer(client)
}

func (h *LobbyHandler) removePlayer(client *ws.Client) {
	playerID := h.router.GetPlayerID(client.ID)
	if playerID == "" {
		return
	}

	r := h.rm.FindRoomByPlayerID(playerID)
	if r != nil {
		// A two-player game cannot continue short-handed.
		if r.Playing() {
			r.StopGame(game.OutcomeAbandoned)
		}
		r.RemovePlayer(playerID)
		if r.IsEmpty() {
			h.rm.RemoveRoom(r.Code)
		} else {
			h.broadcastRoomInfo(r)
		}
	}

	h.router.UnregisterPlayer(client.ID)
	slog.Info("player left", "player", playerID)
}

type gameStartResponse struct {
	Players []*game.Player `json:"players"`
}

type roomInfoResponse struct {
	Code    string         `json:"code"`
	State   string         `json:"state"`
	Players []*game.Player `json:"players"`
	HostID  string         `json:"host_id"`
}

func (h *LobbyHandler) broadcastRoomInfo(r *room.Room) {
	resp, _ := ws.NewMessage(ws.TypeRoomInfo, roomInfoResponse{
		Code:    r.Code,
		State:   r.State.String(),
		Players: r.GetPlayerList(),
		HostID:  r.HostID,
	})
	r.BroadcastMessage(resp)
}
