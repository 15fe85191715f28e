package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/puzzle"
	"github.com/neurodive/neurodive-server/internal/room"
	"github.com/neurodive/neurodive-server/internal/ws"
)

// GameplayHandler maps in-game messages onto session operations.
// Explorer and protector each get their own set: moving and tracing
// belong to the explorer, walls and node work to the protector.
type GameplayHandler struct {
	rm     *room.Manager
	router *Router
}

// NewGameplayHandler creates a new gameplay handler.
func NewGameplayHandler(rm *room.Manager, router *Router) *GameplayHandler {
	return &GameplayHandler{rm: rm, router: router}
}

// roomFor resolves the client's room and role, enforcing the required
// role. A nil room means the request was already answered with an error.
func (h *GameplayHandler) roomFor(client *ws.Client, need game.Role) *room.Room {
	playerID := h.router.GetPlayerID(client.ID)
	r := h.rm.FindRoomByPlayerID(playerID)
	if r == nil {
		client.SendMessage(ws.NewErrorMessage("not in a room"))
		return nil
	}
	if r.PlayerRole(playerID) != need {
		client.SendMessage(ws.NewErrorMessage("operation requires the " + need.String() + " role"))
		return nil
	}
	return r
}

func sendOpError(client *ws.Client, err error) {
	slog.Debug("gameplay op rejected", "client", client.ID, "error", err)
	client.SendMessage(ws.NewErrorMessage(err.Error()))
}

type nodeRequest struct {
	Node neural.NodeID `json:"node"`
}

type edgeRequest struct {
	Edge neural.EdgeID `json:"edge"`
}

// HandleExplorerMove walks the explorer to an adjacent node.
func (h *GameplayHandler) HandleExplorerMove(client *ws.Client, msg ws.Message) {
	var req nodeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Node == "" {
		client.SendMessage(ws.NewErrorMessage("invalid move data"))
		return
	}
	r := h.roomFor(client, game.RoleExplorer)
	if r == nil {
		return
	}
	if err := r.ExplorerMove(req.Node); err != nil {
		sendOpError(client, err)
	}
}

type attemptResponse struct {
	Edge   neural.EdgeID `json:"edge"`
	Puzzle puzzle.Puzzle `json:"puzzle"`
}

// HandleBeginAttempt opens the trace challenge for a connection and
// returns it to the explorer.
func (h *GameplayHandler) HandleBeginAttempt(client *ws.Client, msg ws.Message) {
	var req edgeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Edge == "" {
		client.SendMessage(ws.NewErrorMessage("invalid attempt data"))
		return
	}
	r := h.roomFor(client, game.RoleExplorer)
	if r == nil {
		return
	}
	p, err := r.BeginAttempt(req.Edge)
	if err != nil {
		sendOpError(client, err)
		return
	}
	resp, _ := ws.NewMessage(ws.TypeAttempt, attemptResponse{Edge: req.Edge, Puzzle: p})
	client.SendMessage(resp)
}

type submitTraceRequest struct {
	Edge  neural.EdgeID `json:"edge"`
	Trace []puzzle.Cell `json:"trace"`
}

// HandleSubmitTrace resolves a pending trace challenge.
func (h *GameplayHandler) HandleSubmitTrace(client *ws.Client, msg ws.Message) {
	var req submitTraceRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Edge == "" {
		client.SendMessage(ws.NewErrorMessage("invalid trace data"))
		return
	}
	r := h.roomFor(client, game.RoleExplorer)
	if r == nil {
		return
	}
	res, err := r.SubmitTrace(req.Edge, req.Trace)
	if err != nil {
		sendOpError(client, err)
		return
	}
	resp, _ := ws.NewMessage(ws.TypeAttemptResult, res)
	client.SendMessage(resp)
}

// HandleRaiseWall walls a connection off against the pursuer.
func (h *GameplayHandler) HandleRaiseWall(client *ws.Client, msg ws.Message) {
	h.edgeOp(client, msg, func(r *room.Room, id neural.EdgeID) error {
		return r.RaiseWall(id)
	})
}

// HandleClearWall removes a wall.
func (h *GameplayHandler) HandleClearWall(client *ws.Client, msg ws.Message) {
	h.edgeOp(client, msg, func(r *room.Room, id neural.EdgeID) error {
		return r.ClearWall(id)
	})
}

func (h *GameplayHandler) edgeOp(client *ws.Client, msg ws.Message, op func(*room.Room, neural.EdgeID) error) {
	var req edgeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Edge == "" {
		client.SendMessage(ws.NewErrorMessage("invalid wall data"))
		return
	}
	r := h.roomFor(client, game.RoleProtector)
	if r == nil {
		return
	}
	if err := op(r, req.Edge); err != nil {
		sendOpError(client, err)
	}
}

// HandleBlockNode corrupts a node to steer the pursuer.
func (h *GameplayHandler) HandleBlockNode(client *ws.Client, msg ws.Message) {
	h.nodeOp(client, msg, func(r *room.Room, id neural.NodeID) error {
		return r.BlockNode(id)
	})
}

// HandleRepairNode clears a corrupted node.
func (h *GameplayHandler) HandleRepairNode(client *ws.Client, msg ws.Message) {
	h.nodeOp(client, msg, func(r *room.Room, id neural.NodeID) error {
		return r.RepairNode(id)
	})
}

func (h *GameplayHandler) nodeOp(client *ws.Client, msg ws.Message, op func(*room.Room, neural.NodeID) error) {
	var req nodeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Node == "" {
		client.SendMessage(ws.NewErrorMessage("invalid node data"))
		return
	}
	r := h.roomFor(client, game.RoleProtector)
	if r == nil {
		return
	}
	if err := op(r, req.Node); err != nil {
		sendOpError(client, err)
	}
}

// HandleResolveEncounter releases the explorer after a catch.
func (h *GameplayHandler) HandleResolveEncounter(client *ws.Client, _ ws.Message) {
	r := h.roomFor(client, game.RoleProtector)
	if r == nil {
		return
	}
	if err := r.ResolveEncounter(); err != nil {
		sendOpError(client, err)
	}
}
