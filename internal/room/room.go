package room

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/match"
	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/observability"
	"github.com/neurodive/neurodive-server/internal/puzzle"
	"github.com/neurodive/neurodive-server/internal/replay"
	"github.com/neurodive/neurodive-server/internal/sim"
	"github.com/neurodive/neurodive-server/internal/store"
	"github.com/neurodive/neurodive-server/internal/tuning"
	"github.com/neurodive/neurodive-server/internal/ws"
)

// ErrNotPlaying is returned by gameplay operations outside a running game.
var ErrNotPlaying = errors.New("room: game is not running")

// Deps are the services a room reports into. Every field is optional.
type Deps struct {
	Tuning    tuning.Tuning
	Metrics   *observability.Collector
	Matches   store.MatchStore
	ReplayDir string
}

// Room owns two players, their connections and, while a game runs, one
// simulation session driven by the tick loop. All session access goes
// through the room mutex; the session itself is single-threaded.
type Room struct {
	Code    string                  `json:"code"`
	State   game.RoomState          `json:"state"`
	Players map[string]*game.Player `json:"players"`
	HostID  string                  `json:"host_id"`

	// Client mapping: player ID -> ws client
	clients map[string]*ws.Client

	deps     Deps
	recorder *replay.Recorder

	session   *sim.Session
	round     int // 1-based while playing
	roundsWon int
	catches   int
	startedAt time.Time
	record    *match.Match

	stopCh chan struct{}
	mu     sync.RWMutex
}

// NewRoom creates a waiting room with the given code.
func NewRoom(code string, deps Deps) *Room {
	return &Room{
		Code:     code,
		State:    game.StateWaiting,
		Players:  make(map[string]*game.Player),
		clients:  make(map[string]*ws.Client),
		deps:     deps,
		recorder: replay.NewRecorder(deps.ReplayDir),
	}
}

// AddPlayer adds a player to the room. Returns false if the room is full.
func (r *Room) AddPlayer(player *game.Player, client *ws.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Players) >= game.MaxPlayers {
		return false
	}

	r.Players[player.ID] = player
	r.clients[player.ID] = client

	if len(r.Players) == 1 {
		r.HostID = player.ID
	}
	return true
}

// RemovePlayer removes a player from the room.
func (r *Room) RemovePlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Players, playerID)
	delete(r.clients, playerID)

	// Transfer host if the host left
	if r.HostID == playerID && len(r.Players) > 0 {
		for id := range r.Players {
			r.HostID = id
			break
		}
	}
}

// PlayerCount returns the number of players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Players)
}

// SetPlayerRole assigns a role if nobody else holds it. Explorer and
// protector each seat exactly one player.
func (r *Room) SetPlayerRole(playerID string, role game.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.Players[playerID]
	if !ok {
		return false
	}
	if role != game.RoleNone {
		for id, other := range r.Players {
			if id != playerID && other.Role == role {
				return false
			}
		}
	}
	p.SetRole(role)
	return true
}

// SetPlayerReady sets a player's ready status and returns whether the
// lineup is complete and everyone is ready.
func (r *Room) SetPlayerReady(playerID string, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.Players[playerID]; ok {
		p.Ready = ready
	}
	return game.ReadyToStart(r.playerListLocked())
}

// GetPlayerList returns a slice of all players.
func (r *Room) GetPlayerList() []*game.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playerListLocked()
}

func (r *Room) playerListLocked() []*game.Player {
	players := make([]*game.Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	return players
}

// PlayerRole returns the role of a player, RoleNone if unknown.
func (r *Room) PlayerRole(playerID string) game.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.Players[playerID]; ok {
		return p.Role
	}
	return game.RoleNone
}

// BroadcastMessage sends a message to all players in the room.
func (r *Room) BroadcastMessage(msg ws.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(msg)
}

func (r *Room) broadcastLocked(msg ws.Message) {
	for _, client := range r.clients {
		if client != nil {
			client.SendMessage(msg)
		}
	}
}

// SendToPlayer sends a message to a specific player.
func (r *Room) SendToPlayer(playerID string, msg ws.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if client, ok := r.clients[playerID]; ok && client != nil {
		client.SendMessage(msg)
	}
}

// IsEmpty returns true if the room has no players.
func (r *Room) IsEmpty() bool {
	return r.PlayerCount() == 0
}

// Playing reports whether a game is running.
func (r *Room) Playing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State == game.StatePlaying
}

// Network returns the network of the running game for serialization,
// or nil outside a game.
func (r *Room) Network() *neural.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return nil
	}
	return r.session.Network()
}

// Reset returns an ended room to the lobby, keeping players and roles.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.State = game.StateWaiting
	r.session = nil
	r.record = nil
	for _, p := range r.Players {
		p.Reset()
	}
}

// PrepareGame generates the network and builds the session. Must be
// called before broadcasting game_start so clients receive a topology.
func (r *Room) PrepareGame(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.State = game.StatePlaying
	r.round = 1
	r.roundsWon = 0
	r.catches = 0
	r.startedAt = time.Now()
	r.stopCh = make(chan struct{})

	var explorer, protector string
	for _, p := range r.Players {
		switch p.Role {
		case game.RoleExplorer:
			explorer = p.Nickname
		case game.RoleProtector:
			protector = p.Nickname
		}
	}
	r.record = match.New(r.Code, explorer, protector)

	if err := r.recorder.BeginRound(r.Code, r.round); err != nil {
		slog.Warn("replay: begin round failed", "room", r.Code, "error", err)
	}

	rng := rand.New(rand.NewSource(seed))
	net := neural.Generate(r.deps.Tuning.Network, rng)
	// The room listens from construction so the opening round_reset and
	// visibility events reach the clients and the replay log.
	r.session = sim.NewSession(r.deps.Tuning.Session, r.deps.Tuning.Pursuer, net, rng, r.onEvent)

	slog.Info("game prepared", "room", r.Code, "seed", seed,
		"nodes", net.NodeCount(), "edges", net.EdgeCount())
}

// onEvent fans one simulation event out to the clients, the replay log
// and the metrics. The session delivers it synchronously while the
// room mutex is held by the mutating call.
func (r *Room) onEvent(ev sim.Event) {
	if msg, err := ws.NewMessage(ws.TypeEvent, ev); err == nil {
		r.broadcastLocked(msg)
	}
	if err := r.recorder.Write(ev); err != nil {
		slog.Warn("replay: write failed", "room", r.Code, "error", err)
	}
	switch ev.Kind {
	case sim.EventCaught:
		r.catches++
		r.deps.Metrics.CatchRecorded()
	case sim.EventHackLanded:
		r.deps.Metrics.HackRecorded()
	}
}

// StartGameLoop starts the game tick loop. Must be called after
// PrepareGame and broadcasting game_start.
func (r *Room) StartGameLoop() {
	go r.gameLoop()
}

// StopGame ends a running game with the given outcome, for example
// when a player abandons it mid-match.
func (r *Room) StopGame(outcome game.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != game.StatePlaying {
		return
	}
	r.endGameLocked(outcome)
}

// gameLoop runs the simulation at TickRate until the game ends.
func (r *Room) gameLoop() {
	ticker := time.NewTicker(game.TickInterval)
	defer ticker.Stop()

	dt := game.TickInterval.Seconds()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick(dt)
		}
	}
}

// tick advances the session by dt seconds and broadcasts the snapshot.
func (r *Room) tick(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State != game.StatePlaying || r.session == nil {
		return
	}
	start := time.Now()
	r.session.Advance(dt)
	r.afterSimLocked()
	r.deps.Metrics.ObserveTick(time.Since(start))

	if r.State != game.StatePlaying {
		return
	}
	msg, err := ws.NewMessage(ws.TypeState, r.stateLocked())
	if err != nil {
		slog.Error("failed to marshal state", "room", r.Code, "error", err)
		return
	}
	r.broadcastLocked(msg)
}

// ExplorerMove walks the explorer to an adjacent node.
func (r *Room) ExplorerMove(to neural.NodeID) error {
	return r.op(func(s *sim.Session) error { return s.ExplorerMove(to) })
}

// BeginAttempt issues the trace challenge for a connection.
func (r *Room) BeginAttempt(id neural.EdgeID) (puzzle.Puzzle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != game.StatePlaying || r.session == nil {
		return puzzle.Puzzle{}, ErrNotPlaying
	}
	p, err := r.session.BeginEdgeAttempt(id)
	if err != nil {
		return puzzle.Puzzle{}, err
	}
	r.afterSimLocked()
	return p, nil
}

// SubmitTrace resolves a pending trace challenge.
func (r *Room) SubmitTrace(id neural.EdgeID, trace []puzzle.Cell) (sim.AttemptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != game.StatePlaying || r.session == nil {
		return sim.AttemptResult{}, ErrNotPlaying
	}
	res, err := r.session.SubmitTrace(id, trace)
	if err != nil {
		return sim.AttemptResult{}, err
	}
	r.afterSimLocked()
	return res, nil
}

// RaiseWall walls a connection off.
func (r *Room) RaiseWall(id neural.EdgeID) error {
	return r.op(func(s *sim.Session) error { return s.SetEdgeState(id, neural.EdgeBlocked) })
}

// ClearWall returns a walled connection to dormant.
func (r *Room) ClearWall(id neural.EdgeID) error {
	return r.op(func(s *sim.Session) error { return s.SetEdgeState(id, neural.EdgeDormant) })
}

// BlockNode corrupts a node.
func (r *Room) BlockNode(id neural.NodeID) error {
	return r.op(func(s *sim.Session) error { return s.BlockNode(id) })
}

// RepairNode clears a corrupted node.
func (r *Room) RepairNode(id neural.NodeID) error {
	return r.op(func(s *sim.Session) error { return s.RepairNode(id) })
}

// ResolveEncounter releases the explorer after a catch.
func (r *Room) ResolveEncounter() error {
	return r.op(func(s *sim.Session) error { return s.ResolveEncounter() })
}

func (r *Room) op(fn func(*sim.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != game.StatePlaying || r.session == nil {
		return ErrNotPlaying
	}
	if err := fn(r.session); err != nil {
		return err
	}
	r.afterSimLocked()
	return nil
}

// afterSimLocked applies the match-level consequences of whatever the
// last session call did: a secured core advances or wins the match, a
// catch over the limit loses it.
func (r *Room) afterSimLocked() {
	if r.State != game.StatePlaying {
		return
	}

	if r.session.CoreReached() {
		r.roundsWon++
		r.deps.Metrics.RoundFinished("cleared")
		if r.roundsWon >= game.RoundsToWin {
			r.endGameLocked(game.OutcomePlayers)
			return
		}

		msg, _ := ws.NewMessage(ws.TypeRoundResult, roundResultMessage{
			Round:     r.round,
			Cleared:   true,
			RoundsWon: r.roundsWon,
			Catches:   r.catches,
		})
		r.broadcastLocked(msg)

		r.round++
		if err := r.recorder.BeginRound(r.Code, r.round); err != nil {
			slog.Warn("replay: begin round failed", "room", r.Code, "error", err)
		}
		r.session.RoundReset()
		slog.Info("round cleared", "room", r.Code, "round", r.round-1, "won", r.roundsWon)
		return
	}

	if r.catches >= game.CatchLimit {
		r.deps.Metrics.RoundFinished("caught")
		r.endGameLocked(game.OutcomePursuer)
	}
}

func (r *Room) endGameLocked(outcome game.Outcome) {
	r.State = game.StateEnded
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}

	duration := time.Since(r.startedAt)
	msg, _ := ws.NewMessage(ws.TypeGameOver, gameOverMessage{
		Outcome:   outcome.String(),
		RoundsWon: r.roundsWon,
		Catches:   r.catches,
		Duration:  duration.Seconds(),
	})
	r.broadcastLocked(msg)

	if err := r.recorder.Close(); err != nil {
		slog.Warn("replay: close failed", "room", r.Code, "error", err)
	}

	if r.deps.Matches != nil && r.record != nil {
		rec := *r.record
		rec.Outcome = outcome
		rec.Rounds = r.round
		rec.Catches = r.catches
		rec.Duration = duration
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.deps.Matches.Record(ctx, &rec); err != nil {
				slog.Error("failed to record match", "match", rec.ID, "error", err)
			}
		}()
	}

	slog.Info("game ended", "room", r.Code, "outcome", outcome.String(),
		"rounds_won", r.roundsWon, "catches", r.catches)
}

type roundResultMessage struct {
	Round     int  `json:"round"`
	Cleared   bool `json:"cleared"`
	RoundsWon int  `json:"rounds_won"`
	Catches   int  `json:"catches"`
}

type gameOverMessage struct {
	Outcome   string  `json:"outcome"`
	RoundsWon int     `json:"rounds_won"`
	Catches   int     `json:"catches"`
	Duration  float64 `json:"duration"`
}

type stateMessage struct {
	Tick             int           `json:"tick"`
	Clock            float64       `json:"clock"`
	Round            int           `json:"round"`
	RoundsWon        int           `json:"rounds_won"`
	Catches          int           `json:"catches"`
	Explorer         neural.NodeID `json:"explorer"`
	EncounterPending bool          `json:"encounter_pending"`
	Pursuer          pursuerState  `json:"pursuer"`
}

type pursuerState struct {
	At         neural.NodeID `json:"at"`
	State      string        `json:"state"`
	Pos        neural.Vec3   `json:"pos"`
	HackTarget neural.NodeID `json:"hack_target,omitempty"`
}

func (r *Room) stateLocked() stateMessage {
	s := r.session
	p := s.Pursuer()
	return stateMessage{
		Tick:             s.Tick(),
		Clock:            s.Clock(),
		Round:            r.round,
		RoundsWon:        r.roundsWon,
		Catches:          r.catches,
		Explorer:         s.Head(),
		EncounterPending: s.EncounterPending(),
		Pursuer: pursuerState{
			At:         p.At(),
			State:      p.State().String(),
			Pos:        p.Position(s.Network()),
			HackTarget: p.HackTarget(),
		},
	}
}
