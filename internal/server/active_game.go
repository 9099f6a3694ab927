package server

import (
	"encoding/json"
	rand "math/rand/v2"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/sanity-io/litter"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/metrics"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/replay"
	"github.com/cardroomlabs/cardroom/internal/store"
)

// GameStatus is a room's lifecycle phase.
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// Action clock warning thresholds, sent to the active player only.
var timeWarnings = []time.Duration{10 * time.Second, 5 * time.Second}

// Deps are the process-wide services a room executor uses.
type Deps struct {
	Clock     quartz.Clock
	RNG       *rand.Rand
	Logger    *log.Logger
	Sessions  *SessionManager
	Store     *store.Store
	Snapshots *store.SnapshotWriter
	ReplayDir string
}

// GameOptions is the per-room configuration.
type GameOptions struct {
	ID            string
	Name          string
	GameType      engine.GameType
	SmallBlind    int
	BigBlind      int
	MaxPlayers    int
	StartingStack int
	Visibility    engine.Visibility
	ActionTimeout time.Duration
	HandDelay     time.Duration
	MinReady      int
}

// ActiveGame is one room: a single goroutine consumes the inbox, so
// every engine mutation, broadcast and timer decision is serialized.
// Timers deliver their expiry back through the same inbox.
type ActiveGame struct {
	id   string
	opts GameOptions

	logger    *log.Logger
	clock     quartz.Clock
	rng       *rand.Rand
	sessions  *SessionManager
	db        *store.Store
	snapshots *store.SnapshotWriter
	recorder  *replay.Recorder
	replayDir string

	inbox chan roomMsg
	done  chan struct{}

	// Owned by the room goroutine.
	status      GameStatus
	state       *engine.State
	visibility  engine.Visibility
	timerGen    int
	actionTimer *quartz.Timer
	warnTimers  []*quartz.Timer
	rotateTimer *quartz.Timer
}

type roomMsg interface{ isRoomMsg() }

type (
	joinMsg struct {
		playerID, displayName string
		role                  engine.Role
	}
	reconnectMsg  struct{ playerID string }
	leaveMsg      struct{ playerID string }
	disconnectMsg struct{ playerID string }
	readyMsg      struct{ playerID string }
	actionMsg     struct {
		playerID   string
		handNumber int
		action     engine.ActionType
		amount     int
	}
	chatMsg struct {
		playerID, message string
	}
	revealMsg struct {
		playerID   string
		handNumber int
	}
	timeoutMsg struct{ gen int }
	warnMsg    struct {
		gen       int
		remaining time.Duration
	}
	nextHandMsg   struct{}
	forceStartMsg struct{}
	visibilityMsg struct{ mode engine.Visibility }
	summaryMsg    struct{ reply chan protocol.GameSummary }
	stopMsg       struct{}
)

func (joinMsg) isRoomMsg()       {}
func (reconnectMsg) isRoomMsg()  {}
func (leaveMsg) isRoomMsg()      {}
func (disconnectMsg) isRoomMsg() {}
func (readyMsg) isRoomMsg()      {}
func (actionMsg) isRoomMsg()     {}
func (chatMsg) isRoomMsg()       {}
func (revealMsg) isRoomMsg()     {}
func (timeoutMsg) isRoomMsg()    {}
func (warnMsg) isRoomMsg()       {}
func (nextHandMsg) isRoomMsg()   {}
func (forceStartMsg) isRoomMsg() {}
func (visibilityMsg) isRoomMsg() {}
func (summaryMsg) isRoomMsg()    {}
func (stopMsg) isRoomMsg()       {}

// NewActiveGame creates a room and starts its executor goroutine.
func NewActiveGame(opts GameOptions, deps Deps) *ActiveGame {
	state := engine.NewState(engine.RoomConfig{
		GameID:        opts.ID,
		GameName:      opts.Name,
		GameType:      opts.GameType,
		SmallBlind:    opts.SmallBlind,
		BigBlind:      opts.BigBlind,
		MaxPlayers:    opts.MaxPlayers,
		StartingStack: opts.StartingStack,
	})
	return startGame(state, StatusWaiting, opts, deps)
}

// RestoreActiveGame resumes a room from its crash-recovery snapshot.
// Every seat starts disconnected; the action timer restarts so the
// active player gets a fresh clock.
func RestoreActiveGame(state *engine.State, opts GameOptions, deps Deps) *ActiveGame {
	for _, p := range state.Players {
		p.Connected = false
	}
	status := StatusWaiting
	if state.HandInProgress || state.HandNumber > 0 {
		status = StatusActive
	}
	return startGame(state, status, opts, deps)
}

func startGame(state *engine.State, status GameStatus, opts GameOptions, deps Deps) *ActiveGame {
	g := &ActiveGame{
		id:         opts.ID,
		opts:       opts,
		logger:     deps.Logger.WithPrefix("room." + opts.Name),
		clock:      deps.Clock,
		rng:        deps.RNG,
		sessions:   deps.Sessions,
		db:         deps.Store,
		snapshots:  deps.Snapshots,
		replayDir:  deps.ReplayDir,
		inbox:      make(chan roomMsg, 256),
		done:       make(chan struct{}),
		status:     status,
		state:      state,
		visibility: opts.Visibility,
	}
	g.recorder = replay.NewRecorder(deps.Clock, replay.GameConfig{
		GameID:        opts.ID,
		GameName:      opts.Name,
		GameType:      opts.GameType,
		SmallBlind:    opts.SmallBlind,
		BigBlind:      opts.BigBlind,
		MaxPlayers:    opts.MaxPlayers,
		StartingStack: opts.StartingStack,
	})
	go g.run()
	return g
}

// ID returns the room id.
func (g *ActiveGame) ID() string { return g.id }

func (g *ActiveGame) post(m roomMsg) {
	select {
	case g.inbox <- m:
	case <-g.done:
	}
}

// Join seats a player or spectator.
func (g *ActiveGame) Join(playerID, displayName string, role engine.Role) {
	g.post(joinMsg{playerID: playerID, displayName: displayName, role: role})
}

// Reconnect marks a returning player connected again. The caller ships
// the room snapshot inside the identified payload.
func (g *ActiveGame) Reconnect(playerID string) { g.post(reconnectMsg{playerID: playerID}) }

// Leave removes a seat deliberately.
func (g *ActiveGame) Leave(playerID string) { g.post(leaveMsg{playerID: playerID}) }

// Disconnect handles a dropped socket: players stay seated and the
// clock folds them on turn; spectators are removed immediately.
func (g *ActiveGame) Disconnect(playerID string) { g.post(disconnectMsg{playerID: playerID}) }

// Ready marks a player ready and may auto-start the first hand.
func (g *ActiveGame) Ready(playerID string) { g.post(readyMsg{playerID: playerID}) }

// SubmitAction feeds one betting action into the room.
func (g *ActiveGame) SubmitAction(playerID string, handNumber int, action engine.ActionType, amount int) {
	g.post(actionMsg{playerID: playerID, handNumber: handNumber, action: action, amount: amount})
}

// Chat broadcasts a chat line to the room.
func (g *ActiveGame) Chat(playerID, message string) {
	g.post(chatMsg{playerID: playerID, message: message})
}

// Reveal shows a player's hole cards after showdown.
func (g *ActiveGame) Reveal(playerID string, handNumber int) {
	g.post(revealMsg{playerID: playerID, handNumber: handNumber})
}

// ForceStart begins a hand regardless of ready flags.
func (g *ActiveGame) ForceStart() { g.post(forceStartMsg{}) }

// SetVisibility changes the spectator hole-card policy for subsequent
// broadcasts.
func (g *ActiveGame) SetVisibility(mode engine.Visibility) { g.post(visibilityMsg{mode: mode}) }

// Summary returns the lobby row for this room.
func (g *ActiveGame) Summary() protocol.GameSummary {
	reply := make(chan protocol.GameSummary, 1)
	g.post(summaryMsg{reply: reply})
	select {
	case s := <-reply:
		return s
	case <-g.done:
		return protocol.GameSummary{GameID: g.id, Status: string(StatusCompleted)}
	}
}

// Stop terminates the executor. Pending timers are cancelled.
func (g *ActiveGame) Stop() {
	g.post(stopMsg{})
	<-g.done
}

func (g *ActiveGame) run() {
	metrics.RoomsActive.Inc()
	defer func() {
		g.cancelActionTimer()
		g.cancelRotateTimer()
		metrics.RoomsActive.Dec()
		close(g.done)
	}()

	// A restored in-progress hand restarts the clock for the player
	// who was on it. A room restored between hands lost its rotation
	// timer, so reschedule it.
	if g.state.HandInProgress && g.state.ActivePlayerID != "" {
		g.armActionTimer()
	} else if g.status == StatusActive && !g.state.HandInProgress {
		g.scheduleNextHand()
	}

	for m := range g.inbox {
		switch m := m.(type) {
		case joinMsg:
			g.handleJoin(m)
		case reconnectMsg:
			g.handleReconnect(m)
		case leaveMsg:
			g.handleLeave(m.playerID, true)
		case disconnectMsg:
			g.handleDisconnect(m)
		case readyMsg:
			g.handleReady(m)
		case actionMsg:
			g.handleAction(m)
		case chatMsg:
			g.handleChat(m)
		case revealMsg:
			g.handleReveal(m)
		case timeoutMsg:
			g.handleTimeout(m)
		case warnMsg:
			g.handleWarn(m)
		case nextHandMsg:
			g.handleNextHand()
		case forceStartMsg:
			g.startHand()
		case visibilityMsg:
			g.visibility = m.mode
		case summaryMsg:
			m.reply <- g.summaryLocked()
		case snapshotMsg:
			if g.state.PlayerByID(m.playerID) == nil {
				m.reply <- roomSnapshot{}
			} else {
				m.reply <- roomSnapshot{payload: g.joinedPayload(m.playerID), ok: true}
			}
		case stopMsg:
			return
		}
	}
}

func (g *ActiveGame) summaryLocked() protocol.GameSummary {
	return protocol.GameSummary{
		GameID:      g.id,
		GameName:    g.state.GameName,
		GameType:    g.state.GameType,
		Status:      string(g.status),
		PlayerCount: len(g.state.SeatedPlayers()),
		MaxPlayers:  g.state.MaxPlayers,
		SmallBlind:  g.state.SmallBlind,
		BigBlind:    g.state.BigBlind,
	}
}

func (g *ActiveGame) sendError(playerID string, err error) {
	g.sessions.Send(playerID, protocol.ActionError, protocol.ErrorFrom(err))
}

func (g *ActiveGame) handleJoin(m joinMsg) {
	if g.status == StatusCompleted {
		g.sendError(m.playerID, &engine.Error{Code: protocol.CodeGameNotFound, Message: "game is over"})
		return
	}
	ts, err := engine.Seat(g.state, m.playerID, m.displayName, m.role)
	if err != nil {
		g.sendError(m.playerID, err)
		return
	}
	g.sessions.SetGameID(m.playerID, g.id)
	if err := g.db.SetPlayerGame(m.playerID, g.id); err != nil {
		g.logger.Error("persist seat assignment", "playerId", m.playerID, "error", err)
	}
	g.applyTransitions(ts)

	// The joiner additionally gets the full snapshot, with the
	// in-progress hand's events so a spectator UI can catch up.
	g.sessions.Send(m.playerID, protocol.ActionGameJoined, g.joinedPayload(m.playerID))
}

func (g *ActiveGame) joinedPayload(playerID string) protocol.GameJoinedPayload {
	return protocol.GameJoinedPayload{
		GameState:  engine.ToClientGameState(g.state, playerID, g.visibility),
		HandEvents: g.state.HandEvents,
	}
}

type roomSnapshot struct {
	payload protocol.GameJoinedPayload
	ok      bool
}

type snapshotMsg struct {
	playerID string
	reply    chan roomSnapshot
}

func (snapshotMsg) isRoomMsg() {}

// ClientSnapshot builds the identify-time currentGame payload, or nil
// if the player is not in this room.
func (g *ActiveGame) ClientSnapshot(playerID string) *protocol.GameJoinedPayload {
	ch := make(chan roomSnapshot, 1)
	g.post(snapshotMsg{playerID: playerID, reply: ch})
	select {
	case s := <-ch:
		if !s.ok {
			return nil
		}
		out := s.payload
		return &out
	case <-g.done:
		return nil
	}
}

func (g *ActiveGame) handleReconnect(m reconnectMsg) {
	if g.state.PlayerByID(m.playerID) == nil {
		return
	}
	g.state.SetConnected(m.playerID, true)
	g.enqueueSnapshot()
}

func (g *ActiveGame) handleLeave(playerID string, deliberate bool) {
	p := g.state.PlayerByID(playerID)
	if p == nil {
		if deliberate {
			g.sendError(playerID, &engine.Error{Code: protocol.CodeNotInGame, Message: "not in this game"})
		}
		return
	}

	// A player leaving mid-hand folds first so the hand can progress
	// and pot eligibility stays consistent.
	if p.Role == engine.RolePlayer && g.state.HandInProgress && p.InHand() {
		wasActive := g.state.ActivePlayerID == playerID
		if wasActive {
			g.cancelActionTimer()
		}
		ts, err := engine.ForceFold(g.state, playerID)
		if err != nil {
			g.logger.Error("fold on leave", "playerId", playerID, "error", err)
		} else {
			g.applyTransitions(ts)
		}
	}

	ts, err := engine.Unseat(g.state, playerID)
	if err != nil {
		g.logger.Error("unseat", "playerId", playerID, "error", err)
		return
	}
	g.applyTransitions(ts)
	g.sessions.SetGameID(playerID, "")
	if err := g.db.SetPlayerGame(playerID, ""); err != nil {
		g.logger.Error("clear seat assignment", "playerId", playerID, "error", err)
	}
}

func (g *ActiveGame) handleDisconnect(m disconnectMsg) {
	p := g.state.PlayerByID(m.playerID)
	if p == nil {
		return
	}
	if p.Role == engine.RoleSpectator {
		// Spectators leave no residue.
		g.handleLeave(m.playerID, false)
		return
	}
	g.state.SetConnected(m.playerID, false)
	g.enqueueSnapshot()
}

func (g *ActiveGame) handleReady(m readyMsg) {
	if g.state.PlayerByID(m.playerID) == nil {
		g.sendError(m.playerID, &engine.Error{Code: protocol.CodeNotInGame, Message: "not in this game"})
		return
	}
	g.state.SetReady(m.playerID, true)
	g.enqueueSnapshot()

	if g.status != StatusWaiting {
		return
	}
	ready := 0
	for _, p := range g.state.SeatedPlayers() {
		if p.IsReady && p.Stack > 0 {
			ready++
		}
	}
	if ready >= max(2, g.opts.MinReady) {
		g.startHand()
	}
}

func (g *ActiveGame) startHand() {
	if g.status == StatusCompleted || g.state.HandInProgress {
		return
	}
	ts, err := engine.StartHand(g.state, g.rng)
	if err != nil {
		g.logger.Warn("cannot start hand", "error", err)
		return
	}
	if g.status != StatusActive {
		g.status = StatusActive
		if err := g.db.SetGameStatus(g.id, string(StatusActive)); err != nil {
			g.logger.Error("persist game status", "error", err)
		}
	}
	g.applyTransitions(ts)
}

func (g *ActiveGame) handleAction(m actionMsg) {
	if m.handNumber != g.state.HandNumber {
		g.sendError(m.playerID, &engine.Error{
			Code:    protocol.CodeInvalidAction,
			Message: "action for a stale hand",
		})
		return
	}
	ts, err := engine.ProcessAction(g.state, m.playerID, m.action, m.amount)
	if err != nil {
		g.sendError(m.playerID, err)
		return
	}
	g.cancelActionTimer()
	metrics.ActionsProcessed.WithLabelValues(string(m.action)).Inc()
	g.applyTransitions(ts)
}

func (g *ActiveGame) handleChat(m chatMsg) {
	sender := g.state.PlayerByID(m.playerID)
	if sender == nil {
		g.sendError(m.playerID, &engine.Error{Code: protocol.CodeNotInGame, Message: "not in this game"})
		return
	}
	payload := protocol.ChatMessagePayload{
		PlayerID:    sender.ID,
		DisplayName: sender.DisplayName,
		Message:     m.message,
		Timestamp:   g.clock.Now().UnixMilli(),
		Role:        sender.Role,
	}
	g.recorder.RecordChat(payload)
	for _, p := range g.state.Players {
		g.sessions.Send(p.ID, protocol.ActionChatMessage, payload)
	}
}

func (g *ActiveGame) handleReveal(m revealMsg) {
	if m.handNumber != g.state.HandNumber {
		return
	}
	if g.state.HandInProgress && g.state.Stage != engine.StageShowdown {
		g.sendError(m.playerID, &engine.Error{
			Code:    protocol.CodeInvalidAction,
			Message: "cards can be revealed only after showdown",
		})
		return
	}
	p := g.state.PlayerByID(m.playerID)
	if p == nil || len(p.HoleCards) != 2 {
		return
	}
	ev := engine.NewPlayerRevealedEvent(m.playerID, p.HoleCards)
	g.appendHandEvent(ev)
	g.recorder.RecordEvent(ev, g.state)
	g.broadcastEvent(ev, g.state, false)
}

func (g *ActiveGame) handleWarn(m warnMsg) {
	if m.gen != g.timerGen || g.state.ActivePlayerID == "" {
		return
	}
	g.sessions.Send(g.state.ActivePlayerID, protocol.ActionTimeWarning, protocol.TimeWarningPayload{
		RemainingMs: m.remaining.Milliseconds(),
	})
}

func (g *ActiveGame) handleTimeout(m timeoutMsg) {
	if m.gen != g.timerGen || g.state.ActivePlayerID == "" {
		return
	}
	playerID := g.state.ActivePlayerID
	def := engine.DefaultAction(g.state, playerID)

	ts, err := engine.ProcessAction(g.state, playerID, def.Type, 0)
	if err != nil {
		g.logger.Error("default action rejected", "playerId", playerID, "error", err)
		return
	}
	g.cancelActionTimer()
	metrics.ActionTimeouts.Inc()
	g.applyTransitions(ts)

	ev := engine.NewPlayerTimeoutEvent(playerID, def)
	g.appendHandEvent(ev)
	g.recorder.RecordEvent(ev, g.state)
	g.broadcastEvent(ev, g.state, false)
}

// appendHandEvent adds an executor-originated event (timeout, reveal)
// to the hand's event log so late joiners and reconnects catch up on
// the same stream the replay records.
func (g *ActiveGame) appendHandEvent(ev engine.Event) {
	g.state.HandEvents = append(g.state.HandEvents, ev)
	g.enqueueSnapshot()
}

func (g *ActiveGame) handleNextHand() {
	g.rotateTimer = nil
	if g.status == StatusCompleted {
		return
	}
	stacked := 0
	for _, p := range g.state.SeatedPlayers() {
		if p.Stack > 0 {
			stacked++
		}
	}
	if stacked >= 2 {
		g.startHand()
		return
	}
	g.finishGame("not enough players with chips")
}

func (g *ActiveGame) finishGame(reason string) {
	g.status = StatusCompleted
	g.cancelActionTimer()

	players := g.state.SeatedPlayers()
	sort.Slice(players, func(i, j int) bool { return players[i].Stack > players[j].Stack })
	standings := make([]protocol.Standing, len(players))
	for i, p := range players {
		standings[i] = protocol.Standing{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Stack:       p.Stack,
			Rank:        i + 1,
		}
	}
	payload := protocol.GameOverPayload{GameID: g.id, Reason: reason, Standings: standings}
	for _, p := range g.state.Players {
		g.sessions.Send(p.ID, protocol.ActionGameOver, payload)
	}

	if err := g.recorder.Build().Save(g.replayDir); err != nil {
		g.logger.Error("save replay", "error", err)
	}
	if err := g.db.SetGameStatus(g.id, string(StatusCompleted)); err != nil {
		g.logger.Error("persist game status", "error", err)
	}
	if err := g.db.DeleteSnapshot(g.id); err != nil {
		g.logger.Error("delete snapshot", "error", err)
	}
}

// applyTransitions records, persists and broadcasts each transition in
// order, then reconciles timers against the final state.
func (g *ActiveGame) applyTransitions(ts []engine.Transition) {
	if len(ts) == 0 {
		return
	}
	prevActive := g.state.ActivePlayerID
	prevStage := g.state.Stage
	prevHand := g.state.HandNumber
	var handEnd *engine.HandEndEvent
	for _, tr := range ts {
		g.recorder.RecordEvent(tr.Event, tr.State)
		g.broadcastEvent(tr.Event, tr.State, true)
		if ev, ok := tr.Event.(*engine.HandEndEvent); ok {
			handEnd = ev
		}
	}
	g.state = ts[len(ts)-1].State

	if err := engine.CheckInvariants(g.state); err != nil {
		g.roomFatal(err)
		return
	}
	g.enqueueSnapshot()

	if handEnd != nil {
		g.cancelActionTimer()
		g.recordHandHistory(handEnd)
		metrics.HandsCompleted.WithLabelValues(g.id).Inc()
		g.scheduleNextHand()
		return
	}
	// Transitions that leave the turn where it was (a join, a non-active
	// player's leave) must not reset the active player's clock. A new
	// decision point (different player, new street, new hand) gets a
	// fresh one.
	switch {
	case g.state.ActivePlayerID == "":
		g.cancelActionTimer()
	case g.state.ActivePlayerID != prevActive,
		g.state.Stage != prevStage,
		g.state.HandNumber != prevHand:
		g.armActionTimer()
	}
}

// roomFatal handles an engine invariant violation: dump the state,
// abort the hand with refunds, and keep the room alive.
func (g *ActiveGame) roomFatal(err error) {
	g.logger.Error("engine invariant violated, aborting hand",
		"error", err,
		"state", litter.Sdump(g.state))
	g.cancelActionTimer()

	ts := engine.AbortHand(g.state)
	for _, tr := range ts {
		g.recorder.RecordEvent(tr.Event, tr.State)
		g.broadcastEvent(tr.Event, tr.State, false)
	}
	g.state = ts[len(ts)-1].State
	g.enqueueSnapshot()
	g.scheduleNextHand()
}

func (g *ActiveGame) recordHandHistory(handEnd *engine.HandEndEvent) {
	events, err := json.Marshal(g.state.HandEvents)
	if err != nil {
		g.logger.Error("marshal hand events", "error", err)
		return
	}
	winners, err := json.Marshal(handEnd.Winners)
	if err != nil {
		g.logger.Error("marshal winners", "error", err)
		return
	}
	if err := g.db.RecordHand(store.HandRecord{
		GameID:     g.id,
		HandNumber: g.state.HandNumber,
		Events:     events,
		Winners:    winners,
	}); err != nil {
		g.logger.Error("record hand history", "error", err)
	}
}

func (g *ActiveGame) scheduleNextHand() {
	g.cancelRotateTimer()
	g.rotateTimer = g.clock.AfterFunc(g.opts.HandDelay, func() {
		g.post(nextHandMsg{})
	})
}

// broadcastEvent fans one (event, state) pair out to every session in
// the room, each with its own projection. The action request rides
// only on engine transitions, never on join or informational events,
// so clients get exactly one prompt per turn.
func (g *ActiveGame) broadcastEvent(ev engine.Event, state *engine.State, allowActionRequest bool) {
	withRequest := allowActionRequest && ev.EventType() != engine.EventPlayerJoined
	for _, p := range state.Players {
		payload := protocol.GameStatePayload{
			GameState: engine.ToClientGameState(state, p.ID, g.visibility),
			Event:     ev,
		}
		if withRequest && state.ActivePlayerID == p.ID {
			payload.ActionRequest = &protocol.ActionRequest{
				ValidActions: engine.LegalActions(state, p.ID),
				TimeToActMs:  g.opts.ActionTimeout.Milliseconds(),
			}
		}
		g.sessions.Send(p.ID, protocol.ActionGameState, payload)
	}
}

func (g *ActiveGame) enqueueSnapshot() {
	data, err := json.Marshal(g.state)
	if err != nil {
		g.logger.Error("marshal snapshot", "error", err)
		return
	}
	g.snapshots.Enqueue(g.id, data)
}

func (g *ActiveGame) armActionTimer() {
	g.cancelActionTimer()
	g.timerGen++
	gen := g.timerGen

	for _, warn := range timeWarnings {
		if g.opts.ActionTimeout <= warn {
			continue
		}
		remaining := warn
		t := g.clock.AfterFunc(g.opts.ActionTimeout-warn, func() {
			g.post(warnMsg{gen: gen, remaining: remaining})
		})
		g.warnTimers = append(g.warnTimers, t)
	}
	g.actionTimer = g.clock.AfterFunc(g.opts.ActionTimeout, func() {
		g.post(timeoutMsg{gen: gen})
	})
}

func (g *ActiveGame) cancelActionTimer() {
	g.timerGen++
	if g.actionTimer != nil {
		g.actionTimer.Stop()
		g.actionTimer = nil
	}
	for _, t := range g.warnTimers {
		t.Stop()
	}
	g.warnTimers = nil
}

func (g *ActiveGame) cancelRotateTimer() {
	if g.rotateTimer != nil {
		g.rotateTimer.Stop()
		g.rotateTimer = nil
	}
}
