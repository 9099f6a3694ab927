package engine

import (
	"github.com/cardroomlabs/cardroom/internal/deck"
)

// Role distinguishes seated players from watchers.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Stage is the current phase of a hand.
type Stage string

const (
	StagePreFlop  Stage = "PRE_FLOP"
	StageFlop     Stage = "FLOP"
	StageTurn     Stage = "TURN"
	StageRiver    Stage = "RIVER"
	StageShowdown Stage = "SHOWDOWN"
)

// ActionType is a betting action.
type ActionType string

const (
	ActionFold  ActionType = "FOLD"
	ActionCheck ActionType = "CHECK"
	ActionCall  ActionType = "CALL"
	ActionBet   ActionType = "BET"
	ActionRaise ActionType = "RAISE"
	ActionAllIn ActionType = "ALL_IN"
)

// GameType of a room. Tournament scheduling is not implemented; the
// value is carried so rooms and replays stay forward compatible.
type GameType string

const (
	GameTypeCash       GameType = "cash"
	GameTypeTournament GameType = "tournament"
)

// Visibility controls when spectators see other players' hole cards.
type Visibility string

const (
	VisibilityImmediate Visibility = "immediate"
	VisibilityDelayed   Visibility = "delayed"
	VisibilityShowdown  Visibility = "showdown"
)

// Player is one seat (real or synthetic spectator seat) in the engine state.
type Player struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	SeatIndex   int         `json:"seatIndex"`
	Role        Role        `json:"role"`
	Stack       int         `json:"stack"`
	Bet         int         `json:"bet"`
	PotShare    int         `json:"potShare"`
	Folded      bool        `json:"folded"`
	HoleCards   []deck.Card `json:"holeCards,omitempty"`
	Connected   bool        `json:"connected"`
	IsAllIn     bool        `json:"isAllIn"`
	IsReady     bool        `json:"isReady"`
}

// CanAct reports whether the player can take a betting action.
func (p *Player) CanAct() bool {
	return p.Role == RolePlayer && !p.Folded && !p.IsAllIn
}

// Pot is one tier of the pot breakdown, main pot first.
type Pot struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
}

// State is the complete runtime state of one room. All engine
// operations treat it as immutable and return cloned successors.
type State struct {
	GameID   string   `json:"gameId"`
	GameName string   `json:"gameName"`
	GameType GameType `json:"gameType"`

	HandNumber     int   `json:"handNumber"`
	Stage          Stage `json:"stage"`
	HandInProgress bool  `json:"handInProgress"`

	Deck           []deck.Card `json:"deck"`
	CommunityCards []deck.Card `json:"communityCards"`

	Pot  int   `json:"pot"`
	Pots []Pot `json:"pots"`

	// DeadMoney is chips committed by players who left mid-hand. It is
	// part of Pot and folds into the main pot tier.
	DeadMoney int `json:"deadMoney,omitempty"`

	Players         []*Player `json:"players"`
	DealerSeatIndex int       `json:"dealerSeatIndex"`

	CurrentBet     int             `json:"currentBet"`
	LastRaiseSize  int             `json:"lastRaiseSize"`
	ActedThisRound map[string]bool `json:"actedThisRound"`
	ActivePlayerID string          `json:"activePlayerId"`

	SmallBlind    int `json:"smallBlindAmount"`
	BigBlind      int `json:"bigBlindAmount"`
	MaxPlayers    int `json:"maxPlayers"`
	StartingStack int `json:"startingStack"`

	HandEvents EventList `json:"handEvents"`
}

// RoomConfig is the static configuration a state is created from.
type RoomConfig struct {
	GameID        string
	GameName      string
	GameType      GameType
	SmallBlind    int
	BigBlind      int
	MaxPlayers    int
	StartingStack int
}

// NewState creates an empty state for a room. DealerSeatIndex starts
// at -1 so the first hand's button lands on the lowest eligible seat.
func NewState(cfg RoomConfig) *State {
	return &State{
		GameID:          cfg.GameID,
		GameName:        cfg.GameName,
		GameType:        cfg.GameType,
		Stage:           StagePreFlop,
		DealerSeatIndex: -1,
		ActedThisRound:  make(map[string]bool),
		SmallBlind:      cfg.SmallBlind,
		BigBlind:        cfg.BigBlind,
		MaxPlayers:      cfg.MaxPlayers,
		StartingStack:   cfg.StartingStack,
	}
}

// Clone deep-copies the state. Downstream consumers (broadcasts, the
// replay recorder) retain references indefinitely, so every field a
// caller could mutate is copied.
func (s *State) Clone() *State {
	out := *s

	out.Deck = append([]deck.Card(nil), s.Deck...)
	out.CommunityCards = append([]deck.Card(nil), s.CommunityCards...)

	out.Pots = make([]Pot, len(s.Pots))
	for i, p := range s.Pots {
		out.Pots[i] = Pot{Amount: p.Amount, Eligible: append([]string(nil), p.Eligible...)}
	}

	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		cp.HoleCards = append([]deck.Card(nil), p.HoleCards...)
		out.Players[i] = &cp
	}

	out.ActedThisRound = make(map[string]bool, len(s.ActedThisRound))
	for k, v := range s.ActedThisRound {
		out.ActedThisRound[k] = v
	}

	// Events are immutable once emitted; copying the slice header's
	// backing array is enough.
	out.HandEvents = append(EventList(nil), s.HandEvents...)

	return &out
}

// PlayerByID returns the player with the given id, or nil.
func (s *State) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerBySeat returns the player at the given seat index, or nil.
func (s *State) PlayerBySeat(seat int) *Player {
	for _, p := range s.Players {
		if p.SeatIndex == seat {
			return p
		}
	}
	return nil
}

// SeatedPlayers returns role=player entries ordered by seat index.
func (s *State) SeatedPlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Role == RolePlayer {
			out = append(out, p)
		}
	}
	sortPlayersBySeat(out)
	return out
}

// Spectators returns role=spectator entries ordered by seat index.
func (s *State) Spectators() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Role == RoleSpectator {
			out = append(out, p)
		}
	}
	sortPlayersBySeat(out)
	return out
}

func sortPlayersBySeat(players []*Player) {
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j-1].SeatIndex > players[j].SeatIndex; j-- {
			players[j-1], players[j] = players[j], players[j-1]
		}
	}
}

// nextSeatWhere walks seats clockwise starting strictly after the
// given seat index and returns the first seated player matching the
// predicate, or nil if none match.
func (s *State) nextSeatWhere(after int, match func(*Player) bool) *Player {
	seated := s.SeatedPlayers()
	if len(seated) == 0 {
		return nil
	}
	for offset := 1; offset <= s.MaxPlayers; offset++ {
		seat := (after + offset) % s.MaxPlayers
		if seat < 0 {
			seat += s.MaxPlayers
		}
		for _, p := range seated {
			if p.SeatIndex == seat && match(p) {
				return p
			}
		}
	}
	return nil
}

// countWhere counts seated players matching the predicate.
func (s *State) countWhere(match func(*Player) bool) int {
	n := 0
	for _, p := range s.Players {
		if p.Role == RolePlayer && match(p) {
			n++
		}
	}
	return n
}

// InHand reports whether the player was dealt into the current hand
// and has not folded.
func (p *Player) InHand() bool {
	return p.Role == RolePlayer && !p.Folded && len(p.HoleCards) == 2
}

// SetReady marks a player's ready flag. Used outside hand transitions.
func (s *State) SetReady(playerID string, ready bool) {
	if p := s.PlayerByID(playerID); p != nil {
		p.IsReady = ready
	}
}

// SetConnected marks a player's connection flag.
func (s *State) SetConnected(playerID string, connected bool) {
	if p := s.PlayerByID(playerID); p != nil {
		p.Connected = connected
	}
}

// recomputePots refreshes the pot total and tiered breakdown from the
// players' cumulative contributions plus any dead money.
func (s *State) recomputePots() {
	total := s.DeadMoney
	for _, p := range s.Players {
		total += p.PotShare
	}
	s.Pot = total
	s.Pots = CalculatePots(s.Players)
	if s.DeadMoney > 0 {
		if len(s.Pots) == 0 {
			s.Pots = []Pot{{Amount: s.DeadMoney}}
		} else {
			s.Pots[0].Amount += s.DeadMoney
		}
	}
}
