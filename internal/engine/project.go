package engine

import "github.com/cardroomlabs/cardroom/internal/deck"

// ClientPlayer is the redacted per-player view sent to clients.
type ClientPlayer struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	SeatIndex   int         `json:"seatIndex"`
	Role        Role        `json:"role"`
	Stack       int         `json:"stack"`
	Bet         int         `json:"bet"`
	Folded      bool        `json:"folded"`
	HoleCards   []deck.Card `json:"holeCards,omitempty"`
	Connected   bool        `json:"connected"`
	IsAllIn     bool        `json:"isAllIn"`
	IsReady     bool        `json:"isReady"`
}

// ClientGameState is the full redacted room view for one viewer. The
// deck never appears; hole cards appear per the viewer's entitlement.
type ClientGameState struct {
	GameID          string          `json:"gameId"`
	GameName        string          `json:"gameName"`
	GameType        GameType        `json:"gameType"`
	HandNumber      int             `json:"handNumber"`
	Stage           Stage           `json:"stage"`
	HandInProgress  bool            `json:"handInProgress"`
	CommunityCards  []deck.Card     `json:"communityCards"`
	Pot             int             `json:"pot"`
	Pots            []Pot           `json:"pots"`
	Players         []ClientPlayer  `json:"players"`
	DealerSeatIndex int             `json:"dealerSeatIndex"`
	CurrentBet      int             `json:"currentBet"`
	ActivePlayerID  string          `json:"activePlayerId"`
	SmallBlind      int             `json:"smallBlindAmount"`
	BigBlind        int             `json:"bigBlindAmount"`
	MaxPlayers      int             `json:"maxPlayers"`
	YourCards       []deck.Card     `json:"yourCards,omitempty"`
	ValidActions    []ValidAction   `json:"validActions,omitempty"`
}

// ToClientGameState projects the state for one viewer. Viewers always
// see their own hole cards; other players' cards show only at showdown
// or between hands, except spectators under immediate visibility who
// see every card live.
func ToClientGameState(s *State, viewerID string, visibility Visibility) ClientGameState {
	viewer := s.PlayerByID(viewerID)
	spectating := viewer != nil && viewer.Role == RoleSpectator

	showAll := s.Stage == StageShowdown || !s.HandInProgress
	if spectating && visibility == VisibilityImmediate {
		showAll = true
	}

	return Project(s, viewerID, func(p *Player) bool {
		return p.ID == viewerID || showAll
	})
}

// Project builds a client view with an explicit hole-card entitlement
// predicate. Replay playback uses this to force cards visible.
func Project(s *State, viewerID string, showHole func(*Player) bool) ClientGameState {
	out := ClientGameState{
		GameID:          s.GameID,
		GameName:        s.GameName,
		GameType:        s.GameType,
		HandNumber:      s.HandNumber,
		Stage:           s.Stage,
		HandInProgress:  s.HandInProgress,
		CommunityCards:  append([]deck.Card(nil), s.CommunityCards...),
		Pot:             s.Pot,
		Pots:            clonePots(s.Pots),
		DealerSeatIndex: s.DealerSeatIndex,
		CurrentBet:      s.CurrentBet,
		ActivePlayerID:  s.ActivePlayerID,
		SmallBlind:      s.SmallBlind,
		BigBlind:        s.BigBlind,
		MaxPlayers:      s.MaxPlayers,
	}

	players := make([]*Player, len(s.Players))
	copy(players, s.Players)
	sortPlayersBySeat(players)
	for _, p := range players {
		cp := ClientPlayer{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			SeatIndex:   p.SeatIndex,
			Role:        p.Role,
			Stack:       p.Stack,
			Bet:         p.Bet,
			Folded:      p.Folded,
			Connected:   p.Connected,
			IsAllIn:     p.IsAllIn,
			IsReady:     p.IsReady,
		}
		if len(p.HoleCards) > 0 && showHole(p) {
			cp.HoleCards = append([]deck.Card(nil), p.HoleCards...)
		}
		out.Players = append(out.Players, cp)
	}

	if viewer := s.PlayerByID(viewerID); viewer != nil {
		out.YourCards = append([]deck.Card(nil), viewer.HoleCards...)
		if s.ActivePlayerID == viewerID {
			out.ValidActions = LegalActions(s, viewerID)
		}
	}
	return out
}

func clonePots(pots []Pot) []Pot {
	out := make([]Pot, len(pots))
	for i, p := range pots {
		out[i] = Pot{Amount: p.Amount, Eligible: append([]string(nil), p.Eligible...)}
	}
	return out
}
