// Package engine implements the Texas Hold'em hand state machine as a
// pure transition function: every operation maps a state and an input
// to a sequence of (successor state, event) pairs without mutating its
// arguments. Callers broadcast each transition's event paired with the
// state as of that event, and may retain either indefinitely.
package engine

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/cardroomlabs/cardroom/internal/deck"
)

// Transition pairs one emitted event with the state as of that event.
type Transition struct {
	State *State
	Event Event
}

func emit(work *State, ts *[]Transition, ev Event) {
	work.HandEvents = append(work.HandEvents, ev)
	*ts = append(*ts, Transition{State: work.Clone(), Event: ev})
}

func stacked(p *Player) bool { return p.Role == RolePlayer && p.Stack > 0 }

func canAct(p *Player) bool { return p.CanAct() }

// StartHand begins a new hand: advances the button, resets hand-level
// state, posts blinds, deals hole cards and determines first to act.
// Fails unless at least two seated players have chips.
func StartHand(s *State, rng *rand.Rand, opts ...HandOption) ([]Transition, error) {
	var cfg handConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if s.countWhere(func(p *Player) bool { return p.Stack > 0 }) < 2 {
		return nil, newError(CodeInvalidAction, "need at least two players with chips")
	}

	work := s.Clone()

	dealer := work.nextSeatWhere(work.DealerSeatIndex, stacked)
	work.DealerSeatIndex = dealer.SeatIndex

	work.HandNumber++
	work.HandInProgress = true
	work.Stage = StagePreFlop
	work.CommunityCards = []deck.Card{}
	work.Pot = 0
	work.Pots = nil
	work.DeadMoney = 0
	work.CurrentBet = 0
	work.LastRaiseSize = 0
	work.ActedThisRound = make(map[string]bool)
	work.ActivePlayerID = ""
	work.HandEvents = nil
	if cfg.deckOverride != nil {
		work.Deck = cfg.deckOverride
	} else {
		work.Deck = deck.Shuffle(deck.New(), rng)
	}
	for _, p := range work.Players {
		p.Bet = 0
		p.PotShare = 0
		p.HoleCards = nil
		p.IsAllIn = false
		// Busted players sit the hand out.
		p.Folded = p.Role == RolePlayer && p.Stack == 0
	}

	var ts []Transition
	emit(work, &ts, NewHandStartEvent(work.HandNumber, work.DealerSeatIndex))

	// Heads-up the dealer posts the small blind; otherwise blinds go
	// to the two seats after the button.
	headsUp := work.countWhere(stacked) == 2
	var sb, bb *Player
	if headsUp {
		sb = work.PlayerBySeat(work.DealerSeatIndex)
		bb = work.nextSeatWhere(work.DealerSeatIndex, stacked)
	} else {
		sb = work.nextSeatWhere(work.DealerSeatIndex, stacked)
		bb = work.nextSeatWhere(sb.SeatIndex, stacked)
	}
	sbPaid := post(sb, work.SmallBlind)
	bbPaid := post(bb, work.BigBlind)
	work.CurrentBet = work.BigBlind
	work.LastRaiseSize = work.BigBlind
	work.recomputePots()
	emit(work, &ts, NewBlindsPostedEvent(
		BlindPost{PlayerID: sb.ID, Amount: sbPaid},
		BlindPost{PlayerID: bb.ID, Amount: bbPaid},
	))

	// Two hole cards per live player, in seat order after the button.
	if err := dealHoleCards(work); err != nil {
		return nil, err
	}
	var first *Player
	if headsUp && canAct(work.PlayerBySeat(work.DealerSeatIndex)) {
		first = work.PlayerBySeat(work.DealerSeatIndex)
	} else if headsUp {
		first = work.nextSeatWhere(work.DealerSeatIndex, canAct)
	} else {
		first = work.nextSeatWhere(bb.SeatIndex, canAct)
	}
	if first != nil {
		work.ActivePlayerID = first.ID
	}
	emit(work, &ts, NewDealEvent())

	// Blinds can put everyone all-in; run the board out if so.
	if first == nil {
		if err := advanceStages(work, &ts); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func post(p *Player, blind int) int {
	paid := min(blind, p.Stack)
	p.Stack -= paid
	p.Bet += paid
	p.PotShare += paid
	if p.Stack == 0 {
		p.IsAllIn = true
	}
	return paid
}

func dealHoleCards(work *State) error {
	seated := work.SeatedPlayers()
	start := 0
	for i, p := range seated {
		if p.SeatIndex > work.DealerSeatIndex {
			start = i
			break
		}
	}
	for i := range seated {
		p := seated[(start+i)%len(seated)]
		if p.Folded {
			continue
		}
		cards, rest, err := deck.Deal(work.Deck, 2)
		if err != nil {
			return fmt.Errorf("deal hole cards: %w", err)
		}
		p.HoleCards = cards
		work.Deck = rest
	}
	return nil
}

// ProcessAction applies one validated player action and drives the
// hand forward: rotating the active player, sweeping completed betting
// rounds into the next street, short-circuiting when all but one fold,
// and resolving the showdown. Validation failures return a coded error
// and no transitions; the input state is untouched either way.
func ProcessAction(s *State, playerID string, action ActionType, amount int) ([]Transition, error) {
	if err := ValidateAction(s, playerID, action, amount); err != nil {
		return nil, err
	}

	work := s.Clone()
	p := work.PlayerByID(playerID)
	paid := 0

	switch action {
	case ActionFold:
		p.Folded = true

	case ActionCheck:
		// No chips move.

	case ActionCall:
		paid = min(work.CurrentBet-p.Bet, p.Stack)
		pay(p, paid)

	case ActionBet:
		paid = amount
		pay(p, paid)
		work.CurrentBet = p.Bet
		work.LastRaiseSize = amount
		work.ActedThisRound = make(map[string]bool)

	case ActionRaise:
		paid = amount
		pay(p, paid)
		if raise := p.Bet - work.CurrentBet; raise > work.LastRaiseSize {
			work.LastRaiseSize = raise
		}
		work.CurrentBet = p.Bet
		work.ActedThisRound = make(map[string]bool)

	case ActionAllIn:
		paid = p.Stack
		pay(p, paid)
		if p.Bet > work.CurrentBet {
			// An all-in short of a full raise does not reopen the
			// action for players who already called.
			if raise := p.Bet - work.CurrentBet; raise >= work.LastRaiseSize {
				work.LastRaiseSize = raise
				work.ActedThisRound = make(map[string]bool)
			}
			work.CurrentBet = p.Bet
		}
	}

	if p.Stack == 0 && !p.Folded {
		p.IsAllIn = true
	}
	work.ActedThisRound[playerID] = true
	work.recomputePots()

	detail := ActionDetail{Type: action}
	if paid > 0 {
		detail.Amount = paid
	}

	var ts []Transition
	switch {
	case work.countWhere(func(p *Player) bool { return !p.Folded && len(p.HoleCards) == 2 }) == 1:
		work.ActivePlayerID = ""
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
		finishFoldWin(work, &ts)

	case bettingRoundComplete(work):
		work.ActivePlayerID = ""
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
		if err := advanceStages(work, &ts); err != nil {
			return nil, err
		}

	default:
		next := work.nextSeatWhere(p.SeatIndex, canAct)
		work.ActivePlayerID = next.ID
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
	}
	return ts, nil
}

func pay(p *Player, amount int) {
	p.Stack -= amount
	p.Bet += amount
	p.PotShare += amount
}

// bettingRoundComplete reports whether every player who can still act
// has acted since the last aggressive action and matched the bet.
func bettingRoundComplete(work *State) bool {
	for _, p := range work.Players {
		if !p.CanAct() || len(p.HoleCards) != 2 {
			continue
		}
		if !work.ActedThisRound[p.ID] || p.Bet != work.CurrentBet {
			return false
		}
	}
	return true
}

// advanceStages sweeps the finished betting round and deals the next
// street. When fewer than two players can still bet, streets run out
// back to back without pausing for action.
func advanceStages(work *State, ts *[]Transition) error {
	for {
		for _, p := range work.Players {
			p.Bet = 0
		}
		work.CurrentBet = 0
		work.LastRaiseSize = work.BigBlind
		work.ActedThisRound = make(map[string]bool)
		work.ActivePlayerID = ""

		var ev Event
		switch work.Stage {
		case StagePreFlop:
			cards, rest, err := deck.Deal(work.Deck, 3)
			if err != nil {
				return fmt.Errorf("deal flop: %w", err)
			}
			work.Deck = rest
			work.CommunityCards = append(work.CommunityCards, cards...)
			work.Stage = StageFlop
			ev = NewFlopEvent(cards)
		case StageFlop:
			cards, rest, err := deck.Deal(work.Deck, 1)
			if err != nil {
				return fmt.Errorf("deal turn: %w", err)
			}
			work.Deck = rest
			work.CommunityCards = append(work.CommunityCards, cards[0])
			work.Stage = StageTurn
			ev = NewTurnEvent(cards[0])
		case StageTurn:
			cards, rest, err := deck.Deal(work.Deck, 1)
			if err != nil {
				return fmt.Errorf("deal river: %w", err)
			}
			work.Deck = rest
			work.CommunityCards = append(work.CommunityCards, cards[0])
			work.Stage = StageRiver
			ev = NewRiverEvent(cards[0])
		case StageRiver:
			return resolveShowdown(work, ts)
		default:
			return fmt.Errorf("advance from unexpected stage %s", work.Stage)
		}

		if work.countWhere(canAct) >= 2 {
			first := work.nextSeatWhere(work.DealerSeatIndex, canAct)
			work.ActivePlayerID = first.ID
			emit(work, ts, ev)
			return nil
		}
		emit(work, ts, ev)
	}
}

// resolveShowdown evaluates every surviving hand, distributes the pots
// and closes the hand.
func resolveShowdown(work *State, ts *[]Transition) error {
	work.Stage = StageShowdown
	work.ActivePlayerID = ""

	var results []ShowdownResult
	ranks := make(map[string]RankedHand)
	for _, p := range work.SeatedPlayers() {
		if p.Folded || len(p.HoleCards) != 2 {
			continue
		}
		rank, err := Evaluate(p.HoleCards, work.CommunityCards)
		if err != nil {
			return fmt.Errorf("showdown: %w", err)
		}
		ranks[p.ID] = rank
		results = append(results, ShowdownResult{
			PlayerID:        p.ID,
			HoleCards:       p.HoleCards,
			HandRank:        rank.Rank,
			HandDescription: rank.Description,
		})
	}
	emit(work, ts, NewShowdownEvent(results))

	winners := DistributePots(work.Pots, ranks, work)
	creditWinners(work, winners)
	work.HandInProgress = false
	emit(work, ts, NewHandEndEvent(winners))
	return nil
}

// finishFoldWin closes the hand when a single player remains, paying
// them every pot without consulting the evaluator.
func finishFoldWin(work *State, ts *[]Transition) {
	var last *Player
	for _, p := range work.Players {
		if !p.Folded && len(p.HoleCards) == 2 {
			last = p
			break
		}
	}
	winners := AwardAllPots(work.Pots, last.ID)
	creditWinners(work, winners)
	work.HandInProgress = false
	work.ActivePlayerID = ""
	emit(work, ts, NewHandEndEvent(winners))
}

func creditWinners(work *State, winners []Winner) {
	for _, w := range winners {
		if p := work.PlayerByID(w.PlayerID); p != nil {
			p.Stack += w.Amount
		}
	}
}

// Seat adds a player or spectator to the room. Players take the lowest
// free real seat; spectators take synthetic seats past MaxPlayers that
// do not count against capacity. A player seated mid-hand sits folded
// until the next hand starts.
func Seat(s *State, playerID, displayName string, role Role) ([]Transition, error) {
	if s.PlayerByID(playerID) != nil {
		return nil, newError(CodeAlreadySeated, "%s is already in this game", playerID)
	}

	work := s.Clone()
	seat := -1
	if role == RolePlayer {
		for i := 0; i < work.MaxPlayers; i++ {
			if work.PlayerBySeat(i) == nil {
				seat = i
				break
			}
		}
		if seat == -1 {
			return nil, newError(CodeGameFull, "no free seats in %s", work.GameName)
		}
	} else {
		seat = work.MaxPlayers
		for work.PlayerBySeat(seat) != nil {
			seat++
		}
	}

	p := &Player{
		ID:          playerID,
		DisplayName: displayName,
		SeatIndex:   seat,
		Role:        role,
		Connected:   true,
	}
	if role == RolePlayer {
		p.Stack = work.StartingStack
		p.Folded = work.HandInProgress
	}
	work.Players = append(work.Players, p)

	var ts []Transition
	emit(work, &ts, NewPlayerJoinedEvent(playerID, displayName, seat, role))
	return ts, nil
}

// Unseat removes a player or spectator from the room. Callers fold an
// in-hand player before unseating so pot eligibility stays consistent.
func Unseat(s *State, playerID string) ([]Transition, error) {
	if s.PlayerByID(playerID) == nil {
		return nil, newError(CodeNotInGame, "%s is not in this game", playerID)
	}

	work := s.Clone()
	leaver := work.PlayerByID(playerID)
	// Chips a mid-hand leaver already committed stay in the pot as
	// dead money. Between hands the settled pot shrinks with them.
	if work.HandInProgress {
		work.DeadMoney += leaver.PotShare
	}
	kept := work.Players[:0]
	for _, p := range work.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	work.Players = kept
	if work.ActivePlayerID == playerID {
		work.ActivePlayerID = ""
	}
	delete(work.ActedThisRound, playerID)
	work.recomputePots()

	var ts []Transition
	emit(work, &ts, NewPlayerLeftEvent(playerID))
	return ts, nil
}

// ForceFold folds a player regardless of turn order. Used when a seat
// is vacated mid-hand; the hand advances exactly as if the player had
// folded on their turn.
func ForceFold(s *State, playerID string) ([]Transition, error) {
	p := s.PlayerByID(playerID)
	if p == nil {
		return nil, newError(CodeNotInGame, "%s is not in this game", playerID)
	}
	if !s.HandInProgress || !p.InHand() {
		return nil, newError(CodeInvalidAction, "%s has no live hand to fold", playerID)
	}
	if s.ActivePlayerID == playerID {
		return ProcessAction(s, playerID, ActionFold, 0)
	}

	work := s.Clone()
	work.PlayerByID(playerID).Folded = true
	delete(work.ActedThisRound, playerID)
	work.recomputePots()

	detail := ActionDetail{Type: ActionFold}
	var ts []Transition
	switch {
	case work.countWhere(func(p *Player) bool { return !p.Folded && len(p.HoleCards) == 2 }) == 1:
		work.ActivePlayerID = ""
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
		finishFoldWin(work, &ts)

	case bettingRoundComplete(work):
		work.ActivePlayerID = ""
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
		if err := advanceStages(work, &ts); err != nil {
			return nil, err
		}

	default:
		// Someone else is still on the clock; the turn does not move.
		emit(work, &ts, NewPlayerActionEvent(playerID, detail))
	}
	return ts, nil
}

// AbortHand ends the current hand after an internal failure, crediting
// every player their own contribution back. The HAND_END carries no
// winners so clients show an aborted hand rather than a payout.
func AbortHand(s *State) []Transition {
	work := s.Clone()
	for _, p := range work.Players {
		p.Stack += p.PotShare
		p.PotShare = 0
		p.Bet = 0
	}
	work.Pot = 0
	work.Pots = nil
	work.DeadMoney = 0
	work.CurrentBet = 0
	work.ActedThisRound = make(map[string]bool)
	work.HandInProgress = false
	work.ActivePlayerID = ""

	var ts []Transition
	emit(work, &ts, NewHandEndEvent(nil))
	return ts
}

// DefaultAction picks the action taken on a player's behalf when their
// clock runs out: CHECK when legal, otherwise FOLD.
func DefaultAction(s *State, playerID string) ActionDetail {
	for _, va := range LegalActions(s, playerID) {
		if va.Type == ActionCheck {
			return ActionDetail{Type: ActionCheck}
		}
	}
	return ActionDetail{Type: ActionFold}
}

// CheckInvariants verifies structural invariants that should hold in
// every reachable state. A violation is a programming error; callers
// abort the hand and keep the room alive.
func CheckInvariants(s *State) error {
	seats := make(map[int]string)
	totalShare := 0
	for _, p := range s.Players {
		if other, dup := seats[p.SeatIndex]; dup {
			return fmt.Errorf("seat %d held by both %s and %s", p.SeatIndex, other, p.ID)
		}
		seats[p.SeatIndex] = p.ID
		if p.Stack < 0 || p.Bet < 0 || p.PotShare < 0 {
			return fmt.Errorf("player %s has negative chips: stack=%d bet=%d potShare=%d", p.ID, p.Stack, p.Bet, p.PotShare)
		}
		if p.PotShare < p.Bet {
			return fmt.Errorf("player %s potShare %d < bet %d", p.ID, p.PotShare, p.Bet)
		}
		if p.CanAct() && p.Bet > s.CurrentBet {
			return fmt.Errorf("player %s bet %d exceeds current bet %d", p.ID, p.Bet, s.CurrentBet)
		}
		totalShare += p.PotShare
	}
	if s.DeadMoney < 0 {
		return fmt.Errorf("negative dead money %d", s.DeadMoney)
	}
	if s.Pot != totalShare+s.DeadMoney {
		return fmt.Errorf("pot %d does not match contributions %d plus dead money %d", s.Pot, totalShare, s.DeadMoney)
	}
	potSum := 0
	for _, pot := range s.Pots {
		potSum += pot.Amount
	}
	if potSum != s.Pot {
		return fmt.Errorf("pot tiers sum to %d, want %d", potSum, s.Pot)
	}
	if s.ActivePlayerID != "" {
		p := s.PlayerByID(s.ActivePlayerID)
		if p == nil || !p.CanAct() {
			return fmt.Errorf("active player %s cannot act", s.ActivePlayerID)
		}
	}
	return nil
}
