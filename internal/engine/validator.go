package engine

// ValidAction is one legal action variant with its amount constraints.
// CALL and ALL_IN carry an exact amount; BET and RAISE carry a range.
// Amounts are incremental: chips added this turn, not target bets.
type ValidAction struct {
	Type   ActionType `json:"type"`
	Amount int        `json:"amount,omitempty"`
	Min    int        `json:"min,omitempty"`
	Max    int        `json:"max,omitempty"`
}

// LegalActions enumerates the actions the given player may take in the
// current state. Empty when it is not the player's turn.
func LegalActions(s *State, playerID string) []ValidAction {
	p := s.PlayerByID(playerID)
	if p == nil || !s.HandInProgress || s.ActivePlayerID != playerID || !p.CanAct() {
		return nil
	}

	toCall := s.CurrentBet - p.Bet
	actions := []ValidAction{{Type: ActionFold}}

	if toCall == 0 {
		actions = append(actions, ValidAction{Type: ActionCheck})
	}
	if toCall > 0 && toCall <= p.Stack {
		actions = append(actions, ValidAction{Type: ActionCall, Amount: toCall})
	}
	if s.CurrentBet == 0 && p.Stack > 0 {
		minBet := s.BigBlind
		if p.Stack < minBet {
			minBet = p.Stack
		}
		actions = append(actions, ValidAction{Type: ActionBet, Min: minBet, Max: p.Stack})
	}
	if s.CurrentBet > 0 && p.Stack > toCall && toCall+s.LastRaiseSize <= p.Stack {
		actions = append(actions, ValidAction{Type: ActionRaise, Min: toCall + s.LastRaiseSize, Max: p.Stack})
	}
	if p.Stack > 0 {
		actions = append(actions, ValidAction{Type: ActionAllIn, Amount: p.Stack})
	}
	return actions
}

// ValidateAction checks that the player may take the given action with
// the given amount. Returns a coded *Error on failure; the state is
// never modified.
func ValidateAction(s *State, playerID string, action ActionType, amount int) error {
	p := s.PlayerByID(playerID)
	if p == nil {
		return newError(CodeNotInGame, "player %s is not seated", playerID)
	}
	if !s.HandInProgress {
		return newError(CodeInvalidAction, "no hand in progress")
	}
	if s.ActivePlayerID != playerID {
		return newError(CodeOutOfTurn, "it is not %s's turn", p.DisplayName)
	}
	if !p.CanAct() {
		return newError(CodeInvalidAction, "%s cannot act", p.DisplayName)
	}

	for _, va := range LegalActions(s, playerID) {
		if va.Type != action {
			continue
		}
		switch action {
		case ActionBet, ActionRaise:
			if amount < va.Min || amount > va.Max {
				return newError(CodeInvalidAmount, "%s amount %d outside [%d, %d]", action, amount, va.Min, va.Max)
			}
		}
		return nil
	}
	return newError(CodeInvalidAction, "%s is not a legal action", action)
}
