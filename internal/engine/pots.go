package engine

import "sort"

// CalculatePots builds the tiered main/side pot breakdown from the
// players' cumulative hand contributions.
//
// Distinct positive contribution levels are walked in ascending order;
// each level's increment times its contributor count forms one tier,
// eligible to the non-folded contributors at or above that level.
// Adjacent tiers with identical eligibility collapse into one pot, so
// the common no-all-in case yields a single main pot.
func CalculatePots(players []*Player) []Pot {
	levelSet := make(map[int]bool)
	for _, p := range players {
		if p.PotShare > 0 {
			levelSet[p.PotShare] = true
		}
	}
	if len(levelSet) == 0 {
		return nil
	}

	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	bySeat := make([]*Player, len(players))
	copy(bySeat, players)
	sortPlayersBySeat(bySeat)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		delta := level - prev
		amount := 0
		var eligible []string
		for _, p := range bySeat {
			if p.PotShare >= level {
				amount += delta
				if !p.Folded {
					eligible = append(eligible, p.ID)
				}
			}
		}
		prev = level
		if amount == 0 {
			continue
		}
		if n := len(pots); n > 0 && sameEligible(pots[n-1].Eligible, eligible) {
			pots[n-1].Amount += amount
			continue
		}
		pots = append(pots, Pot{Amount: amount, Eligible: eligible})
	}
	return pots
}

func sameEligible(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DistributePots finds the best hand among each pot's eligible players
// and splits the pot. Odd chips left by an uneven split go to the
// winner whose seat is closest clockwise from the dealer button.
func DistributePots(pots []Pot, ranks map[string]RankedHand, s *State) []Winner {
	var winners []Winner
	for potIndex, pot := range pots {
		best := bestEligible(pot.Eligible, ranks)
		if len(best) == 0 {
			continue
		}

		// Order the winners by clockwise distance from the dealer so
		// the remainder lands deterministically.
		sort.Slice(best, func(i, j int) bool {
			return s.clockwiseFromDealer(best[i]) < s.clockwiseFromDealer(best[j])
		})

		share := pot.Amount / len(best)
		remainder := pot.Amount % len(best)
		for i, id := range best {
			amount := share
			if i == 0 {
				amount += remainder
			}
			winners = append(winners, Winner{PlayerID: id, Amount: amount, PotIndex: potIndex})
		}
	}
	return winners
}

// AwardAllPots pays every pot to a single player, one winner entry per
// pot index. Used when everyone else folds.
func AwardAllPots(pots []Pot, playerID string) []Winner {
	winners := make([]Winner, 0, len(pots))
	for i, pot := range pots {
		winners = append(winners, Winner{PlayerID: playerID, Amount: pot.Amount, PotIndex: i})
	}
	return winners
}

func bestEligible(eligible []string, ranks map[string]RankedHand) []string {
	var best []string
	var bestRank RankedHand
	for _, id := range eligible {
		rank, ok := ranks[id]
		if !ok {
			continue
		}
		switch {
		case len(best) == 0 || rank.Beats(bestRank):
			best = []string{id}
			bestRank = rank
		case rank.Ties(bestRank):
			best = append(best, id)
		}
	}
	return best
}

// clockwiseFromDealer returns the seat distance moving clockwise from
// the seat after the dealer button. Lower is closer to the button.
func (s *State) clockwiseFromDealer(playerID string) int {
	p := s.PlayerByID(playerID)
	if p == nil {
		return s.MaxPlayers
	}
	d := (p.SeatIndex - s.DealerSeatIndex - 1) % s.MaxPlayers
	if d < 0 {
		d += s.MaxPlayers
	}
	return d
}
