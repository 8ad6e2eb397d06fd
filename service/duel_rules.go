package service

import (
	"kzcasino/models"
)

// duelBeats maps every throw to the throw it defeats
var duelBeats = map[models.DuelMove]models.DuelMove{
	models.MoveRock:     models.MoveScissors,
	models.MoveScissors: models.MovePaper,
	models.MovePaper:    models.MoveRock,
	models.MoveAttack:   models.MoveDefense,
	models.MoveDefense:  models.MoveAllIn,
	models.MoveAllIn:    models.MoveAttack,
}

// duelSide identifies a winner: 0 for a tie
type duelSide int

const (
	sideTie duelSide = iota
	sideChallenger
	sideOpponent
)

// compareThrows decides a rock-paper-scissors style round. A missing throw loses;
// two missing throws tie.
func compareThrows(challenger, opponent *models.DuelMove) duelSide {
	switch {
	case challenger == nil && opponent == nil:
		return sideTie
	case challenger == nil:
		return sideOpponent
	case opponent == nil:
		return sideChallenger
	case *challenger == *opponent:
		return sideTie
	case duelBeats[*challenger] == *opponent:
		return sideChallenger
	}
	return sideOpponent
}

// blackjackScore ranks a finished hand; a bust ranks below every standing hand
func blackjackScore(hand []models.Card) int {
	v := models.HandValue(hand)
	if v > 21 {
		return -1
	}
	return v
}

// compareHands decides a blackjack duel: both bust or equal value ties, otherwise the higher standing hand wins
func compareHands(challenger, opponent []models.Card) duelSide {
	c, o := blackjackScore(challenger), blackjackScore(opponent)
	switch {
	case c == o:
		return sideTie
	case c > o:
		return sideChallenger
	}
	return sideOpponent
}

// duelTaxParam names the parameter holding the pot tax for a duel type
func duelTaxParam(t models.DuelType) string {
	switch t {
	case models.DuelTypeRPS:
		return "rps_tax"
	case models.DuelTypeQuickAction:
		return "pvp_tax"
	case models.DuelTypeBlackjack:
		return "blackjack1v1_tax"
	}
	panic("unhandled duel type " + string(t))
}

// applyPotTax returns what the winner receives and what the house keeps
func applyPotTax(pot int64, tax float64) (gain, taxed int64) {
	taxed = int64(float64(pot) * tax)
	taxed = min(max(0, taxed), pot)
	return pot - taxed, taxed
}

// dealDuelHands deals two cards to each side from the shared session seed
func dealDuelHands(seed int64) (challenger, opponent []models.Card) {
	rng := newSeededRandom(seed)
	challenger = []models.Card{drawCard(rng), drawCard(rng)}
	opponent = []models.Card{drawCard(rng), drawCard(rng)}
	return challenger, opponent
}

// drawDuelCard draws a hit deterministically from the seed, the player and the hand size
func drawDuelCard(seed, playerID int64, handSize int) models.Card {
	return drawCard(newSeededRandom(seed + playerID*1000 + int64(handSize)*17))
}
