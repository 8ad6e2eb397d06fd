package service

import (
	"math"
	"strconv"
	"strings"

	"kzcasino/models"
)

var slotSymbols = []string{"cherry", "lemon", "bell", "diamond", "seven"}

const slotJackpotSymbol = "seven"

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

func rouletteColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case rouletteRed[n]:
		return "red"
	default:
		return "black"
	}
}

// rouletteBet is a parsed roulette selection
type rouletteBet struct {
	Kind   string // red, black, green, even, odd, low, high, d1, d2, d3, number
	Number int
}

func (b rouletteBet) wins(n int) bool {
	switch b.Kind {
	case "red":
		return n != 0 && rouletteRed[n]
	case "black":
		return n != 0 && !rouletteRed[n]
	case "green":
		return n == 0
	case "even":
		return n != 0 && n%2 == 0
	case "odd":
		return n%2 == 1
	case "low":
		return n >= 1 && n <= 18
	case "high":
		return n >= 19
	case "d1":
		return n >= 1 && n <= 12
	case "d2":
		return n >= 13 && n <= 24
	case "d3":
		return n >= 25
	case "number":
		return n == b.Number
	}
	return false
}

func (b rouletteBet) multiplier(p *Params) float64 {
	switch b.Kind {
	case "green":
		return float64(p.Int("roulette_green_mult"))
	case "d1", "d2", "d3":
		return 3
	case "number":
		return 36
	default:
		return 2
	}
}

var rouletteAliases = map[string]string{
	"red": "red", "rouge": "red",
	"black": "black", "noir": "black",
	"green": "green", "vert": "green",
	"even": "even", "pair": "even",
	"odd": "odd", "impair": "odd",
	"low": "low", "1-18": "low",
	"high": "high", "19-36": "high",
	"d1": "d1", "1-12": "d1",
	"d2": "d2", "13-24": "d2",
	"d3": "d3", "25-36": "d3",
}

// gameChoice is the validated game specific selection of a play
type gameChoice struct {
	Roulette    rouletteBet
	Guess       int
	CrashTarget float64
}

// parseGameChoice validates the selection before any funds move
func parseGameChoice(game models.GameName, raw string, p *Params) (gameChoice, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))

	switch game {
	case models.GameCoinflip, models.GameSlots, models.GameBlackjack:
		return gameChoice{}, nil
	case models.GameRoulette:
		if kind, ok := rouletteAliases[raw]; ok {
			return gameChoice{Roulette: rouletteBet{Kind: kind}}, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 36 {
			return gameChoice{}, validationError("invalid roulette bet %q: use red/black/green/even/odd/low/high/d1/d2/d3 or 0-36", raw)
		}
		return gameChoice{Roulette: rouletteBet{Kind: "number", Number: n}}, nil
	case models.GameGuess:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return gameChoice{}, validationError("guess must be a number between 1 and 100")
		}
		return gameChoice{Guess: n}, nil
	case models.GameCrash:
		target, err := strconv.ParseFloat(strings.TrimPrefix(raw, "x"), 64)
		maxMult := p.Float("crash_max_mult")
		if err != nil || math.IsNaN(target) || target < 1.01 || target > maxMult {
			return gameChoice{}, validationError("cash-out multiplier must be between 1.01 and %.2f", maxMult)
		}
		return gameChoice{CrashTarget: target}, nil
	}
	return gameChoice{}, validationError("unknown game %q", game)
}

// gameRoll is a resolver's verdict before all-in bias and settlement
type gameRoll struct {
	Result     models.GameResult
	Multiplier float64
	Profit     int64 // net gain over the stake on a win
	Detail     models.GameDetail
}

func winRoll(stake int64, mult float64, detail models.GameDetail) *gameRoll {
	return &gameRoll{
		Result:     models.GameResultWin,
		Multiplier: mult,
		Profit:     int64(float64(stake) * (mult - 1)),
		Detail:     detail,
	}
}

func lossRoll(detail models.GameDetail) *gameRoll {
	return &gameRoll{Result: models.GameResultLoss, Detail: detail}
}

// resolveGame plays one round. Every game name must be handled here.
func resolveGame(game models.GameName, choice gameChoice, rng RandomSource, p *Params, stake int64) *gameRoll {
	switch game {
	case models.GameCoinflip:
		return resolveCoinflip(rng, p, stake)
	case models.GameSlots:
		return resolveSlots(rng, p, stake)
	case models.GameRoulette:
		return resolveRoulette(choice.Roulette, rng, p, stake)
	case models.GameGuess:
		return resolveGuess(choice.Guess, rng, p, stake)
	case models.GameBlackjack:
		return resolveBlackjack(rng, p, stake)
	case models.GameCrash:
		return resolveCrash(choice.CrashTarget, rng, p, stake)
	}
	panic("unhandled game " + string(game))
}

// forcedWin draws a win against a configured chance, or reports false when the chance is disabled
func forcedWin(rng RandomSource, chance float64) (win, forced bool) {
	if chance <= 0 {
		return false, false
	}
	return rng.Float64() < chance, true
}

func resolveCoinflip(rng RandomSource, p *Params, stake int64) *gameRoll {
	won, forced := forcedWin(rng, p.Float("coinflip_win_chance"))
	if !forced {
		won = rng.IntN(2) == 0
	}

	detail := models.GameDetail{CoinWon: &won}
	if won {
		return winRoll(stake, p.Float("coinflip_payout"), detail)
	}
	return lossRoll(detail)
}

func resolveSlots(rng RandomSource, p *Params, stake int64) *gameRoll {
	won, forced := forcedWin(rng, p.Float("slots_win_chance"))

	var reels []string
	if forced {
		if !won {
			reels = distinctSymbols(rng, 3)
			return lossRoll(models.GameDetail{Reels: reels})
		}
		kind := rng.Float64()
		switch {
		case kind < 0.02:
			reels = []string{slotJackpotSymbol, slotJackpotSymbol, slotJackpotSymbol}
		case kind < 0.15:
			sym := slotSymbols[rng.IntN(len(slotSymbols)-1)]
			reels = []string{sym, sym, sym}
		default:
			pair := distinctSymbols(rng, 2)
			reels = []string{pair[0], pair[0], pair[0]}
			reels[rng.IntN(3)] = pair[1]
		}
	} else {
		reels = make([]string, 3)
		for i := range reels {
			reels[i] = slotSymbols[rng.IntN(len(slotSymbols))]
		}
	}

	mult := slotsMultiplier(p, reels)
	if mult == 0 {
		return lossRoll(models.GameDetail{Reels: reels})
	}
	return winRoll(stake, mult, models.GameDetail{Reels: reels})
}

func slotsMultiplier(p *Params, reels []string) float64 {
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		if reels[0] == slotJackpotSymbol {
			return p.Float("slots_jackpot_mult")
		}
		return p.Float("slots_triple_mult")
	case reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]:
		return p.Float("slots_pair_mult")
	}
	return 0
}

// distinctSymbols picks n different slot symbols in random order
func distinctSymbols(rng RandomSource, n int) []string {
	pool := append([]string(nil), slotSymbols...)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := rng.IntN(len(pool))
		out = append(out, pool[j])
		pool = append(pool[:j], pool[j+1:]...)
	}
	return out
}

func resolveRoulette(bet rouletteBet, rng RandomSource, p *Params, stake int64) *gameRoll {
	won, forced := forcedWin(rng, p.Float("roulette_win_chance"))

	var spin int
	if forced {
		var pool []int
		for n := 0; n <= 36; n++ {
			if bet.wins(n) == won {
				pool = append(pool, n)
			}
		}
		spin = pool[rng.IntN(len(pool))]
	} else {
		spin = rng.IntN(37)
		won = bet.wins(spin)
	}

	detail := models.GameDetail{Spin: &spin, SpinColor: rouletteColor(spin)}
	if won {
		return winRoll(stake, bet.multiplier(p), detail)
	}
	return lossRoll(detail)
}

func resolveGuess(guess int, rng RandomSource, p *Params, stake int64) *gameRoll {
	target := rng.IntN(100) + 1
	diff := target - guess
	if diff < 0 {
		diff = -diff
	}

	detail := models.GameDetail{Target: &target, Guess: &guess}
	switch {
	case diff == 0:
		return winRoll(stake, p.Float("guess_exact_mult"), detail)
	case diff == 1:
		return winRoll(stake, p.Float("guess_close1_mult"), detail)
	case diff == 2:
		return winRoll(stake, p.Float("guess_close2_mult"), detail)
	case diff <= 5:
		return &gameRoll{Result: models.GameResultPush, Multiplier: 1, Detail: detail}
	}
	return lossRoll(detail)
}

func drawCard(rng RandomSource) models.Card {
	return models.Card{
		Rank: rng.IntN(13) + 1,
		Suit: models.Suits[rng.IntN(len(models.Suits))],
	}
}

// maxForcedDeals bounds the re-deals made to honour blackjack_win_chance
const maxForcedDeals = 32

// resolveBlackjack auto-plays a hand. With a positive blackjack_win_chance the
// verdict is drawn first and hands are re-dealt until one agrees; if none does
// within maxForcedDeals the last hand stands.
func resolveBlackjack(rng RandomSource, p *Params, stake int64) *gameRoll {
	won, forced := forcedWin(rng, p.Float("blackjack_win_chance"))
	roll := dealBlackjack(rng, p, stake)
	if !forced {
		return roll
	}

	want := models.GameResultLoss
	if won {
		want = models.GameResultWin
	}
	for i := 1; i < maxForcedDeals && roll.Result != want; i++ {
		roll = dealBlackjack(rng, p, stake)
	}
	return roll
}

// dealBlackjack plays one hand: both sides draw until they reach 17
func dealBlackjack(rng RandomSource, p *Params, stake int64) *gameRoll {
	player := []models.Card{drawCard(rng), drawCard(rng)}
	dealer := []models.Card{drawCard(rng), drawCard(rng)}

	for models.HandValue(player) < 17 {
		player = append(player, drawCard(rng))
	}

	detail := models.GameDetail{PlayerHand: player, DealerHand: dealer}
	if models.IsBust(player) {
		return lossRoll(detail)
	}

	for models.HandValue(dealer) < 17 {
		dealer = append(dealer, drawCard(rng))
	}
	detail.DealerHand = dealer

	playerNatural := models.IsNatural(player)
	dealerNatural := models.IsNatural(dealer)
	playerValue := models.HandValue(player)
	dealerValue := models.HandValue(dealer)

	// Gains are paid on top of the returned stake
	gain := func(mult float64) *gameRoll {
		return &gameRoll{
			Result:     models.GameResultWin,
			Multiplier: mult + 1,
			Profit:     int64(float64(stake) * mult),
			Detail:     detail,
		}
	}

	switch {
	case playerNatural && !dealerNatural:
		return gain(2.5)
	case dealerNatural && !playerNatural:
		return lossRoll(detail)
	case dealerValue > 21, playerValue > dealerValue:
		return gain(p.Float("blackjack_payout"))
	case playerValue == dealerValue:
		return &gameRoll{Result: models.GameResultPush, Multiplier: 1, Detail: detail}
	}
	return lossRoll(detail)
}

func resolveCrash(target float64, rng RandomSource, p *Params, stake int64) *gameRoll {
	edge := p.Float("crash_house_edge")
	r := max(1e-9, rng.Float64())
	crashPoint := min(p.Float("crash_max_mult"), max(1, (1-edge)/r))
	crashPoint = math.Floor(crashPoint*100) / 100

	detail := models.GameDetail{CrashPoint: crashPoint, CashOutMult: target}
	if target > crashPoint {
		return lossRoll(detail)
	}

	gross := int64(float64(stake) * target)
	return &gameRoll{
		Result:     models.GameResultWin,
		Multiplier: target,
		Profit:     gross - stake,
		Detail:     detail,
	}
}
