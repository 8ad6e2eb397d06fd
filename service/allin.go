package service

// allInScale returns 0..1 depending on how close the stake is to the whole balance.
// Balance is the balance before the stake was debited.
func allInScale(p *Params, balance, stake int64) float64 {
	if balance <= 0 || stake <= 0 {
		return 0
	}
	if balance < p.Int("allin_min_balance") {
		return 0
	}

	threshold := p.Float("allin_threshold")
	ratio := float64(stake) / float64(balance)
	if ratio < threshold {
		return 0
	}
	if threshold >= 1 {
		return 1
	}

	scale := (ratio - threshold) / (1 - threshold)
	return min(1, max(0, scale))
}

// flipAllInWin reports whether a win should be turned into a loss for an (almost) all-in stake
func flipAllInWin(rng RandomSource, p *Params, balance, stake int64) bool {
	scale := allInScale(p, balance, stake)
	if scale <= 0 {
		return false
	}
	return rng.Float64() < p.Float("allin_flip_chance")*scale
}
