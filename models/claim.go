package models

import (
	"fmt"
	"time"
)

// ClaimKind names a periodic reward
type ClaimKind string

const (
	ClaimDaily  ClaimKind = "daily"
	ClaimWeekly ClaimKind = "weekly"
	ClaimWork   ClaimKind = "work"
)

// ClaimKinds lists every claim in display order
var ClaimKinds = []ClaimKind{ClaimDaily, ClaimWeekly, ClaimWork}

// ParseClaimKind validates a claim name
func ParseClaimKind(raw string) (ClaimKind, error) {
	switch k := ClaimKind(raw); k {
	case ClaimDaily, ClaimWeekly, ClaimWork:
		return k, nil
	}
	return "", fmt.Errorf("unknown claim %q", raw)
}

// TransactionType returns the history type recorded for the claim
func (k ClaimKind) TransactionType() TransactionType {
	switch k {
	case ClaimWeekly:
		return TransactionTypeClaimWeekly
	case ClaimWork:
		return TransactionTypeClaimWork
	}
	return TransactionTypeClaimDaily
}

// ClaimResult describes a collected reward
type ClaimResult struct {
	Kind    ClaimKind `json:"kind"`
	Amount  int64     `json:"amount"`
	Balance int64     `json:"balance"`
	NextAt  time.Time `json:"next_at"`
}

// ClaimStatus reports when a reward can next be collected
type ClaimStatus struct {
	Kind      ClaimKind     `json:"kind"`
	ReadyAt   time.Time     `json:"ready_at"`
	Remaining time.Duration `json:"remaining"`
}

// Ready reports whether the reward can be collected now
func (s ClaimStatus) Ready() bool {
	return s.Remaining <= 0
}
