// Package votes resolves a vote request against the voter's current vote.
package votes

import "zynexhub/internal/models"

type Action int

const (
	Create Action = iota + 1
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Outcome is what has to happen to the vote row and the net count.
type Outcome struct {
	Action Action
	// Delta is added to the comment's net vote count.
	Delta int
	// Result is the voter's vote after the change; nil after a toggle off.
	Result *models.VoteType
}

// Resolve applies toggle/switch semantics. Repeating the current direction
// removes the vote; choosing the other direction flips it.
func Resolve(existing *models.VoteType, requested models.VoteType) Outcome {
	if existing == nil {
		return Outcome{Action: Create, Delta: requested.Weight(), Result: &requested}
	}
	if *existing == requested {
		return Outcome{Action: Delete, Delta: -existing.Weight()}
	}
	return Outcome{Action: Update, Delta: requested.Weight() - existing.Weight(), Result: &requested}
}
