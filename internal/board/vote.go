package board

import (
	"context"
	"fmt"
)

type Outcome string

const (
	OutcomeApplied           Outcome = "APPLIED"
	OutcomeRemoved           Outcome = "REMOVED"
	OutcomeRejectedNegative  Outcome = "REJECTED_NEGATIVE"
	OutcomeRejectedDuplicate Outcome = "REJECTED_DUPLICATE"
)

// Rejected reports whether the outcome leaves the card untouched.
func (o Outcome) Rejected() bool {
	return o == OutcomeRejectedNegative || o == OutcomeRejectedDuplicate
}

// Message is the user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeApplied:
		return "Vote recorded"
	case OutcomeRemoved:
		return "Vote removed"
	case OutcomeRejectedNegative:
		return "Votes cannot go below zero"
	case OutcomeRejectedDuplicate:
		return "You have already voted this way"
	default:
		return ""
	}
}

// Resolution is the decision for one user voting once on one card.
type Resolution struct {
	AppliedDelta int
	IsRemoval    bool
	Outcome      Outcome
}

// Resolve decides what a vote request does, given the caller's snapshot of
// the user's current vote and the card total.
//
// In single-vote mode a user switching direction only cancels the prior vote;
// the new direction needs a second request once the user's vote is zero.
func Resolve(userCurrentVote, requestedDelta int, multipleVotesAllowed bool, currentTotalVotes int) Resolution {
	if requestedDelta < 0 && currentTotalVotes <= 0 {
		return Resolution{Outcome: OutcomeRejectedNegative}
	}

	if !multipleVotesAllowed {
		if userCurrentVote == requestedDelta {
			return Resolution{Outcome: OutcomeRejectedDuplicate}
		}
		if userCurrentVote != 0 {
			return Resolution{
				AppliedDelta: -userCurrentVote,
				IsRemoval:    true,
				Outcome:      OutcomeRemoved,
			}
		}
	}

	return Resolution{AppliedDelta: requestedDelta, Outcome: OutcomeApplied}
}

// ComputeNewUserVote returns the user's vote after appliedDelta lands.
func ComputeNewUserVote(userCurrentVote, appliedDelta int, multipleVotesAllowed bool) int {
	if multipleVotesAllowed {
		return userCurrentVote + appliedDelta
	}
	if userCurrentVote != 0 && appliedDelta == -userCurrentVote {
		return 0
	}
	return appliedDelta
}

// Apply folds a resolution into a copy of card. A zero user vote removes the
// ledger entry.
func Apply(card Card, userID string, r Resolution, multipleVotesAllowed bool) (Card, error) {
	if r.Outcome.Rejected() {
		return card, fmt.Errorf("%w: %s", ErrVoteRejected, r.Outcome)
	}
	if card.Votes+r.AppliedDelta < 0 {
		return card, fmt.Errorf("%w: %d%+d", ErrNegativeTally, card.Votes, r.AppliedDelta)
	}

	updated := card.Clone()
	updated.Votes += r.AppliedDelta

	next := ComputeNewUserVote(card.UserVote(userID), r.AppliedDelta, multipleVotesAllowed)
	if next == 0 {
		delete(updated.Voters, userID)
	} else {
		updated.Voters[userID] = next
	}
	return updated, nil
}

// CommitVote writes the tally and the user's ledger entry of an applied card.
func CommitVote(ctx context.Context, st Store, key CardKey, userID string, updated Card) error {
	if err := write(ctx, st, key.Votes(), updated.Votes); err != nil {
		return err
	}
	if vote, ok := updated.Voters[userID]; ok {
		return write(ctx, st, key.Voter(userID), vote)
	}
	return erase(ctx, st, key.Voter(userID))
}
