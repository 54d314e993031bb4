package entity

import "time"

type Vote struct {
	ID        int64     `json:"id"`
	PollID    int64     `json:"poll_id"`
	VoterID   string    `json:"voter_id"`
	Accepted  *bool     `json:"accepted,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Selections []Selection `json:"selections,omitempty"`
}

type Selection struct {
	ID        int64     `json:"id"`
	VoteID    int64     `json:"vote_id"`
	OptionID  int64     `json:"option_id"`
	Rank      *int      `json:"rank,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SelectionInput is one chosen option as it enters the storage layer.
// Rank is nil for single-choice and nomination polls.
type SelectionInput struct {
	OptionID int64
	Rank     *int
}

// PollSnapshot is a consistent read of everything a tally needs.
type PollSnapshot struct {
	Poll    Poll
	Options []Option
	Votes   []Vote
}
