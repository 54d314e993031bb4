package entity

import "time"

type PollKind string

const (
	PollKindSingle     PollKind = "single"
	PollKindRanked     PollKind = "ranked"
	PollKindNomination PollKind = "nomination"
)

// Valid reports whether the kind is one of the recognized poll kinds.
func (k PollKind) Valid() bool {
	switch k {
	case PollKindSingle, PollKindRanked, PollKindNomination:
		return true
	}
	return false
}

type Poll struct {
	ID             int64     `json:"id"`
	UUID           string    `json:"uuid"`
	MeetingID      string    `json:"meeting_id"`
	Name           string    `json:"name"`
	Kind           PollKind  `json:"kind"`
	ExpectedVoters *int      `json:"expected_voters,omitempty"`
	IsOpen         bool      `json:"is_open"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `json:"created_at"`

	// Options is populated on creation and on single-poll reads.
	Options []Option `json:"options,omitempty"`
}
