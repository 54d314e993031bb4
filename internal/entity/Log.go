package entity

import "time"

type Log struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	PollID    *int64    `json:"poll_id,omitempty"`
	VoteID    *int64    `json:"vote_id,omitempty"`
	VoterID   *string   `json:"voter_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
