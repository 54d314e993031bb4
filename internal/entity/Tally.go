package entity

// OptionCount pairs one option with its vote count for a tally round.
type OptionCount struct {
	OptionID int64  `json:"option_id"`
	Value    string `json:"value"`
	Count    int    `json:"count"`
}

// SingleChoiceResult is the plurality tally of a single-choice poll.
// Counts lists every option in creation order, including zero-vote options.
// Winners holds all options sharing the maximum count; empty when the poll
// has no votes.
type SingleChoiceResult struct {
	Counts     []OptionCount `json:"counts"`
	Winners    []int64       `json:"winners"`
	TotalVotes int           `json:"total_votes"`
}

// RankedRound records one instant-runoff round: the first-preference counts
// over the still-remaining options, how many ballots were active, and which
// option was eliminated (nil on the final round).
type RankedRound struct {
	Number           int           `json:"number"`
	FirstPreferences []OptionCount `json:"first_preferences"`
	ActiveBallots    int           `json:"active_ballots"`
	Eliminated       *int64        `json:"eliminated,omitempty"`
}

// RankedResult is the instant-runoff tally of a ranked-choice poll.
// WinnerID is nil only when the poll has no countable ballots.
type RankedResult struct {
	Rounds       []RankedRound `json:"rounds"`
	WinnerID     *int64        `json:"winner_id,omitempty"`
	TotalBallots int           `json:"total_ballots"`
}

// NominationResult counts acceptances and rejections of a nomination poll.
type NominationResult struct {
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	TotalVotes int `json:"total_votes"`
}

// TallyResult carries the result of whichever kind the poll is; exactly one
// of the three payloads is set.
type TallyResult struct {
	PollID     int64               `json:"poll_id"`
	Kind       PollKind            `json:"kind"`
	Single     *SingleChoiceResult `json:"single,omitempty"`
	Ranked     *RankedResult       `json:"ranked,omitempty"`
	Nomination *NominationResult   `json:"nomination,omitempty"`
}
