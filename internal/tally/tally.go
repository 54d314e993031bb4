// Package tally computes poll results from a poll snapshot. All functions are
// pure: they never touch storage, so results reflect exactly the snapshot
// they were given.
package tally

import (
	"sort"

	"github.com/VotingM7011E/VotingService/internal/entity"
)

// Compute dispatches on the poll kind. Unknown kinds yield an empty result
// carrying only the poll ID and kind.
func Compute(snapshot entity.PollSnapshot) entity.TallyResult {
	result := entity.TallyResult{
		PollID: snapshot.Poll.ID,
		Kind:   snapshot.Poll.Kind,
	}

	switch snapshot.Poll.Kind {
	case entity.PollKindSingle:
		single := singleChoice(snapshot)
		result.Single = &single
	case entity.PollKindRanked:
		ranked := instantRunoff(snapshot)
		result.Ranked = &ranked
	case entity.PollKindNomination:
		nom := nomination(snapshot)
		result.Nomination = &nom
	}

	return result
}

// singleChoice counts one selection per vote and reports every option,
// zero-count options included. Winners are the options sharing the highest
// count; a poll with no votes has no winners.
func singleChoice(snapshot entity.PollSnapshot) entity.SingleChoiceResult {
	counts := make(map[int64]int, len(snapshot.Options))
	for _, vote := range snapshot.Votes {
		if len(vote.Selections) == 0 {
			continue
		}
		counts[vote.Selections[0].OptionID]++
	}

	result := entity.SingleChoiceResult{TotalVotes: len(snapshot.Votes)}

	maxCount := 0
	for _, option := range snapshot.Options {
		count := counts[option.ID]
		result.Counts = append(result.Counts, entity.OptionCount{
			OptionID: option.ID,
			Value:    option.Value,
			Count:    count,
		})
		if count > maxCount {
			maxCount = count
		}
	}

	if maxCount > 0 {
		for _, option := range snapshot.Options {
			if counts[option.ID] == maxCount {
				result.Winners = append(result.Winners, option.ID)
			}
		}
	}

	return result
}

// instantRunoff runs elimination rounds until some option holds a strict
// majority of the ballots still carrying an active preference, or until a
// single option remains. Each round counts every ballot's highest-ranked
// surviving option; ballots whose options are all eliminated drop out of the
// active total. Elimination picks the option with the fewest first
// preferences, breaking ties by fewest appearances across all ballots, then
// by latest creation order.
func instantRunoff(snapshot entity.PollSnapshot) entity.RankedResult {
	ballots := make([][]int64, 0, len(snapshot.Votes))
	appearances := make(map[int64]int, len(snapshot.Options))

	for _, vote := range snapshot.Votes {
		selections := make([]entity.Selection, len(vote.Selections))
		copy(selections, vote.Selections)
		sort.SliceStable(selections, func(i, j int) bool {
			return rankOf(selections[i]) < rankOf(selections[j])
		})

		ballot := make([]int64, 0, len(selections))
		for _, sel := range selections {
			ballot = append(ballot, sel.OptionID)
			appearances[sel.OptionID]++
		}
		ballots = append(ballots, ballot)
	}

	result := entity.RankedResult{TotalBallots: len(ballots)}
	if result.TotalBallots == 0 {
		return result
	}

	active := make(map[int64]bool, len(snapshot.Options))
	for _, option := range snapshot.Options {
		active[option.ID] = true
	}

	for round := 1; ; round++ {
		counts := make(map[int64]int, len(active))
		activeBallots := 0
		for _, ballot := range ballots {
			for _, optionID := range ballot {
				if active[optionID] {
					counts[optionID]++
					activeBallots++
					break
				}
			}
		}

		current := entity.RankedRound{Number: round, ActiveBallots: activeBallots}
		for _, option := range snapshot.Options {
			if !active[option.ID] {
				continue
			}
			current.FirstPreferences = append(current.FirstPreferences, entity.OptionCount{
				OptionID: option.ID,
				Value:    option.Value,
				Count:    counts[option.ID],
			})
		}

		if winner, ok := majority(counts, activeBallots); ok {
			result.Rounds = append(result.Rounds, current)
			result.WinnerID = &winner
			break
		}

		if len(active) == 1 {
			// Sole survivor without a strict majority: every remaining
			// ballot is exhausted. The survivor still takes the poll.
			for _, option := range snapshot.Options {
				if active[option.ID] {
					winner := option.ID
					result.WinnerID = &winner
				}
			}
			result.Rounds = append(result.Rounds, current)
			break
		}

		eliminated := eliminationTarget(snapshot.Options, active, counts, appearances)
		current.Eliminated = &eliminated
		result.Rounds = append(result.Rounds, current)
		delete(active, eliminated)
	}

	return result
}

func rankOf(sel entity.Selection) int {
	if sel.Rank == nil {
		return 0
	}
	return *sel.Rank
}

func majority(counts map[int64]int, activeBallots int) (int64, bool) {
	for optionID, count := range counts {
		if 2*count > activeBallots {
			return optionID, true
		}
	}
	return 0, false
}

// eliminationTarget walks options in creation order so that on a full tie the
// latest-created option is the one dropped.
func eliminationTarget(options []entity.Option, active map[int64]bool, counts, appearances map[int64]int) int64 {
	var target int64
	targetCount, targetAppearances := -1, -1

	for _, option := range options {
		if !active[option.ID] {
			continue
		}
		count := counts[option.ID]
		appeared := appearances[option.ID]

		if targetCount == -1 || count < targetCount ||
			(count == targetCount && appeared <= targetAppearances) {
			target = option.ID
			targetCount = count
			targetAppearances = appeared
		}
	}

	return target
}

// nomination splits votes by their accept flag.
func nomination(snapshot entity.PollSnapshot) entity.NominationResult {
	result := entity.NominationResult{TotalVotes: len(snapshot.Votes)}
	for _, vote := range snapshot.Votes {
		if vote.Accepted == nil {
			continue
		}
		if *vote.Accepted {
			result.Accepted++
		} else {
			result.Rejected++
		}
	}
	return result
}
