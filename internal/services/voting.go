package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"github.com/VotingM7011E/VotingService/internal/entity"
	"github.com/VotingM7011E/VotingService/internal/events"
	"github.com/VotingM7011E/VotingService/internal/metrics"
	"github.com/VotingM7011E/VotingService/internal/repo"
	"github.com/VotingM7011E/VotingService/internal/tally"
)

var ErrValidation = errors.New("validation error")

type Voting struct {
	log           *slog.Logger
	logStorage    LogStorage
	optionStorage OptionStorage
	pollStorage   PollStorage
	voteStorage   VoteStorage
	publisher     events.Publisher
	metrics       *metrics.VotingMetrics
}

type LogStorage interface {
	SaveLog(ctx context.Context, log *entity.Log) (int64, error)
	GetLogs(ctx context.Context) ([]entity.Log, error)
}

type OptionStorage interface {
	GetOptionsByPollID(ctx context.Context, pollID int64) ([]entity.Option, error)
}

type PollStorage interface {
	SavePoll(ctx context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error)
	GetPollByID(ctx context.Context, id int64) (entity.Poll, error)
	GetPolls(ctx context.Context) ([]entity.Poll, error)
	GetPollsByMeetingID(ctx context.Context, meetingID string) ([]entity.Poll, error)
	ClosePoll(ctx context.Context, id int64) (bool, error)
	MarkPollCompleted(ctx context.Context, id int64) (bool, error)
	DeletePoll(ctx context.Context, id int64) error
	GetPollSnapshot(ctx context.Context, pollID int64) (entity.PollSnapshot, error)
}

type VoteStorage interface {
	SaveVote(ctx context.Context, pollID int64, voterID string, accepted *bool, selections []entity.SelectionInput) (entity.Vote, error)
	GetVotesByPollID(ctx context.Context, pollID int64) ([]entity.Vote, error)
	CountVotesByPollID(ctx context.Context, pollID int64) (int, error)
}

func NewVoting(
	log *slog.Logger,
	pollStorage PollStorage,
	optionStorage OptionStorage,
	voteStorage VoteStorage,
	logStorage LogStorage,
	publisher events.Publisher,
	metrics *metrics.VotingMetrics,
) *Voting {
	return &Voting{
		log:           log,
		logStorage:    logStorage,
		optionStorage: optionStorage,
		pollStorage:   pollStorage,
		voteStorage:   voteStorage,
		publisher:     publisher,
		metrics:       metrics,
	}
}

// audit appends to the log table. A failed append is logged and swallowed so
// an already committed operation is never reported as failed.
func (v *Voting) audit(ctx context.Context, log *slog.Logger, entry *entity.Log) {
	if _, err := v.logStorage.SaveLog(ctx, entry); err != nil {
		log.Warn("failed to save audit log", sl.Err(err))
	}
}

// publish emits a domain event. Publishing is best-effort for the same
// reason audit appends are.
func (v *Voting) publish(ctx context.Context, log *slog.Logger, eventType, key string, data interface{}) {
	if err := v.publisher.Publish(ctx, eventType, key, data); err != nil {
		log.Warn("failed to publish event", slog.String("event_type", eventType), sl.Err(err))
	}
}

func (v *Voting) CreatePoll(ctx context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error) {
	const op = "Voting.CreatePoll"

	log := v.log.With(slog.String("op", op), slog.String("meeting_id", meetingID))

	if meetingID == "" || name == "" {
		return entity.Poll{}, fmt.Errorf("%w: meeting id or name is empty", ErrValidation)
	}

	if !kind.Valid() {
		return entity.Poll{}, fmt.Errorf("%w: unknown poll kind %q", ErrValidation, kind)
	}

	if len(options) == 0 {
		return entity.Poll{}, fmt.Errorf("%w: options list is empty", ErrValidation)
	}

	seen := make(map[string]struct{}, len(options))
	for _, value := range options {
		if value == "" {
			return entity.Poll{}, fmt.Errorf("%w: option value is empty", ErrValidation)
		}
		if _, ok := seen[value]; ok {
			return entity.Poll{}, fmt.Errorf("%w: duplicate option value %q", ErrValidation, value)
		}
		seen[value] = struct{}{}
	}

	if expectedVoters != nil && *expectedVoters < 1 {
		return entity.Poll{}, fmt.Errorf("%w: expected voters must be positive", ErrValidation)
	}

	poll, err := v.pollStorage.SavePoll(ctx, meetingID, name, kind, expectedVoters, options)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("poll created", slog.Int64("poll_id", poll.ID))

	v.metrics.PollsCreated.WithLabelValues(string(kind)).Inc()

	v.audit(ctx, log, &entity.Log{Action: op, PollID: &poll.ID})
	v.publish(ctx, log, events.TypePollCreated, poll.UUID, poll)

	return poll, nil
}

func (v *Voting) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "Voting.GetPollByID"

	poll, err := v.pollStorage.GetPollByID(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (v *Voting) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "Voting.GetPolls"

	polls, err := v.pollStorage.GetPolls(ctx)
	if err != nil {
		return []entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

func (v *Voting) GetPollsByMeetingID(ctx context.Context, meetingID string) ([]entity.Poll, error) {
	const op = "Voting.GetPollsByMeetingID"

	polls, err := v.pollStorage.GetPollsByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

func (v *Voting) GetOptionsByPollID(ctx context.Context, pollID int64) ([]entity.Option, error) {
	const op = "Voting.GetOptionsByPollID"

	options, err := v.optionStorage.GetOptionsByPollID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return options, nil
}

func (v *Voting) CastVote(ctx context.Context, pollID int64, voterID string, optionIDs []int64, accepted *bool) (entity.Vote, error) {
	const op = "Voting.CastVote"

	log := v.log.With(slog.String("op", op), slog.Int64("poll_id", pollID))

	if voterID == "" {
		return entity.Vote{}, fmt.Errorf("%w: voter id is empty", ErrValidation)
	}

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	switch poll.Kind {
	case entity.PollKindSingle:
		if len(optionIDs) != 1 {
			return entity.Vote{}, fmt.Errorf("%w: single-choice vote requires exactly one selection", ErrValidation)
		}
		if accepted != nil {
			return entity.Vote{}, fmt.Errorf("%w: accepted flag is only valid for nomination polls", ErrValidation)
		}
	case entity.PollKindRanked:
		if len(optionIDs) == 0 {
			return entity.Vote{}, fmt.Errorf("%w: ranked-choice vote requires at least one selection", ErrValidation)
		}
		if accepted != nil {
			return entity.Vote{}, fmt.Errorf("%w: accepted flag is only valid for nomination polls", ErrValidation)
		}
		seen := make(map[int64]struct{}, len(optionIDs))
		for _, optionID := range optionIDs {
			if _, ok := seen[optionID]; ok {
				return entity.Vote{}, fmt.Errorf("%w: duplicate option id %d in selections", ErrValidation, optionID)
			}
			seen[optionID] = struct{}{}
		}
	case entity.PollKindNomination:
		if len(optionIDs) != 0 {
			return entity.Vote{}, fmt.Errorf("%w: nomination vote cannot carry selections", ErrValidation)
		}
		if accepted == nil {
			return entity.Vote{}, fmt.Errorf("%w: nomination vote requires the accepted flag", ErrValidation)
		}
	}

	if len(optionIDs) > 0 {
		options, err := v.optionStorage.GetOptionsByPollID(ctx, pollID)
		if err != nil {
			return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
		}

		known := make(map[int64]struct{}, len(options))
		for _, option := range options {
			known[option.ID] = struct{}{}
		}
		for _, optionID := range optionIDs {
			if _, ok := known[optionID]; !ok {
				return entity.Vote{}, fmt.Errorf("%s: %w", op, repo.ErrOptionNotFound)
			}
		}
	}

	selections := make([]entity.SelectionInput, 0, len(optionIDs))
	for i, optionID := range optionIDs {
		selection := entity.SelectionInput{OptionID: optionID}
		if poll.Kind == entity.PollKindRanked {
			rank := i + 1
			selection.Rank = &rank
		}
		selections = append(selections, selection)
	}

	vote, err := v.voteStorage.SaveVote(ctx, pollID, voterID, accepted, selections)
	if err != nil {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("vote cast", slog.Int64("vote_id", vote.ID))

	v.metrics.VotesCast.WithLabelValues(string(poll.Kind)).Inc()

	v.audit(ctx, log, &entity.Log{Action: op, PollID: &pollID, VoteID: &vote.ID, VoterID: &voterID})
	v.publish(ctx, log, events.TypeVoteCast, poll.UUID, vote)

	if poll.ExpectedVoters != nil {
		v.checkCompletion(ctx, log, poll)
	}

	return vote, nil
}

// checkCompletion marks the poll completed once the stored vote count reaches
// the expected voter count. The transition is guarded at the storage layer,
// so concurrent final votes emit a single poll.completed event. Failures here
// never fail the vote that triggered the check.
func (v *Voting) checkCompletion(ctx context.Context, log *slog.Logger, poll entity.Poll) {
	count, err := v.voteStorage.CountVotesByPollID(ctx, poll.ID)
	if err != nil {
		log.Warn("failed to count votes for completion check", sl.Err(err))
		return
	}

	if count < *poll.ExpectedVoters {
		return
	}

	transitioned, err := v.pollStorage.MarkPollCompleted(ctx, poll.ID)
	if err != nil {
		log.Warn("failed to mark poll completed", sl.Err(err))
		return
	}
	if !transitioned {
		return
	}

	log.Info("poll completed", slog.Int("votes", count))

	v.audit(ctx, log, &entity.Log{Action: "Voting.PollCompleted", PollID: &poll.ID})
	v.publish(ctx, log, events.TypePollCompleted, poll.UUID, map[string]interface{}{
		"poll_id": poll.ID,
		"uuid":    poll.UUID,
		"votes":   count,
	})
}

func (v *Voting) GetVotesByPollID(ctx context.Context, pollID int64) ([]entity.Vote, error) {
	const op = "Voting.GetVotesByPollID"

	if _, err := v.pollStorage.GetPollByID(ctx, pollID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	votes, err := v.voteStorage.GetVotesByPollID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return votes, nil
}

// ClosePoll is idempotent. The returned bool reports whether this call moved
// the poll from open to closed; the poll.closed event fires only then.
func (v *Voting) ClosePoll(ctx context.Context, pollID int64) (bool, error) {
	const op = "Voting.ClosePoll"

	log := v.log.With(slog.String("op", op), slog.Int64("poll_id", pollID))

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	transitioned, err := v.pollStorage.ClosePoll(ctx, pollID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !transitioned {
		return false, nil
	}

	log.Info("poll closed")

	v.audit(ctx, log, &entity.Log{Action: op, PollID: &pollID})
	v.publish(ctx, log, events.TypePollClosed, poll.UUID, map[string]interface{}{
		"poll_id":    poll.ID,
		"uuid":       poll.UUID,
		"meeting_id": poll.MeetingID,
	})

	return true, nil
}

func (v *Voting) DeletePoll(ctx context.Context, pollID int64) error {
	const op = "Voting.DeletePoll"

	log := v.log.With(slog.String("op", op), slog.Int64("poll_id", pollID))

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.pollStorage.DeletePoll(ctx, pollID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("poll deleted")

	v.audit(ctx, log, &entity.Log{Action: op, PollID: &pollID})
	v.publish(ctx, log, events.TypePollDeleted, poll.UUID, map[string]interface{}{
		"poll_id":    poll.ID,
		"uuid":       poll.UUID,
		"meeting_id": poll.MeetingID,
	})

	return nil
}

// Tally reads the poll in one consistent snapshot and computes the result in
// memory, so a long count never blocks voters.
func (v *Voting) Tally(ctx context.Context, pollID int64) (entity.TallyResult, error) {
	const op = "Voting.Tally"

	start := time.Now()

	snapshot, err := v.pollStorage.GetPollSnapshot(ctx, pollID)
	if err != nil {
		return entity.TallyResult{}, fmt.Errorf("%s: %w", op, err)
	}

	result := tally.Compute(snapshot)

	v.metrics.TallyDuration.WithLabelValues(string(snapshot.Poll.Kind)).Observe(time.Since(start).Seconds())

	return result, nil
}

func (v *Voting) GetLogs(ctx context.Context) ([]entity.Log, error) {
	const op = "Voting.GetLogs"

	logs, err := v.logStorage.GetLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return logs, nil
}
