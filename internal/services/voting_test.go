package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/VotingM7011E/VotingService/internal/entity"
	"github.com/VotingM7011E/VotingService/internal/events"
	"github.com/VotingM7011E/VotingService/internal/metrics"
	"github.com/VotingM7011E/VotingService/internal/repo"
	"github.com/VotingM7011E/VotingService/internal/testutil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deps struct {
	polls   *testutil.FakePollStorage
	options *testutil.FakeOptionStorage
	votes   *testutil.FakeVoteStorage
	logs    *testutil.RecordingLogStorage
	pub     *testutil.RecordingPublisher
	metrics *metrics.VotingMetrics
}

func newDeps() *deps {
	return &deps{
		polls:   &testutil.FakePollStorage{},
		options: &testutil.FakeOptionStorage{},
		votes:   &testutil.FakeVoteStorage{},
		logs:    &testutil.RecordingLogStorage{},
		pub:     &testutil.RecordingPublisher{},
		metrics: metrics.New(prometheus.NewRegistry(), "voting", "test"),
	}
}

func (d *deps) service() *Voting {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewVoting(log, d.polls, d.options, d.votes, d.logs, d.pub, d.metrics)
}

func TestVoting_CreatePoll_Success(t *testing.T) {
	d := newDeps()

	expected := entity.Poll{ID: 7, UUID: "5f0c1a2e", MeetingID: "m-1", Name: "Board election", Kind: entity.PollKindSingle, IsOpen: true}
	d.polls.SavePollFn = func(_ context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error) {
		assert.Equal(t, "m-1", meetingID)
		assert.Equal(t, "Board election", name)
		assert.Equal(t, entity.PollKindSingle, kind)
		assert.Nil(t, expectedVoters)
		assert.Equal(t, []string{"Alice", "Bob"}, options)
		return expected, nil
	}

	poll, err := d.service().CreatePoll(context.Background(), "m-1", "Board election", entity.PollKindSingle, nil, []string{"Alice", "Bob"})
	require.NoError(t, err)
	assert.Equal(t, expected, poll)

	require.Len(t, d.logs.Entries, 1)
	assert.Equal(t, "Voting.CreatePoll", d.logs.Entries[0].Action)

	require.Len(t, d.pub.Events, 1)
	assert.Equal(t, events.TypePollCreated, d.pub.Events[0].Type)
	assert.Equal(t, expected.UUID, d.pub.Events[0].Key)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(d.metrics.PollsCreated.WithLabelValues("single")))
}

func TestVoting_CreatePoll_Validation(t *testing.T) {
	zero := 0

	tests := []struct {
		name           string
		meetingID      string
		pollName       string
		kind           entity.PollKind
		expectedVoters *int
		options        []string
	}{
		{name: "empty meeting id", pollName: "Vote", kind: entity.PollKindSingle, options: []string{"A"}},
		{name: "empty name", meetingID: "m-1", kind: entity.PollKindSingle, options: []string{"A"}},
		{name: "unknown kind", meetingID: "m-1", pollName: "Vote", kind: entity.PollKind("approval"), options: []string{"A"}},
		{name: "no options", meetingID: "m-1", pollName: "Vote", kind: entity.PollKindRanked},
		{name: "empty option value", meetingID: "m-1", pollName: "Vote", kind: entity.PollKindSingle, options: []string{"A", ""}},
		{name: "duplicate option value", meetingID: "m-1", pollName: "Vote", kind: entity.PollKindSingle, options: []string{"A", "A"}},
		{name: "zero expected voters", meetingID: "m-1", pollName: "Vote", kind: entity.PollKindSingle, expectedVoters: &zero, options: []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()

			_, err := d.service().CreatePoll(context.Background(), tt.meetingID, tt.pollName, tt.kind, tt.expectedVoters, tt.options)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, d.pub.Events)
		})
	}
}

func openPoll(id int64, kind entity.PollKind) entity.Poll {
	return entity.Poll{ID: id, UUID: "9a411bd0", MeetingID: "m-1", Name: "Vote", Kind: kind, IsOpen: true}
}

func pollOptions(ids ...int64) []entity.Option {
	options := make([]entity.Option, 0, len(ids))
	for i, id := range ids {
		options = append(options, entity.Option{ID: id, PollID: 1, Value: gofakeit.Word(), OrderIndex: i + 1})
	}
	return options
}

func TestVoting_CastVote_Single_Success(t *testing.T) {
	d := newDeps()
	voterID := gofakeit.UUID()

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10, 20), nil
	}
	d.votes.SaveVoteFn = func(_ context.Context, pollID int64, gotVoter string, accepted *bool, selections []entity.SelectionInput) (entity.Vote, error) {
		assert.Equal(t, int64(5), pollID)
		assert.Equal(t, voterID, gotVoter)
		assert.Nil(t, accepted)
		require.Len(t, selections, 1)
		assert.Equal(t, int64(10), selections[0].OptionID)
		assert.Nil(t, selections[0].Rank)
		return entity.Vote{ID: 99, PollID: pollID, VoterID: gotVoter}, nil
	}

	vote, err := d.service().CastVote(context.Background(), 5, voterID, []int64{10}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(99), vote.ID)

	require.Len(t, d.logs.Entries, 1)
	assert.Equal(t, "Voting.CastVote", d.logs.Entries[0].Action)
	require.NotNil(t, d.logs.Entries[0].VoteID)
	assert.Equal(t, int64(99), *d.logs.Entries[0].VoteID)

	require.Len(t, d.pub.Events, 1)
	assert.Equal(t, events.TypeVoteCast, d.pub.Events[0].Type)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(d.metrics.VotesCast.WithLabelValues("single")))
}

func TestVoting_CastVote_RankedAssignsRanksInOrder(t *testing.T) {
	d := newDeps()

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindRanked), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10, 20, 30), nil
	}

	var captured []entity.SelectionInput
	d.votes.SaveVoteFn = func(_ context.Context, pollID int64, voterID string, _ *bool, selections []entity.SelectionInput) (entity.Vote, error) {
		captured = selections
		return entity.Vote{ID: 1, PollID: pollID, VoterID: voterID}, nil
	}

	_, err := d.service().CastVote(context.Background(), 5, "voter-1", []int64{30, 10, 20}, nil)
	require.NoError(t, err)

	require.Len(t, captured, 3)
	for i, wantOption := range []int64{30, 10, 20} {
		assert.Equal(t, wantOption, captured[i].OptionID)
		require.NotNil(t, captured[i].Rank)
		assert.Equal(t, i+1, *captured[i].Rank)
	}
}

func TestVoting_CastVote_Validation(t *testing.T) {
	accept := true

	tests := []struct {
		name      string
		kind      entity.PollKind
		voterID   string
		optionIDs []int64
		accepted  *bool
	}{
		{name: "empty voter id", kind: entity.PollKindSingle, optionIDs: []int64{10}},
		{name: "single no selection", kind: entity.PollKindSingle, voterID: "v-1"},
		{name: "single two selections", kind: entity.PollKindSingle, voterID: "v-1", optionIDs: []int64{10, 20}},
		{name: "single with accepted", kind: entity.PollKindSingle, voterID: "v-1", optionIDs: []int64{10}, accepted: &accept},
		{name: "ranked no selections", kind: entity.PollKindRanked, voterID: "v-1"},
		{name: "ranked duplicate option", kind: entity.PollKindRanked, voterID: "v-1", optionIDs: []int64{10, 20, 10}},
		{name: "ranked with accepted", kind: entity.PollKindRanked, voterID: "v-1", optionIDs: []int64{10, 20}, accepted: &accept},
		{name: "nomination with selections", kind: entity.PollKindNomination, voterID: "v-1", optionIDs: []int64{10}, accepted: &accept},
		{name: "nomination missing accepted", kind: entity.PollKindNomination, voterID: "v-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
				return openPoll(id, tt.kind), nil
			}
			d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
				return pollOptions(10, 20, 30), nil
			}

			_, err := d.service().CastVote(context.Background(), 1, tt.voterID, tt.optionIDs, tt.accepted)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, d.pub.Events)
		})
	}
}

func TestVoting_CastVote_OptionFromAnotherPoll(t *testing.T) {
	d := newDeps()

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10, 20), nil
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", []int64{99}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrOptionNotFound)
}

func TestVoting_CastVote_PollNotFound(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(context.Context, int64) (entity.Poll, error) {
		return entity.Poll{}, repo.ErrPollNotFound
	}

	_, err := d.service().CastVote(context.Background(), 404, "v-1", []int64{10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
}

func TestVoting_CastVote_ClosedPoll(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10), nil
	}
	d.votes.SaveVoteFn = func(context.Context, int64, string, *bool, []entity.SelectionInput) (entity.Vote, error) {
		return entity.Vote{}, repo.ErrPollClosed
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", []int64{10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollClosed)
	assert.Empty(t, d.pub.Events)
}

func TestVoting_CastVote_DuplicateVoter(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10), nil
	}
	d.votes.SaveVoteFn = func(context.Context, int64, string, *bool, []entity.SelectionInput) (entity.Vote, error) {
		return entity.Vote{}, repo.ErrVoteAlreadyExists
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", []int64{10}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrVoteAlreadyExists)
}

func TestVoting_CastVote_CompletesPollAtThreshold(t *testing.T) {
	d := newDeps()
	expected := 2
	accept := true

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		poll := openPoll(id, entity.PollKindNomination)
		poll.ExpectedVoters = &expected
		return poll, nil
	}
	d.votes.SaveVoteFn = func(_ context.Context, pollID int64, voterID string, accepted *bool, _ []entity.SelectionInput) (entity.Vote, error) {
		return entity.Vote{ID: 2, PollID: pollID, VoterID: voterID, Accepted: accepted}, nil
	}
	d.votes.CountVotesByPollIDFn = func(context.Context, int64) (int, error) { return 2, nil }
	d.polls.MarkPollCompletedFn = func(context.Context, int64) (bool, error) { return true, nil }

	_, err := d.service().CastVote(context.Background(), 1, "v-2", nil, &accept)
	require.NoError(t, err)

	require.Len(t, d.pub.Events, 2)
	assert.Equal(t, events.TypeVoteCast, d.pub.Events[0].Type)
	assert.Equal(t, events.TypePollCompleted, d.pub.Events[1].Type)

	require.Len(t, d.logs.Entries, 2)
	assert.Equal(t, "Voting.PollCompleted", d.logs.Entries[1].Action)
}

func TestVoting_CastVote_CompletionAlreadyMarked(t *testing.T) {
	d := newDeps()
	expected := 2
	accept := true

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		poll := openPoll(id, entity.PollKindNomination)
		poll.ExpectedVoters = &expected
		return poll, nil
	}
	d.votes.CountVotesByPollIDFn = func(context.Context, int64) (int, error) { return 3, nil }
	d.polls.MarkPollCompletedFn = func(context.Context, int64) (bool, error) { return false, nil }

	_, err := d.service().CastVote(context.Background(), 1, "v-3", nil, &accept)
	require.NoError(t, err)

	require.Len(t, d.pub.Events, 1)
	assert.Equal(t, events.TypeVoteCast, d.pub.Events[0].Type)
}

func TestVoting_CastVote_BelowThresholdSkipsCompletion(t *testing.T) {
	d := newDeps()
	expected := 5
	accept := true

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		poll := openPoll(id, entity.PollKindNomination)
		poll.ExpectedVoters = &expected
		return poll, nil
	}
	d.votes.CountVotesByPollIDFn = func(context.Context, int64) (int, error) { return 1, nil }
	d.polls.MarkPollCompletedFn = func(context.Context, int64) (bool, error) {
		t.Fatal("mark completed must not run below the threshold")
		return false, nil
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", nil, &accept)
	require.NoError(t, err)
}

func TestVoting_CastVote_AuditFailureDoesNotFailVote(t *testing.T) {
	d := newDeps()
	d.logs.Err = errors.New("logs table unavailable")

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10), nil
	}
	d.votes.SaveVoteFn = func(_ context.Context, pollID int64, voterID string, _ *bool, _ []entity.SelectionInput) (entity.Vote, error) {
		return entity.Vote{ID: 1, PollID: pollID, VoterID: voterID}, nil
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", []int64{10}, nil)
	require.NoError(t, err)

	require.Len(t, d.pub.Events, 1)
}

func TestVoting_CastVote_PublishFailureDoesNotFailVote(t *testing.T) {
	d := newDeps()
	d.pub.Err = errors.New("broker unreachable")

	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.options.GetOptionsByPollIDFn = func(context.Context, int64) ([]entity.Option, error) {
		return pollOptions(10), nil
	}
	d.votes.SaveVoteFn = func(_ context.Context, pollID int64, voterID string, _ *bool, _ []entity.SelectionInput) (entity.Vote, error) {
		return entity.Vote{ID: 1, PollID: pollID, VoterID: voterID}, nil
	}

	_, err := d.service().CastVote(context.Background(), 1, "v-1", []int64{10}, nil)
	require.NoError(t, err)

	require.Len(t, d.logs.Entries, 1)
}

func TestVoting_ClosePoll_Transition(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.polls.ClosePollFn = func(context.Context, int64) (bool, error) { return true, nil }

	transitioned, err := d.service().ClosePoll(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, transitioned)

	require.Len(t, d.pub.Events, 1)
	assert.Equal(t, events.TypePollClosed, d.pub.Events[0].Type)
	require.Len(t, d.logs.Entries, 1)
	assert.Equal(t, "Voting.ClosePoll", d.logs.Entries[0].Action)
}

func TestVoting_ClosePoll_RepeatIsNoOp(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		poll := openPoll(id, entity.PollKindSingle)
		poll.IsOpen = false
		return poll, nil
	}
	d.polls.ClosePollFn = func(context.Context, int64) (bool, error) { return false, nil }

	transitioned, err := d.service().ClosePoll(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, transitioned)

	assert.Empty(t, d.pub.Events)
	assert.Empty(t, d.logs.Entries)
}

func TestVoting_ClosePoll_NotFound(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(context.Context, int64) (entity.Poll, error) {
		return entity.Poll{}, repo.ErrPollNotFound
	}

	_, err := d.service().ClosePoll(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
}

func TestVoting_DeletePoll_PublishesEvent(t *testing.T) {
	d := newDeps()

	var deleted int64
	d.polls.GetPollByIDFn = func(_ context.Context, id int64) (entity.Poll, error) {
		return openPoll(id, entity.PollKindSingle), nil
	}
	d.polls.DeletePollFn = func(_ context.Context, id int64) error {
		deleted = id
		return nil
	}

	err := d.service().DeletePoll(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)

	require.Len(t, d.pub.Events, 1)
	assert.Equal(t, events.TypePollDeleted, d.pub.Events[0].Type)
}

func TestVoting_DeletePoll_NotFound(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(context.Context, int64) (entity.Poll, error) {
		return entity.Poll{}, repo.ErrPollNotFound
	}

	err := d.service().DeletePoll(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
	assert.Empty(t, d.pub.Events)
}

func TestVoting_Tally_ComputesFromSnapshot(t *testing.T) {
	d := newDeps()
	d.polls.GetPollSnapshotFn = func(_ context.Context, pollID int64) (entity.PollSnapshot, error) {
		return entity.PollSnapshot{
			Poll: entity.Poll{ID: pollID, Kind: entity.PollKindSingle},
			Options: []entity.Option{
				{ID: 10, PollID: pollID, Value: "Alice", OrderIndex: 1},
				{ID: 20, PollID: pollID, Value: "Bob", OrderIndex: 2},
			},
			Votes: []entity.Vote{
				{ID: 1, PollID: pollID, VoterID: "v-1", Selections: []entity.Selection{{VoteID: 1, OptionID: 20}}},
			},
		}, nil
	}

	result, err := d.service().Tally(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, result.Single)
	assert.Equal(t, 1, result.Single.TotalVotes)
	assert.Equal(t, []int64{20}, result.Single.Winners)
}

func TestVoting_Tally_NotFound(t *testing.T) {
	d := newDeps()
	d.polls.GetPollSnapshotFn = func(context.Context, int64) (entity.PollSnapshot, error) {
		return entity.PollSnapshot{}, repo.ErrPollNotFound
	}

	_, err := d.service().Tally(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
}

func TestVoting_GetVotesByPollID_PollNotFound(t *testing.T) {
	d := newDeps()
	d.polls.GetPollByIDFn = func(context.Context, int64) (entity.Poll, error) {
		return entity.Poll{}, repo.ErrPollNotFound
	}

	_, err := d.service().GetVotesByPollID(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
}
