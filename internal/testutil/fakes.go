// Package testutil provides hand-written storage and publisher fakes for
// service and handler tests. Function fields left nil fall back to zero
// values, so each test wires only the calls it cares about.
package testutil

import (
	"context"

	"github.com/VotingM7011E/VotingService/internal/entity"
)

type FakePollStorage struct {
	SavePollFn            func(ctx context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error)
	GetPollByIDFn         func(ctx context.Context, id int64) (entity.Poll, error)
	GetPollsFn            func(ctx context.Context) ([]entity.Poll, error)
	GetPollsByMeetingIDFn func(ctx context.Context, meetingID string) ([]entity.Poll, error)
	ClosePollFn           func(ctx context.Context, id int64) (bool, error)
	MarkPollCompletedFn   func(ctx context.Context, id int64) (bool, error)
	DeletePollFn          func(ctx context.Context, id int64) error
	GetPollSnapshotFn     func(ctx context.Context, pollID int64) (entity.PollSnapshot, error)
}

func (f *FakePollStorage) SavePoll(ctx context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error) {
	if f.SavePollFn == nil {
		return entity.Poll{}, nil
	}
	return f.SavePollFn(ctx, meetingID, name, kind, expectedVoters, options)
}

func (f *FakePollStorage) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	if f.GetPollByIDFn == nil {
		return entity.Poll{}, nil
	}
	return f.GetPollByIDFn(ctx, id)
}

func (f *FakePollStorage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	if f.GetPollsFn == nil {
		return nil, nil
	}
	return f.GetPollsFn(ctx)
}

func (f *FakePollStorage) GetPollsByMeetingID(ctx context.Context, meetingID string) ([]entity.Poll, error) {
	if f.GetPollsByMeetingIDFn == nil {
		return nil, nil
	}
	return f.GetPollsByMeetingIDFn(ctx, meetingID)
}

func (f *FakePollStorage) ClosePoll(ctx context.Context, id int64) (bool, error) {
	if f.ClosePollFn == nil {
		return false, nil
	}
	return f.ClosePollFn(ctx, id)
}

func (f *FakePollStorage) MarkPollCompleted(ctx context.Context, id int64) (bool, error) {
	if f.MarkPollCompletedFn == nil {
		return false, nil
	}
	return f.MarkPollCompletedFn(ctx, id)
}

func (f *FakePollStorage) DeletePoll(ctx context.Context, id int64) error {
	if f.DeletePollFn == nil {
		return nil
	}
	return f.DeletePollFn(ctx, id)
}

func (f *FakePollStorage) GetPollSnapshot(ctx context.Context, pollID int64) (entity.PollSnapshot, error) {
	if f.GetPollSnapshotFn == nil {
		return entity.PollSnapshot{}, nil
	}
	return f.GetPollSnapshotFn(ctx, pollID)
}

type FakeOptionStorage struct {
	GetOptionsByPollIDFn func(ctx context.Context, pollID int64) ([]entity.Option, error)
}

func (f *FakeOptionStorage) GetOptionsByPollID(ctx context.Context, pollID int64) ([]entity.Option, error) {
	if f.GetOptionsByPollIDFn == nil {
		return nil, nil
	}
	return f.GetOptionsByPollIDFn(ctx, pollID)
}

type FakeVoteStorage struct {
	SaveVoteFn           func(ctx context.Context, pollID int64, voterID string, accepted *bool, selections []entity.SelectionInput) (entity.Vote, error)
	GetVotesByPollIDFn   func(ctx context.Context, pollID int64) ([]entity.Vote, error)
	CountVotesByPollIDFn func(ctx context.Context, pollID int64) (int, error)
}

func (f *FakeVoteStorage) SaveVote(ctx context.Context, pollID int64, voterID string, accepted *bool, selections []entity.SelectionInput) (entity.Vote, error) {
	if f.SaveVoteFn == nil {
		return entity.Vote{}, nil
	}
	return f.SaveVoteFn(ctx, pollID, voterID, accepted, selections)
}

func (f *FakeVoteStorage) GetVotesByPollID(ctx context.Context, pollID int64) ([]entity.Vote, error) {
	if f.GetVotesByPollIDFn == nil {
		return nil, nil
	}
	return f.GetVotesByPollIDFn(ctx, pollID)
}

func (f *FakeVoteStorage) CountVotesByPollID(ctx context.Context, pollID int64) (int, error) {
	if f.CountVotesByPollIDFn == nil {
		return 0, nil
	}
	return f.CountVotesByPollIDFn(ctx, pollID)
}

// RecordingLogStorage keeps appended audit entries in memory. Err, when set,
// makes SaveLog fail, for exercising the swallow-and-warn path.
type RecordingLogStorage struct {
	Entries []entity.Log
	Err     error
}

func (r *RecordingLogStorage) SaveLog(_ context.Context, log *entity.Log) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	log.ID = int64(len(r.Entries) + 1)
	r.Entries = append(r.Entries, *log)
	return log.ID, nil
}

func (r *RecordingLogStorage) GetLogs(_ context.Context) ([]entity.Log, error) {
	return r.Entries, nil
}

type PublishedEvent struct {
	Type string
	Key  string
	Data interface{}
}

// RecordingPublisher collects published events. Err, when set, makes Publish
// fail without recording.
type RecordingPublisher struct {
	Events []PublishedEvent
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, eventType, key string, data interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, PublishedEvent{Type: eventType, Key: key, Data: data})
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }
