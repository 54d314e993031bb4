package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/VotingM7011E/VotingService/internal/entity"
	"github.com/VotingM7011E/VotingService/internal/repo"
	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// constraintError translates Postgres constraint violations into the storage
// sentinel errors. Returns nil when err is not a recognized violation.
func constraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		switch pqErr.Constraint {
		case "uix_votes_pollid_voterid":
			return repo.ErrVoteAlreadyExists
		case "uix_polloption_pollid_value", "uix_polloption_pollid_order", "uix_voteselections_voteid_optionid":
			return repo.ErrDuplicateOption
		case "uix_voteselections_voteid_rank":
			return repo.ErrDuplicateRank
		}
	case "23503": // foreign_key_violation
		switch pqErr.Constraint {
		case "votes_poll_id_fkey", "poll_options_poll_id_fkey":
			return repo.ErrPollNotFound
		case "vote_selections_poll_option_id_fkey":
			return repo.ErrOptionNotFound
		case "vote_selections_vote_id_fkey":
			return repo.ErrVoteNotFound
		}
	}

	return nil
}

// SavePoll persists a poll and its options in one transaction. Option order
// indices are assigned from the input sequence, starting at 1.
func (s *Storage) SavePoll(ctx context.Context, meetingID, name string, kind entity.PollKind, expectedVoters *int, options []string) (entity.Poll, error) {
	const op = "storage.postgres.SavePoll"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	poll := entity.Poll{
		MeetingID:      meetingID,
		Name:           name,
		Kind:           kind,
		ExpectedVoters: expectedVoters,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO polls (meeting_id, name, poll_type, expected_voters) VALUES ($1, $2, $3, $4)
		 RETURNING id, uuid, is_open, completed, created_at`,
		meetingID, name, kind, expectedVoters,
	).Scan(&poll.ID, &poll.UUID, &poll.IsOpen, &poll.Completed, &poll.CreatedAt)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	for i, value := range options {
		option := entity.Option{
			PollID:     poll.ID,
			Value:      value,
			OrderIndex: i + 1,
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO poll_options (poll_id, option_value, option_order) VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			poll.ID, value, option.OrderIndex,
		).Scan(&option.ID, &option.CreatedAt)
		if err != nil {
			if cerr := constraintError(err); cerr != nil {
				return entity.Poll{}, fmt.Errorf("%s: %w", op, cerr)
			}
			return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
		}

		poll.Options = append(poll.Options, option)
	}

	if err := tx.Commit(); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "storage.postgres.GetPollByID"

	query := `SELECT id, uuid, meeting_id, name, poll_type, expected_voters, is_open, completed, created_at
	          FROM polls WHERE id = $1`

	var poll entity.Poll
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&poll.ID, &poll.UUID, &poll.MeetingID, &poll.Name, &poll.Kind,
		&poll.ExpectedVoters, &poll.IsOpen, &poll.Completed, &poll.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPolls"

	query := `SELECT id, uuid, meeting_id, name, poll_type, expected_voters, is_open, completed, created_at
	          FROM polls ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanPolls(rows, op)
}

func (s *Storage) GetPollsByMeetingID(ctx context.Context, meetingID string) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPollsByMeetingID"

	query := `SELECT id, uuid, meeting_id, name, poll_type, expected_voters, is_open, completed, created_at
	          FROM polls WHERE meeting_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanPolls(rows, op)
}

func scanPolls(rows *sql.Rows, op string) ([]entity.Poll, error) {
	var polls []entity.Poll
	for rows.Next() {
		var poll entity.Poll
		if err := rows.Scan(
			&poll.ID, &poll.UUID, &poll.MeetingID, &poll.Name, &poll.Kind,
			&poll.ExpectedVoters, &poll.IsOpen, &poll.Completed, &poll.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return polls, nil
}

// ClosePoll moves a poll to closed. The returned bool reports whether this
// call performed the open→closed transition; closing a closed poll is a no-op.
func (s *Storage) ClosePoll(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgres.ClosePoll"

	res, err := s.db.ExecContext(ctx, `UPDATE polls SET is_open = FALSE WHERE id = $1 AND is_open = TRUE`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM polls WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	return false, nil
}

// MarkPollCompleted flips the completed flag. The returned bool reports
// whether this call performed the transition, so the caller notifies once
// even when concurrent final votes race here.
func (s *Storage) MarkPollCompleted(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgres.MarkPollCompleted"

	res, err := s.db.ExecContext(ctx, `UPDATE polls SET completed = TRUE WHERE id = $1 AND completed = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeletePoll removes the poll; options, votes and selections go with it via
// the ON DELETE CASCADE foreign keys.
func (s *Storage) DeletePoll(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeletePoll"

	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	return nil
}

func (s *Storage) GetOptionsByPollID(ctx context.Context, pollID int64) ([]entity.Option, error) {
	const op = "storage.postgres.GetOptionsByPollID"

	query := `SELECT id, poll_id, option_value, option_order, created_at
	          FROM poll_options WHERE poll_id = $1 ORDER BY option_order`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var options []entity.Option
	for rows.Next() {
		var option entity.Option
		if err := rows.Scan(&option.ID, &option.PollID, &option.Value, &option.OrderIndex, &option.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		options = append(options, option)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return options, nil
}

// SaveVote persists a vote and its selections in one transaction. The poll's
// open state is re-checked inside the transaction and voter uniqueness is
// left to the (poll_id, voter_id) constraint, so concurrent duplicates end
// with exactly one committed vote and no partial rows.
func (s *Storage) SaveVote(ctx context.Context, pollID int64, voterID string, accepted *bool, selections []entity.SelectionInput) (entity.Vote, error) {
	const op = "storage.postgres.SaveVote"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var isOpen bool
	err = tx.QueryRowContext(ctx, `SELECT is_open FROM polls WHERE id = $1`, pollID).Scan(&isOpen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Vote{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}
	if !isOpen {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, repo.ErrPollClosed)
	}

	vote := entity.Vote{
		PollID:   pollID,
		VoterID:  voterID,
		Accepted: accepted,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO votes (poll_id, voter_id, accepted) VALUES ($1, $2, $3) RETURNING id, created_at`,
		pollID, voterID, accepted,
	).Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return entity.Vote{}, fmt.Errorf("%s: %w", op, cerr)
		}
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, sel := range selections {
		selection := entity.Selection{
			VoteID:   vote.ID,
			OptionID: sel.OptionID,
			Rank:     sel.Rank,
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO vote_selections (vote_id, poll_option_id, rank_order) VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			vote.ID, sel.OptionID, sel.Rank,
		).Scan(&selection.ID, &selection.CreatedAt)
		if err != nil {
			if cerr := constraintError(err); cerr != nil {
				return entity.Vote{}, fmt.Errorf("%s: %w", op, cerr)
			}
			return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
		}

		vote.Selections = append(vote.Selections, selection)
	}

	if err := tx.Commit(); err != nil {
		return entity.Vote{}, fmt.Errorf("%s: %w", op, err)
	}

	return vote, nil
}

func (s *Storage) GetVotesByPollID(ctx context.Context, pollID int64) ([]entity.Vote, error) {
	const op = "storage.postgres.GetVotesByPollID"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, poll_id, voter_id, accepted, created_at FROM votes WHERE poll_id = $1 ORDER BY id`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	votes, index, err := scanVotes(rows, op)
	if err != nil {
		return nil, err
	}

	selRows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.vote_id, s.poll_option_id, s.rank_order, s.created_at
		 FROM vote_selections s JOIN votes v ON v.id = s.vote_id
		 WHERE v.poll_id = $1 ORDER BY s.vote_id, s.rank_order`,
		pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer selRows.Close()

	if err := attachSelections(selRows, votes, index, op); err != nil {
		return nil, err
	}

	return votes, nil
}

func (s *Storage) CountVotesByPollID(ctx context.Context, pollID int64) (int, error) {
	const op = "storage.postgres.CountVotesByPollID"

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// GetPollSnapshot reads the poll, its options and its votes with selections
// inside one read-only repeatable-read transaction, giving the tally a view
// consistent at transaction start without locking out writers.
func (s *Storage) GetPollSnapshot(ctx context.Context, pollID int64) (entity.PollSnapshot, error) {
	const op = "storage.postgres.GetPollSnapshot"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var snapshot entity.PollSnapshot
	err = tx.QueryRowContext(ctx,
		`SELECT id, uuid, meeting_id, name, poll_type, expected_voters, is_open, completed, created_at
		 FROM polls WHERE id = $1`,
		pollID,
	).Scan(
		&snapshot.Poll.ID, &snapshot.Poll.UUID, &snapshot.Poll.MeetingID, &snapshot.Poll.Name,
		&snapshot.Poll.Kind, &snapshot.Poll.ExpectedVoters, &snapshot.Poll.IsOpen,
		&snapshot.Poll.Completed, &snapshot.Poll.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	optRows, err := tx.QueryContext(ctx,
		`SELECT id, poll_id, option_value, option_order, created_at
		 FROM poll_options WHERE poll_id = $1 ORDER BY option_order`,
		pollID,
	)
	if err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var option entity.Option
		if err := optRows.Scan(&option.ID, &option.PollID, &option.Value, &option.OrderIndex, &option.CreatedAt); err != nil {
			return entity.PollSnapshot{}, fmt.Errorf("%s: scan: %w", op, err)
		}
		snapshot.Options = append(snapshot.Options, option)
	}
	if err := optRows.Err(); err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: rows error: %w", op, err)
	}

	voteRows, err := tx.QueryContext(ctx,
		`SELECT id, poll_id, voter_id, accepted, created_at FROM votes WHERE poll_id = $1 ORDER BY id`,
		pollID,
	)
	if err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	defer voteRows.Close()

	votes, index, err := scanVotes(voteRows, op)
	if err != nil {
		return entity.PollSnapshot{}, err
	}

	selRows, err := tx.QueryContext(ctx,
		`SELECT s.id, s.vote_id, s.poll_option_id, s.rank_order, s.created_at
		 FROM vote_selections s JOIN votes v ON v.id = s.vote_id
		 WHERE v.poll_id = $1 ORDER BY s.vote_id, s.rank_order`,
		pollID,
	)
	if err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	defer selRows.Close()

	if err := attachSelections(selRows, votes, index, op); err != nil {
		return entity.PollSnapshot{}, err
	}
	snapshot.Votes = votes

	if err := tx.Commit(); err != nil {
		return entity.PollSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return snapshot, nil
}

func scanVotes(rows *sql.Rows, op string) ([]entity.Vote, map[int64]int, error) {
	var votes []entity.Vote
	index := make(map[int64]int)

	for rows.Next() {
		var vote entity.Vote
		if err := rows.Scan(&vote.ID, &vote.PollID, &vote.VoterID, &vote.Accepted, &vote.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		index[vote.ID] = len(votes)
		votes = append(votes, vote)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return votes, index, nil
}

func attachSelections(rows *sql.Rows, votes []entity.Vote, index map[int64]int, op string) error {
	for rows.Next() {
		var selection entity.Selection
		if err := rows.Scan(&selection.ID, &selection.VoteID, &selection.OptionID, &selection.Rank, &selection.CreatedAt); err != nil {
			return fmt.Errorf("%s: scan: %w", op, err)
		}
		if i, ok := index[selection.VoteID]; ok {
			votes[i].Selections = append(votes[i].Selections, selection)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: rows error: %w", op, err)
	}

	return nil
}

func (s *Storage) SaveLog(ctx context.Context, log *entity.Log) (int64, error) {
	const op = "storage.postgres.SaveLog"

	query := `INSERT INTO logs (action, poll_id, vote_id, voter_id) VALUES ($1, $2, $3, $4) RETURNING id`

	err := s.db.QueryRowContext(ctx, query, log.Action, log.PollID, log.VoteID, log.VoterID).Scan(&log.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return log.ID, nil
}

func (s *Storage) GetLogs(ctx context.Context) ([]entity.Log, error) {
	const op = "storage.postgres.GetLogs"

	query := `SELECT id, action, poll_id, vote_id, voter_id, created_at FROM logs ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var logs []entity.Log
	for rows.Next() {
		var log entity.Log
		if err := rows.Scan(&log.ID, &log.Action, &log.PollID, &log.VoteID, &log.VoterID, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return logs, nil
}
