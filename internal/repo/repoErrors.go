package repo

import "errors"

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrVoteNotFound   = errors.New("vote not found")

	ErrPollClosed        = errors.New("poll is closed")
	ErrVoteAlreadyExists = errors.New("vote already exists")
	ErrDuplicateOption   = errors.New("duplicate option")
	ErrDuplicateRank     = errors.New("duplicate rank")
)
