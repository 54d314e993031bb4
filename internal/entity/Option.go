package entity

import "time"

type Option struct {
	ID         int64     `json:"id"`
	PollID     int64     `json:"poll_id"`
	Value      string    `json:"value"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}
