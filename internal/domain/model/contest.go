package model

import "time"

type Contest struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Participants    []string   `json:"participants,omitempty"`
	IsBlocked       bool       `json:"is_blocked"`
	StartNotifiedAt *time.Time `json:"-"`
}
