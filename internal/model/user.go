package model

import "time"

type User struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Color             string    `json:"color"`
	TotalPoints       int       `json:"total_points"`
	SuperPoints       int       `json:"super_points"`
	CurrentStreakDays int       `json:"current_streak_days"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
