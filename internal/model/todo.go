package model

import "time"

// Recurrence types stored on a todo. Empty means one-off.
const (
	RecurrenceNone   = ""
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

type Todo struct {
	ID               int64      `json:"id"`
	UserID           *int64     `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completed_at"`
	SpecificDate     string     `json:"specific_date,omitempty"`
	RecurrenceType   string     `json:"recurrence_type"`
	RecurrenceDays   []int      `json:"recurrence_days"`
	PointsEarned     int        `json:"points_earned"`
	PauseUsed        bool       `json:"pause_used"`
	SuperPointUsed   bool       `json:"super_point_used"`
	ActualTimeSecs   *int       `json:"actual_time_seconds"`
	LastActivityDate string     `json:"last_activity_date,omitempty"`
	IsOpenList       bool       `json:"is_open_list"`
	ClaimedByUserID  *int64     `json:"claimed_by_user_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Recurring reports whether the todo is a daily or weekly series.
func (t *Todo) Recurring() bool {
	return t.RecurrenceType != RecurrenceNone
}

// RecurringCompletion records one completed occurrence of a recurring todo.
// The base todo row is never marked completed for recurring todos; per-date
// completion state lives here.
type RecurringCompletion struct {
	ID             int64     `json:"id"`
	TodoID         int64     `json:"todo_id"`
	CompletionDate string    `json:"completion_date"`
	PointsEarned   int       `json:"points_earned"`
	PauseUsed      bool      `json:"pause_used"`
	SuperPointUsed bool      `json:"super_point_used"`
	ActualTimeSecs *int      `json:"actual_time_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecurringException suppresses a single occurrence of a recurring todo
// without deleting the series.
type RecurringException struct {
	ID            int64     `json:"id"`
	TodoID        int64     `json:"todo_id"`
	ExceptionDate string    `json:"exception_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// DailyCompletion is the per-user, per-date rollup of whether every
// applicable todo was completed on time.
type DailyCompletion struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	CompletionDate     string    `json:"completion_date"`
	AllCompletedOnTime bool      `json:"all_completed_on_time"`
	CreatedAt          time.Time `json:"created_at"`
}
