// Package tracker reconciles completion events with the per-day rollup and
// the consecutive-day streak. It is the only writer of daily_completions and
// the user streak/milestone fields.
package tracker

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/schedule"
	"github.com/dukerupert/questboard/internal/scoring"
	"github.com/dukerupert/questboard/internal/store"
)

// OpenListBonus is the flat point bonus for completing a claimed open-list
// todo.
const OpenListBonus = 10

type Tracker struct {
	db     *sql.DB
	todos  *store.TodoStore
	users  *store.UserStore
	logger *slog.Logger
}

func New(db *sql.DB, todos *store.TodoStore, users *store.UserStore, logger *slog.Logger) *Tracker {
	return &Tracker{db: db, todos: todos, users: users, logger: logger}
}

// Completion is the per-occurrence outcome being recorded.
type Completion struct {
	PointsEarned   int
	PauseUsed      bool
	SuperPointUsed bool
	ActualTimeSecs *int
}

// RecordCompletion credits the user's points, persists the per-date overlay
// for recurring todos, and re-evaluates the day and streak. The whole flow
// runs in one transaction so a failure leaves no points credited without the
// rollup and streak that go with them.
func (t *Tracker) RecordCompletion(todo *model.Todo, userID int64, date schedule.Date, c Completion) error {
	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	todos := t.todos.WithTx(tx)
	users := t.users.WithTx(tx)

	credit := c.PointsEarned
	if todo.IsOpenList {
		credit += OpenListBonus
	}
	if err := users.AddPoints(userID, credit); err != nil {
		return err
	}

	if todo.Recurring() {
		if err := todos.UpsertCompletion(todo.ID, date, c.PointsEarned, c.PauseUsed, c.SuperPointUsed, c.ActualTimeSecs); err != nil {
			return err
		}
	}

	if err := t.evaluateDay(todos, users, userID, date); err != nil {
		return err
	}

	return tx.Commit()
}

// ReevaluateDay recomputes the perfect-day verdict and streak for (user,
// date) without crediting points. Used when a task's on-time status changes
// after its completion was recorded, such as a super point applied
// retroactively to an overtime task.
func (t *Tracker) ReevaluateDay(userID int64, date schedule.Date) error {
	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := t.evaluateDay(t.todos.WithTx(tx), t.users.WithTx(tx), userID, date); err != nil {
		return err
	}
	return tx.Commit()
}

// evaluateDay recomputes the perfect-day verdict for (user, date) and, when
// the day is perfect, the streak. Runs on every completion affecting the
// date, so an earlier false verdict can flip once the last todo is done.
func (t *Tracker) evaluateDay(todos *store.TodoStore, users *store.UserStore, userID int64, date schedule.Date) error {
	tasks, err := todos.ListForDate(userID, date)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	allOnTime := true
	for i := range tasks {
		task := &tasks[i]
		if !task.Completed || !scoring.OnTime(task.EstimatedMinutes, task.ActualTimeSecs, task.SuperPointUsed) {
			allOnTime = false
			break
		}
	}

	if err := todos.UpsertDailyCompletion(userID, date, allOnTime); err != nil {
		return err
	}
	if !allOnTime {
		return nil
	}
	return t.recomputeStreak(todos, users, userID)
}

// recomputeStreak overwrites the user's streak with the contiguous run of
// perfect days ending at the most recent one, and grants a milestone bonus
// when the run reaches one. The bonus is granted only when the stored streak
// was still below the milestone, so re-evaluating the same date cannot award
// twice.
func (t *Tracker) recomputeStreak(todos *store.TodoStore, users *store.UserStore, userID int64) error {
	dates, err := todos.ListPerfectDates(userID)
	if err != nil {
		return err
	}
	if len(dates) == 0 {
		return nil
	}

	streak := scoring.StreakLength(dates)

	user, err := users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	if err := users.SetStreak(userID, streak); err != nil {
		return err
	}

	points, superPoints := scoring.MilestoneAward(streak)
	if (points == 0 && superPoints == 0) || user.CurrentStreakDays >= streak {
		return nil
	}

	if points > 0 {
		if err := users.AddPoints(userID, points); err != nil {
			return err
		}
	}
	if superPoints > 0 {
		if err := users.AddSuperPoints(userID, superPoints); err != nil {
			return err
		}
	}

	t.logger.Info("streak milestone reached",
		"user_id", userID,
		"streak", streak,
		"bonus_points", points,
		"bonus_super_points", superPoints,
	)
	return nil
}
