package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/schedule"
)

type TodoStore struct {
	db dbtx
}

func NewTodoStore(db *sql.DB) *TodoStore {
	return &TodoStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *TodoStore) WithTx(tx *sql.Tx) *TodoStore {
	return &TodoStore{db: tx}
}

const todoCols = `id, user_id, title, description, estimated_minutes, remaining_seconds,
	completed, completed_at, specific_date, recurrence_type, recurrence_days,
	points_earned, pause_used, super_point_used, actual_time_seconds,
	last_activity_date, is_open_list, claimed_by_user_id, created_at, updated_at`

// todoColsQualified is todoCols with a todos. prefix, for queries that join
// tables sharing column names (id, created_at).
const todoColsQualified = `todos.id, todos.user_id, todos.title, todos.description, todos.estimated_minutes, todos.remaining_seconds,
	todos.completed, todos.completed_at, todos.specific_date, todos.recurrence_type, todos.recurrence_days,
	todos.points_earned, todos.pause_used, todos.super_point_used, todos.actual_time_seconds,
	todos.last_activity_date, todos.is_open_list, todos.claimed_by_user_id, todos.created_at, todos.updated_at`

func scanTodo(scanner interface{ Scan(...any) error }) (*model.Todo, error) {
	var t model.Todo
	var userID, claimedBy, actualSecs sql.NullInt64
	var completedAt sql.NullTime
	var specificDate, lastActivity sql.NullString
	var completed, pauseUsed, superUsed, openList int
	var days string

	err := scanner.Scan(
		&t.ID, &userID, &t.Title, &t.Description, &t.EstimatedMinutes, &t.RemainingSeconds,
		&completed, &completedAt, &specificDate, &t.RecurrenceType, &days,
		&t.PointsEarned, &pauseUsed, &superUsed, &actualSecs,
		&lastActivity, &openList, &claimedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		t.UserID = &userID.Int64
	}
	if claimedBy.Valid {
		t.ClaimedByUserID = &claimedBy.Int64
	}
	if actualSecs.Valid {
		v := int(actualSecs.Int64)
		t.ActualTimeSecs = &v
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	t.SpecificDate = specificDate.String
	t.LastActivityDate = lastActivity.String
	t.Completed = completed != 0
	t.PauseUsed = pauseUsed != 0
	t.SuperPointUsed = superUsed != 0
	t.IsOpenList = openList != 0

	if err := json.Unmarshal([]byte(days), &t.RecurrenceDays); err != nil {
		return nil, fmt.Errorf("decode recurrence days: %w", err)
	}
	if t.RecurrenceDays == nil {
		t.RecurrenceDays = []int{}
	}
	return &t, nil
}

type CreateTodoParams struct {
	UserID           *int64
	Title            string
	Description      string
	EstimatedMinutes int
	SpecificDate     string
	RecurrenceType   string
	RecurrenceDays   []int
	IsOpenList       bool
}

func (s *TodoStore) Create(p CreateTodoParams) (*model.Todo, error) {
	days := p.RecurrenceDays
	if days == nil {
		days = []int{}
	}
	encoded, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence days: %w", err)
	}

	var specificDate sql.NullString
	if p.SpecificDate != "" {
		specificDate = sql.NullString{String: p.SpecificDate, Valid: true}
	}
	openList := 0
	if p.IsOpenList {
		openList = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO todos (user_id, title, description, estimated_minutes, remaining_seconds,
			specific_date, recurrence_type, recurrence_days, is_open_list)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(p.UserID), p.Title, p.Description, p.EstimatedMinutes, p.EstimatedMinutes*60,
		specificDate, p.RecurrenceType, string(encoded), openList,
	)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TodoStore) GetByID(id int64) (*model.Todo, error) {
	row := s.db.QueryRow(`SELECT `+todoCols+` FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// ListForDate resolves the effective set of a user's todos for a calendar
// date: one-off todos dated that day plus recurring todos whose schedule
// covers it, minus per-date exceptions, with that date's completion overlay
// applied. Recurring todos not yet touched that day are reported with a
// fresh countdown without writing the base row.
func (s *TodoStore) ListForDate(userID int64, date schedule.Date) ([]model.Todo, error) {
	rows, err := s.db.Query(
		`SELECT `+todoColsQualified+`,
			rc.id, rc.points_earned, rc.pause_used, rc.super_point_used, rc.actual_time_seconds
		 FROM todos
		 LEFT JOIN recurring_completions rc
			ON rc.todo_id = todos.id AND rc.completion_date = ?
		 LEFT JOIN recurring_exceptions re
			ON re.todo_id = todos.id AND re.exception_date = ?
		 WHERE todos.user_id = ? AND re.id IS NULL
			AND (todos.specific_date = ? OR todos.recurrence_type != '')
		 ORDER BY todos.created_at DESC, todos.id DESC`,
		date.String(), date.String(), userID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list todos for date: %w", err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		t, overlay, err := scanTodoWithOverlay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		if !schedule.AppliesOn(t, date) {
			continue
		}
		if t.Recurring() {
			resolveRecurring(t, overlay, date)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Incomplete first; creation order is preserved within each group.
	sort.SliceStable(todos, func(i, j int) bool {
		return !todos[i].Completed && todos[j].Completed
	})
	return todos, nil
}

type completionOverlay struct {
	PointsEarned   int
	PauseUsed      bool
	SuperPointUsed bool
	ActualTimeSecs *int
}

func scanTodoWithOverlay(rows *sql.Rows) (*model.Todo, *completionOverlay, error) {
	var t model.Todo
	var userID, claimedBy, actualSecs sql.NullInt64
	var completedAt sql.NullTime
	var specificDate, lastActivity sql.NullString
	var completed, pauseUsed, superUsed, openList int
	var days string
	var rcID, rcPoints, rcPause, rcSuper, rcActual sql.NullInt64

	err := rows.Scan(
		&t.ID, &userID, &t.Title, &t.Description, &t.EstimatedMinutes, &t.RemainingSeconds,
		&completed, &completedAt, &specificDate, &t.RecurrenceType, &days,
		&t.PointsEarned, &pauseUsed, &superUsed, &actualSecs,
		&lastActivity, &openList, &claimedBy, &t.CreatedAt, &t.UpdatedAt,
		&rcID, &rcPoints, &rcPause, &rcSuper, &rcActual,
	)
	if err != nil {
		return nil, nil, err
	}

	if userID.Valid {
		t.UserID = &userID.Int64
	}
	if claimedBy.Valid {
		t.ClaimedByUserID = &claimedBy.Int64
	}
	if actualSecs.Valid {
		v := int(actualSecs.Int64)
		t.ActualTimeSecs = &v
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	t.SpecificDate = specificDate.String
	t.LastActivityDate = lastActivity.String
	t.Completed = completed != 0
	t.PauseUsed = pauseUsed != 0
	t.SuperPointUsed = superUsed != 0
	t.IsOpenList = openList != 0

	if err := json.Unmarshal([]byte(days), &t.RecurrenceDays); err != nil {
		return nil, nil, fmt.Errorf("decode recurrence days: %w", err)
	}
	if t.RecurrenceDays == nil {
		t.RecurrenceDays = []int{}
	}

	if !rcID.Valid {
		return &t, nil, nil
	}
	o := &completionOverlay{
		PointsEarned:   int(rcPoints.Int64),
		PauseUsed:      rcPause.Int64 != 0,
		SuperPointUsed: rcSuper.Int64 != 0,
	}
	if rcActual.Valid {
		v := int(rcActual.Int64)
		o.ActualTimeSecs = &v
	}
	return &t, o, nil
}

// resolveRecurring overlays per-date completion state onto a recurring todo.
// With a completion for the date, the todo reads as done with the overlay's
// values. Without one, a date the todo's timer has not touched yet gets a
// fresh countdown; the todo's own date keeps its mid-timer fields.
func resolveRecurring(t *model.Todo, overlay *completionOverlay, date schedule.Date) {
	if overlay != nil {
		t.Completed = true
		t.PointsEarned = overlay.PointsEarned
		t.PauseUsed = overlay.PauseUsed
		t.SuperPointUsed = overlay.SuperPointUsed
		t.ActualTimeSecs = overlay.ActualTimeSecs
		return
	}

	t.Completed = false
	if t.LastActivityDate != date.String() {
		t.RemainingSeconds = t.EstimatedMinutes * 60
		t.PauseUsed = false
		t.SuperPointUsed = false
		t.ActualTimeSecs = nil
		t.PointsEarned = 0
	}
}

// ListOpenList returns unclaimed, incomplete open-list todos, newest first.
func (s *TodoStore) ListOpenList() ([]model.Todo, error) {
	rows, err := s.db.Query(
		`SELECT ` + todoCols + ` FROM todos
		 WHERE is_open_list = 1 AND claimed_by_user_id IS NULL AND completed = 0
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list open list: %w", err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

// TodoPatch carries partial-update fields; nil fields keep the stored value.
type TodoPatch struct {
	Title            *string
	Description      *string
	EstimatedMinutes *int
	RemainingSeconds *int
	Completed        *bool
	CompletedAt      *time.Time
	PointsEarned     *int
	PauseUsed        *bool
	SuperPointUsed   *bool
	ActualTimeSecs   *int
	LastActivityDate *string
}

func (s *TodoStore) UpdateFields(id int64, p TodoPatch) (*model.Todo, error) {
	_, err := s.db.Exec(
		`UPDATE todos SET
			title = COALESCE(?, title),
			description = COALESCE(?, description),
			estimated_minutes = COALESCE(?, estimated_minutes),
			remaining_seconds = COALESCE(?, remaining_seconds),
			completed = COALESCE(?, completed),
			completed_at = COALESCE(?, completed_at),
			points_earned = COALESCE(?, points_earned),
			pause_used = COALESCE(?, pause_used),
			super_point_used = COALESCE(?, super_point_used),
			actual_time_seconds = COALESCE(?, actual_time_seconds),
			last_activity_date = COALESCE(?, last_activity_date),
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullString(p.Title), nullString(p.Description), nullInt(p.EstimatedMinutes),
		nullInt(p.RemainingSeconds), nullBool(p.Completed), nullTime(p.CompletedAt),
		nullInt(p.PointsEarned), nullBool(p.PauseUsed), nullBool(p.SuperPointUsed),
		nullInt(p.ActualTimeSecs), nullString(p.LastActivityDate), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return s.GetByID(id)
}

func (s *TodoStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// Claim assigns an open-list todo to a user. Returns false if the todo is
// not an unclaimed open-list todo — a lost race reads as zero rows affected.
func (s *TodoStore) Claim(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE todos SET claimed_by_user_id = ?, user_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND is_open_list = 1 AND claimed_by_user_id IS NULL`,
		userID, userID, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim todo: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Recurring completion overlay ---

const completionCols = `id, todo_id, completion_date, points_earned, pause_used, super_point_used, actual_time_seconds, created_at`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.RecurringCompletion, error) {
	var c model.RecurringCompletion
	var pauseUsed, superUsed int
	var actualSecs sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.TodoID, &c.CompletionDate, &c.PointsEarned,
		&pauseUsed, &superUsed, &actualSecs, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.PauseUsed = pauseUsed != 0
	c.SuperPointUsed = superUsed != 0
	if actualSecs.Valid {
		v := int(actualSecs.Int64)
		c.ActualTimeSecs = &v
	}
	return &c, nil
}

// UpsertCompletion records one completed occurrence of a recurring todo.
// Re-recording the same (todo, date) overwrites rather than duplicates.
func (s *TodoStore) UpsertCompletion(todoID int64, date schedule.Date, points int, pauseUsed, superUsed bool, actualSecs *int) error {
	pause, super := 0, 0
	if pauseUsed {
		pause = 1
	}
	if superUsed {
		super = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO recurring_completions (todo_id, completion_date, points_earned, pause_used, super_point_used, actual_time_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(todo_id, completion_date) DO UPDATE SET
			points_earned = excluded.points_earned,
			pause_used = excluded.pause_used,
			super_point_used = excluded.super_point_used,
			actual_time_seconds = excluded.actual_time_seconds`,
		todoID, date.String(), points, pause, super, nullInt(actualSecs),
	)
	if err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

func (s *TodoStore) GetCompletion(todoID int64, date schedule.Date) (*model.RecurringCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM recurring_completions WHERE todo_id = ? AND completion_date = ?`,
		todoID, date.String(),
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// --- Recurring exceptions ---

// InsertException hides a single occurrence of a recurring todo on the given
// date. Inserting an existing exception is a no-op.
func (s *TodoStore) InsertException(todoID int64, date schedule.Date) error {
	_, err := s.db.Exec(
		`INSERT INTO recurring_exceptions (todo_id, exception_date) VALUES (?, ?)
		 ON CONFLICT(todo_id, exception_date) DO NOTHING`,
		todoID, date.String(),
	)
	if err != nil {
		return fmt.Errorf("insert exception: %w", err)
	}
	return nil
}

// --- Daily completion rollups ---

// UpsertDailyCompletion records whether all of a user's todos for a date were
// completed on time, overwriting any earlier verdict for the same date.
func (s *TodoStore) UpsertDailyCompletion(userID int64, date schedule.Date, allOnTime bool) error {
	v := 0
	if allOnTime {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO daily_completions (user_id, completion_date, all_completed_on_time)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id, completion_date) DO UPDATE SET
			all_completed_on_time = excluded.all_completed_on_time`,
		userID, date.String(), v,
	)
	if err != nil {
		return fmt.Errorf("upsert daily completion: %w", err)
	}
	return nil
}

func (s *TodoStore) GetDailyCompletion(userID int64, date schedule.Date) (*model.DailyCompletion, error) {
	var d model.DailyCompletion
	var allOnTime int
	err := s.db.QueryRow(
		`SELECT id, user_id, completion_date, all_completed_on_time, created_at
		 FROM daily_completions WHERE user_id = ? AND completion_date = ?`,
		userID, date.String(),
	).Scan(&d.ID, &d.UserID, &d.CompletionDate, &allOnTime, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily completion: %w", err)
	}
	d.AllCompletedOnTime = allOnTime != 0
	return &d, nil
}

// ListPerfectDates returns the dates on which the user completed everything
// on time, most recent first.
func (s *TodoStore) ListPerfectDates(userID int64) ([]schedule.Date, error) {
	rows, err := s.db.Query(
		`SELECT completion_date FROM daily_completions
		 WHERE user_id = ? AND all_completed_on_time = 1
		 ORDER BY completion_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list perfect dates: %w", err)
	}
	defer rows.Close()

	var dates []schedule.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		d, err := schedule.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
