package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/questboard/internal/model"
)

type UserStore struct {
	db dbtx
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Color, &u.TotalPoints, &u.SuperPoints,
		&u.CurrentStreakDays, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, color, total_points, super_points, current_streak_days, created_at, updated_at`

func (s *UserStore) Create(name, color string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, color) VALUES (?, ?)`,
		name, color,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(id int64, name, color string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, color = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, color, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// AddPoints adjusts a user's cumulative point total by delta.
func (s *UserStore) AddPoints(id int64, delta int) error {
	_, err := s.db.Exec(
		`UPDATE users SET total_points = total_points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

// AddSuperPoints adjusts a user's super point balance by delta.
func (s *UserStore) AddSuperPoints(id int64, delta int) error {
	_, err := s.db.Exec(
		`UPDATE users SET super_points = super_points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("add super points: %w", err)
	}
	return nil
}

// SetStreak overwrites the user's consecutive-day streak.
func (s *UserStore) SetStreak(id int64, days int) error {
	_, err := s.db.Exec(
		`UPDATE users SET current_streak_days = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		days, id,
	)
	if err != nil {
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}

// SpendSuperPoint decrements the balance only if one is available. Returns
// false when the balance is already zero; the balance never goes negative.
func (s *UserStore) SpendSuperPoint(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users SET super_points = super_points - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND super_points > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("spend super point: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ResetPoints zeroes a user's point total and streak.
func (s *UserStore) ResetPoints(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET total_points = 0, current_streak_days = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reset points: %w", err)
	}
	return nil
}
