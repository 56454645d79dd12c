package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// User is an account row. PasswordHash is a bcrypt digest. StudentID is
// set for student accounts and unique when present.
type User struct {
	ID           int64
	Email        string
	StudentID    string
	FirstName    string
	MiddleName   string
	LastName     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

const userColumns = `id, email, student_id, first_name, middle_name, last_name, password_hash, role, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	var sid, first, middle, last sql.NullString
	var login sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &sid, &first, &middle, &last, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt, &login)
	if err != nil {
		return User{}, err
	}
	u.StudentID = strOrEmpty(sid)
	u.FirstName = strOrEmpty(first)
	u.MiddleName = strOrEmpty(middle)
	u.LastName = strOrEmpty(last)
	u.LastLoginAt = timePtr(login)
	return u, nil
}

// CreateUser inserts an account. Email and student id are unique; a
// duplicate surfaces as a pq unique-violation which callers map to a
// conflict response.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO users (email, student_id, first_name, middle_name, last_name, password_hash, role)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+userColumns+`
`, u.Email, nullableString(u.StudentID), nullableString(u.FirstName), nullableString(u.MiddleName), nullableString(u.LastName), u.PasswordHash, u.Role)
	return scanUser(row)
}

// GetUserByEmail fetches an account by its login email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUser fetches one account by id.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

// TouchLastLogin stamps a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// UserPatch carries optional account edits. Nil fields are left unchanged;
// a pointer to the empty string clears the field.
type UserPatch struct {
	FirstName    *string
	MiddleName   *string
	LastName     *string
	StudentID    *string
	Email        *string
	Role         *string
	PasswordHash *string
}

// UpdateUser applies a partial edit and returns the updated row.
func (s *Store) UpdateUser(ctx context.Context, id int64, p UserPatch) (User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.FirstName != nil {
		set("first_name", nullableString(*p.FirstName))
	}
	if p.MiddleName != nil {
		set("middle_name", nullableString(*p.MiddleName))
	}
	if p.LastName != nil {
		set("last_name", nullableString(*p.LastName))
	}
	if p.StudentID != nil {
		set("student_id", nullableString(*p.StudentID))
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Role != nil {
		set("role", *p.Role)
	}
	if p.PasswordHash != nil {
		set("password_hash", *p.PasswordHash)
	}
	args = append(args, id)
	row := s.DB.QueryRowContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args))+userColumns, args...)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

// UserFilter narrows ListUsers. Query matches email, student id and first
// or last name, case-insensitive.
type UserFilter struct {
	Role   string
	Query  string
	Limit  int
	Offset int
}

// UserWithCounts is one admin directory row with activity counters.
type UserWithCounts struct {
	User
	ItemsReported       int64
	ClaimsMade          int64
	UnreadNotifications int64
}

// ListUsers returns the admin user directory, most recently updated first,
// with per-user activity counts and the unpaginated total.
func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]UserWithCounts, int64, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	if f.Role == RoleStudent || f.Role == RoleAdmin {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("u.role = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(LOWER(u.email) LIKE $%d
   OR LOWER(COALESCE(u.student_id, '')) LIKE $%d
   OR LOWER(COALESCE(u.first_name, '')) LIKE $%d
   OR LOWER(COALESCE(u.last_name, '')) LIKE $%d)`, n, n, n, n))
	}
	where := strings.Join(conds, " AND ")

	var total int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
SELECT u.id, u.email, u.student_id, u.first_name, u.middle_name, u.last_name, u.password_hash, u.role, u.created_at, u.updated_at, u.last_login_at,
  COALESCE(i.n, 0), COALESCE(c.n, 0), COALESCE(un.n, 0)
FROM users u
LEFT JOIN (SELECT reporter_user_id AS uid, COUNT(*) AS n FROM items GROUP BY reporter_user_id) i ON i.uid = u.id
LEFT JOIN (SELECT claimant_user_id AS uid, COUNT(*) AS n FROM claims GROUP BY claimant_user_id) c ON c.uid = u.id
LEFT JOIN (SELECT user_id AS uid, COUNT(*) AS n FROM notifications WHERE status <> 'read' GROUP BY user_id) un ON un.uid = u.id
WHERE %s
ORDER BY COALESCE(u.updated_at, u.created_at) DESC
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []UserWithCounts
	for rows.Next() {
		var u UserWithCounts
		var sid, first, middle, last sql.NullString
		var login sql.NullTime
		if err := rows.Scan(&u.ID, &u.Email, &sid, &first, &middle, &last, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt, &login,
			&u.ItemsReported, &u.ClaimsMade, &u.UnreadNotifications); err != nil {
			return nil, 0, err
		}
		u.StudentID = strOrEmpty(sid)
		u.FirstName = strOrEmpty(first)
		u.MiddleName = strOrEmpty(middle)
		u.LastName = strOrEmpty(last)
		u.LastLoginAt = timePtr(login)
		out = append(out, u)
	}
	return out, total, rows.Err()
}
