package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name         string
	driver       string
	gooseDialect string
	numbered     bool // $1, $2 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite", driver: "sqlite", gooseDialect: "sqlite3"}
	postgresDialect = dialect{name: "postgres", driver: "pgx", gooseDialect: "postgres", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbtx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

const userColumns = "id, first_name, last_name, email, ssn, age, role, version"

// sqlStore implements Store over database/sql for SQLite and Postgres.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) q(query string) string {
	return s.dialect.rebind(query)
}

// ReplaceAll implements Store.
func (s *sqlStore) ReplaceAll(ctx context.Context, users []*User, beforeCommit func([]*User) error) (int, error) {
	prepared, err := prepareBatch(users)
	if err != nil {
		return 0, err
	}

	err = withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
			return storeFailed("delete users", err)
		}

		insert := s.q("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
		for _, u := range prepared {
			if _, err := tx.ExecContext(ctx, insert,
				u.ID, u.FirstName, u.LastName, nullString(u.Email), u.SSN, u.Age, u.Role, u.Version); err != nil {
				return storeFailed(fmt.Sprintf("insert user %d", u.ID), err)
			}
		}

		if beforeCommit == nil {
			return nil
		}
		snapshot, err := s.queryUsers(ctx, tx, "SELECT "+userColumns+" FROM users ORDER BY id")
		if err != nil {
			return err
		}
		return beforeCommit(snapshot)
	})
	if err != nil {
		return 0, err
	}
	return len(prepared), nil
}

// GetByID implements Store.
func (s *sqlStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundID(id)
	}
	if err != nil {
		return nil, storeFailed("get user", err)
	}
	return u, nil
}

// GetByEmail implements Store.
func (s *sqlStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	key := NormalizeEmail(email)
	if key == "" {
		return nil, notFoundEmail(key)
	}
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE email = ?"), key)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundEmail(key)
	}
	if err != nil {
		return nil, storeFailed("get user by email", err)
	}
	return u, nil
}

// GetMany implements Store.
func (s *sqlStore) GetMany(ctx context.Context, ids []int64) ([]*User, error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}

	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}
	query := s.q("SELECT " + userColumns + " FROM users WHERE id IN (" + strings.Join(marks, ", ") + ")")
	found, err := s.queryUsers(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// All implements Store.
func (s *sqlStore) All(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx, s.db, "SELECT "+userColumns+" FROM users ORDER BY id")
}

// Count implements Store.
func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, storeFailed("count users", err)
	}
	return n, nil
}

// Update implements Store.
func (s *sqlStore) Update(ctx context.Context, u *User) (*User, error) {
	var updated *User
	err := withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE users
			SET first_name = ?, last_name = ?, email = ?, ssn = ?, age = ?, role = ?, version = version + 1
			WHERE id = ? AND version = ?`),
			u.FirstName, u.LastName, nullString(NormalizeEmail(u.Email)), u.SSN, u.Age, u.Role, u.ID, u.Version)
		if err != nil {
			return storeFailed(fmt.Sprintf("update user %d", u.ID), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeFailed("rows affected", err)
		}

		row := tx.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), u.ID)
		current, err := scanUser(row)
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundID(u.ID)
		}
		if err != nil {
			return storeFailed("reload user", err)
		}
		if n == 0 {
			return versionConflict(u.ID, u.Version, current.Version)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close implements Store.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) queryUsers(ctx context.Context, db dbtx, query string, args ...any) ([]*User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeFailed("query users", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeFailed("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("iterate users", err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	var (
		u     User
		email sql.NullString
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &email, &u.SSN, &u.Age, &u.Role, &u.Version); err != nil {
		return nil, err
	}
	u.Email = email.String
	return &u, nil
}

// nullString stores empty emails as NULL so the unique constraint ignores them.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*sqlStore)(nil)
