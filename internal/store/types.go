// Package store holds the user store (memory, SQLite, Postgres) and the
// search index generations built over it (bleve, linear scan).
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// User is the sole persisted entity.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	SSN       string `json:"ssn,omitempty"`
	Age       int    `json:"age,omitempty"`
	Role      string `json:"role,omitempty"`
	Version   int64  `json:"version"`
}

// Clone returns a copy that callers may modify freely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store is a durable keyed collection of users.
//
// ReplaceAll swaps the whole collection atomically: readers see either the
// previous set or the new one, never a mix. beforeCommit, when non-nil,
// receives the post-replace snapshot ordered by id before the new set
// becomes visible; returning an error aborts the replace.
type Store interface {
	ReplaceAll(ctx context.Context, users []*User, beforeCommit func(snapshot []*User) error) (int, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetMany returns the users for ids in the given order, skipping unknown ids.
	GetMany(ctx context.Context, ids []int64) ([]*User, error)
	// All returns every user ordered by id.
	All(ctx context.Context) ([]*User, error)
	Count(ctx context.Context) (int, error)
	// Update writes u if u.Version matches the stored version and returns
	// the stored user with the incremented version.
	Update(ctx context.Context, u *User) (*User, error)
	Close() error
}

// Hit is a single search index match.
type Hit struct {
	ID    int64
	Score float64
}

// IndexGeneration is an immutable index over one store snapshot.
type IndexGeneration interface {
	// Search returns at most limit hits ordered by score desc, then id asc.
	Search(ctx context.Context, text string, limit int) ([]Hit, error)
	Count() int
	Close() error
}

// IndexBuilder builds complete index generations. A generation is never
// patched; every ingestion builds a new one.
type IndexBuilder interface {
	Build(ctx context.Context, users []*User) (IndexGeneration, error)
	Name() string
}

// MaxSourceID is the largest id accepted from a source document: the largest
// integer a JSON client decoding into float64 can hold exactly. It leaves
// room above it for assigned ids.
const MaxSourceID int64 = 1<<53 - 1

// prepareBatch assigns ids to users without one and checks uniqueness.
// New ids continue after the largest id present in the batch.
// The returned slice holds copies ordered by id with Version reset to 0.
func prepareBatch(users []*User) ([]*User, error) {
	var maxID int64
	for _, u := range users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	out := make([]*User, 0, len(users))
	ids := make(map[int64]struct{}, len(users))
	emails := make(map[string]struct{}, len(users))
	for _, u := range users {
		c := u.Clone()
		c.Version = 0
		c.Email = NormalizeEmail(c.Email)
		if c.ID <= 0 {
			if maxID == math.MaxInt64 {
				return nil, idSpaceExhausted()
			}
			maxID++
			c.ID = maxID
		}
		if _, dup := ids[c.ID]; dup {
			return nil, duplicateKey("id", fmt.Sprint(c.ID))
		}
		ids[c.ID] = struct{}{}
		if c.Email != "" {
			if _, dup := emails[c.Email]; dup {
				return nil, duplicateKey("email", c.Email)
			}
			emails[c.Email] = struct{}{}
		}
		out = append(out, c)
	}

	sortByID(out)
	return out, nil
}

func sortByID(users []*User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}

func duplicateKey(field, value string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeDuplicateKey,
		fmt.Sprintf("duplicate %s %s in batch", field, value), nil).
		WithDetail(field, value)
}

func idSpaceExhausted() *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeDuplicateKey,
		"cannot assign an id: batch already uses the largest id", nil).
		WithDetail("id", strconv.FormatInt(math.MaxInt64, 10)).
		WithSuggestion("Give every record an explicit id or lower the largest source id")
}

func versionConflict(id, expected, actual int64) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeVersionConflict,
		fmt.Sprintf("user %d was modified concurrently (version %d, stored %d)", id, expected, actual), nil).
		WithDetail("id", fmt.Sprint(id))
}

func notFoundID(id int64) *apperrors.AppError {
	return apperrors.NotFound("id", fmt.Sprint(id))
}

func notFoundEmail(email string) *apperrors.AppError {
	return apperrors.NotFound("email", email)
}

func storeFailed(op string, err error) *apperrors.AppError {
	if isDiskFull(err) {
		return apperrors.New(apperrors.ErrCodeDiskFull, op+": "+err.Error(), err).
			WithSuggestion("Free disk space on the volume holding the store")
	}
	return apperrors.New(apperrors.ErrCodeStoreFailed, op+": "+err.Error(), err)
}

// Driver codes for an exhausted volume.
const (
	sqliteFull       = 13
	postgresDiskFull = "53100"
)

// isDiskFull recognizes SQLITE_FULL (modernc errors expose Code) and the
// Postgres disk_full SQLSTATE.
func isDiskFull(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresDiskFull
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == sqliteFull
	}
	return false
}
