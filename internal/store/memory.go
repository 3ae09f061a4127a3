package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// snapshot is one immutable generation of the memory store.
type snapshot struct {
	ordered []*User
	byID    map[int64]*User
	byEmail map[string]*User
}

func newSnapshot(users []*User) *snapshot {
	s := &snapshot{
		ordered: users,
		byID:    make(map[int64]*User, len(users)),
		byEmail: make(map[string]*User, len(users)),
	}
	for _, u := range users {
		s.byID[u.ID] = u
		if u.Email != "" {
			s.byEmail[u.Email] = u
		}
	}
	return s
}

// MemoryStore keeps users in an immutable snapshot swapped atomically.
// Readers never lock; writers serialize on mu.
type MemoryStore struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.current.Store(newSnapshot(nil))
	return s
}

// ReplaceAll implements Store.
func (s *MemoryStore) ReplaceAll(ctx context.Context, users []*User, beforeCommit func([]*User) error) (int, error) {
	prepared, err := prepareBatch(users)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	next := newSnapshot(prepared)
	if beforeCommit != nil {
		if err := beforeCommit(cloneAll(prepared)); err != nil {
			return 0, err
		}
	}
	s.current.Store(next)
	return len(prepared), nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(_ context.Context, id int64) (*User, error) {
	if u, ok := s.current.Load().byID[id]; ok {
		return u.Clone(), nil
	}
	return nil, notFoundID(id)
}

// GetByEmail implements Store.
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	key := NormalizeEmail(email)
	if u, ok := s.current.Load().byEmail[key]; ok && key != "" {
		return u.Clone(), nil
	}
	return nil, notFoundEmail(key)
}

// GetMany implements Store.
func (s *MemoryStore) GetMany(_ context.Context, ids []int64) ([]*User, error) {
	snap := s.current.Load()
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := snap.byID[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// All implements Store.
func (s *MemoryStore) All(_ context.Context) ([]*User, error) {
	return cloneAll(s.current.Load().ordered), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	return len(s.current.Load().ordered), nil
}

// Update implements Store. It copies the snapshot, so it is meant for
// occasional corrections, not bulk writes.
func (s *MemoryStore) Update(ctx context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.current.Load()
	stored, ok := snap.byID[u.ID]
	if !ok {
		return nil, notFoundID(u.ID)
	}
	if stored.Version != u.Version {
		return nil, versionConflict(u.ID, u.Version, stored.Version)
	}

	updated := u.Clone()
	updated.Email = NormalizeEmail(updated.Email)
	updated.Version = stored.Version + 1
	if other, taken := snap.byEmail[updated.Email]; taken && updated.Email != "" && other.ID != updated.ID {
		return nil, duplicateKey("email", updated.Email)
	}

	users := make([]*User, len(snap.ordered))
	for i, existing := range snap.ordered {
		if existing.ID == updated.ID {
			users[i] = updated
		} else {
			users[i] = existing
		}
	}
	s.current.Store(newSnapshot(users))
	return updated.Clone(), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneAll(users []*User) []*User {
	out := make([]*User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
