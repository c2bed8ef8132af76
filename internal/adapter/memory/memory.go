// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"weightlog/internal/domain"
)

// ErrUserExists is returned by Create for a duplicate username.
var ErrUserExists = errors.New("user already exists")

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	weights  []domain.WeightEntry
	users    []*domain.User
	sessions map[string]*domain.Session

	weightIDCounter int64
	userIDCounter   int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.WeightRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- WeightRepository ---

// AddWeightEvent adds a weight event.
func (db *DB) AddWeightEvent(ctx context.Context, userID int64, wd domain.WeightWithDate, unit string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.weightIDCounter++
	id := db.weightIDCounter

	db.weights = append(db.weights, domain.WeightEntry{
		ID:             id,
		UserID:         userID,
		Unit:           unit,
		WeightWithDate: wd,
	})
	return id, nil
}

// DeleteLatestWeightEvent deletes the user's most recent weight event.
func (db *DB) DeleteLatestWeightEvent(ctx context.Context, userID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	lastIdx := -1
	for i, w := range db.weights {
		if w.UserID != userID {
			continue
		}
		if lastIdx == -1 || newer(w, db.weights[lastIdx]) {
			lastIdx = i
		}
	}

	if lastIdx == -1 {
		return false, nil
	}
	db.weights = append(db.weights[:lastIdx], db.weights[lastIdx+1:]...)
	return true, nil
}

// LatestWeightForLocalDay returns the latest weight for the given day.
func (db *DB) LatestWeightForLocalDay(ctx context.Context, userID int64, localDay string) (*domain.WeightEntry, error) {
	start, end, err := domain.LocalDayBounds(localDay)
	if err != nil {
		return nil, err
	}
	from, to := domain.DateFromTime(start), domain.DateFromTime(end)

	db.mu.Lock()
	defer db.mu.Unlock()

	var latest *domain.WeightEntry
	for i := range db.weights {
		w := &db.weights[i]
		if w.UserID != userID || w.Date < from || w.Date >= to {
			continue
		}
		if latest == nil || newer(*w, *latest) {
			latest = w
		}
	}

	if latest == nil {
		return nil, nil
	}
	ret := *latest
	ret.Day = localDay
	return &ret, nil
}

// ListRecentWeightEvents lists the user's most recent weight events.
func (db *DB) ListRecentWeightEvents(ctx context.Context, userID int64, limit int) ([]domain.WeightEntry, error) {
	result := db.userWeights(userID, func(domain.WeightEntry) bool { return true })

	sort.Slice(result, func(i, j int) bool {
		return newer(result[i], result[j])
	})

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListWeightEventsBetween lists the user's weight events in [from, to),
// oldest first.
func (db *DB) ListWeightEventsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.WeightEntry, error) {
	lo, hi := domain.DateFromTime(from), domain.DateFromTime(to)
	result := db.userWeights(userID, func(w domain.WeightEntry) bool {
		return w.Date >= lo && w.Date < hi
	})

	sort.Slice(result, func(i, j int) bool {
		return newer(result[j], result[i])
	})
	return result, nil
}

// newer orders entries by date, then by id, matching the SQL ordering.
func newer(a, b domain.WeightEntry) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	return a.ID > b.ID
}

// userWeights copies the user's entries matching keep, with Day populated.
func (db *DB) userWeights(userID int64, keep func(domain.WeightEntry) bool) []domain.WeightEntry {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.WeightEntry, 0, len(db.weights))
	for _, w := range db.weights {
		if w.UserID != userID || !keep(w) {
			continue
		}
		w.Day = domain.LocalDay(domain.TimeFromDate(w.Date))
		result = append(result, w)
	}
	return result
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, ErrUserExists
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	return u, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token. Expiry is left to the caller.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
