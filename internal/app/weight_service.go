package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weightlog/internal/domain"
)

var (
	// ErrInvalidWeight indicates a non-positive weight value.
	ErrInvalidWeight = errors.New("weight must be > 0")
	// ErrInvalidUnit indicates a unit other than "kg" or "lb".
	ErrInvalidUnit = errors.New("unit must be \"kg\" or \"lb\"")
	// ErrInvalidDate indicates a non-positive date value.
	ErrInvalidDate = errors.New("date must be > 0")
)

// ImportError reports the first invalid item of an import batch.
type ImportError struct {
	Index int
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// WeightService encapsulates weight-tracking use cases.
type WeightService struct {
	repo domain.WeightRepository
	now  func() time.Time
}

// NewWeightService creates a WeightService backed by the given repository.
func NewWeightService(repo domain.WeightRepository) *WeightService {
	return &WeightService{repo: repo, now: time.Now}
}

// GetTodayWeight returns the latest weight entry for the given local day.
func (s *WeightService) GetTodayWeight(ctx context.Context, userID int64, today string) (*domain.WeightEntry, error) {
	return s.repo.LatestWeightForLocalDay(ctx, userID, today)
}

// RecordWeight validates and stores a new weight measurement taken now,
// returning the latest entry for today after the insert.
func (s *WeightService) RecordWeight(ctx context.Context, userID int64, w domain.Weight, unit string) (*domain.WeightEntry, string, error) {
	if err := validateWeight(w, unit); err != nil {
		return nil, "", err
	}
	now := s.now()
	today := domain.LocalDay(now)
	wd := domain.WeightWithDate{Weight: w, Date: domain.DateFromTime(now)}
	if _, err := s.repo.AddWeightEvent(ctx, userID, wd, unit); err != nil {
		return nil, today, err
	}
	entry, err := s.repo.LatestWeightForLocalDay(ctx, userID, today)
	return entry, today, err
}

// Import stores a batch of dated measurements. The whole batch is checked
// before anything is written.
func (s *WeightService) Import(ctx context.Context, userID int64, items []domain.WeightWithDate, unit string) (int, error) {
	for i, wd := range items {
		if err := validateWeight(wd.Weight, unit); err != nil {
			return 0, &ImportError{Index: i, Err: err}
		}
		if wd.Date <= 0 {
			return 0, &ImportError{Index: i, Err: ErrInvalidDate}
		}
	}
	for i, wd := range items {
		if _, err := s.repo.AddWeightEvent(ctx, userID, wd, unit); err != nil {
			return i, fmt.Errorf("import item %d: %w", i, err)
		}
	}
	return len(items), nil
}

// ListRecent returns the most recent weight events up to limit.
func (s *WeightService) ListRecent(ctx context.Context, userID int64, limit int) ([]domain.WeightEntry, error) {
	return s.repo.ListRecentWeightEvents(ctx, userID, limit)
}

// Series returns the measurements recorded in [from, to), oldest first.
func (s *WeightService) Series(ctx context.Context, userID int64, from, to time.Time) ([]domain.WeightWithDate, error) {
	entries, err := s.repo.ListWeightEventsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.WeightWithDate, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.WeightWithDate)
	}
	return out, nil
}

// UndoLast deletes the most recent weight event and returns the new latest
// entry for today.
func (s *WeightService) UndoLast(ctx context.Context, userID int64) (bool, *domain.WeightEntry, string, error) {
	today := domain.LocalDay(s.now())
	deleted, err := s.repo.DeleteLatestWeightEvent(ctx, userID)
	if err != nil {
		return false, nil, today, err
	}
	entry, err := s.repo.LatestWeightForLocalDay(ctx, userID, today)
	if err != nil {
		return deleted, nil, today, err
	}
	return deleted, entry, today, nil
}

func validateWeight(w domain.Weight, unit string) error {
	if w.Weight <= 0 {
		return ErrInvalidWeight
	}
	if unit != domain.UnitKg && unit != domain.UnitLb {
		return ErrInvalidUnit
	}
	return nil
}
