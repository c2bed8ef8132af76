package app

import (
	"context"
	"time"

	"weightlog/internal/domain"
)

// MaxHistoryDays bounds the number of days GetDaily returns.
const MaxHistoryDays = 366

// HistoryService builds per-day views over recorded weights.
type HistoryService struct {
	weightRepo domain.WeightRepository
	now        func() time.Time
}

// NewHistoryService creates a HistoryService backed by the given repository.
func NewHistoryService(wr domain.WeightRepository) *HistoryService {
	return &HistoryService{weightRepo: wr, now: time.Now}
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day    string         `json:"day"`
	Weight *domain.Weight `json:"weight"`
	Unit   string         `json:"unit,omitempty"`
}

// GetDaily returns one point per local day for the last days days, oldest
// first. Each point carries the latest weight of that day as recorded.
func (s *HistoryService) GetDaily(ctx context.Context, userID int64, days int) ([]DayPoint, error) {
	if days < 1 {
		days = 1
	}
	if days > MaxHistoryDays {
		days = MaxHistoryDays
	}

	today := s.now().In(time.Local)
	points := make([]DayPoint, 0, days)

	for i := days - 1; i >= 0; i-- {
		dayStr := today.AddDate(0, 0, -i).Format(domain.DayLayout)

		entry, err := s.weightRepo.LatestWeightForLocalDay(ctx, userID, dayStr)
		if err != nil {
			return nil, err
		}

		p := DayPoint{Day: dayStr}
		if entry != nil {
			w := entry.Weight
			p.Weight = &w
			p.Unit = entry.Unit
		}
		points = append(points, p)
	}
	return points, nil
}
