package domain

import (
	"context"
	"time"
)

// Weight is a single numeric weight measurement. The unit is not part of
// the shape.
type Weight struct {
	Weight float64 `json:"weight"`
}

// WeightWithDate is a Weight anchored to a point in time. Date is a Unix
// timestamp in milliseconds.
type WeightWithDate struct {
	Weight
	Date int64 `json:"date"`
}

// Supported units for stored weight entries.
const (
	UnitKg = "kg"
	UnitLb = "lb"
)

// WeightEntry is a persisted weight observation owned by a user.
type WeightEntry struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Day    string `json:"day"`
	Unit   string `json:"unit"`
	WeightWithDate
}

// WeightRepository is the port for weight persistence.
type WeightRepository interface {
	AddWeightEvent(ctx context.Context, userID int64, wd WeightWithDate, unit string) (int64, error)
	DeleteLatestWeightEvent(ctx context.Context, userID int64) (bool, error)
	LatestWeightForLocalDay(ctx context.Context, userID int64, localDay string) (*WeightEntry, error)
	ListRecentWeightEvents(ctx context.Context, userID int64, limit int) ([]WeightEntry, error)
	ListWeightEventsBetween(ctx context.Context, userID int64, from, to time.Time) ([]WeightEntry, error)
}
