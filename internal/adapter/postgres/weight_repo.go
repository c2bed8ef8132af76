package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"weightlog/internal/domain"
)

var _ domain.WeightRepository = (*DB)(nil)

// AddWeightEvent inserts a new weight event.
func (d *DB) AddWeightEvent(ctx context.Context, userID int64, wd domain.WeightWithDate, unit string) (int64, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO weight_events(user_id, value, unit, created_at) VALUES($1, $2, $3, $4) RETURNING id;",
		userID, wd.Weight.Weight, unit, domain.TimeFromDate(wd.Date),
	).Scan(&id)
	return id, err
}

// DeleteLatestWeightEvent removes the user's most recent weight event.
func (d *DB) DeleteLatestWeightEvent(ctx context.Context, userID int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		"DELETE FROM weight_events WHERE id = (SELECT id FROM weight_events WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1);",
		userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LatestWeightForLocalDay returns the most recent weight entry for a local calendar day.
func (d *DB) LatestWeightForLocalDay(ctx context.Context, userID int64, localDay string) (*domain.WeightEntry, error) {
	dayStart, dayEnd, err := domain.LocalDayBounds(localDay)
	if err != nil {
		return nil, err
	}

	row := d.sql.QueryRowContext(ctx,
		"SELECT id, value, unit, created_at FROM weight_events WHERE user_id=$1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at DESC, id DESC LIMIT 1;",
		userID, dayStart, dayEnd,
	)

	e, err := scanWeightEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.UserID = userID
	e.Day = localDay
	return &e, nil
}

// ListRecentWeightEvents returns the user's most recent weight events up to limit.
func (d *DB) ListRecentWeightEvents(ctx context.Context, userID int64, limit int) ([]domain.WeightEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, value, unit, created_at FROM weight_events WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;",
		userID, limit)
	if err != nil {
		return nil, err
	}
	return collectWeightEntries(rows, userID, limit)
}

// ListWeightEventsBetween returns the user's weight events in [from, to), oldest first.
func (d *DB) ListWeightEventsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.WeightEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, value, unit, created_at FROM weight_events WHERE user_id=$1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at ASC, id ASC;",
		userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collectWeightEntries(rows, userID, 0)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWeightEntry(s scanner) (domain.WeightEntry, error) {
	var (
		e         domain.WeightEntry
		createdAt time.Time
	)
	if err := s.Scan(&e.ID, &e.Weight.Weight, &e.Unit, &createdAt); err != nil {
		return e, err
	}
	e.Date = domain.DateFromTime(createdAt)
	return e, nil
}

func collectWeightEntries(rows *sql.Rows, userID int64, sizeHint int) ([]domain.WeightEntry, error) {
	defer rows.Close() //nolint:errcheck

	if sizeHint < 0 {
		sizeHint = 0
	}
	out := make([]domain.WeightEntry, 0, sizeHint)
	for rows.Next() {
		e, err := scanWeightEntry(rows)
		if err != nil {
			return nil, err
		}
		e.UserID = userID
		e.Day = domain.LocalDay(domain.TimeFromDate(e.Date))
		out = append(out, e)
	}
	return out, rows.Err()
}
