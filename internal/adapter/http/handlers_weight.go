package adapthttp

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"weightlog/internal/app"
	"weightlog/internal/domain"

	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 14
	maxRecentLimit     = 1000
	defaultSeriesDays  = 30
	maxImportItems     = 10000
)

var errWeightRequired = errors.New("weight is required")

// recordRequest accepts any Weight, including a WeightWithDate; the date is
// ignored and the entry is stamped with the server clock. Weight is a pointer
// so a missing key can be told apart from zero.
type recordRequest struct {
	Weight *float64 `json:"weight"`
	Date   *int64   `json:"date"`
	Unit   string   `json:"unit"`
}

// unitOrDefault treats an omitted unit as kilograms.
func unitOrDefault(unit string) string {
	if unit == "" {
		return domain.UnitKg
	}
	return unit
}

type importItem struct {
	Weight *float64 `json:"weight"`
	Date   *int64   `json:"date"`
}

type importRequest struct {
	Unit  string       `json:"unit"`
	Items []importItem `json:"items"`
}

// toWeightsWithDate requires both keys on every item.
func (req importRequest) toWeightsWithDate() ([]domain.WeightWithDate, error) {
	out := make([]domain.WeightWithDate, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Weight == nil {
			return nil, fmt.Errorf("item %d: %w", i, errWeightRequired)
		}
		if it.Date == nil {
			return nil, fmt.Errorf("item %d: date is required", i)
		}
		out = append(out, domain.WeightWithDate{
			Weight: domain.Weight{Weight: *it.Weight},
			Date:   *it.Date,
		})
	}
	return out, nil
}

func isValidationErr(err error) bool {
	return errors.Is(err, app.ErrInvalidWeight) ||
		errors.Is(err, app.ErrInvalidUnit) ||
		errors.Is(err, app.ErrInvalidDate)
}

func (s *Server) handleWeightTodayGet(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	today := domain.LocalDay(time.Now())

	entry, err := s.weight.GetTodayWeight(r.Context(), user.ID, today)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"today": today, "entry": entry})
}

func (s *Server) handleWeightTodayPut(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body recordRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Weight == nil {
		writeError(w, http.StatusBadRequest, errWeightRequired)
		return
	}

	entry, today, err := s.weight.RecordWeight(r.Context(), user.ID, domain.Weight{Weight: *body.Weight}, unitOrDefault(body.Unit))
	if isValidationErr(err) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"today": today, "entry": entry})
}

func (s *Server) handleWeightRecent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	limit := intQuery(r, "limit", defaultRecentLimit, maxRecentLimit)

	items, err := s.weight.ListRecent(r.Context(), user.ID, limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleWeightUndoLast(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	deleted, entry, today, err := s.weight.UndoLast(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted, "today": today, "entry": entry})
}

func (s *Server) handleWeightImport(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body importRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body.Items) > maxImportItems {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at most %d items per import", maxImportItems))
		return
	}
	items, err := body.toWeightsWithDate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := s.weight.Import(r.Context(), user.ID, items, unitOrDefault(body.Unit))
	if isValidationErr(err) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.logger.Error("import interrupted", zap.Int64("user_id", user.ID), zap.Int("imported", n), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": errInternal.Error(), "imported": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}

func (s *Server) handleWeightSeries(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	days := intQuery(r, "days", defaultSeriesDays, app.MaxHistoryDays)

	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	items, err := s.weight.Series(r.Context(), user.ID, from, to)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "items": items})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, errInternal)
}
