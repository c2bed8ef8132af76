package adapthttp

import (
	"net/http"
	"time"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

const defaultHistoryDays = 90

func (s *Server) handleHistoryDaily(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	days := intQuery(r, "days", defaultHistoryDays, app.MaxHistoryDays)

	points, err := s.history.GetDaily(r.Context(), user.ID, days)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"today": domain.LocalDay(time.Now()),
		"items": points,
	})
}
