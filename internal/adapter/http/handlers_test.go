package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/oauth2"

	adapthttp "weightlog/internal/adapter/http"
	"weightlog/internal/adapter/memory"
	"weightlog/internal/app"
	"weightlog/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---------------------------------------------------------------------------
// Mock repositories (function-fields pattern)
// ---------------------------------------------------------------------------

type mockWeightRepo struct {
	addFn     func(ctx context.Context, userID int64, wd domain.WeightWithDate, unit string) (int64, error)
	deleteFn  func(ctx context.Context, userID int64) (bool, error)
	latestFn  func(ctx context.Context, userID int64, localDay string) (*domain.WeightEntry, error)
	listFn    func(ctx context.Context, userID int64, limit int) ([]domain.WeightEntry, error)
	betweenFn func(ctx context.Context, userID int64, from, to time.Time) ([]domain.WeightEntry, error)
}

func (m *mockWeightRepo) AddWeightEvent(ctx context.Context, userID int64, wd domain.WeightWithDate, unit string) (int64, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, wd, unit)
	}
	return 1, nil
}

func (m *mockWeightRepo) DeleteLatestWeightEvent(ctx context.Context, userID int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return true, nil
}

func (m *mockWeightRepo) LatestWeightForLocalDay(ctx context.Context, userID int64, localDay string) (*domain.WeightEntry, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, userID, localDay)
	}
	return entry(1, localDay, 80.0, time.Now()), nil
}

func (m *mockWeightRepo) ListRecentWeightEvents(ctx context.Context, userID int64, limit int) ([]domain.WeightEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, limit)
	}
	return []domain.WeightEntry{*entry(1, "2026-02-08", 80.0, time.Now())}, nil
}

func (m *mockWeightRepo) ListWeightEventsBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.WeightEntry, error) {
	if m.betweenFn != nil {
		return m.betweenFn(ctx, userID, from, to)
	}
	return nil, nil
}

func entry(id int64, day string, value float64, at time.Time) *domain.WeightEntry {
	return &domain.WeightEntry{
		ID: id, Day: day, Unit: "kg",
		WeightWithDate: domain.WeightWithDate{
			Weight: domain.Weight{Weight: value},
			Date:   domain.DateFromTime(at),
		},
	}
}

// ---------------------------------------------------------------------------
// Test-server helpers
// ---------------------------------------------------------------------------

func writeWebDir(t *testing.T) string {
	t.Helper()
	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>index</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(webDir, "history.html"), []byte("<html>history</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	return webDir
}

func newTestServer(t *testing.T, wr *mockWeightRepo) *httptest.Server {
	t.Helper()

	if wr == nil {
		wr = &mockWeightRepo{}
	}

	mem := memory.New()
	authSvc := app.NewAuthService(mem, mem.NewSessionRepo())

	srv := adapthttp.New(app.NewWeightService(wr), app.NewHistoryService(wr), authSvc, writeWebDir(t)).WithoutAuth()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		switch p := payload.(type) {
		case string:
			body.WriteString(p)
		default:
			if err := json.NewEncoder(&body).Encode(p); err != nil {
				t.Fatal(err)
			}
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", resp.Header.Get("Cache-Control"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID")
	}

	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestRequestIDPropagated(t *testing.T) {
	ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/config", nil)
	body := decodeBody(t, resp)
	if body["sso_enabled"] != false {
		t.Fatalf("expected sso_enabled=false, got %v", body["sso_enabled"])
	}
}

func TestWeightTodayGet(t *testing.T) {
	ts := newTestServer(t, &mockWeightRepo{
		latestFn: func(_ context.Context, userID int64, localDay string) (*domain.WeightEntry, error) {
			if userID != 1 {
				t.Errorf("expected local user 1, got %d", userID)
			}
			return entry(1, localDay, 82.3, time.Date(2026, 2, 8, 7, 0, 0, 0, time.UTC)), nil
		},
	})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/weight/today", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if _, ok := body["today"]; !ok {
		t.Fatal("response missing 'today' field")
	}
	e, ok := body["entry"].(map[string]any)
	if !ok {
		t.Fatalf("response missing 'entry' object: %v", body)
	}
	if e["weight"] != 82.3 {
		t.Errorf("expected weight 82.3, got %v", e["weight"])
	}
	if e["date"] != float64(1770534000000) {
		t.Errorf("expected date 1770534000000, got %v", e["date"])
	}
}

func TestWeightTodayPut(t *testing.T) {
	tests := []struct {
		name       string
		payload    any
		wantStatus int
	}{
		{"valid kg", map[string]any{"weight": 85.5, "unit": "kg"}, http.StatusOK},
		{"valid lb", map[string]any{"weight": 190.0, "unit": "lb"}, http.StatusOK},
		{"weight zero", map[string]any{"weight": 0, "unit": "kg"}, http.StatusBadRequest},
		{"weight negative", map[string]any{"weight": -5.0, "unit": "kg"}, http.StatusBadRequest},
		{"invalid unit", map[string]any{"weight": 80.0, "unit": "stone"}, http.StatusBadRequest},
		{"missing weight", map[string]any{"unit": "kg"}, http.StatusBadRequest},
		{"weight as string", `{"weight":"80","unit":"kg"}`, http.StatusBadRequest},
		{"unknown field", map[string]any{"value": 80.0, "unit": "kg"}, http.StatusBadRequest},
		{"weight with date is still a weight", map[string]any{"weight": 80.0, "unit": "kg", "date": 1700000000000}, http.StatusOK},
		{"weight only", map[string]any{"weight": 70}, http.StatusOK},
		{"empty body", map[string]any{}, http.StatusBadRequest},
		{"malformed json", `{"weight":`, http.StatusBadRequest},
	}

	ts := newTestServer(t, nil)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPut, ts.URL+"/api/weight/today", tc.payload)
			body := decodeBody(t, resp)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d; body: %v", tc.wantStatus, resp.StatusCode, body)
			}
			if tc.wantStatus == http.StatusOK {
				if _, ok := body["entry"]; !ok {
					t.Fatal("response missing 'entry' field")
				}
			} else if _, ok := body["error"]; !ok {
				t.Fatal("response missing 'error' field")
			}
		})
	}
}

func TestWeightTodayPut_AcceptsAnyWeight(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantUnit string
	}{
		{"bare weight defaults to kg", `{"weight":70}`, "kg"},
		{"weight with date", `{"weight":70,"date":1700000000000}`, "kg"},
		{"weight with date and unit", `{"weight":70,"date":1700000000000,"unit":"lb"}`, "lb"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var (
				gotWD   domain.WeightWithDate
				gotUnit string
			)
			before := time.Now()
			ts := newTestServer(t, &mockWeightRepo{
				addFn: func(_ context.Context, _ int64, wd domain.WeightWithDate, unit string) (int64, error) {
					gotWD, gotUnit = wd, unit
					return 1, nil
				},
			})

			resp := doJSON(t, http.MethodPut, ts.URL+"/api/weight/today", tc.payload)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d; body: %v", resp.StatusCode, decodeBody(t, resp))
			}
			if gotWD.Weight.Weight != 70 {
				t.Errorf("expected weight 70, got %v", gotWD.Weight.Weight)
			}
			if gotUnit != tc.wantUnit {
				t.Errorf("expected unit %q, got %q", tc.wantUnit, gotUnit)
			}
			// The entry is stamped with the server clock, not a client date.
			if gotWD.Date < domain.DateFromTime(before) {
				t.Errorf("expected server timestamp, got %d", gotWD.Date)
			}
		})
	}
}

func TestWeightTodayPut_RepoError(t *testing.T) {
	ts := newTestServer(t, &mockWeightRepo{
		addFn: func(_ context.Context, _ int64, _ domain.WeightWithDate, _ string) (int64, error) {
			return 0, errors.New("db down")
		},
	})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/weight/today", map[string]any{"weight": 80.0, "unit": "kg"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "internal error" {
		t.Fatalf("expected generic error, got %v", body["error"])
	}
}

func TestWeightRecent(t *testing.T) {
	items := []domain.WeightEntry{
		*entry(1, "2026-02-08", 80.0, time.Now()),
		*entry(2, "2026-02-07", 81.0, time.Now().Add(-24*time.Hour)),
	}
	var gotLimit int
	ts := newTestServer(t, &mockWeightRepo{
		listFn: func(_ context.Context, _ int64, limit int) ([]domain.WeightEntry, error) {
			gotLimit = limit
			if limit < len(items) {
				return items[:limit], nil
			}
			return items, nil
		},
	})

	tests := []struct {
		query     string
		wantLimit int
	}{
		{"?limit=5", 5},
		{"", 14},
		{"?limit=abc", 14},
		{"?limit=-3", 14},
		{"?limit=999999", 1000},
	}
	for _, tc := range tests {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/weight/recent"+tc.query, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tc.query, resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if _, ok := body["items"].([]any); !ok {
			t.Fatalf("%q: response missing 'items' array", tc.query)
		}
		if gotLimit != tc.wantLimit {
			t.Errorf("%q: expected limit %d, got %d", tc.query, tc.wantLimit, gotLimit)
		}
	}
}

func TestWeightUndoLast(t *testing.T) {
	ts := newTestServer(t, &mockWeightRepo{
		deleteFn: func(_ context.Context, _ int64) (bool, error) {
			return true, nil
		},
	})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/weight/undo-last", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if body["deleted"] != true {
		t.Fatalf("expected deleted=true, got %v", body["deleted"])
	}
}

func TestWeightImport(t *testing.T) {
	tests := []struct {
		name       string
		payload    any
		wantStatus int
		wantWrites int
	}{
		{
			name: "valid",
			payload: map[string]any{"unit": "kg", "items": []map[string]any{
				{"weight": 70, "date": 1700000000000},
				{"weight": 70.4, "date": 1700086400000},
			}},
			wantStatus: http.StatusOK, wantWrites: 2,
		},
		{
			name: "item missing date is not a weight with date",
			payload: map[string]any{"unit": "kg", "items": []map[string]any{
				{"weight": 70, "date": 1700000000000},
				{"weight": 71},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "item missing weight",
			payload: map[string]any{"unit": "kg", "items": []map[string]any{
				{"date": 1700000000000},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid unit",
			payload: map[string]any{"unit": "st", "items": []map[string]any{
				{"weight": 70, "date": 1700000000000},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "non-positive date",
			payload: map[string]any{"unit": "kg", "items": []map[string]any{
				{"weight": 70, "date": 0},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unit defaults to kg",
			payload: map[string]any{"items": []map[string]any{
				{"weight": 70, "date": 1700000000000},
			}},
			wantStatus: http.StatusOK, wantWrites: 1,
		},
		{
			name:       "empty batch",
			payload:    map[string]any{"unit": "kg", "items": []map[string]any{}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var writes []domain.WeightWithDate
			ts := newTestServer(t, &mockWeightRepo{
				addFn: func(_ context.Context, _ int64, wd domain.WeightWithDate, _ string) (int64, error) {
					writes = append(writes, wd)
					return int64(len(writes)), nil
				},
			})

			resp := doJSON(t, http.MethodPost, ts.URL+"/api/weight/import", tc.payload)
			body := decodeBody(t, resp)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d; body: %v", tc.wantStatus, resp.StatusCode, body)
			}
			if len(writes) != tc.wantWrites {
				t.Fatalf("expected %d writes, got %d", tc.wantWrites, len(writes))
			}
			if tc.wantStatus == http.StatusOK && body["imported"] != float64(tc.wantWrites) {
				t.Fatalf("expected imported=%d, got %v", tc.wantWrites, body["imported"])
			}
		})
	}
}

func TestWeightSeries(t *testing.T) {
	var gotFrom, gotTo time.Time
	ts := newTestServer(t, &mockWeightRepo{
		betweenFn: func(_ context.Context, _ int64, from, to time.Time) ([]domain.WeightEntry, error) {
			gotFrom, gotTo = from, to
			return []domain.WeightEntry{
				*entry(1, "", 80, time.Now().Add(-48*time.Hour)),
				*entry(2, "", 79.5, time.Now()),
			}, nil
		},
	})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/weight/series?days=7", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Days  int                     `json:"days"`
		Items []domain.WeightWithDate `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Days != 7 || len(body.Items) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Items[1].Weight.Weight != 79.5 || body.Items[1].Date == 0 {
		t.Errorf("unexpected item: %+v", body.Items[1])
	}
	if got := gotTo.Sub(gotFrom); got < 6*24*time.Hour || got > 8*24*time.Hour {
		t.Errorf("expected a 7 day window, got %v", got)
	}
	if !gotTo.After(time.Now()) {
		t.Errorf("expected window to include today, ends %v", gotTo)
	}
}

func TestHistoryDaily(t *testing.T) {
	ts := newTestServer(t, &mockWeightRepo{
		latestFn: func(_ context.Context, _ int64, day string) (*domain.WeightEntry, error) {
			return entry(1, day, 80, time.Now()), nil
		},
	})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/history/daily?days=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Days  int            `json:"days"`
		Today string         `json:"today"`
		Items []app.DayPoint `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Days != 3 || len(body.Items) != 3 {
		t.Fatalf("expected 3 days, got %d / %d", body.Days, len(body.Items))
	}
	if body.Items[2].Day != body.Today {
		t.Errorf("expected last point to be today %s, got %s", body.Today, body.Items[2].Day)
	}
	if body.Items[0].Weight == nil || body.Items[0].Weight.Weight != 80 || body.Items[0].Unit != "kg" {
		t.Errorf("unexpected point: %+v", body.Items[0])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"DELETE weight/today", http.MethodDelete, "/api/weight/today"},
		{"POST weight/recent", http.MethodPost, "/api/weight/recent"},
		{"GET weight/undo-last", http.MethodGet, "/api/weight/undo-last"},
		{"GET weight/import", http.MethodGet, "/api/weight/import"},
		{"POST history/daily", http.MethodPost, "/api/history/daily"},
		{"GET auth/login", http.MethodGet, "/api/auth/login"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Fatalf("expected 405, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSPAFallback(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/", "index"},
		{"/history", "history"},
		{"/some/client/route", "index"},
	}
	for _, tc := range tests {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		_ = resp.Body.Close()
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("%s: expected %q page, got %q", tc.path, tc.want, buf.String())
		}
	}
}

// ---------------------------------------------------------------------------
// Authentication, end to end over the in-memory store
// ---------------------------------------------------------------------------

type authFixture struct {
	ts     *httptest.Server
	client *http.Client
}

func newAuthServer(t *testing.T, oidcCfg *adapthttp.OIDCConfig, forwardAuth bool) *authFixture {
	t.Helper()
	mem := memory.New()
	authSvc := app.NewAuthService(mem, mem.NewSessionRepo())
	srv := adapthttp.New(app.NewWeightService(mem), app.NewHistoryService(mem), authSvc, writeWebDir(t)).WithOIDC(oidcCfg).WithForwardAuth(forwardAuth)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	t.Cleanup(client.CloseIdleConnections)
	return &authFixture{ts: ts, client: client}
}

func (f *authFixture) do(t *testing.T, method, path, userAgent string, cookie *http.Cookie, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("User-Agent", userAgent)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func sessionCookieOf(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestAuthFlow(t *testing.T) {
	f := newAuthServer(t, nil, false)
	const ua = "test-agent"
	creds := map[string]string{"username": "alice", "password": "pw-123456"}

	// Protected routes reject anonymous callers.
	if resp := f.do(t, http.MethodGet, "/api/weight/today", ua, nil, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", resp.StatusCode)
	}

	if resp := f.do(t, http.MethodPost, "/api/auth/setup", ua, nil, creds); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/auth/setup", ua, nil, creds); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second setup: expected 409, got %d", resp.StatusCode)
	}

	bad := map[string]string{"username": "alice", "password": "nope"}
	if resp := f.do(t, http.MethodPost, "/api/auth/login", ua, nil, bad); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/auth/login", ua, nil, creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	cookie := sessionCookieOf(resp)
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %v", cookie)
	}

	resp = f.do(t, http.MethodPut, "/api/weight/today", ua, cookie, map[string]any{"weight": 72.5, "unit": "kg"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if e, _ := body["entry"].(map[string]any); e == nil || e["weight"] != 72.5 {
		t.Fatalf("unexpected entry: %v", body["entry"])
	}

	// A stolen cookie replayed from another client is rejected.
	if resp := f.do(t, http.MethodGet, "/api/weight/today", "other-agent", cookie, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("user agent mismatch: expected 401, got %d", resp.StatusCode)
	}
	// The mismatch also revoked the session.
	if resp := f.do(t, http.MethodGet, "/api/weight/today", ua, cookie, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked session: expected 401, got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/auth/login", ua, nil, creds)
	cookie = sessionCookieOf(resp)
	if resp := f.do(t, http.MethodPost, "/api/auth/logout", ua, cookie, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/weight/recent", ua, cookie, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestForwardAuth(t *testing.T) {
	f := newAuthServer(t, nil, true)

	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/weight/today", strings.NewReader(`{"weight":90,"unit":"lb"}`))
	req.Header.Set("Remote-User", "bob")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 via forward auth, got %d", resp.StatusCode)
	}

	// Another forward-auth user does not see bob's data.
	req, _ = http.NewRequest(http.MethodGet, f.ts.URL+"/api/weight/recent", nil)
	req.Header.Set("Remote-User", "carol")
	resp2, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	body := decodeBody(t, resp2)
	if items, _ := body["items"].([]any); len(items) != 0 {
		t.Fatalf("expected no items for carol, got %v", items)
	}
}

func TestForwardAuth_IgnoredUnlessEnabled(t *testing.T) {
	f := newAuthServer(t, nil, false)

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/weight/recent", nil)
	req.Header.Set("Remote-User", "mallory")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 when forward auth is off, got %d", resp.StatusCode)
	}
}

func TestSSO(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newAuthServer(t, nil, false)
		for _, path := range []string{"/api/auth/sso/login", "/api/auth/sso/callback"} {
			if resp := f.do(t, http.MethodGet, path, "", nil, nil); resp.StatusCode != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
			}
		}
	})

	cfg := &adapthttp.OIDCConfig{
		Enabled: true,
		OAuth2Config: oauth2.Config{
			ClientID:    "weightlog",
			RedirectURL: "https://weights.example.com/api/auth/sso/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://id.example.com/authorize", TokenURL: "https://id.example.com/token"},
			Scopes:      []string{"openid"},
		},
	}

	t.Run("login redirects with state", func(t *testing.T) {
		f := newAuthServer(t, cfg, false)

		cfgResp := f.do(t, http.MethodGet, "/api/config", "", nil, nil)
		if body := decodeBody(t, cfgResp); body["sso_enabled"] != true {
			t.Fatalf("expected sso_enabled=true, got %v", body["sso_enabled"])
		}

		resp := f.do(t, http.MethodGet, "/api/auth/sso/login", "", nil, nil)
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", resp.StatusCode)
		}
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			t.Fatal(err)
		}
		if loc.Host != "id.example.com" || loc.Query().Get("client_id") != "weightlog" {
			t.Fatalf("unexpected redirect: %s", loc)
		}
		var state *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "oauth_state" {
				state = c
			}
		}
		if state == nil || state.Value == "" || loc.Query().Get("state") != state.Value {
			t.Fatalf("state cookie %v does not match redirect state %q", state, loc.Query().Get("state"))
		}
	})

	t.Run("callback rejects state mismatch", func(t *testing.T) {
		f := newAuthServer(t, cfg, false)
		cookie := &http.Cookie{Name: "oauth_state", Value: "expected"}
		if resp := f.do(t, http.MethodGet, "/api/auth/sso/callback?state=forged&code=x", "", cookie, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/api/auth/sso/callback?state=expected&code=x", "", nil, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("missing cookie: expected 400, got %d", resp.StatusCode)
		}
	})
}
