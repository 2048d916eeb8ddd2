package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/session"
	"github.com/conorfennell/recallkit/internal/storage"
	"github.com/conorfennell/recallkit/internal/sync"
)

var today = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(":memory:", time.UTC)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := calendar.FixedClock(today)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	driver := session.NewDriver(db, db, session.WithClock(clock), session.WithLogger(logger))
	syncer := sync.New(db, t.TempDir(), clock, logger)
	return NewServer(db, driver, syncer, clock, logger)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

type cardBody struct {
	ID             string  `json:"id"`
	Front          string  `json:"front"`
	Interval       int     `json:"interval"`
	Status         string  `json:"status"`
	NextReviewDate *string `json:"next_review_date"`
}

type sessionBody struct {
	Session struct {
		ID           string   `json:"id"`
		QueueCardIDs []string `json:"queue_card_ids"`
	} `json:"session"`
	State     string    `json:"state"`
	Remaining int       `json:"remaining"`
	Current   *cardBody `json:"current"`
	Card      *cardBody `json:"card"`
	Schedule  struct {
		Interval       int    `json:"interval"`
		NextReviewDate string `json:"next_review_date"`
		Status         string `json:"status"`
	} `json:"schedule"`
}

func createCard(t *testing.T, s *Server, front, back string) cardBody {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/cards", map[string]string{"front": front, "back": back})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rr.Code, rr.Body.String())
	}
	var c cardBody
	decodeBody(t, rr, &c)
	return c
}

func TestCardRoutes(t *testing.T) {
	s := newTestServer(t)
	card := createCard(t, s, "What is Go?", "A language")
	if card.ID == "" || card.Status != "new" || card.Interval != 1 {
		t.Errorf("Unexpected new card: %+v", card)
	}

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"get existing", http.MethodGet, "/cards/" + card.ID, nil, http.StatusOK},
		{"get missing", http.MethodGet, "/cards/nope", nil, http.StatusNotFound},
		{"list", http.MethodGet, "/cards", nil, http.StatusOK},
		{"create without back", http.MethodPost, "/cards", map[string]string{"front": "x"}, http.StatusBadRequest},
		{"create with unknown field", http.MethodPost, "/cards", map[string]string{"front": "x", "back": "y", "extra": "z"}, http.StatusBadRequest},
		{"delete existing", http.MethodDelete, "/cards/" + card.ID, nil, http.StatusNoContent},
		{"delete again", http.MethodDelete, "/cards/" + card.ID, nil, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/cards", nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s, tc.method, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Errorf("Expected status %d, but got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestQueueRoute(t *testing.T) {
	s := newTestServer(t)
	createCard(t, s, "a", "1")
	createCard(t, s, "b", "2")

	rr := do(t, s, http.MethodGet, "/queue", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d", rr.Code)
	}
	var cards []cardBody
	decodeBody(t, rr, &cards)
	if len(cards) != 2 || cards[0].Front != "a" {
		t.Errorf("Expected both cards in insertion order, got %+v", cards)
	}

	if rr := do(t, s, http.MethodGet, "/queue?mode=all", nil); rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for mode=all, but got %d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/queue?mode=bogus", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown mode, but got %d", rr.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)
	first := createCard(t, s, "a", "1")
	second := createCard(t, s, "b", "2")

	rr := do(t, s, http.MethodPost, "/sessions", map[string]string{"mode": "dueOnly"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rr.Code, rr.Body.String())
	}
	var started sessionBody
	decodeBody(t, rr, &started)
	if started.State != "in_progress" || started.Remaining != 2 || started.Current == nil || started.Current.ID != first.ID {
		t.Fatalf("Unexpected started session: %+v", started)
	}
	ratings := "/sessions/" + started.Session.ID + "/ratings"

	t.Run("rejects unknown rating", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, ratings, map[string]string{"rating": "Great"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, but got %d", rr.Code)
		}
	})
	t.Run("rejects missing rating", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, ratings, map[string]string{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, but got %d", rr.Code)
		}
	})
	t.Run("unknown session", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/sessions/nope/ratings", map[string]string{"rating": "Later"})
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, but got %d", rr.Code)
		}
		if rr := do(t, s, http.MethodGet, "/sessions/nope", nil); rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, but got %d", rr.Code)
		}
	})

	rr = do(t, s, http.MethodPost, ratings, map[string]string{"rating": "Mastered"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d: %s", rr.Code, rr.Body.String())
	}
	var rated sessionBody
	decodeBody(t, rr, &rated)
	if rated.Card == nil || rated.Card.ID != first.ID || rated.Card.Status != "mastered" {
		t.Errorf("Expected the first card to be mastered, got %+v", rated.Card)
	}
	if rated.Schedule.Interval != 2 || rated.Schedule.NextReviewDate != "2024-01-03" || rated.Schedule.Status != "mastered" {
		t.Errorf("Unexpected schedule: %+v", rated.Schedule)
	}
	if rated.Current == nil || rated.Current.ID != second.ID || rated.Remaining != 1 {
		t.Errorf("Expected the second card to be current, got %+v", rated)
	}

	// Resuming over HTTP sees the persisted cursor.
	rr = do(t, s, http.MethodGet, "/sessions/"+started.Session.ID, nil)
	var resumed sessionBody
	decodeBody(t, rr, &resumed)
	if resumed.Current == nil || resumed.Current.ID != second.ID {
		t.Errorf("Expected resumed session at the second card, got %+v", resumed)
	}

	rr = do(t, s, http.MethodPost, ratings, map[string]string{"rating": "TryAgain"})
	var done sessionBody
	decodeBody(t, rr, &done)
	if done.State != "completed" || done.Current != nil || done.Remaining != 0 {
		t.Errorf("Expected a completed session, got %+v", done)
	}

	if rr := do(t, s, http.MethodPost, ratings, map[string]string{"rating": "Later"}); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 rating a completed session, but got %d", rr.Code)
	}

	// The mastered card never comes back in a due-only session.
	rr = do(t, s, http.MethodPost, "/sessions", nil)
	var next sessionBody
	decodeBody(t, rr, &next)
	for _, id := range next.Session.QueueCardIDs {
		if id == first.ID {
			t.Error("Expected the mastered card to be left out of the new session")
		}
	}
}

func TestEmptySessionIsCompleted(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d", rr.Code)
	}
	var body sessionBody
	decodeBody(t, rr, &body)
	if body.State != "completed" || body.Current != nil {
		t.Errorf("Expected an empty completed session, got %+v", body)
	}
}

func TestStatsRoute(t *testing.T) {
	s := newTestServer(t)
	createCard(t, s, "a", "1")

	rr := do(t, s, http.MethodGet, "/stats", nil)
	var stats storage.Stats
	decodeBody(t, rr, &stats)
	if stats.Total != 1 || stats.New != 1 || stats.Due != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestSourceRoutes(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deck.md"), []byte("Q: a\nA: b\n\nQ: c\nA: d\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := do(t, s, http.MethodPost, "/sources", map[string]string{"path": dir})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rr, &created)

	if rr := do(t, s, http.MethodPost, "/sources", map[string]string{"path": dir}); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a duplicate source, but got %d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/sources", map[string]string{}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an empty path, but got %d", rr.Code)
	}

	rr = do(t, s, http.MethodPost, "/sync", nil)
	var report struct {
		Sources  int      `json:"sources"`
		Inserted int      `json:"inserted"`
		Errors   []string `json:"errors"`
	}
	decodeBody(t, rr, &report)
	if report.Sources != 1 || report.Inserted != 2 || len(report.Errors) != 0 {
		t.Errorf("Unexpected sync report: %+v", report)
	}

	rr = do(t, s, http.MethodGet, "/sources", nil)
	var sources []struct {
		Path        string  `json:"path"`
		Type        string  `json:"type"`
		LastScanned *string `json:"last_scanned"`
	}
	decodeBody(t, rr, &sources)
	if len(sources) != 1 || sources[0].Type != storage.SourceLocal || sources[0].LastScanned == nil {
		t.Errorf("Unexpected sources: %+v", sources)
	}

	testCases := []struct {
		path string
		want int
	}{
		{fmt.Sprintf("/sources/%d", created.ID), http.StatusNoContent},
		{fmt.Sprintf("/sources/%d", created.ID), http.StatusNotFound},
		{"/sources/abc", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		if rr := do(t, s, http.MethodDelete, tc.path, nil); rr.Code != tc.want {
			t.Errorf("DELETE %s: expected status %d, but got %d", tc.path, tc.want, rr.Code)
		}
	}

	rr = do(t, s, http.MethodGet, "/cards", nil)
	var cards []cardBody
	decodeBody(t, rr, &cards)
	if len(cards) != 0 {
		t.Errorf("Expected the source's cards to be deleted with it, got %d", len(cards))
	}
}
