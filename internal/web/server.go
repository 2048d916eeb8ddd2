package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
	"github.com/conorfennell/recallkit/internal/queue"
	"github.com/conorfennell/recallkit/internal/session"
	"github.com/conorfennell/recallkit/internal/srs"
	"github.com/conorfennell/recallkit/internal/storage"
	"github.com/conorfennell/recallkit/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	driver   *session.Driver
	syncer   *sync.Syncer
	clock    calendar.Clock
	logger   *slog.Logger
	validate *validator.Validate
	router   *http.ServeMux
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, driver *session.Driver, syncer *sync.Syncer, clock calendar.Clock, logger *slog.Logger) *Server {
	s := &Server{
		db:       db,
		driver:   driver,
		syncer:   syncer,
		clock:    clock,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /cards", s.handleListCards())
	s.router.HandleFunc("POST /cards", s.handleCreateCard())
	s.router.HandleFunc("GET /cards/{id}", s.handleGetCard())
	s.router.HandleFunc("DELETE /cards/{id}", s.handleDeleteCard())

	s.router.HandleFunc("GET /queue", s.handleGetQueue())
	s.router.HandleFunc("GET /stats", s.handleGetStats())

	// Review sessions
	s.router.HandleFunc("POST /sessions", s.handleStartSession())
	s.router.HandleFunc("GET /sessions/{id}", s.handleGetSession())
	s.router.HandleFunc("POST /sessions/{id}/ratings", s.handleRate())

	// Source management
	s.router.HandleFunc("GET /sources", s.handleListSources())
	s.router.HandleFunc("POST /sources", s.handleAddSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and answers with a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

type createCardRequest struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.db.ListCards(r.Context())
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if cards == nil {
			cards = []domain.Card{}
		}
		s.writeJSON(w, http.StatusOK, cards)
	}
}

// handleCreateCard adds a hand-written card that is due today.
func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCardRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		card := domain.NewCard(uuid.NewString(), req.Front, req.Back, s.clock.Today())
		if err := s.db.InsertCard(r.Context(), card); err != nil {
			s.internalError(w, r, err)
			return
		}
		s.logger.Info("card created", "id", card.ID)
		s.writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.db.FindCard(r.Context(), r.PathValue("id"))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if card == nil {
			s.writeError(w, http.StatusNotFound, "card not found")
			return
		}
		s.writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.db.DeleteCard(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, domain.ErrCardNotFound):
			s.writeError(w, http.StatusNotFound, "card not found")
		case err != nil:
			s.internalError(w, r, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// handleGetQueue previews the queue a session would freeze right now.
func (s *Server) handleGetQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := queue.ParseMode(r.URL.Query().Get("mode"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cards, err := s.db.ListCards(r.Context())
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, queue.Select(cards, s.clock.Today(), mode))
	}
}

func (s *Server) handleGetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.db.Stats(r.Context(), s.clock.Today())
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

type startSessionRequest struct {
	Mode    queue.Mode `json:"mode"`
	ScopeID int64      `json:"scope_id" validate:"gte=0"`
}

type rateRequest struct {
	Rating domain.Rating `json:"rating" validate:"required"`
}

type sessionResponse struct {
	Session   *session.Snapshot `json:"session"`
	State     session.State     `json:"state"`
	Remaining int               `json:"remaining"`
	Current   *domain.Card      `json:"current,omitempty"`
}

type scheduleResponse struct {
	Interval       int           `json:"interval"`
	NextReviewDate string        `json:"next_review_date"`
	Status         domain.Status `json:"status"`
}

type rateResponse struct {
	Card     *domain.Card     `json:"card"`
	Schedule scheduleResponse `json:"schedule"`
	sessionResponse
}

// view resolves the current card of snap, skipping vanished cards.
func (s *Server) view(r *http.Request, snap *session.Snapshot) (sessionResponse, error) {
	resp := sessionResponse{Session: snap}
	card, err := s.driver.Current(r.Context(), snap)
	if err != nil && !errors.Is(err, session.ErrSessionCompleted) {
		return resp, err
	}
	resp.Current = card
	resp.State = snap.State()
	resp.Remaining = snap.Remaining()
	return resp, nil
}

func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if r.ContentLength != 0 {
			if err := s.decode(r, &req); err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		snap, err := s.driver.Start(r.Context(), req.Mode, req.ScopeID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp, err := s.view(r, snap)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.driver.Resume(r.Context(), r.PathValue("id"))
		if errors.Is(err, session.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp, err := s.view(r, snap)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleRate rates the card at the session cursor and moves to the next one.
func (s *Server) handleRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rateRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		snap, err := s.driver.Resume(r.Context(), r.PathValue("id"))
		if errors.Is(err, session.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}

		card, sched, err := s.driver.Rate(r.Context(), snap, req.Rating)
		switch {
		case errors.Is(err, domain.ErrInvalidRating):
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, session.ErrSessionCompleted), errors.Is(err, session.ErrCardBusy),
			errors.Is(err, session.ErrStaleSnapshot):
			s.writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			s.internalError(w, r, err)
			return
		}

		view, err := s.view(r, snap)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rateResponse{
			Card:            card,
			Schedule:        toScheduleResponse(sched),
			sessionResponse: view,
		})
	}
}

func toScheduleResponse(sched srs.Schedule) scheduleResponse {
	return scheduleResponse{
		Interval:       sched.Interval,
		NextReviewDate: calendar.Format(sched.NextReviewDate),
		Status:         sched.Status,
	}
}

type sourceResponse struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

func toSourceResponse(src storage.Source) sourceResponse {
	resp := sourceResponse{ID: src.ID, Path: src.Path, Type: src.Type}
	if src.LastScanned.Valid {
		resp.LastScanned = &src.LastScanned.Time
	}
	return resp
}

type addSourceRequest struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleListSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp := make([]sourceResponse, 0, len(sources))
		for _, src := range sources {
			resp = append(resp, toSourceResponse(src))
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleAddSource registers a source. It is picked up by the next sync.
func (s *Server) handleAddSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addSourceRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		existing, err := s.db.FindSourceByPath(r.Context(), req.Path)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if existing != nil {
			s.writeError(w, http.StatusConflict, "source already exists")
			return
		}
		id, err := s.syncer.AddSource(r.Context(), req.Path)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.logger.Info("source added", "id", id, "path", req.Path)
		s.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid source id")
			return
		}
		err = s.db.DeleteSource(r.Context(), id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.writeError(w, http.StatusNotFound, "source not found")
		case err != nil:
			s.internalError(w, r, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

type syncResponse struct {
	sync.Report
	Errors []string `json:"errors"`
}

// handlePostSync runs a sync in the foreground and reports what changed.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.syncer.RunSync(r.Context())
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp := syncResponse{Report: report, Errors: make([]string, 0, len(report.Errors))}
		for _, e := range report.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}
