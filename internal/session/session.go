package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
	"github.com/conorfennell/recallkit/internal/queue"
	"github.com/conorfennell/recallkit/internal/srs"
)

var (
	ErrSessionCompleted = errors.New("session completed")
	ErrNotStarted       = errors.New("session not started")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCardBusy         = errors.New("card has a rating in flight")
	ErrStaleSnapshot    = errors.New("session has moved on since it was loaded")
)

// State is the lifecycle position of a review session.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the frozen queue of a review session plus its cursor. It is
// what gets persisted so a session survives a restart.
type Snapshot struct {
	ID           string     `json:"id"`
	QueueCardIDs []string   `json:"queue_card_ids"`
	CurrentIndex int        `json:"current_index"`
	Mode         queue.Mode `json:"mode"`
	ScopeID      int64      `json:"scope_id,omitempty"`
	StartedOn    time.Time  `json:"started_on"`
}

// State derives the lifecycle state from the cursor.
func (s *Snapshot) State() State {
	if s == nil || s.ID == "" {
		return NotStarted
	}
	if s.CurrentIndex >= len(s.QueueCardIDs) {
		return Completed
	}
	return InProgress
}

// Remaining is the number of cards not yet rated or skipped.
func (s *Snapshot) Remaining() int {
	if s == nil {
		return 0
	}
	return max(0, len(s.QueueCardIDs)-s.CurrentIndex)
}

// CardStore is the card persistence the driver needs.
type CardStore interface {
	ListCards(ctx context.Context) ([]domain.Card, error)
	ListCardsBySource(ctx context.Context, sourceID int64) ([]domain.Card, error)
	FindCard(ctx context.Context, id string) (*domain.Card, error)
	UpdateCard(ctx context.Context, id string, update domain.CardUpdate) error
	RecordReview(ctx context.Context, log domain.ReviewLog) error
}

// SnapshotStore persists session snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// Driver runs review sessions: it freezes a queue, hands out one card at a
// time and turns each rating into a persisted schedule update.
type Driver struct {
	cards    CardStore
	snaps    SnapshotStore
	params   *srs.Params
	clock    calendar.Clock
	selector *queue.Selector
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{} // card ids
	rating   map[string]struct{} // session ids
}

// Option configures a Driver.
type Option func(*Driver)

func WithParams(p *srs.Params) Option { return func(d *Driver) { d.params = p } }
func WithClock(c calendar.Clock) Option { return func(d *Driver) { d.clock = c } }
func WithSelector(s *queue.Selector) Option { return func(d *Driver) { d.selector = s } }
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// NewDriver creates a driver over the given stores.
func NewDriver(cards CardStore, snaps SnapshotStore, opts ...Option) *Driver {
	d := &Driver{
		cards:    cards,
		snaps:    snaps,
		params:   srs.DefaultParams(),
		clock:    calendar.SystemClock{},
		selector: queue.NewSelector(nil),
		logger:   slog.Default(),
		inFlight: make(map[string]struct{}),
		rating:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start selects a queue and freezes it into a new snapshot. A scopeID of 0
// covers all cards, otherwise only the cards of that source.
func (d *Driver) Start(ctx context.Context, mode queue.Mode, scopeID int64) (*Snapshot, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %d", queue.ErrInvalidMode, int(mode))
	}
	var cards []domain.Card
	var err error
	if scopeID == 0 {
		cards, err = d.cards.ListCards(ctx)
	} else {
		cards, err = d.cards.ListCardsBySource(ctx, scopeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cards for session: %w", err)
	}

	today := d.clock.Today()
	selected := d.selector.Select(cards, today, mode)

	snap := &Snapshot{
		ID:           uuid.NewString(),
		QueueCardIDs: make([]string, len(selected)),
		Mode:         mode,
		ScopeID:      scopeID,
		StartedOn:    today,
	}
	for i, c := range selected {
		snap.QueueCardIDs[i] = c.ID
	}

	if err := d.snaps.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	d.logger.Info("review session started", "session", snap.ID, "mode", mode, "scope", scopeID, "cards", len(selected))
	return snap, nil
}

// Resume loads a persisted session.
func (d *Driver) Resume(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := d.snaps.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return snap, nil
}

// Latest loads the most recently saved session, or ErrSessionNotFound.
func (d *Driver) Latest(ctx context.Context) (*Snapshot, error) {
	snap, err := d.snaps.LatestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest session: %w", err)
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}
	return snap, nil
}

// Current returns the card at the session cursor. Cards deleted since the
// snapshot was taken are skipped and the cursor is saved past them.
func (d *Driver) Current(ctx context.Context, snap *Snapshot) (*domain.Card, error) {
	switch snap.State() {
	case NotStarted:
		return nil, ErrNotStarted
	case Completed:
		return nil, ErrSessionCompleted
	}

	skipped := false
	for snap.CurrentIndex < len(snap.QueueCardIDs) {
		id := snap.QueueCardIDs[snap.CurrentIndex]
		card, err := d.cards.FindCard(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load card %s: %w", id, err)
		}
		if card != nil {
			if skipped {
				if err := d.snaps.SaveSnapshot(ctx, snap); err != nil {
					return nil, fmt.Errorf("failed to save session %s: %w", snap.ID, err)
				}
			}
			return card, nil
		}
		d.logger.Warn("card vanished from session queue, skipping", "session", snap.ID, "card", id)
		snap.CurrentIndex++
		skipped = true
	}

	if err := d.snaps.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil, ErrSessionCompleted
}

// Rate applies rating to the current card, persists the new schedule,
// records the review and advances the cursor. Ratings of one session are
// serialized; a snapshot whose cursor is behind the persisted one is
// rejected with ErrStaleSnapshot.
func (d *Driver) Rate(ctx context.Context, snap *Snapshot, rating domain.Rating) (*domain.Card, srs.Schedule, error) {
	if !rating.IsValid() {
		return nil, srs.Schedule{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	if !d.acquire(d.rating, snap.ID) {
		return nil, srs.Schedule{}, fmt.Errorf("%w: session %s", ErrCardBusy, snap.ID)
	}
	defer d.release(d.rating, snap.ID)

	stored, err := d.snaps.LoadSnapshot(ctx, snap.ID)
	if err != nil {
		return nil, srs.Schedule{}, fmt.Errorf("failed to load session %s: %w", snap.ID, err)
	}
	if stored == nil {
		return nil, srs.Schedule{}, fmt.Errorf("%w: %s", ErrSessionNotFound, snap.ID)
	}
	if stored.CurrentIndex != snap.CurrentIndex {
		return nil, srs.Schedule{}, fmt.Errorf("%w: cursor %d, saved %d", ErrStaleSnapshot, snap.CurrentIndex, stored.CurrentIndex)
	}

	card, err := d.Current(ctx, snap)
	if err != nil {
		return nil, srs.Schedule{}, err
	}

	if !d.acquire(d.inFlight, card.ID) {
		return nil, srs.Schedule{}, fmt.Errorf("%w: %s", ErrCardBusy, card.ID)
	}
	defer d.release(d.inFlight, card.ID)

	today := d.clock.Today()
	sched, err := d.params.Next(card.Interval, rating, today)
	if err != nil {
		return nil, srs.Schedule{}, err
	}

	if err := d.cards.UpdateCard(ctx, card.ID, sched.Update(today)); err != nil {
		return nil, srs.Schedule{}, fmt.Errorf("failed to save schedule for card %s: %w", card.ID, err)
	}

	if err := d.cards.RecordReview(ctx, domain.ReviewLog{
		CardID:     card.ID,
		Rating:     rating,
		Interval:   sched.Interval,
		ReviewedOn: today,
		CreatedAt:  time.Now(),
	}); err != nil {
		// The schedule is already saved; a missing log entry only affects stats.
		d.logger.Warn("failed to record review", "card", card.ID, "error", err)
	}

	snap.CurrentIndex++
	if err := d.snaps.SaveSnapshot(ctx, snap); err != nil {
		return nil, srs.Schedule{}, fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}

	updated := sched.Apply(*card, today)
	d.logger.Debug("card rated",
		"session", snap.ID,
		"card", card.ID,
		"rating", rating,
		"interval", sched.Interval,
		"next_review", calendar.Format(sched.NextReviewDate),
	)
	return &updated, sched, nil
}

func (d *Driver) acquire(set map[string]struct{}, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := set[id]; busy {
		return false
	}
	set[id] = struct{}{}
	return true
}

func (d *Driver) release(set map[string]struct{}, id string) {
	d.mu.Lock()
	delete(set, id)
	d.mu.Unlock()
}
