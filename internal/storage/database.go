package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sqlx.DB
	loc  *time.Location
}

// Open creates a new database connection and ensures the schema is up to date.
// Stored days are read back in loc (time.Local when nil).
func Open(dsn string, loc *time.Location) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer, and ":memory:" databases are per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &DB{conn: conn, loc: loc}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type cardRow struct {
	ID             string         `db:"id"`
	Front          string         `db:"front"`
	Back           string         `db:"back"`
	LastReviewed   sql.NullString `db:"last_reviewed"`
	NextReviewDate sql.NullString `db:"next_review_date"`
	Interval       int            `db:"interval"`
	Status         string         `db:"status"`
	SourceID       sql.NullInt64  `db:"source_id"`
}

const cardColumns = `id, front, back, last_reviewed, next_review_date, interval, status, source_id`

func (db *DB) toCard(r cardRow) (domain.Card, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s: %w", r.ID, err)
	}
	c := domain.Card{
		ID:       r.ID,
		Front:    r.Front,
		Back:     r.Back,
		Interval: r.Interval,
		Status:   status,
		SourceID: r.SourceID.Int64,
	}
	if c.LastReviewed, err = db.parseDay(r.LastReviewed); err != nil {
		return domain.Card{}, fmt.Errorf("card %s last_reviewed: %w", r.ID, err)
	}
	if c.NextReviewDate, err = db.parseDay(r.NextReviewDate); err != nil {
		return domain.Card{}, fmt.Errorf("card %s next_review_date: %w", r.ID, err)
	}
	return c, nil
}

func (db *DB) parseDay(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := calendar.Parse(s.String, db.loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDay(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: calendar.Format(*t), Valid: true}
}

func nullSource(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// InsertCard inserts a new card with whatever scheduling state it carries.
func (db *DB) InsertCard(ctx context.Context, card domain.Card) error {
	status, err := card.Status.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	interval := card.Interval
	if interval < 1 {
		interval = 1
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, front, back, last_reviewed, next_review_date, interval, status, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.Front,
		card.Back,
		formatDay(card.LastReviewed),
		formatDay(card.NextReviewDate),
		interval,
		string(status),
		nullSource(card.SourceID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCard retrieves a card by id. It returns (nil, nil) when there is none.
func (db *DB) FindCard(ctx context.Context, id string) (*domain.Card, error) {
	var r cardRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	c, err := db.toCard(r)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCards retrieves every card.
func (db *DB) ListCards(ctx context.Context) ([]domain.Card, error) {
	return db.selectCards(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY rowid`)
}

// ListCardsBySource retrieves the cards synced from one source.
func (db *DB) ListCardsBySource(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	return db.selectCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY rowid`, sourceID)
}

func (db *DB) selectCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	var rows []cardRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	cards := make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		c, err := db.toCard(r)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// UpdateCard writes the non-nil fields of u to the card. It returns
// domain.ErrCardNotFound when no card has that id.
func (db *DB) UpdateCard(ctx context.Context, id string, u domain.CardUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	if u.LastReviewed != nil {
		sets = append(sets, "last_reviewed = ?")
		args = append(args, formatDay(u.LastReviewed))
	}
	if u.NextReviewDate != nil {
		sets = append(sets, "next_review_date = ?")
		args = append(args, formatDay(u.NextReviewDate))
	}
	if u.Interval != nil {
		sets = append(sets, "interval = ?")
		args = append(args, *u.Interval)
	}
	if u.Status != nil {
		status, err := u.Status.MarshalText()
		if err != nil {
			return fmt.Errorf("failed to update card %s: %w", id, err)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(status))
	}
	args = append(args, id)

	res, err := db.conn.ExecContext(ctx, `UPDATE cards SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
	}
	return nil
}

// DeleteCard removes a card by id. It returns domain.ErrCardNotFound when
// there was nothing to delete.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, id)
	}
	return nil
}

// CountByStatus returns how many cards are in each status.
func (db *DB) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := db.conn.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM cards GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count cards by status: %w", err)
	}
	counts := map[domain.Status]int{}
	for _, r := range rows {
		s, err := domain.ParseStatus(r.Status)
		if err != nil {
			return nil, err
		}
		counts[s] = r.N
	}
	return counts, nil
}

// RecordReview appends a rating to the review history.
func (db *DB) RecordReview(ctx context.Context, log domain.ReviewLog) error {
	rating, err := log.Rating.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to record review for card %s: %w", log.CardID, err)
	}
	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, interval, reviewed_on, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.CardID, string(rating), log.Interval, calendar.Format(log.ReviewedOn), createdAt)
	if err != nil {
		return fmt.Errorf("failed to record review for card %s: %w", log.CardID, err)
	}
	return nil
}

// ReviewCountSince counts ratings given on or after day.
func (db *DB) ReviewCountSince(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM review_logs WHERE reviewed_on >= ?`, calendar.Format(day))
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return n, nil
}

// ReviewsForCard returns the rating history of a card, oldest first.
func (db *DB) ReviewsForCard(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	var rows []struct {
		CardID     string    `db:"card_id"`
		Rating     string    `db:"rating"`
		Interval   int       `db:"interval"`
		ReviewedOn string    `db:"reviewed_on"`
		CreatedAt  time.Time `db:"created_at"`
	}
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT card_id, rating, interval, reviewed_on, created_at
		FROM review_logs WHERE card_id = ? ORDER BY id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews for card %s: %w", cardID, err)
	}

	logs := make([]domain.ReviewLog, 0, len(rows))
	for _, r := range rows {
		rating, err := domain.ParseRating(r.Rating)
		if err != nil {
			return nil, err
		}
		day, err := calendar.Parse(r.ReviewedOn, db.loc)
		if err != nil {
			return nil, err
		}
		logs = append(logs, domain.ReviewLog{
			CardID:     r.CardID,
			Rating:     rating,
			Interval:   r.Interval,
			ReviewedOn: day,
			CreatedAt:  r.CreatedAt,
		})
	}
	return logs, nil
}
