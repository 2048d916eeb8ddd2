package domain

import (
	"errors"
	"time"

	"github.com/conorfennell/recallkit/internal/calendar"
)

var (
	ErrInvalidRating = errors.New("invalid rating")
	ErrInvalidStatus = errors.New("invalid card status")
	ErrCardNotFound  = errors.New("card not found")
)

// Card is a single front/back study unit with its scheduling metadata.
type Card struct {
	ID             string     `json:"id"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	LastReviewed   *time.Time `json:"last_reviewed,omitempty"`    // nil before the first rating
	NextReviewDate *time.Time `json:"next_review_date,omitempty"` // nil means due immediately
	Interval       int        `json:"interval"`
	Status         Status     `json:"status"`
	SourceID       int64      `json:"source_id,omitempty"`
}

// NewCard returns a card that has never been reviewed and is due today.
func NewCard(id, front, back string, today time.Time) Card {
	due := calendar.Day(today)
	return Card{
		ID:             id,
		Front:          front,
		Back:           back,
		NextReviewDate: &due,
		Interval:       1,
		Status:         StatusNew,
	}
}

// CardUpdate is a partial update of a card's scheduling fields.
// Nil fields are left untouched.
type CardUpdate struct {
	LastReviewed   *time.Time
	NextReviewDate *time.Time
	Interval       *int
	Status         *Status
}

// IsEmpty reports whether the update changes nothing.
func (u CardUpdate) IsEmpty() bool {
	return u.LastReviewed == nil && u.NextReviewDate == nil && u.Interval == nil && u.Status == nil
}

// Apply returns a copy of c with the non-nil fields of u set.
func (u CardUpdate) Apply(c Card) Card {
	if u.LastReviewed != nil {
		v := *u.LastReviewed
		c.LastReviewed = &v
	}
	if u.NextReviewDate != nil {
		v := *u.NextReviewDate
		c.NextReviewDate = &v
	}
	if u.Interval != nil {
		c.Interval = *u.Interval
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	return c
}

// ReviewLog records a single rating event for a card.
type ReviewLog struct {
	CardID     string
	Rating     Rating
	Interval   int
	ReviewedOn time.Time
	CreatedAt  time.Time
}
