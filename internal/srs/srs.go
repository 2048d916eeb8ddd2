package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
)

// Params holds the interval multipliers and bounds of the scheduler.
type Params struct {
	MasteredMultiplier float64 `koanf:"mastered_multiplier" validate:"gte=1"`
	// LaterMultiplier is 1.3 by default. An older review flow used 1.2.
	LaterMultiplier float64 `koanf:"later_multiplier" validate:"gte=1"`
	MinInterval     int     `koanf:"min_interval" validate:"gte=1"`
	MaxInterval     int     `koanf:"max_interval" validate:"gtefield=MinInterval"`
}

// DefaultParams returns the canonical scheduler settings.
func DefaultParams() *Params {
	return &Params{
		MasteredMultiplier: 2.0,
		LaterMultiplier:    1.3,
		MinInterval:        1,
		MaxInterval:        365,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the params describe a usable scheduler.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid scheduler params: %w", err)
	}
	return nil
}

// Schedule is the outcome of rating a card.
type Schedule struct {
	Interval       int           `json:"interval"`
	NextReviewDate time.Time     `json:"-"`
	Status         domain.Status `json:"status"`
}

// Next computes the schedule for a card with the given interval that was
// just rated on today. Non-positive intervals count as 1. The only error is
// an undeclared rating value.
func (p *Params) Next(currentInterval int, rating domain.Rating, today time.Time) (Schedule, error) {
	if currentInterval < 1 {
		currentInterval = 1
	}

	var raw int
	var status domain.Status
	switch rating {
	case domain.RatingMastered:
		raw = scale(currentInterval, p.MasteredMultiplier)
		status = domain.StatusMastered
	case domain.RatingLater:
		raw = scale(currentInterval, p.LaterMultiplier)
		status = domain.StatusLearning
	case domain.RatingTryAgain:
		raw = 1
		status = domain.StatusLearning
	default:
		return Schedule{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	interval := p.clamp(raw)
	return Schedule{
		Interval:       interval,
		NextReviewDate: calendar.AddDays(today, interval),
		Status:         status,
	}, nil
}

// Next schedules with DefaultParams.
func Next(currentInterval int, rating domain.Rating, today time.Time) (Schedule, error) {
	return DefaultParams().Next(currentInterval, rating, today)
}

// scale multiplies and rounds half away from zero.
func scale(interval int, multiplier float64) int {
	return int(math.Round(float64(interval) * multiplier))
}

func (p *Params) clamp(interval int) int {
	lo, hi := p.MinInterval, p.MaxInterval
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return max(lo, min(interval, hi))
}

// Update is the persisted mutation for a card rated on today.
func (s Schedule) Update(today time.Time) domain.CardUpdate {
	reviewed := calendar.Day(today)
	next := s.NextReviewDate
	interval := s.Interval
	status := s.Status
	return domain.CardUpdate{
		LastReviewed:   &reviewed,
		NextReviewDate: &next,
		Interval:       &interval,
		Status:         &status,
	}
}

// Apply returns card with the schedule applied.
func (s Schedule) Apply(card domain.Card, today time.Time) domain.Card {
	return s.Update(today).Apply(card)
}
