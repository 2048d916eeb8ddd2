package domain

import (
	"encoding"
	"fmt"
)

// Status is where a card sits in its review lifecycle.
type Status int

const (
	StatusNew      Status = iota // never reviewed
	StatusLearning               // reviewed, not yet mastered
	StatusMastered               // rated Mastered on its latest review
)

var (
	statusNames  = [...]string{StatusNew: "new", StatusLearning: "learning", StatusMastered: "mastered"}
	statusByName = map[string]Status{
		"new":      StatusNew,
		"learning": StatusLearning,
		"mastered": StatusMastered,
	}
)

var (
	_ fmt.Stringer             = Status(0)
	_ encoding.TextMarshaler   = Status(0)
	_ encoding.TextUnmarshaler = (*Status)(nil)
)

func (s Status) String() string {
	if s.IsValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	return s >= StatusNew && s <= StatusMastered
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, ok := statusByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, text)
	}
	*s = v
	return nil
}

// ParseStatus converts a stored status name back into a Status.
func ParseStatus(name string) (Status, error) {
	var s Status
	err := s.UnmarshalText([]byte(name))
	return s, err
}

// Rating is the user's self-assessment after seeing a card's back.
type Rating int

const (
	RatingMastered Rating = iota + 1
	RatingLater
	RatingTryAgain
)

var (
	ratingNames  = [...]string{RatingMastered: "Mastered", RatingLater: "Later", RatingTryAgain: "TryAgain"}
	ratingByName = map[string]Rating{
		"Mastered": RatingMastered,
		"Later":    RatingLater,
		"TryAgain": RatingTryAgain,
	}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// String returns "Mastered", "Later" or "TryAgain", and "Rating(n)" otherwise.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// IsValid reports whether r is one of the three declared ratings.
func (r Rating) IsValid() bool {
	return r >= RatingMastered && r <= RatingTryAgain
}

func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

func (r *Rating) UnmarshalText(text []byte) error {
	v, ok := ratingByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRating, text)
	}
	*r = v
	return nil
}

// ParseRating accepts the canonical rating names.
func ParseRating(name string) (Rating, error) {
	var r Rating
	err := r.UnmarshalText([]byte(name))
	return r, err
}
