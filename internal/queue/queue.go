package queue

import (
	"encoding"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
)

var ErrInvalidMode = errors.New("invalid queue mode")

// Mode selects how the review queue is built.
type Mode int

const (
	// DueOnly returns non-mastered cards whose review date has arrived, oldest first.
	DueOnly Mode = iota
	// All returns every non-mastered card in random order, ignoring due dates.
	All
)

var (
	modeNames  = [...]string{DueOnly: "dueOnly", All: "all"}
	modeByName = map[string]Mode{"dueOnly": DueOnly, "all": All}
)

var (
	_ fmt.Stringer             = Mode(0)
	_ encoding.TextMarshaler   = Mode(0)
	_ encoding.TextUnmarshaler = (*Mode)(nil)
)

func (m Mode) IsValid() bool {
	return m == DueOnly || m == All
}

func (m Mode) String() string {
	if m.IsValid() {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(modeNames[m]), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, ok := modeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, text)
	}
	*m = v
	return nil
}

// ParseMode accepts "dueOnly" and "all". The empty string means DueOnly.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return DueOnly, nil
	}
	var m Mode
	err := m.UnmarshalText([]byte(s))
	return m, err
}

// IsDue reports whether a non-mastered card should be reviewed on today.
func IsDue(c domain.Card, today time.Time) bool {
	if c.Status == domain.StatusMastered {
		return false
	}
	return c.NextReviewDate == nil || calendar.OnOrBefore(*c.NextReviewDate, today)
}

// CountDue returns how many cards IsDue on today.
func CountDue(cards []domain.Card, today time.Time) int {
	n := 0
	for _, c := range cards {
		if IsDue(c, today) {
			n++
		}
	}
	return n
}

// Selector builds review queues. The zero value is not usable; see NewSelector.
type Selector struct {
	shuffle func(n int, swap func(i, j int))
}

// NewSelector returns a Selector that randomizes All-mode queues with shuffle.
// A nil shuffle uses the global math/rand/v2 source.
func NewSelector(shuffle func(n int, swap func(i, j int))) *Selector {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Selector{shuffle: shuffle}
}

var defaultSelector = NewSelector(nil)

// Select builds the queue with the default selector.
func Select(cards []domain.Card, today time.Time, mode Mode) []domain.Card {
	return defaultSelector.Select(cards, today, mode)
}

// Select returns the ordered cards to review on today. Mastered cards are
// never included. The input slice is not modified and an empty input yields
// an empty, non-nil slice. An undeclared mode selects nothing.
func (s *Selector) Select(cards []domain.Card, today time.Time, mode Mode) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	if !mode.IsValid() {
		return out
	}
	for _, c := range cards {
		if c.Status == domain.StatusMastered {
			continue
		}
		if mode == DueOnly && !IsDue(c, today) {
			continue
		}
		out = append(out, c)
	}

	if mode == All {
		s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}

	slices.SortStableFunc(out, compareDue)
	return out
}

// compareDue orders undated cards first, then by day, then new before seen.
func compareDue(a, b domain.Card) int {
	switch {
	case a.NextReviewDate == nil && b.NextReviewDate != nil:
		return -1
	case a.NextReviewDate != nil && b.NextReviewDate == nil:
		return 1
	case a.NextReviewDate != nil && b.NextReviewDate != nil:
		if d := calendar.DaysBetween(*b.NextReviewDate, *a.NextReviewDate); d != 0 {
			return d
		}
	}

	aNew, bNew := a.Status == domain.StatusNew, b.Status == domain.StatusNew
	switch {
	case aNew && !bNew:
		return -1
	case !aNew && bNew:
		return 1
	}
	return 0
}
