package storage

import (
	"context"
	"time"

	"github.com/conorfennell/recallkit/internal/domain"
	"github.com/conorfennell/recallkit/internal/queue"
)

// Stats is a summary of the collection as of one day.
type Stats struct {
	Total         int `json:"total"`
	New           int `json:"new"`
	Learning      int `json:"learning"`
	Mastered      int `json:"mastered"`
	Due           int `json:"due"`
	ReviewedToday int `json:"reviewed_today"`
}

// Stats counts cards per status, cards due on today and ratings given today.
func (db *DB) Stats(ctx context.Context, today time.Time) (Stats, error) {
	counts, err := db.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	cards, err := db.ListCards(ctx)
	if err != nil {
		return Stats{}, err
	}
	reviewed, err := db.ReviewCountSince(ctx, today)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:         len(cards),
		New:           counts[domain.StatusNew],
		Learning:      counts[domain.StatusLearning],
		Mastered:      counts[domain.StatusMastered],
		Due:           queue.CountDue(cards, today),
		ReviewedToday: reviewed,
	}, nil
}
