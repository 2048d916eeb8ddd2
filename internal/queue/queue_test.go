package queue

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
)

var today = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func card(id string, status domain.Status, offset *int) domain.Card {
	c := domain.Card{ID: id, Interval: 1, Status: status}
	if offset != nil {
		d := calendar.AddDays(today, *offset)
		c.NextReviewDate = &d
	}
	return c
}

func days(n int) *int { return &n }

func ids(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestSelectDueOnlyOrder(t *testing.T) {
	a := card("A", domain.StatusLearning, days(-1))
	b := card("B", domain.StatusNew, nil)
	c := card("C", domain.StatusLearning, days(0))

	got := ids(Select([]domain.Card{c, a, b}, today, DueOnly))
	want := []string{"B", "A", "C"}
	if !slices.Equal(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelectDueOnlyFilters(t *testing.T) {
	cards := []domain.Card{
		card("future", domain.StatusLearning, days(1)),
		card("mastered-overdue", domain.StatusMastered, days(-30)),
		card("mastered-undated", domain.StatusMastered, nil),
		card("due", domain.StatusLearning, days(-3)),
	}

	got := ids(Select(cards, today, DueOnly))
	if !slices.Equal(got, []string{"due"}) {
		t.Errorf("Select() = %v, want [due]", got)
	}
}

func TestSelectTies(t *testing.T) {
	cards := []domain.Card{
		card("learning-1", domain.StatusLearning, days(-2)),
		card("new", domain.StatusNew, days(-2)),
		card("learning-2", domain.StatusLearning, days(-2)),
		card("undated-learning", domain.StatusLearning, nil),
		card("undated-new", domain.StatusNew, nil),
	}

	got := ids(Select(cards, today, DueOnly))
	want := []string{"undated-new", "undated-learning", "new", "learning-1", "learning-2"}
	if !slices.Equal(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}
}

func TestSelectComparesDaysNotInstants(t *testing.T) {
	late := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	c := domain.Card{ID: "late-today", Status: domain.StatusLearning, NextReviewDate: &late}

	if !IsDue(c, today) {
		t.Error("Expected a card dated later today to be due")
	}
}

func TestSelectEmpty(t *testing.T) {
	for _, mode := range []Mode{DueOnly, All} {
		got := Select(nil, today, mode)
		if got == nil || len(got) != 0 {
			t.Errorf("Select(nil, %v) = %#v, want empty slice", mode, got)
		}
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	in := []domain.Card{
		card("C", domain.StatusLearning, days(0)),
		card("A", domain.StatusLearning, days(-1)),
	}
	Select(in, today, DueOnly)
	if in[0].ID != "C" || in[1].ID != "A" {
		t.Errorf("Select reordered its input: %v", ids(in))
	}
}

func TestSelectAll(t *testing.T) {
	cards := []domain.Card{
		card("a", domain.StatusLearning, days(10)),
		card("b", domain.StatusNew, nil),
		card("c", domain.StatusMastered, days(-1)),
		card("d", domain.StatusLearning, days(-1)),
		card("e", domain.StatusLearning, days(200)),
	}

	s := NewSelector(rand.New(rand.NewPCG(1, 2)).Shuffle)
	got := ids(s.Select(cards, today, All))

	if len(got) != 4 {
		t.Fatalf("Expected 4 cards, but got %v", got)
	}
	if slices.Contains(got, "c") {
		t.Errorf("Expected mastered card to be excluded, got %v", got)
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"a", "b", "d", "e"}) {
		t.Errorf("All mode returned %v", got)
	}

	again := ids(NewSelector(rand.New(rand.NewPCG(1, 2)).Shuffle).Select(cards, today, All))
	if !slices.Equal(got, again) {
		t.Errorf("Expected the same seed to give the same order: %v vs %v", got, again)
	}
}

func TestCountDue(t *testing.T) {
	cards := []domain.Card{
		card("a", domain.StatusNew, nil),
		card("b", domain.StatusLearning, days(1)),
		card("c", domain.StatusMastered, days(-1)),
		card("d", domain.StatusLearning, days(0)),
	}
	if n := CountDue(cards, today); n != 2 {
		t.Errorf("CountDue() = %d, want 2", n)
	}
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		in   string
		want Mode
	}{
		{"", DueOnly},
		{"dueOnly", DueOnly},
		{"all", All},
	}
	for _, tc := range testCases {
		got, err := ParseMode(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}

	if _, err := ParseMode("random"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(random) error = %v, want ErrInvalidMode", err)
	}
	if All.String() != "all" || Mode(7).String() != "Mode(7)" {
		t.Error("Mode.String() returned unexpected names")
	}
}

func TestSelectUndeclaredMode(t *testing.T) {
	cards := []domain.Card{card("A", domain.StatusLearning, days(-1)), card("B", domain.StatusNew, nil)}

	got := Select(cards, today, Mode(7))
	if got == nil || len(got) != 0 {
		t.Errorf("Expected an empty queue for Mode(7), but got %v", ids(got))
	}
	if Mode(7).IsValid() {
		t.Error("Expected Mode(7) to be invalid")
	}
	if _, err := Mode(7).MarshalText(); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("MarshalText() error = %v, want ErrInvalidMode", err)
	}
}
