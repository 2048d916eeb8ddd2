package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRatingString(t *testing.T) {
	tests := []struct {
		r    Rating
		want string
	}{
		{RatingMastered, "Mastered"},
		{RatingLater, "Later"},
		{RatingTryAgain, "TryAgain"},
		{Rating(0), "Rating(0)"},
		{Rating(4), "Rating(4)"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("Rating(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}

func TestParseRating(t *testing.T) {
	for _, name := range []string{"Mastered", "Later", "TryAgain"} {
		r, err := ParseRating(name)
		if err != nil {
			t.Fatalf("ParseRating(%q) returned error: %v", name, err)
		}
		if r.String() != name {
			t.Errorf("ParseRating(%q) = %v", name, r)
		}
	}

	for _, name := range []string{"", "mastered", "Easy", "Again"} {
		_, err := ParseRating(name)
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("ParseRating(%q) error = %v, want ErrInvalidRating", name, err)
		}
	}
}

func TestRatingJSON(t *testing.T) {
	var body struct {
		Rating Rating `json:"rating"`
	}
	if err := json.Unmarshal([]byte(`{"rating":"Later"}`), &body); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if body.Rating != RatingLater {
		t.Errorf("Rating = %v, want Later", body.Rating)
	}

	err := json.Unmarshal([]byte(`{"rating":"Sometime"}`), &body)
	if !errors.Is(err, ErrInvalidRating) {
		t.Errorf("Unmarshal error = %v, want ErrInvalidRating", err)
	}

	if _, err := json.Marshal(struct{ R Rating }{Rating(9)}); err == nil {
		t.Error("Expected marshalling an invalid rating to fail")
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusLearning, StatusMastered} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) returned error: %v", s, err)
		}
		got, err := ParseStatus(string(text))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", text, got, err, s)
		}
	}
	if _, err := ParseStatus("retired"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ParseStatus(retired) error = %v, want ErrInvalidStatus", err)
	}
}

func TestNewCard(t *testing.T) {
	today := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewCard("id-1", "front", "back", today)

	if c.Status != StatusNew {
		t.Errorf("Status = %v, want new", c.Status)
	}
	if c.Interval != 1 {
		t.Errorf("Interval = %d, want 1", c.Interval)
	}
	if c.LastReviewed != nil {
		t.Errorf("LastReviewed = %v, want nil", c.LastReviewed)
	}
	if c.NextReviewDate == nil || !c.NextReviewDate.Equal(today) {
		t.Errorf("NextReviewDate = %v, want %v", c.NextReviewDate, today)
	}
}

func TestNewCardTruncatesToDay(t *testing.T) {
	afternoon := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	c := NewCard("id-1", "front", "back", afternoon)

	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if c.NextReviewDate == nil || !c.NextReviewDate.Equal(want) {
		t.Errorf("Expected NextReviewDate %v, but got %v", want, c.NextReviewDate)
	}
}

func TestCardUpdateApply(t *testing.T) {
	today := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewCard("id-1", "front", "back", today)

	if !(CardUpdate{}).IsEmpty() {
		t.Error("Expected zero CardUpdate to be empty")
	}

	interval := 4
	status := StatusLearning
	u := CardUpdate{Interval: &interval, Status: &status}
	got := u.Apply(c)

	if got.Interval != 4 || got.Status != StatusLearning {
		t.Errorf("Apply() = %+v", got)
	}
	if got.NextReviewDate == nil || !got.NextReviewDate.Equal(today) {
		t.Error("Expected NextReviewDate to be left untouched")
	}
	if c.Interval != 1 {
		t.Error("Expected Apply to leave the original card untouched")
	}
}
