// Package knol derives stable ids for cards from their content, so a card
// synced from a file keeps its schedule across re-syncs.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/recallkit/internal/domain"
)

// Normalize lowercases, trims and unifies line endings of front and back,
// then joins them with a newline so the fields cannot run together.
func Normalize(card domain.Card) string {
	clean := func(s string) string {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.ToLower(strings.TrimSpace(s))
	}
	return clean(card.Front) + "\n" + clean(card.Back)
}

// Hash returns the hex SHA-256 of the normalized card.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
