// Package parser reads flashcards out of markdown notes. A card starts at a
// "Q:" line (the front) and takes its back from the following "A:" block.
// Blocks run until the next prefix, a "---" separator or the end of file.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/recallkit/internal/domain"
)

const (
	frontPrefix = "Q:"
	backPrefix  = "A:"
	separator   = "---"
)

type field int

const (
	none field = iota
	front
	back
)

// builder accumulates the lines of the card being read.
type builder struct {
	cards   []domain.Card
	front   []string
	back    []string
	current field
}

func (b *builder) flush() {
	f := strings.TrimSpace(strings.Join(b.front, "\n"))
	if f != "" {
		b.cards = append(b.cards, domain.Card{
			Front: f,
			Back:  strings.TrimSpace(strings.Join(b.back, "\n")),
		})
	}
	b.front, b.back, b.current = nil, nil, none
}

func (b *builder) add(line string) {
	switch b.current {
	case front:
		b.front = append(b.front, line)
	case back:
		b.back = append(b.back, line)
	}
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. The returned cards
// carry only Front and Back; ids and scheduling are assigned by the caller.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var b builder

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.TrimSpace(line) == separator:
			b.flush()
		case strings.HasPrefix(line, frontPrefix):
			b.flush()
			b.current = front
			b.add(trimPrefix(line, frontPrefix))
		case strings.HasPrefix(line, backPrefix) && b.current != none:
			b.current = back
			b.add(trimPrefix(line, backPrefix))
		default:
			b.add(line)
		}
	}
	b.flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.cards, nil
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
