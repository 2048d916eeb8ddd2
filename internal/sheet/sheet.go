// Package sheet imports flashcards from .xlsx workbooks: column A is the
// front, column B the back.
package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/recallkit/internal/domain"
)

// Options selects what part of the workbook to read.
type Options struct {
	// SheetName defaults to the first sheet of the workbook.
	SheetName string
}

var headerLabels = map[string]bool{"front": true, "question": true, "q": true}

// ImportFile reads the cards of a workbook.
func ImportFile(path string, opts Options) ([]domain.Card, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	return Import(f, opts)
}

// Import reads the cards of an open workbook. A first row whose column A
// reads "front" or "question" is treated as a header. Rows with an empty
// front are skipped.
func Import(f *excelize.File, opts Options) ([]domain.Card, error) {
	name := opts.SheetName
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of sheet %s: %w", name, err)
	}

	var cards []domain.Card
	for i, row := range rows {
		front := cell(row, 0)
		if i == 0 && headerLabels[strings.ToLower(front)] {
			continue
		}
		if front == "" {
			continue
		}
		cards = append(cards, domain.Card{Front: front, Back: cell(row, 1)})
	}
	return cards, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
