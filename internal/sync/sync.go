package sync

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
	"github.com/conorfennell/recallkit/internal/gitsource"
	"github.com/conorfennell/recallkit/internal/knol"
	"github.com/conorfennell/recallkit/internal/parser"
	"github.com/conorfennell/recallkit/internal/sheet"
	"github.com/conorfennell/recallkit/internal/storage"
)

// Report summarizes one sync run.
type Report struct {
	Sources  int     `json:"sources"`
	Parsed   int     `json:"parsed"`
	Inserted int     `json:"inserted"`
	Deleted  int     `json:"deleted"`
	Errors   []error `json:"-"`
}

func (r *Report) merge(o Report) {
	r.Parsed += o.Parsed
	r.Inserted += o.Inserted
	r.Deleted += o.Deleted
	r.Errors = append(r.Errors, o.Errors...)
}

// Syncer reconciles configured sources into the card store.
type Syncer struct {
	db       *storage.DB
	reposDir string
	clock    calendar.Clock
	logger   *slog.Logger
	progress io.Writer
}

// New returns a Syncer that checks git sources out under reposDir.
func New(db *storage.DB, reposDir string, clock calendar.Clock, logger *slog.Logger) *Syncer {
	return &Syncer{db: db, reposDir: reposDir, clock: clock, logger: logger}
}

// SetProgress sends git clone/pull progress to w.
func (s *Syncer) SetProgress(w io.Writer) {
	s.progress = w
}

// AddSource registers a local directory or git URL and returns its id.
func (s *Syncer) AddSource(ctx context.Context, path string) (int64, error) {
	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = storage.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}
	return s.db.InsertSource(ctx, path, sourceType)
}

// RunSync iterates over all sources and reconciles them. Problems with a
// single source are collected in the report; only failing to read the
// source list aborts the run.
func (s *Syncer) RunSync(ctx context.Context) (Report, error) {
	s.logger.Info("starting sync process for all sources")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get sources: %w", err)
	}

	var report Report
	if len(sources) == 0 {
		s.logger.Info("no sources configured")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Sources++
		r, err := s.SyncSource(ctx, source)
		report.merge(r)
		if err != nil {
			s.logger.Error("error syncing source", "id", source.ID, "path", source.Path, "error", err)
			report.Errors = append(report.Errors, err)
		}
	}
	s.logger.Info("sync process complete",
		"sources", report.Sources,
		"inserted", report.Inserted,
		"deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// SyncSource reconciles a single source.
func (s *Syncer) SyncSource(ctx context.Context, source storage.Source) (Report, error) {
	s.logger.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

	dir := source.Path
	if source.Type == storage.SourceGit {
		localPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return Report{}, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return Report{}, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, s.logger, source.Path, localPath, s.progress); err != nil {
			return Report{}, err
		}
		dir = localPath
	}

	return s.reconcile(ctx, source.ID, dir)
}

// readDeck walks dir for markdown and workbook decks.
func readDeck(dir string) ([]domain.Card, []error, error) {
	var cards []domain.Card
	var parseErrors []error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}

		var fileCards []domain.Card
		var parseErr error
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md":
			fileCards, parseErr = parser.ParseFile(path)
		case ".xlsx":
			fileCards, parseErr = sheet.ImportFile(path, sheet.Options{})
		default:
			return nil
		}
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		cards = append(cards, fileCards...)
		return nil
	})
	return cards, parseErrors, walkErr
}

func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string) (Report, error) {
	parsed, parseErrors, err := readDeck(dir)
	if err != nil {
		return Report{}, fmt.Errorf("error walking directory %s: %w", dir, err)
	}

	report := Report{Parsed: len(parsed), Errors: parseErrors}
	today := s.clock.Today()
	found := make(map[string]bool, len(parsed))

	for _, card := range parsed {
		id := knol.Hash(card)
		if found[id] {
			continue
		}
		found[id] = true

		existing, err := s.db.FindCard(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", id, err))
			continue
		}
		if existing != nil {
			// Known card: its schedule is kept as is.
			continue
		}

		c := domain.NewCard(id, card.Front, card.Back, today)
		c.SourceID = sourceID
		if err := s.db.InsertCard(ctx, c); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("db insert for %s: %w", id, err))
			continue
		}
		s.logger.Debug("new card found", "id", id)
		report.Inserted++
	}

	dbCards, err := s.db.ListCardsBySource(ctx, sourceID)
	if err != nil {
		return report, fmt.Errorf("error getting cards for source %d: %w", sourceID, err)
	}
	for _, c := range dbCards {
		if found[c.ID] {
			continue
		}
		s.logger.Info("orphaned card, deleting", "id", c.ID)
		if err := s.db.DeleteCard(ctx, c.ID); err != nil {
			s.logger.Warn("failed to delete orphaned card", "id", c.ID, "error", err)
			continue
		}
		report.Deleted++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, sourceID, time.Now()); err != nil {
		s.logger.Warn("failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	s.logger.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", report.Parsed,
		"inserted", report.Inserted,
		"orphaned_deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}
