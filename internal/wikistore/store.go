package wikistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNoPage indicates the wiki document does not exist. Callers treat
	// this as "nothing configured", not as a failure.
	ErrNoPage = errors.New("wikistore: no such page")
	// ErrPageUnreadable indicates the page exists but its body cannot be
	// read as the declared format.
	ErrPageUnreadable = errors.New("wikistore: page unreadable")

	errMissingDatabase  = errors.New("database handle is required")
	errMissingSubreddit = errors.New("subreddit is required")
	errMissingPageName  = errors.New("page name is required")

	noOpLogger = zap.NewNop()
)

const (
	opReadDocument  = "wikistore.read_document"
	opWriteDocument = "wikistore.write_document"
	opListRevisions = "wikistore.list_revisions"
)

// IDProvider issues identifiers for revision records.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig carries the dependencies for a Store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store reads and writes wiki documents in SQLite.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore validates dependencies and constructs a Store. The identifier
// provider defaults to NewUUIDProvider when omitted.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("%s: %w", opReadDocument, errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, clock: clock, idProvider: idProvider, logger: logger}, nil
}

// ReadDocument returns the current body of the wiki document. It reports
// ErrNoPage when the document was never written and ErrPageUnreadable when a
// page declared as JSON does not hold valid JSON.
func (s *Store) ReadDocument(ctx context.Context, subreddit, name string) ([]byte, error) {
	if subreddit == "" {
		return nil, fmt.Errorf("%s: %w", opReadDocument, errMissingSubreddit)
	}
	if name == "" {
		return nil, fmt.Errorf("%s: %w", opReadDocument, errMissingPageName)
	}

	var page Page
	err := s.db.WithContext(ctx).
		Where("subreddit = ? AND page = ?", subreddit, name).
		Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPage
	}
	if err != nil {
		s.logError(opReadDocument, "query_failed", err,
			zap.String("subreddit", subreddit), zap.String("page", name))
		return nil, fmt.Errorf("%s: %w", opReadDocument, err)
	}

	if page.IsJSON && !json.Valid([]byte(page.Body)) {
		s.logError(opReadDocument, "invalid_json_body", nil,
			zap.String("subreddit", subreddit), zap.String("page", name))
		return nil, fmt.Errorf("%w: %s/%s", ErrPageUnreadable, subreddit, name)
	}

	return []byte(page.Body), nil
}

// WriteDocument replaces the whole document body and appends a revision
// attributed to the acting author. There is no partial patch path.
func (s *Store) WriteDocument(ctx context.Context, subreddit, name string, body []byte, isJSON bool, author string) error {
	if subreddit == "" {
		return fmt.Errorf("%s: %w", opWriteDocument, errMissingSubreddit)
	}
	if name == "" {
		return fmt.Errorf("%s: %w", opWriteDocument, errMissingPageName)
	}
	if isJSON && !json.Valid(body) {
		return fmt.Errorf("%s: %w: body is not valid JSON", opWriteDocument, ErrPageUnreadable)
	}

	now := s.clock().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page := Page{
			Subreddit:        subreddit,
			Name:             name,
			Body:             string(body),
			IsJSON:           isJSON,
			UpdatedAtSeconds: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subreddit"}, {Name: "page"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "is_json", "updated_at_s"}),
		}).Create(&page).Error
		if err != nil {
			s.logError(opWriteDocument, "page_upsert_failed", err,
				zap.String("subreddit", subreddit), zap.String("page", name))
			return fmt.Errorf("%s: %w", opWriteDocument, err)
		}

		revisionID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opWriteDocument, "id_generation_failed", err)
			return fmt.Errorf("%s: %w", opWriteDocument, err)
		}
		revision := Revision{
			RevisionID:       revisionID,
			Subreddit:        subreddit,
			Name:             name,
			Body:             string(body),
			Author:           author,
			CreatedAtSeconds: now,
		}
		if err := tx.Create(&revision).Error; err != nil {
			s.logError(opWriteDocument, "revision_insert_failed", err,
				zap.String("subreddit", subreddit), zap.String("page", name))
			return fmt.Errorf("%s: %w", opWriteDocument, err)
		}
		return nil
	})
}

// ListRevisions returns the write history for a document, newest first.
func (s *Store) ListRevisions(ctx context.Context, subreddit, name string, limit int) ([]Revision, error) {
	if subreddit == "" {
		return nil, fmt.Errorf("%s: %w", opListRevisions, errMissingSubreddit)
	}
	if name == "" {
		return nil, fmt.Errorf("%s: %w", opListRevisions, errMissingPageName)
	}
	if limit <= 0 {
		limit = 25
	}

	var revisions []Revision
	err := s.db.WithContext(ctx).
		Where("subreddit = ? AND page = ?", subreddit, name).
		Order("created_at_s DESC").
		Limit(limit).
		Find(&revisions).Error
	if err != nil {
		s.logError(opListRevisions, "query_failed", err,
			zap.String("subreddit", subreddit), zap.String("page", name))
		return nil, fmt.Errorf("%s: %w", opListRevisions, err)
	}
	return revisions, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("wiki store error", attrs...)
}
