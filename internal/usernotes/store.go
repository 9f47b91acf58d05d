package usernotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/modkit/modnotes/internal/cache"
	"github.com/modkit/modnotes/internal/wikistore"
)

// PageName is the wiki document every subreddit's notes live in.
const PageName = "usernotes"

var (
	// ErrNoNotes indicates the subreddit has no usernotes document. The
	// result is negative-cached for the session.
	ErrNoNotes = errors.New("usernotes: no notes for subreddit")
	// ErrUserNotFound indicates the named user has no record in the
	// subreddit's document.
	ErrUserNotFound = errors.New("usernotes: user not found")
	// ErrNoteNotFound indicates no note with the given timestamp exists on
	// the user's record.
	ErrNoteNotFound = errors.New("usernotes: note not found")
	// ErrInvalidWarningType indicates a tag outside the recognized set.
	ErrInvalidWarningType = errors.New("usernotes: invalid warning type")

	errMissingTransport = errors.New("wiki transport is required")
)

const (
	opStoreNew   = "usernotes.store.new"
	opLoad       = "usernotes.load"
	opUpsertNote = "usernotes.upsert_note"
	opDeleteNote = "usernotes.delete_note"
)

// WikiTransport is the document transport the store reads and writes
// through. wikistore.Store satisfies it; tests substitute fakes.
type WikiTransport interface {
	ReadDocument(ctx context.Context, subreddit, name string) ([]byte, error)
	WriteDocument(ctx context.Context, subreddit, name string, body []byte, isJSON bool, author string) error
}

// StoreConfig carries the dependencies for a Store. Cache handles default to
// fresh session-scoped instances when omitted.
type StoreConfig struct {
	Transport WikiTransport
	Documents *cache.Map[*Document]
	NoNotes   *cache.Set
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Store is the cached per-subreddit annotation store. Every update follows
// the read-modify-write protocol: re-fetch the remote document, mutate,
// write the whole document back, then refresh the local cache.
type Store struct {
	transport WikiTransport
	documents *cache.Map[*Document]
	noNotes   *cache.Set
	tooNew    *cache.Set
	clock     func() time.Time
	logger    *zap.Logger
}

// NewStore validates dependencies and constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%s: %w", opStoreNew, errMissingTransport)
	}
	documents := cfg.Documents
	if documents == nil {
		documents = cache.NewMap[*Document]()
	}
	noNotes := cfg.NoNotes
	if noNotes == nil {
		noNotes = cache.NewSet()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		transport: cfg.Transport,
		documents: documents,
		noNotes:   noNotes,
		tooNew:    cache.NewSet(),
		clock:     clock,
		logger:    logger,
	}, nil
}

// Cached returns the session-cached document for the subreddit without
// touching the transport.
func (s *Store) Cached(subreddit string) (*Document, bool) {
	doc, ok := s.documents.Get(subreddit)
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// Load returns the subreddit's document, fetching and decoding it through
// the transport on first use. A missing or empty document is remembered as
// ErrNoNotes for the rest of the session, and a document from a newer schema
// is remembered as ErrSchemaTooNew the same way.
func (s *Store) Load(ctx context.Context, subreddit string) (*Document, error) {
	if err := validateSubreddit(subreddit); err != nil {
		return nil, err
	}
	if s.noNotes.Has(subreddit) {
		return nil, ErrNoNotes
	}
	if s.tooNew.Has(subreddit) {
		return nil, fmt.Errorf("%w: cached for session", ErrSchemaTooNew)
	}
	if doc, ok := s.documents.Get(subreddit); ok {
		return doc.Clone(), nil
	}

	doc, err := s.fetch(ctx, subreddit, opLoad)
	if err != nil {
		if errors.Is(err, ErrNoNotes) {
			s.noNotes.Add(subreddit)
		}
		if errors.Is(err, ErrSchemaTooNew) {
			s.tooNew.Add(subreddit)
		}
		return nil, err
	}

	s.documents.Put(subreddit, doc)
	return doc.Clone(), nil
}

// UpsertNote prepends the note to the user's record, creating the record —
// or the whole document — when absent. The local cache is refreshed only
// after the remote write succeeds.
func (s *Store) UpsertNote(ctx context.Context, subreddit, user string, note Note) error {
	if err := validateSubreddit(subreddit); err != nil {
		return err
	}
	if err := validateUserName(user); err != nil {
		return err
	}
	if note.CreatedAt <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimestamp, note.CreatedAt)
	}
	if !IsWarningType(note.WarningType) {
		return fmt.Errorf("%w: %q", ErrInvalidWarningType, note.WarningType)
	}

	doc, err := s.fetch(ctx, subreddit, opUpsertNote)
	if errors.Is(err, ErrNoNotes) {
		doc = &Document{Version: CurrentSchema}
	} else if err != nil {
		return err
	}

	if record, ok := doc.User(user); ok {
		record.Notes = append([]Note{note}, record.Notes...)
	} else {
		doc.Users = append(doc.Users, UserRecord{Name: user, Notes: []Note{note}})
	}

	return s.write(ctx, subreddit, doc, note.Moderator, opUpsertNote)
}

// DeleteNote removes the first note whose CreatedAt matches the identifier.
// A user record whose last note is deleted stays in the document with an
// empty note list.
func (s *Store) DeleteNote(ctx context.Context, subreddit, user string, createdAt int64, moderator string) error {
	if err := validateSubreddit(subreddit); err != nil {
		return err
	}
	if err := validateUserName(user); err != nil {
		return err
	}

	doc, err := s.fetch(ctx, subreddit, opDeleteNote)
	if err != nil {
		return err
	}

	record, ok := doc.User(user)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	removed := false
	for i, note := range record.Notes {
		if note.CreatedAt == createdAt {
			record.Notes = append(record.Notes[:i], record.Notes[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s at %d", ErrNoteNotFound, user, createdAt)
	}

	return s.write(ctx, subreddit, doc, moderator, opDeleteNote)
}

// Invalidate drops the session cache for a subreddit, forcing the next Load
// to hit the transport again.
func (s *Store) Invalidate(subreddit string) {
	s.documents.Delete(subreddit)
	s.noNotes.Delete(subreddit)
	s.tooNew.Delete(subreddit)
}

// fetch reads and decodes the current remote document without consulting or
// touching the session cache.
func (s *Store) fetch(ctx context.Context, subreddit, operation string) (*Document, error) {
	raw, err := s.transport.ReadDocument(ctx, subreddit, PageName)
	if errors.Is(err, wikistore.ErrNoPage) {
		return nil, ErrNoNotes
	}
	if err != nil {
		s.logError(operation, "read_failed", err, zap.String("subreddit", subreddit))
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoNotes
	}

	doc, err := Decode(raw)
	if err != nil {
		s.logError(operation, "decode_failed", err, zap.String("subreddit", subreddit))
		return nil, err
	}
	return doc, nil
}

// write encodes the document, replaces the remote body, and refreshes the
// session cache after the write is confirmed.
func (s *Store) write(ctx context.Context, subreddit string, doc *Document, author, operation string) error {
	body, err := Encode(doc)
	if err != nil {
		s.logError(operation, "encode_failed", err, zap.String("subreddit", subreddit))
		return fmt.Errorf("%s: %w", operation, err)
	}
	if err := s.transport.WriteDocument(ctx, subreddit, PageName, body, true, author); err != nil {
		s.logError(operation, "write_failed", err, zap.String("subreddit", subreddit))
		return fmt.Errorf("%s: %w", operation, err)
	}

	s.documents.Put(subreddit, doc.Clone())
	s.noNotes.Delete(subreddit)
	s.tooNew.Delete(subreddit)
	return nil
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
	s.logger.Error("usernotes store error", attrs...)
}
