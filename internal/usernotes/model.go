// Package usernotes implements the per-subreddit moderator note documents:
// the versioned wire codec, schema migration, and the cached store that
// performs read-modify-write updates against the wiki transport.
package usernotes

import (
	"errors"
	"fmt"
	"strings"
)

// CurrentSchema is the newest document schema this build can read and the
// only schema it writes.
const CurrentSchema = 3

var (
	// ErrInvalidSubreddit indicates an empty subreddit name.
	ErrInvalidSubreddit = errors.New("usernotes: invalid subreddit")
	// ErrInvalidUserName indicates an empty user name.
	ErrInvalidUserName = errors.New("usernotes: invalid user name")
	// ErrInvalidTimestamp indicates a non-positive note timestamp.
	ErrInvalidTimestamp = errors.New("usernotes: invalid timestamp")
	// ErrSchemaTooNew indicates the stored document was written by a newer
	// schema generation than this build understands. Callers must surface
	// this to the moderator as a hard stop, never coerce.
	ErrSchemaTooNew = errors.New("usernotes: document schema is newer than supported")
	// ErrMalformedDocument indicates the stored document could not be
	// decoded: bad JSON, a non-positive version, or a pool index out of
	// range. Distinct from the document being absent.
	ErrMalformedDocument = errors.New("usernotes: malformed document")
)

// Document is the decoded, uncompacted note document for one subreddit.
// Users are ordered most-recently-annotated first.
type Document struct {
	Version int
	Users   []UserRecord
}

// UserRecord holds every note for one user. Notes are ordered newest first.
// A record never repeats within a document; lookups are case-sensitive.
type UserRecord struct {
	Name  string
	Notes []Note
}

// Note is a single moderator annotation. Text is stored HTML-escaped and
// must be unescaped for display. CreatedAt is epoch milliseconds, immutable,
// and doubles as the note's identity for deletion.
type Note struct {
	Text          string
	CreatedAt     int64
	Moderator     string
	LinkedThingID string
	WarningType   string
}

// User returns the record for the named user, if present.
func (d *Document) User(name string) (*UserRecord, bool) {
	for i := range d.Users {
		if d.Users[i].Name == name {
			return &d.Users[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the document so cached instances cannot be
// mutated behind the store's back.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Version: d.Version, Users: make([]UserRecord, len(d.Users))}
	for i, user := range d.Users {
		out.Users[i] = UserRecord{Name: user.Name, Notes: append([]Note(nil), user.Notes...)}
	}
	return out
}

func validateSubreddit(subreddit string) error {
	if strings.TrimSpace(subreddit) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubreddit)
	}
	return nil
}

func validateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserName)
	}
	return nil
}
