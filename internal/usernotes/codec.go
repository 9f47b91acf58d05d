package usernotes

import (
	"encoding/json"
	"fmt"
)

// The wire format is the toolbox usernotes JSON. Version 3 compacts the
// document with two string pools: "users" holds user and moderator names,
// "warnings" holds warning-type tags. Records reference pool indices instead
// of repeating strings. Versions 1 and 2 store the expanded shape with full
// permalinks on notes and are migrated on read.

type wireDocument struct {
	Ver       int           `json:"ver"`
	Constants wireConstants `json:"constants"`
	Users     []wireUser    `json:"users"`
}

type wireConstants struct {
	Users    []string `json:"users"`
	Warnings []string `json:"warnings"`
}

type wireUser struct {
	User  int        `json:"u"`
	Notes []wireNote `json:"ns"`
}

type wireNote struct {
	Note string `json:"n"`
	Time int64  `json:"t"`
	Mod  int    `json:"m"`
	Link string `json:"l"`
	// Warning is a pool index. A missing key means the note carries no
	// warning type, which is distinct from index zero.
	Warning *int `json:"w,omitempty"`
}

type legacyDocument struct {
	Ver   int          `json:"ver"`
	Users []legacyUser `json:"users"`
}

type legacyUser struct {
	Name  string       `json:"name"`
	Notes []legacyNote `json:"notes"`
}

type legacyNote struct {
	Note string `json:"note"`
	Time int64  `json:"time"`
	Mod  string `json:"mod"`
	Link string `json:"link"`
	Type string `json:"type"`
}

// internPool is a first-use-ordered string interning table. A fresh pool is
// built for every encode and decode; pools are never shared.
type internPool struct {
	values  []string
	indices map[string]int
}

func newInternPool() *internPool {
	return &internPool{indices: make(map[string]int)}
}

func poolFromValues(values []string) *internPool {
	pool := newInternPool()
	for _, value := range values {
		pool.intern(value)
	}
	return pool
}

// intern returns the index for the value, assigning the next free index on
// first use.
func (p *internPool) intern(value string) int {
	if index, ok := p.indices[value]; ok {
		return index
	}
	index := len(p.values)
	p.values = append(p.values, value)
	p.indices[value] = index
	return index
}

// resolve maps an index back to its value, failing on out-of-range indices
// rather than defaulting.
func (p *internPool) resolve(index int) (string, error) {
	if index < 0 || index >= len(p.values) {
		return "", fmt.Errorf("%w: pool index %d out of range (pool size %d)", ErrMalformedDocument, index, len(p.values))
	}
	return p.values[index], nil
}

// Decode parses a stored usernotes document, migrating legacy schemas to the
// current in-memory shape. It fails with ErrSchemaTooNew for documents from
// a newer build and ErrMalformedDocument for anything it cannot read safely.
func Decode(raw []byte) (*Document, error) {
	var probe struct {
		Ver int `json:"ver"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	switch {
	case probe.Ver > CurrentSchema:
		return nil, fmt.Errorf("%w: document version %d, supported up to %d", ErrSchemaTooNew, probe.Ver, CurrentSchema)
	case probe.Ver == CurrentSchema:
		return decodePooled(raw)
	case probe.Ver >= 1:
		return decodeLegacy(raw)
	default:
		return nil, fmt.Errorf("%w: document version %d", ErrMalformedDocument, probe.Ver)
	}
}

func decodePooled(raw []byte) (*Document, error) {
	var wire wireDocument
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	names := poolFromValues(wire.Constants.Users)
	warnings := poolFromValues(wire.Constants.Warnings)

	doc := &Document{Version: CurrentSchema, Users: make([]UserRecord, 0, len(wire.Users))}
	for _, user := range wire.Users {
		name, err := names.resolve(user.User)
		if err != nil {
			return nil, err
		}
		record := UserRecord{Name: name, Notes: make([]Note, 0, len(user.Notes))}
		for _, note := range user.Notes {
			moderator, err := names.resolve(note.Mod)
			if err != nil {
				return nil, err
			}
			warning := ""
			if note.Warning != nil {
				warning, err = warnings.resolve(*note.Warning)
				if err != nil {
					return nil, err
				}
			}
			record.Notes = append(record.Notes, Note{
				Text:          note.Note,
				CreatedAt:     note.Time,
				Moderator:     moderator,
				LinkedThingID: note.Link,
				WarningType:   warning,
			})
		}
		doc.Users = append(doc.Users, record)
	}
	return doc, nil
}

// decodeLegacy reads the expanded v1/v2 shape. The only transformation is
// trimming each note's full permalink down to its thing identifier.
func decodeLegacy(raw []byte) (*Document, error) {
	var wire legacyDocument
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc := &Document{Version: CurrentSchema, Users: make([]UserRecord, 0, len(wire.Users))}
	for _, user := range wire.Users {
		record := UserRecord{Name: user.Name, Notes: make([]Note, 0, len(user.Notes))}
		for _, note := range user.Notes {
			record.Notes = append(record.Notes, Note{
				Text:          note.Note,
				CreatedAt:     note.Time,
				Moderator:     note.Mod,
				LinkedThingID: ThingIDFromPermalink(note.Link),
				WarningType:   note.Type,
			})
		}
		doc.Users = append(doc.Users, record)
	}
	return doc, nil
}

// Encode emits the current pooled wire shape. Pools are built in first-use
// order across the user sequence, so encoding is deterministic for a given
// document and Decode(Encode(d)) reproduces d exactly.
func Encode(doc *Document) ([]byte, error) {
	names := newInternPool()
	warnings := newInternPool()

	wire := wireDocument{Ver: CurrentSchema, Users: make([]wireUser, 0, len(doc.Users))}
	for _, user := range doc.Users {
		encoded := wireUser{User: names.intern(user.Name), Notes: make([]wireNote, 0, len(user.Notes))}
		for _, note := range user.Notes {
			entry := wireNote{
				Note: note.Text,
				Time: note.CreatedAt,
				Mod:  names.intern(note.Moderator),
				Link: note.LinkedThingID,
			}
			if note.WarningType != "" {
				index := warnings.intern(note.WarningType)
				entry.Warning = &index
			}
			encoded.Notes = append(encoded.Notes, entry)
		}
		wire.Users = append(wire.Users, encoded)
	}
	wire.Constants = wireConstants{Users: names.values, Warnings: warnings.values}
	if wire.Constants.Users == nil {
		wire.Constants.Users = []string{}
	}
	if wire.Constants.Warnings == nil {
		wire.Constants.Warnings = []string{}
	}

	return json.Marshal(wire)
}
