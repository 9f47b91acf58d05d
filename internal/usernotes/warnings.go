package usernotes

import (
	"html"
	"unicode/utf8"
)

// WarningTypeNone is the implicit severity for notes without a tag.
const WarningTypeNone = "none"

// TypeInfo describes how a warning-type tag is presented.
type TypeInfo struct {
	Name  string
	Color string
}

// warningTypes is the closed set of severity/category tags a note may carry,
// with their display metadata.
var warningTypes = map[string]TypeInfo{
	WarningTypeNone: {Name: "", Color: "#369"},
	"spamwatch":     {Name: "Spam Watch", Color: "fuchsia"},
	"spamwarn":      {Name: "Spam Warning", Color: "purple"},
	"abusewarning":  {Name: "Abuse Warning", Color: "orange"},
	"ban":           {Name: "Ban", Color: "red"},
	"permban":       {Name: "Permanent Ban", Color: "darkred"},
	"botban":        {Name: "Bot Ban", Color: "black"},
}

// WarningTypes lists every recognized tag.
func WarningTypes() []string {
	return []string{WarningTypeNone, "spamwatch", "spamwarn", "abusewarning", "ban", "permban", "botban"}
}

// IsWarningType reports whether the tag is in the recognized set. The empty
// tag is accepted and treated as "none".
func IsWarningType(tag string) bool {
	if tag == "" {
		return true
	}
	_, ok := warningTypes[tag]
	return ok
}

// WarningTypeInfo returns display metadata for the tag, falling back to the
// "none" entry for empty or unknown tags.
func WarningTypeInfo(tag string) TypeInfo {
	if info, ok := warningTypes[tag]; ok {
		return info
	}
	return warningTypes[WarningTypeNone]
}

const previewRuneLimit = 50

// Preview summarizes a user's record for compact display: the newest note's
// text (unescaped, truncated), how many further notes exist, and the color
// for the newest note's warning type.
type Preview struct {
	Text            string
	AdditionalNotes int
	Color           string
}

// PreviewUser builds the display summary for the named user. The second
// return is false when the user has no record or no remaining notes.
func (d *Document) PreviewUser(name string) (Preview, bool) {
	record, ok := d.User(name)
	if !ok || len(record.Notes) == 0 {
		return Preview{}, false
	}
	newest := record.Notes[0]
	text := html.UnescapeString(newest.Text)
	if utf8.RuneCountInString(text) > previewRuneLimit {
		runes := []rune(text)
		text = string(runes[:previewRuneLimit])
	}
	return Preview{
		Text:            text,
		AdditionalNotes: len(record.Notes) - 1,
		Color:           WarningTypeInfo(newest.WarningType).Color,
	}, true
}
