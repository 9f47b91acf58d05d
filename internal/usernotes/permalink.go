package usernotes

import "regexp"

// permaToThingID matches the trailing two path segments of a comment or
// submission permalink; the first of them is the thing identifier.
var permaToThingID = regexp.MustCompile(`/(\w+)/\w+/?$`)

// ThingIDFromPermalink extracts the short thing identifier from a full
// permalink URL. It returns the empty string when the permalink is blank or
// does not carry an identifier.
func ThingIDFromPermalink(permalink string) string {
	matches := permaToThingID.FindStringSubmatch(permalink)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}
