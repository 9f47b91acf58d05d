// Package modactions defines the moderation-action collaborators the core
// hands its outgoing work to, and the removal pipeline that sequences them.
// Every action is a single attempt reporting its own success or failure;
// there are no retries and no rollback of earlier steps.
package modactions

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrLogReasonMissing indicates a public log target is configured but
	// the moderator entered no log reason.
	ErrLogReasonMissing = errors.New("modactions: public log reason missing")
	// ErrNoNotifyMode indicates no notification method was chosen.
	ErrNoNotifyMode = errors.New("modactions: no reply type selected")
)

// NotifyMode selects how the removal message reaches the author.
type NotifyMode string

const (
	NotifyByPM    NotifyMode = "PM"
	NotifyByReply NotifyMode = "reply"
	NotifyByBoth  NotifyMode = "both"
)

// ParseNotifyMode normalizes raw input to a NotifyMode.
func ParseNotifyMode(value string) (NotifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pm":
		return NotifyByPM, nil
	case "reply":
		return NotifyByReply, nil
	case "both":
		return NotifyByBoth, nil
	default:
		return "", ErrNoNotifyMode
	}
}

// ContentModerator approves or removes a content item by its full
// identifier.
type ContentModerator interface {
	Approve(ctx context.Context, fullname string) error
	Remove(ctx context.Context, fullname string) error
}

// Messenger posts comments and private messages on behalf of the acting
// moderator.
type Messenger interface {
	PostComment(ctx context.Context, parentFullname, body string) (commentID string, err error)
	DistinguishComment(ctx context.Context, commentID string) error
	SendPM(ctx context.Context, recipient, subject, body string) error
}

// Flairer applies flair to a post.
type Flairer interface {
	FlairPost(ctx context.Context, fullname, subreddit, text, css string) error
}

// LogPoster submits a link post to the public removal-log subreddit and
// returns the created post's URL.
type LogPoster interface {
	PostLink(ctx context.Context, url, title, subreddit string) (postURL string, err error)
}

// Banner bans a user from a subreddit.
type Banner interface {
	BanUser(ctx context.Context, subreddit, user, note, message string) error
}

// StepStatus reports one pipeline step's outcome. A failed step never rolls
// back the steps before it.
type StepStatus struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}
