// Package removalreasons resolves per-subreddit removal-reason
// configuration and composes the final outgoing message from selected reason
// fragments.
package removalreasons

import (
	"encoding/json"
	"fmt"
	"html"
)

// ConfigPageName is the wiki document a subreddit's configuration lives in.
const ConfigPageName = "toolbox"

// Default templates used when a subreddit's configuration omits the field.
const (
	DefaultPMSubject = "Your {kind} was removed from {subreddit}"
	DefaultLogTitle  = "Removed: {kind} by /u/{author} to /r/{subreddit}"
	DefaultBanTitle  = "/u/{author} has been {title} from /r/{subreddit} for {reason}"
)

// Reason is one reusable removal message fragment with optional flair to
// apply alongside it.
type Reason struct {
	Text      string
	FlairText string
	FlairCSS  string
}

// Config is a subreddit's resolved removal-reason configuration. A config
// with GetFrom set delegates to another subreddit and carries no reasons of
// its own. Configs are immutable once cached for the session.
type Config struct {
	Reasons   []Reason
	PMSubject string
	Header    string
	Footer    string
	LogReason string
	LogSub    string
	LogTitle  string
	BanTitle  string
	GetFrom   string
}

// wireConfig is the toolbox wiki page shape. Only the removalReasons key is
// read; the page may carry unrelated sections.
type wireConfig struct {
	RemovalReasons *wireReasons `json:"removalReasons"`
}

type wireReasons struct {
	PMSubject string       `json:"pmsubject"`
	Header    string       `json:"header"`
	Footer    string       `json:"footer"`
	LogReason string       `json:"logreason"`
	LogSub    string       `json:"logsub"`
	LogTitle  string       `json:"logtitle"`
	BanTitle  string       `json:"bantitle"`
	GetFrom   string       `json:"getfrom"`
	Reasons   []wireReason `json:"reasons"`
}

type wireReason struct {
	Text      string `json:"text"`
	FlairText string `json:"flairText"`
	FlairCSS  string `json:"flairCSS"`
}

// parseConfig reads a toolbox wiki page body. The second return is false
// when the page carries no removal-reason section at all, which callers
// treat the same as a missing page.
func parseConfig(raw []byte) (Config, bool, error) {
	var wire wireConfig
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Config{}, false, fmt.Errorf("removalreasons: parse config: %w", err)
	}
	if wire.RemovalReasons == nil {
		return Config{}, false, nil
	}
	return configFromWire(*wire.RemovalReasons), true, nil
}

// configFromWire applies the documented defaults and unescapes the stored
// header and footer. Reason texts stay escaped until fragment resolution.
func configFromWire(wire wireReasons) Config {
	cfg := Config{
		PMSubject: wire.PMSubject,
		Header:    html.UnescapeString(wire.Header),
		Footer:    html.UnescapeString(wire.Footer),
		LogReason: wire.LogReason,
		LogSub:    wire.LogSub,
		LogTitle:  wire.LogTitle,
		BanTitle:  wire.BanTitle,
		GetFrom:   wire.GetFrom,
	}
	if cfg.PMSubject == "" {
		cfg.PMSubject = DefaultPMSubject
	}
	if cfg.LogTitle == "" {
		cfg.LogTitle = DefaultLogTitle
	}
	if cfg.BanTitle == "" {
		cfg.BanTitle = DefaultBanTitle
	}
	for _, reason := range wire.Reasons {
		cfg.Reasons = append(cfg.Reasons, Reason{
			Text:      reason.Text,
			FlairText: reason.FlairText,
			FlairCSS:  reason.FlairCSS,
		})
	}
	return cfg
}
