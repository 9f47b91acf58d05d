package removalreasons

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoReasonSelected indicates message assembly was requested with no
	// fragments checked.
	ErrNoReasonSelected = errors.New("removalreasons: no reason selected")
	// ErrEmptyMessage indicates assembly produced only whitespace, e.g.
	// header and footer disabled and every selected fragment blank.
	ErrEmptyMessage = errors.New("removalreasons: nothing to send")
)

// Variables are the values substituted for bracketed placeholders in the
// assembled message, the PM subject, and the log title.
type Variables struct {
	Subreddit string
	Author    string
	Kind      string
	Title     string
	URL       string
	Domain    string
	Link      string
	LogSub    string
}

type variableBinding struct {
	pattern *regexp.Regexp
	value   func(Variables) string
}

// Substitution is one case-insensitive pass per variable name; substituted
// values are never re-scanned.
var variableBindings = []variableBinding{
	{pattern: compileVariable("subreddit"), value: func(v Variables) string { return v.Subreddit }},
	{pattern: compileVariable("author"), value: func(v Variables) string { return v.Author }},
	{pattern: compileVariable("kind"), value: func(v Variables) string { return v.Kind }},
	{pattern: compileVariable("title"), value: func(v Variables) string { return v.Title }},
	{pattern: compileVariable("url"), value: func(v Variables) string { return v.URL }},
	{pattern: compileVariable("domain"), value: func(v Variables) string { return v.Domain }},
	{pattern: compileVariable("link"), value: func(v Variables) string { return v.Link }},
	{pattern: compileVariable("logsub"), value: func(v Variables) string { return v.LogSub }},
}

func compileVariable(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\{` + name + `\}`)
}

// MessageRequest carries everything needed to assemble one outgoing message.
// Fragments are the selected reason texts in the order the moderator checked
// them; CustomInputs is the flat list of form values gathered across all
// selected fragments in that same order.
type MessageRequest struct {
	Fragments     []string
	CustomInputs  []string
	Header        string
	Footer        string
	IncludeHeader bool
	IncludeFooter bool
	Subject       string
	LogTitle      string
	BanTitle      string
	Variables     Variables
}

// Message is the assembled output: the removal message body, the PM subject,
// the title for the public log post, and the templated ban note.
type Message struct {
	Body     string
	Subject  string
	LogTitle string
	BanTitle string
}

// BuildMessage assembles the final message: optional header, the selected
// fragments concatenated in selection order with no separator between them,
// optional footer, then variable substitution across body, subject, and log
// title.
func BuildMessage(req MessageRequest) (Message, error) {
	if len(req.Fragments) == 0 {
		return Message{}, ErrNoReasonSelected
	}

	var body strings.Builder
	if req.IncludeHeader {
		body.WriteString(req.Header)
		body.WriteString("\n\n")
	}

	inputIndex := 0
	for _, fragment := range req.Fragments {
		for _, node := range parseFragment(fragment) {
			switch node.kind {
			case nodeLineBreak:
				body.WriteString("\n\n")
			case nodePlaceholder:
				if inputIndex < len(req.CustomInputs) {
					body.WriteString(req.CustomInputs[inputIndex])
					inputIndex++
				}
			default:
				body.WriteString(node.text)
			}
		}
	}

	if req.IncludeFooter {
		body.WriteString("\n\n")
		body.WriteString(req.Footer)
	}

	assembled := body.String()
	if strings.TrimSpace(assembled) == "" {
		return Message{}, ErrEmptyMessage
	}

	message := Message{Body: assembled, Subject: req.Subject, LogTitle: req.LogTitle, BanTitle: req.BanTitle}
	for _, binding := range variableBindings {
		value := binding.value(req.Variables)
		message.Body = binding.pattern.ReplaceAllLiteralString(message.Body, value)
		message.Subject = binding.pattern.ReplaceAllLiteralString(message.Subject, value)
		message.LogTitle = binding.pattern.ReplaceAllLiteralString(message.LogTitle, value)
		message.BanTitle = binding.pattern.ReplaceAllLiteralString(message.BanTitle, value)
	}
	return message, nil
}

// SubstituteLogLink fills the first {loglink} occurrence with the public log
// post's URL once it is known.
func SubstituteLogLink(body, logURL string) string {
	return strings.Replace(body, "{loglink}", logURL, 1)
}

// SubstituteReason fills the first {reason} occurrence in a log or ban title
// with the moderator-entered reason.
func SubstituteReason(title, reason string) string {
	return strings.Replace(title, "{reason}", reason, 1)
}

// StripQuotes removes double quotes from a post title before submission.
func StripQuotes(title string) string {
	return strings.ReplaceAll(title, `"`, "")
}
