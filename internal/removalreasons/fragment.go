package removalreasons

import "strings"

// Reason fragments are moderator-authored text that may embed structural
// markup: break tags and interactive form elements (or the shorthand
// {input} token) standing in for custom input gathered from the moderator.
// parseFragment turns the raw text into an ordered node sequence so message
// assembly never touches real page markup.

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeLineBreak
	nodePlaceholder
)

type fragmentNode struct {
	kind nodeKind
	text string
}

const inputToken = "{input}"

// parseFragment splits raw fragment text into text, line-break, and
// placeholder nodes in document order. Markup it does not recognize is kept
// as literal text.
func parseFragment(raw string) []fragmentNode {
	var nodes []fragmentNode
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, fragmentNode{kind: nodeText, text: text.String()})
			text.Reset()
		}
	}

	lower := strings.ToLower(raw)
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '<':
			if consumed, kind, ok := matchElement(lower[i:]); ok {
				flush()
				nodes = append(nodes, fragmentNode{kind: kind})
				i += consumed
				continue
			}
			text.WriteByte(raw[i])
			i++
		case '{':
			if strings.HasPrefix(lower[i:], inputToken) {
				flush()
				nodes = append(nodes, fragmentNode{kind: nodePlaceholder})
				i += len(inputToken)
				continue
			}
			text.WriteByte(raw[i])
			i++
		default:
			text.WriteByte(raw[i])
			i++
		}
	}
	flush()
	return nodes
}

// matchElement recognizes the structural tags at the start of lower (which
// begins with '<') and reports how many bytes they span.
func matchElement(lower string) (consumed int, kind nodeKind, ok bool) {
	if spanned, ok := matchBreak(lower); ok {
		return spanned, nodeLineBreak, true
	}
	if spanned, ok := matchVoidElement(lower, "input"); ok {
		return spanned, nodePlaceholder, true
	}
	for _, name := range []string{"select", "textarea"} {
		if spanned, ok := matchContainerElement(lower, name); ok {
			return spanned, nodePlaceholder, true
		}
	}
	return 0, nodeText, false
}

// matchBreak accepts <br>, <br/> and <br /> in any case.
func matchBreak(lower string) (int, bool) {
	if !strings.HasPrefix(lower, "<br") {
		return 0, false
	}
	end := strings.IndexByte(lower, '>')
	if end == -1 {
		return 0, false
	}
	for _, c := range lower[3:end] {
		if c != ' ' && c != '/' {
			return 0, false
		}
	}
	return end + 1, true
}

// matchVoidElement accepts a self-contained tag such as <input type="text">.
func matchVoidElement(lower, name string) (int, bool) {
	open := "<" + name
	if !strings.HasPrefix(lower, open) {
		return 0, false
	}
	if len(lower) > len(open) && isTagNameByte(lower[len(open)]) {
		return 0, false
	}
	end := strings.IndexByte(lower, '>')
	if end == -1 {
		return 0, false
	}
	return end + 1, true
}

// matchContainerElement accepts an element with a closing tag, consuming its
// entire contents; a select's option list contributes nothing to the
// message, only the moderator's chosen value does.
func matchContainerElement(lower, name string) (int, bool) {
	open := "<" + name
	if !strings.HasPrefix(lower, open) {
		return 0, false
	}
	if len(lower) > len(open) && isTagNameByte(lower[len(open)]) {
		return 0, false
	}
	openEnd := strings.IndexByte(lower, '>')
	if openEnd == -1 {
		return 0, false
	}
	closing := "</" + name + ">"
	closeStart := strings.Index(lower, closing)
	if closeStart == -1 {
		// Unterminated element: consume only the opening tag.
		return openEnd + 1, true
	}
	return closeStart + len(closing), true
}

func isTagNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
