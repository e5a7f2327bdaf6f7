// Package rewrite transforms note bodies from the source store's inline
// addressing scheme to the target service's resource-ID links.
//
// The rewriter is pure text transformation: it substitutes each known
// inline literal with the target-addressed form and appends a trailing
// block for attachment references that never appeared inline. It does not
// touch the network, the cache, or the filesystem.
package rewrite

import (
	"fmt"
	"strings"
)

// Kind tags what a rewritten link points at.
type Kind string

const (
	KindImage      Kind = "image"
	KindAttachment Kind = "attachment"
	KindDocument   Kind = "document"
)

// TrailingHeading titles the list of attachment links appended to bodies
// whose source embedded them only as metadata.
const TrailingHeading = "Attachments"

// Link is one resolved inline reference of a note, keyed by the
// (note, resource) target-ID pair.
type Link struct {
	NoteID     string
	ResourceID string
	Title      string
	Kind       Kind
	// SourceText is the literal form the reference had in the source body.
	// Empty means the reference was never inline and must be appended
	// instead of substituted.
	SourceText string
}

// Key returns the cache key for this link.
func (l Link) Key() string {
	return l.NoteID + "-" + l.ResourceID
}

// LinkText renders the target-addressed form of a link. Markdown notes get
// reference syntax, rich-text notes get inline markup; image links carry a
// distinguishing marker, plain links do not.
func LinkText(markdown bool, l Link) string {
	if markdown {
		body := fmt.Sprintf("[%s](:/%s)", l.Title, l.ResourceID)
		if l.Kind == KindImage {
			return "!" + body
		}
		return body
	}
	if l.Kind == KindImage {
		return fmt.Sprintf(`<img src=":/%s" alt="%s">`, l.ResourceID, l.Title)
	}
	return fmt.Sprintf(`<a href=":/%s">%s</a>`, l.ResourceID, l.Title)
}

// trailingBlock renders the labelled list appended after all substitutions.
func trailingBlock(markdown bool, links []Link) string {
	if markdown {
		var b strings.Builder
		b.WriteString("\n\n# " + TrailingHeading + "\n")
		for _, l := range links {
			b.WriteString("\n- " + LinkText(true, l))
		}
		return b.String()
	}
	var b strings.Builder
	b.WriteString("<br><br><h1>" + TrailingHeading + "</h1><ul>")
	for _, l := range links {
		b.WriteString("<li>" + LinkText(false, l) + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// Body produces the final note body: every link with a known source literal
// is substituted in place, and attachment links that never occurred inline
// are appended once under the trailing heading.
func Body(body string, markdown bool, links []Link) string {
	var trailing []Link
	for _, l := range links {
		if l.SourceText != "" {
			body = strings.ReplaceAll(body, l.SourceText, LinkText(markdown, l))
		} else if l.Kind == KindAttachment {
			trailing = append(trailing, l)
		}
	}
	if len(trailing) > 0 {
		body += trailingBlock(markdown, trailing)
	}
	return body
}
