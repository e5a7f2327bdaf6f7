// Package source defines the resolved source-side note model and the Store
// interface the sync engine consumes.
//
// Everything here is fully resolved before synchronization starts: archive
// extraction, encoding detection and inline image/link extraction from raw
// markup are the job of whatever produced the export, not of this module.
package source

import (
	"errors"
	"fmt"

	"notemigrate/internal/ids"
)

// ErrMissingFile marks an attachment or image whose backing file is absent
// while skip-missing mode is disabled.
var ErrMissingFile = errors.New("backing file is missing")

// LinkKind tags what an inline reference points at in the source store.
type LinkKind string

const (
	LinkAttachment LinkKind = "attachment"
	LinkDocument   LinkKind = "document"
)

// Document is one resolved source note.
type Document struct {
	// GUID is the stable identifier, canonical hyphenated UUID text.
	GUID  string
	Title string
	// Location is the slash-delimited hierarchy key, e.g. "/Work/Projects/".
	Location string
	// Markdown is true for structured-markup bodies, false for
	// plain rich text.
	Markdown bool
	// Created and Updated are Unix milliseconds, already converted from the
	// source store's local time.
	Created int64
	Updated int64
	// URL is the origin URL, empty when the note was authored locally.
	URL  string
	Body string
	// Tags holds the GUIDs of the document's tags, in source order.
	Tags []string

	Attachments   []*Attachment
	Images        []*Image
	InternalLinks []*InternalLink
}

// Validate checks the fields the sync engine depends on.
func (d *Document) Validate() error {
	if !ids.Valid(d.GUID) {
		return fmt.Errorf("document guid %q is not a canonical UUID", d.GUID)
	}
	if d.Title == "" {
		return fmt.Errorf("document %s has no title", d.GUID)
	}
	if d.Location == "" {
		return fmt.Errorf("document %s has no location", d.GUID)
	}
	for _, tag := range d.Tags {
		if !ids.Valid(tag) {
			return fmt.Errorf("document %s tag guid %q is not a canonical UUID", d.GUID, tag)
		}
	}
	for _, a := range d.Attachments {
		if !ids.Valid(a.GUID) {
			return fmt.Errorf("document %s attachment guid %q is not a canonical UUID", d.GUID, a.GUID)
		}
	}
	for _, l := range d.InternalLinks {
		if !ids.Valid(l.GUID) {
			return fmt.Errorf("document %s link guid %q is not a canonical UUID", d.GUID, l.GUID)
		}
	}
	return nil
}

// Attachment is a file-backed resource with its own stable identifier. It
// may or may not appear inline in the owning document's body.
type Attachment struct {
	GUID string
	// Name is the filename presented to the target service.
	Name string
	// FilePath is the absolute on-disk path of the extracted file.
	FilePath string
	// Missing is set when the backing file is absent and skip-missing mode
	// allowed the document to keep loading.
	Missing bool
}

// Image is an in-body image. Images have no identifier of their own in the
// source store; they are located purely by their in-body reference path.
type Image struct {
	// Src is the in-body reference path, e.g. "index_files/chart.png".
	Src string
	// FilePath is the absolute on-disk path of the extracted file.
	FilePath string
	// SourceText is the literal form the image has in the body.
	SourceText string
	Missing    bool
}

// Name returns the filename presented to the target service.
func (i *Image) Name() string {
	if idx := lastSlash(i.Src); idx >= 0 {
		return i.Src[idx+1:]
	}
	return i.Src
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// InternalLink is an inline reference embedded literally in body text,
// pointing at an attachment or at another document.
type InternalLink struct {
	// GUID identifies the referenced entity in the source store.
	GUID  string
	Title string
	Kind  LinkKind
	// SourceText is the literal in-body form to be substituted.
	SourceText string
}

// Tag is a named label, many-to-many with documents.
type Tag struct {
	GUID string
	Name string
	// Updated is Unix milliseconds; the source store keeps no separate
	// creation time for tags.
	Updated int64
}

// Store supplies the resolved documents and tags for one migration run.
type Store interface {
	Documents() []*Document
	Tags() []*Tag
}
