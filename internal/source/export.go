package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExportOptions configures LoadExport.
type ExportOptions struct {
	// UTCOffsetHours is the fixed UTC offset of the source store's naive
	// local timestamps.
	UTCOffsetHours int
	// SkipMissing marks absent attachment/image files instead of failing
	// the load.
	SkipMissing bool
}

// Export is a Store backed by a resolved on-disk export: a documents.jsonl
// stream, a tags.json array, and the extracted files they reference,
// all relative to the export directory.
type Export struct {
	documents []*Document
	tags      []*Tag
}

// Documents implements Store.
func (e *Export) Documents() []*Document { return e.documents }

// Tags implements Store.
func (e *Export) Tags() []*Tag { return e.tags }

// Wire formats of the resolved export. Timestamps arrive as naive local
// time strings and are converted during load.
type exportDocument struct {
	GUID        string             `json:"guid"`
	Title       string             `json:"title"`
	Location    string             `json:"location"`
	Markdown    bool               `json:"markdown"`
	Created     string             `json:"created"`
	Updated     string             `json:"updated"`
	URL         string             `json:"url,omitempty"`
	Body        string             `json:"body"`
	Tags        []string           `json:"tags,omitempty"`
	Attachments []exportAttachment `json:"attachments,omitempty"`
	Images      []exportImage      `json:"images,omitempty"`
	Links       []exportLink       `json:"links,omitempty"`
}

type exportAttachment struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
	File string `json:"file"`
}

type exportImage struct {
	Src        string `json:"src"`
	File       string `json:"file"`
	SourceText string `json:"source_text"`
}

type exportLink struct {
	GUID       string `json:"guid"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	SourceText string `json:"source_text,omitempty"`
}

type exportTag struct {
	GUID    string `json:"guid"`
	Name    string `json:"name"`
	Updated string `json:"updated"`
}

// LoadExport reads a resolved export directory into memory.
//
// Each document line is validated and its file references resolved against
// dir. A missing backing file either flags the entity (skip-missing on) or
// fails the load with ErrMissingFile.
func LoadExport(dir string, opts ExportOptions) (*Export, error) {
	docs, err := loadDocuments(filepath.Join(dir, "documents.jsonl"), dir, opts)
	if err != nil {
		return nil, err
	}
	tags, err := loadTags(filepath.Join(dir, "tags.json"), opts)
	if err != nil {
		return nil, err
	}
	return &Export{documents: docs, tags: tags}, nil
}

func loadDocuments(path, dir string, opts ExportOptions) ([]*Document, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open documents export: %w", err)
	}
	defer file.Close()

	var docs []*Document
	decoder := json.NewDecoder(file)
	line := 0
	for {
		var raw exportDocument
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid document at entry %d: %w", line+1, err)
		}
		line++

		doc, err := raw.resolve(dir, opts)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", raw.GUID, err)
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (raw *exportDocument) resolve(dir string, opts ExportOptions) (*Document, error) {
	created, err := ParseLocalTime(raw.Created, opts.UTCOffsetHours)
	if err != nil {
		return nil, err
	}
	updated, err := ParseLocalTime(raw.Updated, opts.UTCOffsetHours)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		GUID:     raw.GUID,
		Title:    raw.Title,
		Location: raw.Location,
		Markdown: raw.Markdown,
		Created:  created,
		Updated:  updated,
		URL:      raw.URL,
		Body:     raw.Body,
		Tags:     raw.Tags,
	}

	for _, a := range raw.Attachments {
		path := filepath.Join(dir, a.File)
		missing, err := checkFile(path, opts.SkipMissing)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		doc.Attachments = append(doc.Attachments, &Attachment{
			GUID:     a.GUID,
			Name:     a.Name,
			FilePath: path,
			Missing:  missing,
		})
	}

	for _, img := range raw.Images {
		path := filepath.Join(dir, img.File)
		missing, err := checkFile(path, opts.SkipMissing)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", img.Src, err)
		}
		doc.Images = append(doc.Images, &Image{
			Src:        img.Src,
			FilePath:   path,
			SourceText: img.SourceText,
			Missing:    missing,
		})
	}

	for _, l := range raw.Links {
		kind := LinkKind(l.Kind)
		if kind != LinkAttachment && kind != LinkDocument {
			return nil, fmt.Errorf("link %s has unknown kind %q", l.GUID, l.Kind)
		}
		doc.InternalLinks = append(doc.InternalLinks, &InternalLink{
			GUID:       l.GUID,
			Title:      l.Title,
			Kind:       kind,
			SourceText: l.SourceText,
		})
	}

	return doc, nil
}

func checkFile(path string, skipMissing bool) (missing bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return false, err
		}
		if !skipMissing {
			return false, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return true, nil
	}
	return false, nil
}

func loadTags(path string, opts ExportOptions) ([]*Tag, error) {
	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// An export without tags is legal.
			return nil, nil
		}
		return nil, fmt.Errorf("read tags export: %w", err)
	}

	var raw []exportTag
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid tags export: %w", err)
	}

	tags := make([]*Tag, 0, len(raw))
	for _, rt := range raw {
		updated, err := ParseLocalTime(rt.Updated, opts.UTCOffsetHours)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", rt.GUID, err)
		}
		tags = append(tags, &Tag{GUID: rt.GUID, Name: rt.Name, Updated: updated})
	}
	return tags, nil
}
