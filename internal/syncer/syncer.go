// Package syncer drives the end-to-end migration: folder creation, tag
// creation, per-document resource upload, body rewriting and note creation.
//
// The syncer is the only component that calls the target service. Every
// created entity is recorded in the sync cache before the next step runs,
// so an interrupted migration is recovered simply by rerunning it. Work is
// strictly sequential; the folder parent/child ordering and the
// cache-write-before-next-step ordering are invariants the algorithm
// depends on.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"notemigrate/internal/cache"
	"notemigrate/internal/hierarchy"
	"notemigrate/internal/ids"
	"notemigrate/internal/rewrite"
	"notemigrate/internal/source"
	"notemigrate/internal/target"
)

// ErrHierarchy reports a folder chain entry whose parent is missing or has
// no target ID at creation time. This is a resolver bug, not a transient
// fault, and always aborts the run.
var ErrHierarchy = errors.New("folder hierarchy invariant violated")

// Stats summarizes one migration run.
type Stats struct {
	FoldersCreated   int
	TagsCreated      int
	ResourcesCreated int
	NotesCreated     int
	NotesSkipped     int
	ResourcesSkipped int
	LinksDropped     int
}

// Syncer orchestrates a migration run against one source store, one target
// service and one sync cache.
type Syncer struct {
	store       source.Store
	client      target.Client
	cache       *cache.Cache
	log         zerolog.Logger
	skipMissing bool

	// resources indexes the target's existing resources by filename for
	// upload dedup; nil until the first upload forces a listing.
	resources map[string]*target.Resource
}

// New builds a Syncer. The cache must be opened, schema-initialized and
// loaded by the caller.
func New(store source.Store, client target.Client, c *cache.Cache, log zerolog.Logger, skipMissing bool) *Syncer {
	return &Syncer{
		store:       store,
		client:      client,
		cache:       c,
		log:         log.With().Str("component", "syncer").Logger(),
		skipMissing: skipMissing,
	}
}

// SyncAll migrates every document in the source store.
func (s *Syncer) SyncAll(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.prepare(ctx, &stats); err != nil {
		return stats, err
	}

	docs := s.store.Documents()
	s.log.Info().Int("documents", len(docs)).Msg("migrating all documents")
	return stats, s.syncDocuments(ctx, docs, &stats)
}

// SyncLocation migrates the documents of one location, optionally including
// every descendant location. Requesting a location that was never resolved
// into the chain is a fatal error.
func (s *Syncer) SyncLocation(ctx context.Context, location string, withChildren bool) (Stats, error) {
	var stats Stats
	if err := s.prepare(ctx, &stats); err != nil {
		return stats, err
	}

	location = hierarchy.Normalize(location)
	var locations []string
	if withChildren {
		subtree, err := s.cache.Subtree(location)
		if err != nil {
			return stats, err
		}
		locations = subtree
	} else {
		if s.cache.ChainEntry(location) == nil {
			return stats, fmt.Errorf("%w: %s", cache.ErrUnknownLocation, location)
		}
		locations = []string{location}
	}

	selected := make(map[string]bool, len(locations))
	for _, loc := range locations {
		selected[loc] = true
	}

	var docs []*source.Document
	for _, doc := range s.store.Documents() {
		if selected[hierarchy.Normalize(doc.Location)] {
			docs = append(docs, doc)
		}
	}
	s.log.Info().Str("location", location).Bool("with_children", withChildren).
		Int("documents", len(docs)).Msg("migrating location")
	return stats, s.syncDocuments(ctx, docs, &stats)
}

// prepare registers the folder chain for every document, then creates
// folders and tags. Folders and tags always cover the whole store, even for
// location-scoped runs, so that reruns with a different scope never race
// the hierarchy.
func (s *Syncer) prepare(ctx context.Context, stats *Stats) error {
	for _, doc := range s.store.Documents() {
		if _, err := hierarchy.Register(ctx, s.cache, doc.Location); err != nil {
			return err
		}
	}
	if err := s.syncFolders(ctx, stats); err != nil {
		return err
	}
	return s.syncTags(ctx, stats)
}

// syncFolders creates every chain entry still lacking a target ID, strictly
// ordered by ascending nesting level so a child is never submitted before
// its parent has a confirmed target ID.
func (s *Syncer) syncFolders(ctx context.Context, stats *Stats) error {
	pending := s.cache.PendingFolders()
	if len(pending) > 0 {
		s.log.Info().Int("folders", len(pending)).Msg("creating folders")
	}
	for _, entry := range pending {
		parentID := ""
		if !entry.Root() {
			parent := s.cache.ChainEntry(entry.ParentLocation)
			if parent == nil {
				return fmt.Errorf("%w: %s has no parent entry %s", ErrHierarchy, entry.Location, entry.ParentLocation)
			}
			if parent.TargetID == "" {
				return fmt.Errorf("%w: parent %s of %s has no target id", ErrHierarchy, entry.ParentLocation, entry.Location)
			}
			parentID = parent.TargetID
		}

		folder, err := s.client.CreateFolder(ctx, entry.Title, parentID)
		if err != nil {
			return fmt.Errorf("create folder %s: %w", entry.Location, err)
		}
		if err := s.cache.SetFolderTarget(ctx, entry.Location, folder.ID, parentID); err != nil {
			return err
		}
		stats.FoldersCreated++
		s.log.Info().Str("location", entry.Location).Str("id", folder.ID).Msg("folder created")
	}
	return nil
}

// syncTags creates every source tag not yet present by converted ID. Tags
// are flat, so order does not matter. A duplicate-ID response means a
// previous run created the tag but crashed before recording it; the tag is
// fetched back and recorded as already migrated.
func (s *Syncer) syncTags(ctx context.Context, stats *Stats) error {
	for _, st := range s.store.Tags() {
		id := ids.ToTarget(st.GUID)
		if s.cache.Tag(id) != nil {
			continue
		}

		created, err := s.client.CreateTag(ctx, &target.Tag{
			ID: id, Title: st.Name, Created: st.Updated, Updated: st.Updated,
		})
		if errors.Is(err, target.ErrDuplicate) {
			s.log.Warn().Str("id", id).Str("title", st.Name).Msg("tag exists in target, reconciling")
			created, err = s.client.Tag(ctx, id)
			if err != nil {
				return fmt.Errorf("reconcile tag %s: %w", id, err)
			}
		} else if err != nil {
			s.log.Error().Err(err).Str("id", id).Str("title", st.Name).Msg("tag creation failed")
			continue
		} else {
			stats.TagsCreated++
		}

		if err := s.cache.InsertTag(ctx, created); err != nil {
			return err
		}
	}
	return nil
}

// syncDocuments migrates the given documents one at a time. Per-document
// failures are logged and skipped; structural failures abort the run.
func (s *Syncer) syncDocuments(ctx context.Context, docs []*source.Document, stats *Stats) error {
	for _, doc := range docs {
		if err := s.syncDocument(ctx, doc, stats); err != nil {
			if fatal(err) {
				return err
			}
			s.log.Error().Err(err).Str("guid", doc.GUID).Str("title", doc.Title).
				Msg("document migration failed, continuing")
		}
	}
	return nil
}

// fatal reports errors that indicate structural inconsistency rather than a
// bad individual document.
func fatal(err error) bool {
	return errors.Is(err, ErrHierarchy) ||
		errors.Is(err, cache.ErrUnknownLocation) ||
		errors.Is(err, source.ErrMissingFile) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// syncDocument migrates one document: upload its resources, rewrite its
// body, create the note, and persist everything as one cascading cache
// write.
func (s *Syncer) syncDocument(ctx context.Context, doc *source.Document, stats *Stats) error {
	noteID := ids.ToTarget(doc.GUID)
	if existing := s.cache.Note(noteID); existing != nil {
		s.log.Info().Str("id", noteID).Str("title", existing.Title).Msg("note already migrated")
		stats.NotesSkipped++
		return nil
	}
	s.log.Info().Str("guid", doc.GUID).Str("title", doc.Title).Msg("migrating document")

	// Inline references the source already identified, keyed by
	// (note, resource) target IDs.
	links := make(map[string]rewrite.Link)
	for _, il := range doc.InternalLinks {
		kind := rewrite.KindDocument
		if il.Kind == source.LinkAttachment {
			kind = rewrite.KindAttachment
		}
		l := rewrite.Link{
			NoteID:     noteID,
			ResourceID: ids.ToTarget(il.GUID),
			Title:      il.Title,
			Kind:       kind,
			SourceText: il.SourceText,
		}
		links[l.Key()] = l
	}

	for _, att := range doc.Attachments {
		res, err := s.uploadResource(ctx, att.Name, att.FilePath, att.Missing, target.ResourceAttachment, stats)
		if err != nil {
			if fatal(err) {
				return err
			}
			s.log.Warn().Err(err).Str("attachment", att.Name).Msg("dropping attachment reference")
			stats.LinksDropped++
			continue
		}
		if res == nil {
			continue // missing and skipped
		}

		// The service assigned the resource its own ID; an inline link for
		// this attachment still carries the converted source identifier and
		// has to be repointed. Attachments never seen inline become
		// synthetic links with no source text, appended by the rewriter.
		inlineKey := noteID + "-" + ids.ToTarget(att.GUID)
		if inline, ok := links[inlineKey]; ok {
			delete(links, inlineKey)
			inline.ResourceID = res.ID
			links[inline.Key()] = inline
		} else {
			l := rewrite.Link{NoteID: noteID, ResourceID: res.ID, Title: res.Title, Kind: rewrite.KindAttachment}
			links[l.Key()] = l
		}
	}

	for _, img := range doc.Images {
		res, err := s.uploadResource(ctx, img.Name(), img.FilePath, img.Missing, target.ResourceImage, stats)
		if err != nil {
			if fatal(err) {
				return err
			}
			s.log.Warn().Err(err).Str("image", img.Src).Msg("dropping image reference")
			stats.LinksDropped++
			continue
		}
		if res == nil {
			continue
		}
		l := rewrite.Link{
			NoteID:     noteID,
			ResourceID: res.ID,
			Title:      res.Title,
			Kind:       rewrite.KindImage,
			SourceText: img.SourceText,
		}
		links[l.Key()] = l
	}

	linkList := make([]rewrite.Link, 0, len(links))
	for _, l := range links {
		linkList = append(linkList, l)
	}
	sort.Slice(linkList, func(i, j int) bool { return linkList[i].ResourceID < linkList[j].ResourceID })

	body := rewrite.Body(doc.Body, doc.Markdown, linkList)

	entry := s.cache.ChainEntry(hierarchy.Normalize(doc.Location))
	if entry == nil || entry.TargetID == "" {
		return fmt.Errorf("%w: document %s location %s has no target folder", ErrHierarchy, doc.GUID, doc.Location)
	}

	markup := target.MarkupRichText
	if doc.Markdown {
		markup = target.MarkupMarkdown
	}
	note := &target.Note{
		ID:        noteID,
		Title:     doc.Title,
		Body:      body,
		Markup:    markup,
		ParentID:  entry.TargetID,
		SourceURL: doc.URL,
		Created:   doc.Created,
		Updated:   doc.Updated,
		Location:  doc.Location,
	}

	created, err := s.client.CreateNote(ctx, note)
	if errors.Is(err, target.ErrDuplicate) {
		// A previous run created the note but crashed before recording it.
		// The request payload holds everything the cache needs.
		s.log.Warn().Str("id", noteID).Str("title", doc.Title).Msg("note exists in target, reconciling")
		created = note
	} else if err != nil {
		return fmt.Errorf("create note %s: %w", noteID, err)
	} else {
		stats.NotesCreated++
	}

	var tagIDs []string
	for _, guid := range doc.Tags {
		id := ids.ToTarget(guid)
		if s.cache.Tag(id) == nil {
			s.log.Warn().Str("note", noteID).Str("tag", id).Msg("document references unsynced tag")
			continue
		}
		tagIDs = append(tagIDs, id)
	}

	return s.cache.InsertNote(ctx, created, tagIDs, linkList)
}

// uploadResource uploads one attachment or image file, deduplicating by
// filename against the target's existing resources. A nil, nil return means
// the file was missing and skip-missing mode dropped it.
func (s *Syncer) uploadResource(ctx context.Context, name, path string, missing bool, kind int, stats *Stats) (*target.Resource, error) {
	if missing {
		if !s.skipMissing {
			return nil, fmt.Errorf("%w: %s", source.ErrMissingFile, path)
		}
		s.log.Warn().Str("file", path).Msg("skipping missing resource")
		stats.ResourcesSkipped++
		return nil, nil
	}

	existing, err := s.lookupResource(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info().Str("filename", name).Str("id", existing.ID).Msg("resource already uploaded")
		return existing, nil
	}

	// #nosec G304 - path comes from the resolved export
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !s.skipMissing {
				return nil, fmt.Errorf("%w: %s", source.ErrMissingFile, path)
			}
			s.log.Warn().Str("file", path).Msg("skipping missing resource")
			stats.ResourcesSkipped++
			return nil, nil
		}
		return nil, fmt.Errorf("open resource %s: %w", path, err)
	}
	defer file.Close()

	res, err := s.client.CreateResource(ctx, &target.Resource{Title: name, Filename: name, Kind: kind}, file)
	if err != nil {
		return nil, fmt.Errorf("upload resource %s: %w", name, err)
	}

	if err := s.cache.InsertResource(ctx, res); err != nil {
		return nil, err
	}
	s.resources[res.Filename] = res
	stats.ResourcesCreated++
	return res, nil
}

// lookupResource finds an existing target resource by filename, first match
// wins. The target listing is fetched once per run and maintained locally
// as uploads happen.
func (s *Syncer) lookupResource(ctx context.Context, name string) (*target.Resource, error) {
	if s.resources == nil {
		listed, err := s.client.ListResources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list target resources: %w", err)
		}
		s.resources = make(map[string]*target.Resource, len(listed))
		for _, r := range listed {
			if _, ok := s.resources[r.Filename]; !ok {
				s.resources[r.Filename] = r
			}
		}
	}
	return s.resources[name], nil
}
