// Package cache is the persistent record of everything already created in
// the target service.
//
// The cache is a local SQLite database loaded fully into memory at startup.
// Every mutating operation persists before returning, so a crash after any
// single operation leaves the cache consistent with the target's actual
// state as of the last successful API call. That write-through contract is
// what makes reruns of the migration idempotent: an entity found here is
// never created again.
//
// The cache is the single owner of persisted state; the orchestrator and its
// sub-steps mutate it only through the methods below.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"notemigrate/internal/hierarchy"
	"notemigrate/internal/rewrite"
	"notemigrate/internal/target"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrUnknownLocation reports a location that was never registered in the
// folder chain. Hitting it while selecting a migration subset is fatal.
var ErrUnknownLocation = fmt.Errorf("location not present in folder chain")

// Cache wraps the SQLite store plus its in-memory mirror.
type Cache struct {
	conn *sql.DB
	path string
	log  zerolog.Logger

	chain     map[string]*hierarchy.ChainEntry
	tags      map[string]*target.Tag
	resources map[string]*target.Resource
	notes     map[string]*target.Note
	links     map[string]rewrite.Link
	noteTags  map[string][]string
}

// Open creates or opens the cache database at path.
//
// The caller must call Close when done. Load must be called before any
// lookup or mutation.
func Open(path string, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	// Single-writer workload, but WAL keeps a crashed run recoverable.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &Cache{
		conn:      conn,
		path:      path,
		log:       log.With().Str("component", "cache").Logger(),
		chain:     make(map[string]*hierarchy.ChainEntry),
		tags:      make(map[string]*target.Tag),
		resources: make(map[string]*target.Resource),
		notes:     make(map[string]*target.Note),
		links:     make(map[string]rewrite.Link),
		noteTags:  make(map[string][]string),
	}, nil
}

// Close checkpoints the WAL and closes the database.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if _, err := c.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		c.log.Warn().Err(err).Msg("wal checkpoint failed")
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close cache database: %w", err)
	}
	c.conn = nil
	return nil
}

// InitSchema creates the cache tables. Idempotent.
func (c *Cache) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS folder_chain (
		location TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		parent_location TEXT,
		level INTEGER NOT NULL,
		target_id TEXT,
		target_parent_id TEXT
	);

	CREATE TABLE IF NOT EXISTS note (
		note_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		parent_folder_id TEXT NOT NULL,
		markup INTEGER NOT NULL,
		source_location TEXT NOT NULL,
		created_time INTEGER,
		updated_time INTEGER
	);

	CREATE TABLE IF NOT EXISTS resource (
		resource_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		created_time INTEGER NOT NULL,
		resource_kind INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS internal_link (
		note_id TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		title TEXT NOT NULL,
		link_kind TEXT NOT NULL,
		source_text TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (note_id, resource_id)
	);
	CREATE INDEX IF NOT EXISTS idx_link_kind ON internal_link(link_kind);
	CREATE INDEX IF NOT EXISTS idx_link_resource ON internal_link(resource_id);

	CREATE TABLE IF NOT EXISTS tag (
		tag_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_time INTEGER NOT NULL,
		updated_time INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tag_title ON tag(title);

	CREATE TABLE IF NOT EXISTS note_tag (
		note_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_time INTEGER NOT NULL,
		PRIMARY KEY (note_id, tag_id)
	);
	`
	if _, err := c.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize cache schema: %w", err)
	}
	return nil
}

// Load reads every table into the in-memory mirror.
func (c *Cache) Load(ctx context.Context) error {
	if err := c.loadChain(ctx); err != nil {
		return err
	}
	if err := c.loadTags(ctx); err != nil {
		return err
	}
	if err := c.loadResources(ctx); err != nil {
		return err
	}
	if err := c.loadLinks(ctx); err != nil {
		return err
	}
	if err := c.loadNotes(ctx); err != nil {
		return err
	}
	c.log.Info().
		Int("folders", len(c.chain)).
		Int("tags", len(c.tags)).
		Int("resources", len(c.resources)).
		Int("notes", len(c.notes)).
		Msg("cache loaded")
	return nil
}

func (c *Cache) loadChain(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT location, title, parent_location, level, target_id, target_parent_id FROM folder_chain`)
	if err != nil {
		return fmt.Errorf("load folder chain: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry hierarchy.ChainEntry
		var parent, targetID, targetParentID sql.NullString
		if err := rows.Scan(&entry.Location, &entry.Title, &parent, &entry.Level, &targetID, &targetParentID); err != nil {
			return fmt.Errorf("scan folder chain row: %w", err)
		}
		entry.ParentLocation = parent.String
		entry.TargetID = targetID.String
		entry.TargetParentID = targetParentID.String
		c.chain[entry.Location] = &entry
	}
	return rows.Err()
}

func (c *Cache) loadTags(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx, `SELECT tag_id, title, created_time, updated_time FROM tag`)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t target.Tag
		if err := rows.Scan(&t.ID, &t.Title, &t.Created, &t.Updated); err != nil {
			return fmt.Errorf("scan tag row: %w", err)
		}
		c.tags[t.ID] = &t
	}
	return rows.Err()
}

func (c *Cache) loadResources(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT resource_id, title, filename, created_time, resource_kind FROM resource`)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r target.Resource
		if err := rows.Scan(&r.ID, &r.Title, &r.Filename, &r.Created, &r.Kind); err != nil {
			return fmt.Errorf("scan resource row: %w", err)
		}
		c.resources[r.ID] = &r
	}
	return rows.Err()
}

func (c *Cache) loadLinks(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT note_id, resource_id, title, link_kind, source_text FROM internal_link`)
	if err != nil {
		return fmt.Errorf("load internal links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l rewrite.Link
		var kind string
		if err := rows.Scan(&l.NoteID, &l.ResourceID, &l.Title, &kind, &l.SourceText); err != nil {
			return fmt.Errorf("scan internal link row: %w", err)
		}
		l.Kind = rewrite.Kind(kind)
		c.links[l.Key()] = l
	}
	return rows.Err()
}

func (c *Cache) loadNotes(ctx context.Context) error {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT note_id, title, parent_folder_id, markup, source_location, created_time, updated_time FROM note`)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n target.Note
		var created, updated sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Title, &n.ParentID, &n.Markup, &n.Location, &created, &updated); err != nil {
			return fmt.Errorf("scan note row: %w", err)
		}
		n.Created = created.Int64
		n.Updated = updated.Int64
		c.notes[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tagRows, err := c.conn.QueryContext(ctx, `SELECT note_id, tag_id FROM note_tag`)
	if err != nil {
		return fmt.Errorf("load note tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var noteID, tagID string
		if err := tagRows.Scan(&noteID, &tagID); err != nil {
			return fmt.Errorf("scan note tag row: %w", err)
		}
		c.noteTags[noteID] = append(c.noteTags[noteID], tagID)
	}
	return tagRows.Err()
}

// ChainEntry implements hierarchy.Registry.
func (c *Cache) ChainEntry(location string) *hierarchy.ChainEntry {
	return c.chain[location]
}

// InsertChainEntry implements hierarchy.Registry. Re-inserting a registered
// location is a logged no-op.
func (c *Cache) InsertChainEntry(ctx context.Context, entry *hierarchy.ChainEntry) error {
	if _, ok := c.chain[entry.Location]; ok {
		c.log.Debug().Str("location", entry.Location).Msg("chain entry already registered")
		return nil
	}
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO folder_chain (location, title, parent_location, level, target_id, target_parent_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Location, entry.Title, nullable(entry.ParentLocation), entry.Level,
		nullable(entry.TargetID), nullable(entry.TargetParentID))
	if err != nil {
		return fmt.Errorf("insert chain entry %s: %w", entry.Location, err)
	}
	c.chain[entry.Location] = entry
	return nil
}

// SetFolderTarget records the target folder ID assigned to a location.
// Both fields are write-once: a second call for the same location is a
// logged no-op, the recorded IDs never change.
func (c *Cache) SetFolderTarget(ctx context.Context, location, targetID, targetParentID string) error {
	entry, ok := c.chain[location]
	if !ok {
		return fmt.Errorf("set folder target: %w: %s", ErrUnknownLocation, location)
	}
	if entry.TargetID != "" {
		c.log.Warn().Str("location", location).Str("target_id", entry.TargetID).
			Msg("folder target already assigned")
		return nil
	}
	_, err := c.conn.ExecContext(ctx,
		`UPDATE folder_chain SET target_id = ?, target_parent_id = ? WHERE location = ?`,
		targetID, nullable(targetParentID), location)
	if err != nil {
		return fmt.Errorf("update chain entry %s: %w", location, err)
	}
	entry.TargetID = targetID
	entry.TargetParentID = targetParentID
	return nil
}

// PendingFolders returns every chain entry still awaiting target-side
// creation, ordered by ascending nesting level: parents always precede
// children. Ties are broken by location for deterministic runs.
func (c *Cache) PendingFolders() []*hierarchy.ChainEntry {
	var pending []*hierarchy.ChainEntry
	for _, entry := range c.chain {
		if entry.TargetID == "" {
			pending = append(pending, entry)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Level != pending[j].Level {
			return pending[i].Level < pending[j].Level
		}
		return pending[i].Location < pending[j].Location
	})
	return pending
}

// Subtree returns location plus every registered descendant location.
// Unknown locations are an error: asking for a subtree that was never
// resolved indicates a caller bug, not an empty result.
func (c *Cache) Subtree(location string) ([]string, error) {
	if _, ok := c.chain[location]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, location)
	}
	locations := []string{location}
	c.collectChildren(location, &locations)
	sort.Strings(locations[1:])
	return locations, nil
}

func (c *Cache) collectChildren(parent string, out *[]string) {
	for _, entry := range c.chain {
		if entry.ParentLocation == parent {
			*out = append(*out, entry.Location)
			c.collectChildren(entry.Location, out)
		}
	}
}

// Tag returns the cached tag for a target ID, or nil.
func (c *Cache) Tag(id string) *target.Tag {
	return c.tags[id]
}

// InsertTag records a created tag. Duplicate inserts are logged no-ops.
func (c *Cache) InsertTag(ctx context.Context, t *target.Tag) error {
	if _, ok := c.tags[t.ID]; ok {
		c.log.Warn().Str("id", t.ID).Str("title", t.Title).Msg("tag already recorded")
		return nil
	}
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO tag (tag_id, title, created_time, updated_time) VALUES (?, ?, ?, ?)`,
		t.ID, t.Title, t.Created, t.Updated)
	if err != nil {
		return fmt.Errorf("insert tag %s: %w", t.ID, err)
	}
	c.tags[t.ID] = t
	return nil
}

// Resource returns the cached resource for a target ID, or nil.
func (c *Cache) Resource(id string) *target.Resource {
	return c.resources[id]
}

// InsertResource records an uploaded resource. Duplicate inserts are logged
// no-ops.
func (c *Cache) InsertResource(ctx context.Context, r *target.Resource) error {
	if _, ok := c.resources[r.ID]; ok {
		c.log.Warn().Str("id", r.ID).Str("title", r.Title).Msg("resource already recorded")
		return nil
	}
	created := r.Created
	if created == 0 {
		created = time.Now().UnixMilli()
	}
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO resource (resource_id, title, filename, created_time, resource_kind)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Filename, created, r.Kind)
	if err != nil {
		return fmt.Errorf("insert resource %s: %w", r.ID, err)
	}
	c.resources[r.ID] = r
	return nil
}

// Note returns the cached note for a target ID, or nil. A non-nil result
// means the document was already migrated and must be skipped.
func (c *Cache) Note(id string) *target.Note {
	return c.notes[id]
}

// NoteTags returns the tag IDs recorded for a note.
func (c *Cache) NoteTags(noteID string) []string {
	return c.noteTags[noteID]
}

// Links returns the internal links recorded for a note.
func (c *Cache) Links(noteID string) []rewrite.Link {
	var links []rewrite.Link
	for _, l := range c.links {
		if l.NoteID == noteID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ResourceID < links[j].ResourceID })
	return links
}

// InsertNote records a created note together with its tag links and internal
// links as one transaction. Re-inserting an existing note is a logged no-op.
func (c *Cache) InsertNote(ctx context.Context, n *target.Note, tagIDs []string, links []rewrite.Link) error {
	if _, ok := c.notes[n.ID]; ok {
		c.log.Warn().Str("id", n.ID).Str("title", n.Title).Msg("note already recorded")
		return nil
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin note transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO note (note_id, title, parent_folder_id, markup, source_location, created_time, updated_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.ParentID, n.Markup, n.Location, n.Created, n.Updated); err != nil {
		return fmt.Errorf("insert note %s: %w", n.ID, err)
	}

	for _, tagID := range tagIDs {
		tag := c.tags[tagID]
		if tag == nil {
			c.log.Warn().Str("note", n.ID).Str("tag", tagID).Msg("note references unknown tag")
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_tag (note_id, tag_id, title, created_time) VALUES (?, ?, ?, ?)`,
			n.ID, tagID, tag.Title, tag.Created); err != nil {
			return fmt.Errorf("insert note tag %s/%s: %w", n.ID, tagID, err)
		}
	}

	for _, l := range links {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO internal_link (note_id, resource_id, title, link_kind, source_text)
			 VALUES (?, ?, ?, ?, ?)`,
			l.NoteID, l.ResourceID, l.Title, string(l.Kind), l.SourceText); err != nil {
			return fmt.Errorf("insert internal link %s: %w", l.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit note %s: %w", n.ID, err)
	}

	c.notes[n.ID] = n
	for _, tagID := range tagIDs {
		if c.tags[tagID] != nil {
			c.noteTags[n.ID] = append(c.noteTags[n.ID], tagID)
		}
	}
	for _, l := range links {
		c.links[l.Key()] = l
	}
	return nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
