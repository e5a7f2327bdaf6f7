// Package hierarchy resolves the source store's slash-delimited locations
// into a chain of folder records, root first.
//
// A location like "/Work/Projects/" is not an entity in the source store; it
// is the hierarchy key. The resolver turns each distinct location into a
// ChainEntry and registers it, ancestors before descendants, so that folder
// creation can later proceed strictly by nesting level. The resolver never
// creates target-side folders itself.
package hierarchy

import (
	"context"
	"fmt"
	"strings"
)

// Delimiter separates location path segments.
const Delimiter = "/"

// Normalize rewrites a location into its canonical wrapped form,
// "/Work/Projects/". Locations are compared and stored only in this form so
// that "Work/Projects" and "/Work/Projects/" name the same folder. An empty
// location normalizes to the empty string.
func Normalize(location string) string {
	trimmed := strings.Trim(location, Delimiter)
	if trimmed == "" {
		return ""
	}
	return Delimiter + trimmed + Delimiter
}

// ChainEntry links one source location to its (eventual) target folder.
//
// TargetID and TargetParentID stay empty until the orchestrator creates the
// folder in the target service; both are write-once. The invariant
// maintained by the cache and the orchestrator is that TargetID is assigned
// only after the parent entry's TargetID (or the entry is root).
type ChainEntry struct {
	// Location is the full wrapped path, e.g. "/Work/Projects/". Primary key.
	Location string
	// Title is the last path segment.
	Title string
	// ParentLocation is the wrapped path of all but the last segment,
	// empty for root-level entries.
	ParentLocation string
	// Level is the segment count; root entries have level 1.
	Level int
	// TargetID is the target-side folder identifier, empty until created.
	TargetID string
	// TargetParentID is the parent folder's target identifier.
	TargetParentID string
}

// Root reports whether the entry sits at the top of the hierarchy.
func (e *ChainEntry) Root() bool {
	return e.ParentLocation == ""
}

// Parse decomposes a location into a chain entry with title, level and
// parent location derived from the path segments.
func Parse(location string) (*ChainEntry, error) {
	trimmed := strings.Trim(location, Delimiter)
	if trimmed == "" {
		return nil, fmt.Errorf("empty location %q", location)
	}
	segments := strings.Split(trimmed, Delimiter)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("location %q has an empty segment", location)
		}
	}

	entry := &ChainEntry{
		Location: Normalize(location),
		Title:    segments[len(segments)-1],
		Level:    len(segments),
	}
	if entry.Level > 1 {
		entry.ParentLocation = Delimiter + strings.Join(segments[:len(segments)-1], Delimiter) + Delimiter
	}
	return entry, nil
}

// Registry is the chain store the resolver registers entries into. The sync
// cache implements it; tests may substitute an in-memory map.
type Registry interface {
	// ChainEntry returns the entry for a location, or nil if unregistered.
	ChainEntry(location string) *ChainEntry
	// InsertChainEntry stores a new entry. Inserting an already-registered
	// location is a no-op.
	InsertChainEntry(ctx context.Context, entry *ChainEntry) error
}

// Register resolves a location and inserts it plus every missing ancestor
// into the registry. Registration walks upward: by the time Register
// returns, the whole chain from root to the location exists in the registry,
// none of it yet assigned a target ID.
func Register(ctx context.Context, reg Registry, location string) (*ChainEntry, error) {
	entry := reg.ChainEntry(Normalize(location))
	if entry == nil {
		parsed, err := Parse(location)
		if err != nil {
			return nil, err
		}
		if err := reg.InsertChainEntry(ctx, parsed); err != nil {
			return nil, fmt.Errorf("register location %q: %w", location, err)
		}
		entry = parsed
	}
	if entry.ParentLocation != "" {
		if _, err := Register(ctx, reg, entry.ParentLocation); err != nil {
			return nil, err
		}
	}
	return entry, nil
}
