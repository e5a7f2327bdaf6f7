// Package ids converts stable identifiers between the source store's
// canonical hyphenated UUID form and the target service's 32-hex-digit form.
//
// The conversion is lossless and deterministic, which is what makes it safe
// to use as the sole "already migrated" detector across independent runs:
// no separate mapping table is needed.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TargetIDLength is the length of a target-side identifier: a canonical
// UUID with the four hyphens stripped.
const TargetIDLength = 32

// Valid reports whether guid is a canonical hyphenated UUID
// (8-4-4-4-12 hex groups).
func Valid(guid string) bool {
	if len(guid) != 36 {
		return false
	}
	_, err := uuid.Parse(guid)
	return err == nil
}

// ToTarget converts a canonical hyphenated UUID to target form by stripping
// the hyphens. The input is not validated; callers that accept external
// identifiers should check them with Valid first.
func ToTarget(guid string) string {
	return strings.ReplaceAll(guid, "-", "")
}

// ToSource restores the canonical hyphenated form from a 32-hex target
// identifier, re-inserting hyphens at the fixed 8-4-4-4-12 boundaries.
func ToSource(id string) (string, error) {
	if len(id) != TargetIDLength {
		return "", fmt.Errorf("target id must be %d characters, got %d", TargetIDLength, len(id))
	}
	guid := strings.Join([]string{id[:8], id[8:12], id[12:16], id[16:20], id[20:]}, "-")
	if !Valid(guid) {
		return "", fmt.Errorf("target id %q is not hex", id)
	}
	return guid, nil
}
