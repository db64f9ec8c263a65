package taskref

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Separator joins the segments of an identifier and separates a canonical
// id from any appended suffix.
const Separator = "-"

// uuidSegments is the segment count of a canonical UUID (8-4-4-4-12).
const uuidSegments = 5

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Ref is the decomposition of a raw task reference. Canonical is the clean
// identifier; Suffix is whatever trailed it (empty when none). Historical
// client code appended list-disambiguation suffixes to rendered ids and
// those compound strings leaked back into update and delete requests; Ref
// makes the split explicit so every consumer reasons about the same
// decomposition.
type Ref struct {
	Canonical string
	Suffix    string
}

// Parse decomposes a raw reference string. If the input splits on the
// separator into more segments than a canonical UUID has, the first five
// form the canonical id and the remainder is the suffix; otherwise the
// whole input is the canonical id. Pure and total: every string decomposes
// to some canonical id.
func Parse(raw string) Ref {
	parts := strings.Split(raw, Separator)
	if len(parts) <= uuidSegments {
		return Ref{Canonical: raw}
	}
	return Ref{
		Canonical: strings.Join(parts[:uuidSegments], Separator),
		Suffix:    strings.Join(parts[uuidSegments:], Separator),
	}
}

// HasSuffix reports whether the reference carried a suffix.
func (r Ref) HasSuffix() bool {
	return r.Suffix != ""
}

// String re-joins the reference into its raw form.
func (r Ref) String() string {
	if r.Suffix == "" {
		return r.Canonical
	}
	return r.Canonical + Separator + r.Suffix
}

// IsUUID checks if a string has the canonical lowercase UUID shape
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// NewID mints a fresh task identifier. Never derived from an incoming
// reference: a raw ref that failed to resolve may be a compound string
// unsuitable for storage.
func NewID() string {
	return uuid.NewString()
}
