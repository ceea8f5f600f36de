package ledger

import (
	"path"
	"path/filepath"
	"strings"
)

// Overlap classifies the relationship between two scopes.
type Overlap string

// Overlap values.
const (
	// OverlapExact: identical after normalization.
	OverlapExact Overlap = "exact"

	// OverlapPartial: one is an ancestor directory of the other, or a
	// wildcard prefix of one matches the other.
	OverlapPartial Overlap = "partial"

	// OverlapDisjoint: neither of the above.
	OverlapDisjoint Overlap = "disjoint"
)

// ClassifyOverlap classifies two scopes into exactly one of exact,
// partial, or disjoint. Used to surface conflicts between two
// differently-worded but overlapping claims.
func ClassifyOverlap(a, b string) Overlap {
	pa, wa := normalizeScope(a)
	pb, wb := normalizeScope(b)

	if pa == pb {
		if wa == wb {
			return OverlapExact
		}
		// "src/lib" vs "src/lib/*": same base, only one is a wildcard
		// claim, so they cover each other without being identical.
		return OverlapPartial
	}

	if isAncestor(pa, pb) || isAncestor(pb, pa) {
		return OverlapPartial
	}

	// Bare-prefix wildcards like "src/li*" match beyond directory
	// boundaries.
	if wa && strings.HasPrefix(pb, pa) {
		return OverlapPartial
	}
	if wb && strings.HasPrefix(pa, pb) {
		return OverlapPartial
	}

	return OverlapDisjoint
}

// normalizeScope canonicalizes a scope string: forward slashes, case
// folded, no trailing separators, wildcard suffixes stripped. The
// returned flag reports whether the scope was a wildcard/prefix claim.
func normalizeScope(scope string) (string, bool) {
	s := strings.TrimSpace(scope)
	s = filepath.ToSlash(s)
	s = strings.ToLower(s)

	wildcard := false
	switch {
	case strings.HasSuffix(s, "/**"):
		s = strings.TrimSuffix(s, "/**")
		wildcard = true
	case strings.HasSuffix(s, "/*"):
		s = strings.TrimSuffix(s, "/*")
		wildcard = true
	case strings.HasSuffix(s, "*"):
		s = strings.TrimSuffix(s, "*")
		wildcard = true
	}

	for len(s) > 1 && strings.HasSuffix(s, "/") {
		s = s[:len(s)-1]
	}

	if s != "" {
		s = path.Clean(s)
		if s == "." {
			s = ""
		}
	}

	return s, wildcard
}

// isAncestor reports whether a is an ancestor directory of b.
func isAncestor(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(b, a+"/")
}
