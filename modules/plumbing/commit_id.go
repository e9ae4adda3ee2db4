// Package plumbing holds the small, dependency-free types shared by the
// gitrepo, impact and testrepo packages: commit identifiers and the
// analyzer's error taxonomy.
package plumbing

import (
	"sort"
	"strings"
)

// CommitID is an opaque commit identifier: a git object hash in lowercase
// hex. Repositories created with --object-format=sha1 use 40 characters;
// sha256 repositories use 64. The analyzer never interprets the bytes, so a
// string type is enough, there is no fixed digest size to enforce.
type CommitID string

// IsZero reports whether id is the empty identifier.
func (id CommitID) IsZero() bool {
	return id == ""
}

// String implements fmt.Stringer.
func (id CommitID) String() string {
	return string(id)
}

// Short returns a short, display-only prefix of id (git's usual abbreviation
// length). It is never used for comparison or lookups.
func (id CommitID) Short() string {
	s := string(id)
	if len(s) <= 7 {
		return s
	}
	return s[:7]
}

// ValidHex reports whether s looks like a hex object hash of a length git
// actually produces (40 for sha1, 64 for sha256).
func ValidHex(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f')
	}) == -1
}

// CommitIDSlice attaches sort.Interface to []CommitID for deterministic
// iteration order wherever a result is otherwise an unordered set.
type CommitIDSlice []CommitID

func (s CommitIDSlice) Len() int           { return len(s) }
func (s CommitIDSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s CommitIDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// SortCommitIDs sorts ids lexicographically in place.
func SortCommitIDs(ids []CommitID) {
	sort.Sort(CommitIDSlice(ids))
}
