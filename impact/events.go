package impact

import (
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
)

// Kind is the closed set of event-commit labels. It is a tagged-variant
// type, not a string (Design Note in spec.md §9). The Go compiler does not
// check switches over it for exhaustiveness: a sixth kind falls into the
// default branch of Kind.String and of the switch in resolve.
type Kind int

const (
	// KindNone marks a commit carrying no vulnerability event.
	KindNone Kind = iota
	// KindIntroduced marks the commit the vulnerability first appears in.
	KindIntroduced
	// KindFixed marks the commit where the vulnerability ceases; it and its
	// descendants are unaffected, except that a merge stays affected while
	// another parent line still carries the vulnerability.
	KindFixed
	// KindLastAffected marks the last still-vulnerable commit on a line;
	// the commit itself is affected, its strict descendants are not.
	KindLastAffected
	// KindLimit marks a hard boundary: it does not heal a merge whose other
	// parent line is still vulnerable. resolve treats it exactly like
	// KindFixed.
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIntroduced:
		return "introduced"
	case KindFixed:
		return "fixed"
	case KindLastAffected:
		return "last_affected"
	case KindLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// EventSets holds the four normalized, disjoint event-commit sets a
// Classify call produces.
type EventSets struct {
	Introduced   []plumbing.CommitID
	Fixed        []plumbing.CommitID
	LastAffected []plumbing.CommitID
	Limit        []plumbing.CommitID
}

// Classify validates the four input lists against graph and returns the
// normalized EventSets. Every commit ID must exist in the graph
// (plumbing.NewUnknownCommit otherwise) and a commit ID may not appear in
// more than one list (plumbing.NewConflictingEvent otherwise).
func Classify(ctx context.Context, graph CommitGraph, introduced, fixed, lastAffected, limit []plumbing.CommitID) (*EventSets, error) {
	seen := make(map[plumbing.CommitID]Kind, len(introduced)+len(fixed)+len(lastAffected)+len(limit))

	assign := func(ids []plumbing.CommitID, kind Kind) error {
		for _, id := range ids {
			if _, err := graph.Parents(ctx, id); err != nil {
				return err
			}
			if _, ok := seen[id]; ok {
				return plumbing.NewConflictingEvent(id)
			}
			seen[id] = kind
		}
		return nil
	}

	if err := assign(introduced, KindIntroduced); err != nil {
		return nil, err
	}
	if err := assign(fixed, KindFixed); err != nil {
		return nil, err
	}
	if err := assign(lastAffected, KindLastAffected); err != nil {
		return nil, err
	}
	if err := assign(limit, KindLimit); err != nil {
		return nil, err
	}

	return &EventSets{
		Introduced:   introduced,
		Fixed:        fixed,
		LastAffected: lastAffected,
		Limit:        limit,
	}, nil
}
