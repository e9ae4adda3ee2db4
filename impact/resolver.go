package impact

import (
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/sirupsen/logrus"
)

// resolve computes V, the set of affected commits, with a single
// topological pass over U, the union of the descendant cones of every
// introduced commit, carrying one propagated bit per commit: whether the
// vulnerability reaches this commit along at least one ancestry line that
// was not blocked by a terminator. This is the "single topological pass
// carrying ... bits per commit" variant spec.md §4.3 recommends over the
// naive per-seed reachability approach, and the only form of the algorithm
// that upholds spec.md §8's re-introduction scenario: a later *introduced*
// commit re-asserts vulnerability on a line a prior *fixed*/*limit* had
// already closed.
//
// For a commit c with event kind K and forwardFromParents = OR over c's
// parents of their propagated bit:
//
//	Introduced    -> c is affected; the bit propagates true to children
//	Fixed         -> c is unaffected; the bit propagates false
//	Limit         -> c is unaffected; the bit propagates false
//	LastAffected  -> c is affected, but the bit propagates false: strict
//	                 descendants are unaffected unless a later Introduced
//	                 commit re-asserts the bit on their line
//	None          -> c's affectedness and propagated bit both equal
//	                 forwardFromParents
//
// At a merge, forwardFromParents is the logical OR of every parent's
// propagated bit, so a merge remains affected as long as any parent line is
// still vulnerable. A fix or limit on one parent does not heal a merge
// until every other parent line is independently clean too (spec.md §4.3
// step 4: "the fix from one branch does not heal a still-vulnerable sibling
// branch until that branch also receives a fix").
func resolve(ctx context.Context, idx *childIndex, events *EventSets) (map[plumbing.CommitID]struct{}, error) {
	kindOf := buildKindIndex(events)

	if len(events.Introduced) == 0 {
		return map[plumbing.CommitID]struct{}{}, nil
	}

	u, err := idx.DescendantsOf(ctx, events.Introduced)
	if err != nil {
		return nil, err
	}

	inDegree := make(map[plumbing.CommitID]int, len(u))
	for c := range u {
		deg := 0
		for _, p := range idx.parents[c] {
			if _, ok := u[p]; ok {
				deg++
			}
		}
		inDegree[c] = deg
	}

	ready := arraystack.New()
	for c := range u {
		if inDegree[c] == 0 {
			ready.Push(c)
		}
	}

	forward := make(map[plumbing.CommitID]bool, len(u))
	vulnerable := make(map[plumbing.CommitID]struct{})
	processed := 0

	for !ready.Empty() {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}

		v, _ := ready.Pop()
		c := v.(plumbing.CommitID)
		processed++

		fromParents := false
		for _, p := range idx.parents[c] {
			if forward[p] {
				fromParents = true
				break
			}
		}

		var affected, propagate bool
		switch kindOf[c] {
		case KindIntroduced:
			affected, propagate = true, true
		case KindFixed:
			affected, propagate = false, false
		case KindLimit:
			affected, propagate = false, false
		case KindLastAffected:
			affected, propagate = true, false
		default:
			affected, propagate = fromParents, fromParents
		}

		forward[c] = propagate
		if affected {
			vulnerable[c] = struct{}{}
		}

		logrus.WithFields(logrus.Fields{
			"commit":    c,
			"event":     kindOf[c].String(),
			"affected":  affected,
			"propagate": propagate,
		}).Debug("resolver: visited commit")

		for _, child := range idx.children[c] {
			if _, ok := u[child]; !ok {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				ready.Push(child)
			}
		}
	}

	if processed != len(u) {
		return nil, plumbing.NewCorruptGraph("cycle detected while resolving %d of %d candidate commits", processed, len(u))
	}

	return vulnerable, nil
}

// buildKindIndex flattens the four normalized event sets into a single
// per-commit lookup. Classify already guarantees the sets are disjoint, so
// every commit maps to at most one non-None kind.
func buildKindIndex(events *EventSets) map[plumbing.CommitID]Kind {
	kindOf := make(map[plumbing.CommitID]Kind,
		len(events.Introduced)+len(events.Fixed)+len(events.LastAffected)+len(events.Limit))
	for _, c := range events.Introduced {
		kindOf[c] = KindIntroduced
	}
	for _, c := range events.Fixed {
		kindOf[c] = KindFixed
	}
	for _, c := range events.LastAffected {
		kindOf[c] = KindLastAffected
	}
	for _, c := range events.Limit {
		kindOf[c] = KindLimit
	}
	return kindOf
}
