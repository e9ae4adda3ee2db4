// Package impact implements the Repository Analyzer: given a commit graph
// and four event-commit sets (introduced, fixed, last_affected, limit) it
// computes the set of commits that carry a vulnerability.
package impact

import (
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
)

// CommitGraph is the read-only adapter an Analyzer walks. It is the Commit
// Graph View contract: a repository backed by real git (gitrepo.Repository)
// and an in-memory fixture built straight from a parent map (memoryGraph,
// used by this package's own tests) both implement it, so the resolver
// algorithm runs identically against either.
type CommitGraph interface {
	// Parents returns the direct parents of c, in declaration order. An
	// unknown commit returns plumbing.NewUnknownCommit(c).
	Parents(ctx context.Context, c plumbing.CommitID) ([]plumbing.CommitID, error)

	// AllCommits returns every commit reachable from any reference the
	// repository exposes: every local branch and every remote.
	AllCommits(ctx context.Context) ([]plumbing.CommitID, error)

	// ReachableFrom returns every commit reachable by following parent
	// edges from roots, inclusive of roots.
	ReachableFrom(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error)

	// DescendantsOf returns every commit that has any of roots in its
	// ancestry, inclusive of roots.
	DescendantsOf(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error)

	// Fingerprint returns a stable content identifier for c (a normalized
	// diff or tree hash), or plumbing.NewFingerprintUnavailable(c) if none
	// exists for this commit (merge commits may legitimately have none).
	Fingerprint(ctx context.Context, c plumbing.CommitID) ([]byte, error)
}

// childIndex is the parent relation inverted into a forward (child) index,
// built once per BuildChildIndex call and then owned by whoever asked for
// it. Never cached across Analyze calls, per the stateless-analyzer
// requirement.
type childIndex struct {
	children map[plumbing.CommitID][]plumbing.CommitID
	parents  map[plumbing.CommitID][]plumbing.CommitID
}

// BuildChildIndex walks every commit in the graph exactly once, recording
// its parents and inverting that relation into a child index. Both
// gitrepo.Repository and memoryGraph delegate ReachableFrom/DescendantsOf to
// this shared helper, so the traversal code path, including its
// dangling-parent detection, is identical for a real git repository and an
// in-memory test fixture. Cycles are not detected here; the topological
// passes in resolve and compose report them.
func BuildChildIndex(ctx context.Context, g CommitGraph) (*childIndex, error) {
	all, err := g.AllCommits(ctx)
	if err != nil {
		return nil, err
	}
	idx := &childIndex{
		children: make(map[plumbing.CommitID][]plumbing.CommitID, len(all)),
		parents:  make(map[plumbing.CommitID][]plumbing.CommitID, len(all)),
	}
	known := make(map[plumbing.CommitID]struct{}, len(all))
	for _, c := range all {
		known[c] = struct{}{}
	}
	for _, c := range all {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}
		parents, err := g.Parents(ctx, c)
		if err != nil {
			return nil, err
		}
		idx.parents[c] = parents
		for _, p := range parents {
			if _, ok := known[p]; !ok {
				return nil, plumbing.NewCorruptGraph("commit %s references parent %s which is not in the graph", c, p)
			}
			idx.children[p] = append(idx.children[p], c)
		}
	}
	return idx, nil
}

// ReachableFrom follows parent edges from roots (inclusive), visiting each
// commit once; a cycle ends the walk without an error. Exported so
// any CommitGraph implementation outside this package (gitrepo.Repository,
// in particular) can build a childIndex once via BuildChildIndex and reuse
// this traversal instead of reimplementing it.
func (idx *childIndex) ReachableFrom(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	visited := make(map[plumbing.CommitID]struct{})
	stack := append([]plumbing.CommitID(nil), roots...)
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[c]; ok {
			continue
		}
		visited[c] = struct{}{}
		parents, ok := idx.parents[c]
		if !ok {
			return nil, plumbing.NewUnknownCommit(c)
		}
		stack = append(stack, parents...)
	}
	return visited, nil
}

// DescendantsOf follows child edges from roots (inclusive).
func (idx *childIndex) DescendantsOf(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	visited := make(map[plumbing.CommitID]struct{})
	stack := append([]plumbing.CommitID(nil), roots...)
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[c]; ok {
			continue
		}
		if _, ok := idx.parents[c]; !ok {
			return nil, plumbing.NewUnknownCommit(c)
		}
		visited[c] = struct{}{}
		stack = append(stack, idx.children[c]...)
	}
	return visited, nil
}
