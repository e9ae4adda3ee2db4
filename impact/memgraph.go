package impact

import (
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
)

// memoryGraph is a CommitGraph built directly from a parent map, with no
// backing repository. It exists for this package's own unit tests, the
// teacher's commit-walker tests use the same shape of fixture (MockBackend
// in modules/zeta/object/commit_walker_test.go): add commits, add parent
// edges, then exercise the real algorithm against the fixture instead of a
// hand-rolled mock of the algorithm itself.
type memoryGraph struct {
	order       []plumbing.CommitID
	parents     map[plumbing.CommitID][]plumbing.CommitID
	merges      map[plumbing.CommitID]bool
	fingerprint map[plumbing.CommitID][]byte
}

// newMemoryGraph returns an empty in-memory commit graph.
func newMemoryGraph() *memoryGraph {
	return &memoryGraph{
		parents:     make(map[plumbing.CommitID][]plumbing.CommitID),
		merges:      make(map[plumbing.CommitID]bool),
		fingerprint: make(map[plumbing.CommitID][]byte),
	}
}

// addCommit registers c with the given parents. Declaration order is
// preserved in AllCommits so tests reading expected output stay readable.
func (g *memoryGraph) addCommit(c plumbing.CommitID, parents ...plumbing.CommitID) {
	if _, exists := g.parents[c]; !exists {
		g.order = append(g.order, c)
	}
	g.parents[c] = parents
	if len(parents) > 1 {
		g.merges[c] = true
	}
}

// setFingerprint assigns c a content fingerprint for cherry-pick tests.
func (g *memoryGraph) setFingerprint(c plumbing.CommitID, fp []byte) {
	g.fingerprint[c] = fp
}

func (g *memoryGraph) Parents(_ context.Context, c plumbing.CommitID) ([]plumbing.CommitID, error) {
	parents, ok := g.parents[c]
	if !ok {
		return nil, plumbing.NewUnknownCommit(c)
	}
	return parents, nil
}

func (g *memoryGraph) AllCommits(_ context.Context) ([]plumbing.CommitID, error) {
	return g.order, nil
}

func (g *memoryGraph) ReachableFrom(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	idx, err := BuildChildIndex(ctx, g)
	if err != nil {
		return nil, err
	}
	return idx.ReachableFrom(ctx, roots)
}

func (g *memoryGraph) DescendantsOf(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	idx, err := BuildChildIndex(ctx, g)
	if err != nil {
		return nil, err
	}
	return idx.DescendantsOf(ctx, roots)
}

func (g *memoryGraph) Fingerprint(_ context.Context, c plumbing.CommitID) ([]byte, error) {
	if g.merges[c] {
		return nil, plumbing.NewFingerprintUnavailable(c)
	}
	fp, ok := g.fingerprint[c]
	if !ok {
		return nil, plumbing.NewFingerprintUnavailable(c)
	}
	return fp, nil
}
