package impact

import (
	"context"
	"testing"

	"github.com/antgroup/vulnimpact/modules/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ss ...string) []plumbing.CommitID {
	out := make([]plumbing.CommitID, len(ss))
	for i, s := range ss {
		out[i] = plumbing.CommitID(s)
	}
	return out
}

func assertCommits(t *testing.T, result *AffectedResult, want ...string) {
	t.Helper()
	got := make([]string, len(result.Commits))
	for i, c := range result.Commits {
		got[i] = string(c)
	}
	assert.ElementsMatch(t, want, got)
}

// 1. Linear introduced+fixed.
func TestLinearIntroducedFixed(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("D"), nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "C")
}

// 2. Linear introduced+limit.
func TestLinearIntroducedLimit(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), nil, nil, ids("D"))
	require.NoError(t, err)
	assertCommits(t, result, "B", "C")
}

// 3. Linear introduced+last_affected.
func TestLinearIntroducedLastAffected(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), nil, ids("D"), nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "C", "D")
}

// 4. Limit then fixed on the same line: the limit terminates the line
// before the fix is ever reached, so the fix contributes nothing new.
func TestLinearLimitThenFixed(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("D"), nil, ids("C"))
	require.NoError(t, err)
	assertCommits(t, result, "B")
}

// 5. Branch propagation: a fix on the main line does not touch a sibling
// branch off the same introduced commit.
func TestBranchPropagation(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")
	g.addCommit("E", "C")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("D"), nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "C", "E")
}

// 6. Merge heals only the merged side: a merge stays affected while any
// parent line is still unfixed, even once the other parent is clean.
func TestMergeHealsOnlyMergedSide(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "A")
	g.addCommit("D", "B", "C")
	g.addCommit("E", "D")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("E"), nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "D")
}

// 7. Re-introduction after a fix: a later introduced commit re-asserts
// vulnerability on a line a prior fix had already closed.
func TestReintroductionAfterFix(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")
	g.addCommit("E", "D")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B", "D"), ids("C", "E"), nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "D")
}

// 8. A fixed commit merged in as one parent of a merge does not by itself
// heal the merge while the other parent line remains unfixed; the merge
// only clears once every parent line is independently clean.
func TestFixMergedFromCleanSideDoesNotHealUnfixedSibling(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "A")
	g.addCommit("D", "B", "C")
	g.addCommit("E", "D")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("C", "E"), nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "D")
}

func TestClassifyRejectsUnknownCommit(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")

	_, err := Classify(context.Background(), g, ids("missing"), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, plumbing.IsUnknownCommit(err))
}

func TestClassifyRejectsConflictingEvent(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")

	_, err := Classify(context.Background(), g, ids("B"), ids("B"), nil, nil)
	require.Error(t, err)
	assert.True(t, plumbing.IsConflictingEvent(err))
}

func TestAnalyzeNoIntroducedYieldsEmpty(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Commits)
	assert.Empty(t, result.Ranges)
}

func TestAnalyzeIsCancellable(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnalyzer(false)
	_, err := a.Analyze(ctx, g, ids("B"), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, plumbing.IsCancelled(err))
}

// Idempotence: running Analyze twice on the same inputs yields the same set.
func TestAnalyzeIsIdempotent(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("C", "B")
	g.addCommit("D", "C")

	a := NewAnalyzer(false)
	first, err := a.Analyze(context.Background(), g, ids("B"), ids("D"), nil, nil)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), g, ids("B"), ids("D"), nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Commits, second.Commits)
}

// No false positives: a commit unreachable from any introduced commit is
// never affected, regardless of other event tags elsewhere in the graph.
func TestUnreachableCommitNeverAffected(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.addCommit("X")
	g.addCommit("Y", "X")

	a := NewAnalyzer(false)
	result, err := a.Analyze(context.Background(), g, ids("B"), nil, nil, nil)
	require.NoError(t, err)
	for _, c := range result.Commits {
		assert.NotEqual(t, plumbing.CommitID("X"), c)
		assert.NotEqual(t, plumbing.CommitID("Y"), c)
	}
}

// Cherry-pick detection pulls in a content-identical commit on an unrelated
// line once enabled, and leaves it out otherwise.
func TestCherryPickDetection(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.setFingerprint("B", []byte("patch-x"))
	g.addCommit("X")
	g.addCommit("Y", "X")
	g.setFingerprint("Y", []byte("patch-x"))

	without := NewAnalyzer(false)
	result, err := without.Analyze(context.Background(), g, ids("B"), nil, nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B")

	with := NewAnalyzer(true)
	result, err = with.Analyze(context.Background(), g, ids("B"), nil, nil, nil)
	require.NoError(t, err)
	assertCommits(t, result, "B", "Y")
}

func TestCherryPickSkipsMergesAndTaggedClean(t *testing.T) {
	g := newMemoryGraph()
	g.addCommit("A")
	g.addCommit("B", "A")
	g.setFingerprint("B", []byte("patch-x"))
	g.addCommit("X")
	g.addCommit("Y", "X")
	g.setFingerprint("Y", []byte("patch-x"))
	g.addCommit("Z", "Y") // fixed, same fingerprint reused defensively
	g.setFingerprint("Z", []byte("patch-x"))
	g.addCommit("M", "Y", "X") // merge, same fingerprint set but never a candidate
	g.setFingerprint("M", []byte("patch-x"))

	a := NewAnalyzer(true)
	result, err := a.Analyze(context.Background(), g, ids("B"), ids("Z"), nil, nil)
	require.NoError(t, err)
	// Z is tagged fixed and M is a merge, so both are excluded, but Y still matches.
	assertCommits(t, result, "B", "Y")
}
