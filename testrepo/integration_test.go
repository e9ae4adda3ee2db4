package testrepo

import (
	"context"
	"testing"

	"github.com/antgroup/vulnimpact/impact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) *Repository {
	t.Helper()
	r, err := New(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Clean() })
	return r
}

func analyzeAndGetMessages(t *testing.T, r *Repository, cherrypicks bool) []string {
	t.Helper()
	introduced, fixed, lastAffected, limit := r.Ranges()
	a := impact.NewAnalyzer(cherrypicks)
	result, err := a.Analyze(context.Background(), r.Graph(), introduced, fixed, lastAffected, limit)
	require.NoError(t, err)

	byID := make(map[string]string)
	for message, rec := range r.commits {
		byID[string(rec.id)] = message
	}
	messages := make([]string, 0, len(result.Commits))
	for _, c := range result.Commits {
		messages = append(messages, byID[string(c)])
	}
	return messages
}

func TestIntegrationLinearIntroducedFixed(t *testing.T) {
	r := newHarness(t)
	_, err := r.AddCommit("B", nil, EventIntroduced)
	require.NoError(t, err)
	_, err = r.AddCommit("C", nil, EventNone)
	require.NoError(t, err)
	_, err = r.AddCommit("D", nil, EventFixed)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"B", "C"}, analyzeAndGetMessages(t, r, false))
}

func TestIntegrationBranchPropagation(t *testing.T) {
	r := newHarness(t)
	_, err := r.AddCommit("B", nil, EventIntroduced)
	require.NoError(t, err)
	_, err = r.AddCommit("C", nil, EventNone)
	require.NoError(t, err)
	_, err = r.AddCommit("D", []string{"C"}, EventFixed)
	require.NoError(t, err)
	_, err = r.AddCommit("E", []string{"C"}, EventNone)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"B", "C", "E"}, analyzeAndGetMessages(t, r, false))
}

func TestIntegrationMergeHealsOnlyMergedSide(t *testing.T) {
	r := newHarness(t)
	_, err := r.AddCommit("B", []string{"A"}, EventIntroduced)
	require.NoError(t, err)
	_, err = r.AddCommit("C", []string{"A"}, EventNone)
	require.NoError(t, err)
	_, err = r.AddCommit("D", []string{"B", "C"}, EventNone)
	require.NoError(t, err)
	_, err = r.AddCommit("E", nil, EventFixed)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"B", "D"}, analyzeAndGetMessages(t, r, false))
}

func TestIntegrationReintroductionAfterFix(t *testing.T) {
	r := newHarness(t)
	_, err := r.AddCommit("B", nil, EventIntroduced)
	require.NoError(t, err)
	_, err = r.AddCommit("C", nil, EventFixed)
	require.NoError(t, err)
	_, err = r.AddCommit("D", nil, EventIntroduced)
	require.NoError(t, err)
	_, err = r.AddCommit("E", nil, EventFixed)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"B", "D"}, analyzeAndGetMessages(t, r, false))
}

func TestIntegrationAcrossRemoteBranch(t *testing.T) {
	r := newHarness(t)
	_, err := r.AddCommit("B", nil, EventIntroduced)
	require.NoError(t, err)
	require.NoError(t, r.CreateBranch("feature", "B"))
	_, err = r.AddCommit("C", nil, EventFixed)
	require.NoError(t, err)
	require.NoError(t, r.Checkout("feature"))
	_, err = r.AddCommit("F", []string{"B"}, EventNone)
	require.NoError(t, err)
	require.NoError(t, r.CreateRemoteBranch())

	assert.ElementsMatch(t, []string{"B", "F"}, analyzeAndGetMessages(t, r, false))
}
