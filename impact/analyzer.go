package impact

import (
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
	"github.com/sirupsen/logrus"
)

// Analyzer runs the full vulnerability impact pipeline (classify, resolve,
// optionally detect cherry-picks, compose) against a CommitGraph. It holds
// no per-call state: one Analyzer is built once (typically from
// AnalyzerConfig) and its Analyze method is safe to call repeatedly and
// concurrently, each call operating on its own graph/event inputs.
type Analyzer struct {
	// DetectCherrypicks enables the content-fingerprint scan of §4.4. It is
	// off by default: the scan is O(V) Fingerprint calls on top of the
	// O(V+E) resolver pass, and callers working against a real git
	// repository may prefer to skip it for a quick, approximate answer.
	DetectCherrypicks bool
}

// NewAnalyzer returns an Analyzer with detectCherrypicks as its fixed,
// immutable cherry-pick setting.
func NewAnalyzer(detectCherrypicks bool) *Analyzer {
	return &Analyzer{DetectCherrypicks: detectCherrypicks}
}

// Analyze classifies the four event-commit lists against graph, resolves
// the affected commit set, optionally folds in cherry-pick detections, and
// composes the result. Every step checks ctx between passes; a cancelled
// context yields plumbing.ErrCancelled with no partial result.
func (a *Analyzer) Analyze(ctx context.Context, graph CommitGraph, introduced, fixed, lastAffected, limit []plumbing.CommitID) (*AffectedResult, error) {
	log := logrus.WithFields(logrus.Fields{
		"introduced":     len(introduced),
		"fixed":          len(fixed),
		"last_affected":  len(lastAffected),
		"limit":          len(limit),
		"cherry_picking": a.DetectCherrypicks,
	})
	log.Debug("analyzer: starting")

	events, err := Classify(ctx, graph, introduced, fixed, lastAffected, limit)
	if err != nil {
		return nil, err
	}

	idx, err := BuildChildIndex(ctx, graph)
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	v0, err := resolve(ctx, idx, events)
	if err != nil {
		return nil, err
	}
	log.WithField("resolved", len(v0)).Debug("analyzer: resolver pass complete")

	affected := v0
	if a.DetectCherrypicks {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		all, err := graph.AllCommits(ctx)
		if err != nil {
			return nil, err
		}
		kindOf := buildKindIndex(events)
		picked, err := detectCherryPicks(ctx, graph, all, v0, kindOf)
		if err != nil {
			return nil, err
		}
		if len(picked) > 0 {
			affected = make(map[plumbing.CommitID]struct{}, len(v0)+len(picked))
			for c := range v0 {
				affected[c] = struct{}{}
			}
			for c := range picked {
				affected[c] = struct{}{}
			}
		}
		log.WithField("cherry_picked", len(picked)).Debug("analyzer: cherry-pick detection complete")
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	result, err := compose(idx, affected)
	if err != nil {
		return nil, err
	}
	log.WithField("affected", len(result.Commits)).Debug("analyzer: done")
	return result, nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return plumbing.ErrCancelled
	default:
		return nil
	}
}
