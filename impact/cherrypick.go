package impact

import (
	"bytes"
	"context"

	"github.com/antgroup/vulnimpact/modules/plumbing"
	"github.com/sirupsen/logrus"
)

// detectCherryPicks scans the whole graph for commits outside v0 that carry
// the same content fingerprint as some commit inside v0, the same change
// backported onto a line the resolver's ancestry walk never reached. Merge
// commits are never candidates on either side: their fingerprint conflates
// two parents' trees and is not a meaningful equality test (spec.md §4.4).
//
// A commit explicitly tagged fixed or limit is never promoted by fingerprint
// match alone. The caller asserted it is clean, and a coincidental content
// match (a revert that happens to reintroduce identical bytes, for example)
// should not override that assertion.
func detectCherryPicks(ctx context.Context, graph CommitGraph, all []plumbing.CommitID, v0 map[plumbing.CommitID]struct{}, kindOf map[plumbing.CommitID]Kind) (map[plumbing.CommitID]struct{}, error) {
	fingerprints := make(map[plumbing.CommitID][]byte, len(v0))
	for c := range v0 {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}
		fp, err := graph.Fingerprint(ctx, c)
		if err != nil {
			if plumbing.IsFingerprintUnavailable(err) {
				continue
			}
			return nil, err
		}
		fingerprints[c] = fp
	}

	if len(fingerprints) == 0 {
		return map[plumbing.CommitID]struct{}{}, nil
	}

	detected := make(map[plumbing.CommitID]struct{})
	for _, c := range all {
		select {
		case <-ctx.Done():
			return nil, plumbing.ErrCancelled
		default:
		}
		if _, ok := v0[c]; ok {
			continue
		}
		if kindOf[c] == KindFixed || kindOf[c] == KindLimit {
			continue
		}
		fp, err := graph.Fingerprint(ctx, c)
		if err != nil {
			if plumbing.IsFingerprintUnavailable(err) {
				continue
			}
			return nil, err
		}
		for _, seedFP := range fingerprints {
			if bytes.Equal(fp, seedFP) {
				detected[c] = struct{}{}
				logrus.WithField("commit", c).Debug("cherrypick: content match outside resolved range")
				break
			}
		}
	}

	return detected, nil
}
