// Package gitrepo implements impact.CommitGraph against a real, on-disk git
// repository by shelling the system git binary, the same way the teacher's
// modules/git package reads commit data: no object-model parsing, just
// plumbing commands whose stable, scriptable output this package parses.
package gitrepo

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/antgroup/vulnimpact/impact"
	"github.com/antgroup/vulnimpact/internal/command"
	"github.com/antgroup/vulnimpact/modules/plumbing"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Repository is a CommitGraph backed by a git repository at Dir.
type Repository struct {
	Dir string
}

// New returns a Repository rooted at dir. It does not verify dir is a git
// repository; the first command run against it will surface that error.
func New(dir string) *Repository {
	return &Repository{Dir: dir}
}

func (r *Repository) opts() command.RunOpts {
	return command.RunOpts{Dir: r.Dir}
}

// Parents returns the direct parents of c via `git rev-list --parents --no-walk`.
func (r *Repository) Parents(ctx context.Context, c plumbing.CommitID) ([]plumbing.CommitID, error) {
	line, err := command.New(ctx, r.opts(), "git", "rev-list", "--parents", "--no-walk", string(c)).OneLine()
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "unknown revision") || strings.Contains(msg, "bad revision") || strings.Contains(msg, "bad object") {
			return nil, plumbing.NewUnknownCommit(c)
		}
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, plumbing.NewUnknownCommit(c)
	}
	parents := make([]plumbing.CommitID, 0, len(fields)-1)
	for _, f := range fields[1:] {
		parents = append(parents, plumbing.CommitID(f))
	}
	return parents, nil
}

// AllCommits returns every commit reachable from any local or remote-tracking
// ref, via `git rev-list --all`.
func (r *Repository) AllCommits(ctx context.Context) ([]plumbing.CommitID, error) {
	lines, err := command.New(ctx, r.opts(), "git", "rev-list", "--all", "--reverse").Lines()
	if err != nil {
		return nil, err
	}
	out := make([]plumbing.CommitID, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, plumbing.CommitID(l))
	}
	return out, nil
}

func (r *Repository) ReachableFrom(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	return r.walk(ctx, roots, false)
}

func (r *Repository) DescendantsOf(ctx context.Context, roots []plumbing.CommitID) (map[plumbing.CommitID]struct{}, error) {
	return r.walk(ctx, roots, true)
}

// walk builds the shared childIndex from impact.BuildChildIndex (the same
// helper memoryGraph uses), so a real repository and the in-memory test
// fixture run identical traversal code.
func (r *Repository) walk(ctx context.Context, roots []plumbing.CommitID, descendants bool) (map[plumbing.CommitID]struct{}, error) {
	idx, err := impact.BuildChildIndex(ctx, r)
	if err != nil {
		return nil, err
	}
	if descendants {
		return idx.DescendantsOf(ctx, roots)
	}
	return idx.ReachableFrom(ctx, roots)
}

// Fingerprint returns a normalized content identifier for c: the BLAKE3 hash
// of c's patch text against its sole parent, with the "index"/hash preamble
// lines stripped so the same logical change fingerprints identically
// regardless of which commit holds it. Merge commits and the root commit
// have none: a merge has no single parent to diff against, and the root
// commit has no parent at all, so there is no patch to fingerprint. This
// mirrors the teacher's own Hasher use in modules/plumbing/hash.go, adapted
// here to hash a diff instead of an object.
func (r *Repository) Fingerprint(ctx context.Context, c plumbing.CommitID) ([]byte, error) {
	parents, err := r.Parents(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(parents) != 1 {
		return nil, plumbing.NewFingerprintUnavailable(c)
	}

	args := []string{"diff-tree", "-p", "--no-color", "--no-commit-id", "-r", string(parents[0]), string(c)}

	raw, err := command.New(ctx, r.opts(), "git", args...).Output()
	if err != nil {
		logrus.WithError(err).WithField("commit", c).Debug("gitrepo: diff-tree failed, fingerprint unavailable")
		return nil, plumbing.NewFingerprintUnavailable(c)
	}

	normalized := normalizeDiff(raw)
	sum := blake3.Sum256(normalized)
	return sum[:], nil
}

// normalizeDiff strips lines that vary with object hashes but not with the
// actual content of the change (the "index abc123..def456" line git emits
// per file), so two commits applying the same textual patch on top of
// different trees fingerprint identically.
func normalizeDiff(raw []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if bytes.HasPrefix(line, []byte("index ")) {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}
