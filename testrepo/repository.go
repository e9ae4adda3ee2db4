// Package testrepo builds disposable, real on-disk git repositories for
// integration-testing the analyzer end to end, mirroring the role
// osv/test_tools/test_repository.py plays for the original Python
// implementation: every commit writes one uniquely-named file so two
// commits never collide on tree hash, and the harness remembers which
// message was tagged with which vulnerability event so a test can build its
// expected Analyze() inputs from names instead of raw hashes.
package testrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/vulnimpact/gitrepo"
	"github.com/antgroup/vulnimpact/impact"
	"github.com/antgroup/vulnimpact/internal/command"
	"github.com/antgroup/vulnimpact/modules/plumbing"
)

// Event is the vulnerability tag attached to a commit when it is created.
// It mirrors impact.Kind but lives here independently: a test harness has
// no business importing the analyzer's own vocabulary for what is just a
// bookkeeping label.
type Event int

const (
	EventNone Event = iota
	EventIntroduced
	EventFixed
	EventLastAffected
	EventLimit
)

type commitRecord struct {
	id    plumbing.CommitID
	event Event
}

// Repository is a disposable git repository plus the bookkeeping needed to
// translate human-readable commit messages into commit IDs and event sets.
type Repository struct {
	Dir     string
	ctx     context.Context
	commits map[string]*commitRecord // message -> record
	order   []string                 // messages in declaration order
}

// New creates a fresh repository under dir (which must not yet exist, or
// must be empty) and seeds it with one root commit named "A", matching the
// original harness's unconditional first commit.
func New(ctx context.Context, dir string) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Repository{Dir: dir, ctx: ctx, commits: make(map[string]*commitRecord)}
	if err := r.run("git", "init", "--quiet"); err != nil {
		return nil, err
	}
	if err := r.run("git", "config", "user.name", "test"); err != nil {
		return nil, err
	}
	if err := r.run("git", "config", "user.email", "test@example.com"); err != nil {
		return nil, err
	}
	if _, err := r.AddCommit("A", nil, EventNone); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) run(name string, args ...string) error {
	return command.New(r.ctx, command.RunOpts{Dir: r.Dir}, name, args...).Run()
}

func (r *Repository) oneLine(name string, args ...string) (string, error) {
	return command.New(r.ctx, command.RunOpts{Dir: r.Dir}, name, args...).OneLine()
}

// AddCommit writes a uniquely-named file, commits it with message, and
// records it under event. A nil parents list appends linearly onto whatever
// HEAD currently is; a single entry detaches HEAD onto that commit first;
// two entries detach onto parents[0] and merge parents[1] in, producing a
// merge commit directly. Octopus merges (more than two parents) are not
// supported.
func (r *Repository) AddCommit(message string, parents []string, event Event) (plumbing.CommitID, error) {
	if _, exists := r.commits[message]; exists {
		return "", fmt.Errorf("testrepo: commit message %q already used", message)
	}

	switch len(parents) {
	case 0:
		// append linearly onto whatever HEAD already is
	case 1:
		if err := r.checkoutCommit(parents[0]); err != nil {
			return "", err
		}
	case 2:
		if err := r.checkoutCommit(parents[0]); err != nil {
			return "", err
		}
		if err := r.mergeCommit(parents[1], message); err != nil {
			return "", err
		}
		return r.record(message, event)
	default:
		return "", fmt.Errorf("testrepo: octopus merges (%d parents) are not supported", len(parents))
	}

	filename := filepath.Join(r.Dir, fmt.Sprintf("file-%s", message))
	if err := os.WriteFile(filename, []byte(message), 0o644); err != nil {
		return "", err
	}
	if err := r.run("git", "add", "-A"); err != nil {
		return "", err
	}
	if err := r.run("git", "commit", "--quiet", "--no-gpg-sign", "-m", message); err != nil {
		return "", err
	}
	return r.record(message, event)
}

func (r *Repository) record(message string, event Event) (plumbing.CommitID, error) {
	hex, err := r.oneLine("git", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	id := plumbing.CommitID(hex)
	r.commits[message] = &commitRecord{id: id, event: event}
	r.order = append(r.order, message)
	return id, nil
}

// checkoutCommit detaches HEAD onto the commit recorded for message. If no
// commit is recorded under message, message itself is passed to git
// checkout unchanged (so a raw commit ID or ref name also works).
func (r *Repository) checkoutCommit(message string) error {
	target := message
	if rec, ok := r.commits[message]; ok {
		target = string(rec.id)
	}
	return r.run("git", "checkout", "--quiet", "--detach", target)
}

func (r *Repository) mergeCommit(message, mergeMessage string) error {
	target := message
	if rec, ok := r.commits[message]; ok {
		target = string(rec.id)
	}
	return r.run("git", "merge", "--quiet", "--no-ff", "--no-gpg-sign", "-m", mergeMessage, target)
}

// CreateBranch creates a local branch named name pointed at the commit
// recorded for message, without switching to it.
func (r *Repository) CreateBranch(name, message string) error {
	rec, ok := r.commits[message]
	if !ok {
		return fmt.Errorf("testrepo: no commit named %q", message)
	}
	return r.run("git", "branch", name, string(rec.id))
}

// Checkout switches the working tree to branch.
func (r *Repository) Checkout(branch string) error {
	return r.run("git", "checkout", "--quiet", branch)
}

// CreateRemoteBranch mirrors every local branch (not HEAD) under
// refs/remotes/origin/*, the way the original harness's
// create_remote_branch does, so AllCommits exercises the
// "--all" ref expansion the same as a real clone would.
func (r *Repository) CreateRemoteBranch() error {
	lines, err := command.New(r.ctx, command.RunOpts{Dir: r.Dir}, "git", "for-each-ref", "--format=%(refname)", "refs/heads").Lines()
	if err != nil {
		return err
	}
	for _, ref := range lines {
		name := strings.TrimPrefix(ref, "refs/heads/")
		if err := r.run("git", "update-ref", "refs/remotes/origin/"+name, ref); err != nil {
			return err
		}
	}
	return nil
}

// CommitID returns the commit ID recorded for message.
func (r *Repository) CommitID(message string) (plumbing.CommitID, error) {
	rec, ok := r.commits[message]
	if !ok {
		return "", fmt.Errorf("testrepo: no commit named %q", message)
	}
	return rec.id, nil
}

// CommitIDs resolves every message in messages to its commit ID.
func (r *Repository) CommitIDs(messages ...string) ([]plumbing.CommitID, error) {
	out := make([]plumbing.CommitID, 0, len(messages))
	for _, m := range messages {
		id, err := r.CommitID(m)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Ranges returns the four event sets accumulated across every AddCommit
// call, in declaration order, mirroring CommitsInfo.get_ranges in the
// original harness.
func (r *Repository) Ranges() (introduced, fixed, lastAffected, limit []plumbing.CommitID) {
	for _, message := range r.order {
		rec := r.commits[message]
		switch rec.event {
		case EventIntroduced:
			introduced = append(introduced, rec.id)
		case EventFixed:
			fixed = append(fixed, rec.id)
		case EventLastAffected:
			lastAffected = append(lastAffected, rec.id)
		case EventLimit:
			limit = append(limit, rec.id)
		case EventNone:
		}
	}
	return
}

// Graph returns an impact.CommitGraph backed by this repository's real git
// directory, for tests that want to exercise the analyzer against the
// gitrepo adapter rather than memoryGraph.
func (r *Repository) Graph() impact.CommitGraph {
	return gitrepo.New(r.Dir)
}

// Clean removes the repository's directory from disk.
func (r *Repository) Clean() error {
	return os.RemoveAll(r.Dir)
}
