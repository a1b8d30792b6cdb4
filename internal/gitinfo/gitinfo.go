// Package gitinfo reads the project's git history for progress notes and
// diagnostics.
package gitinfo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// DetachedHead is returned by Branch when HEAD is not on a branch.
const DetachedHead = "detached"

// Commit is the part of a commit progress notes show.
type Commit struct {
	Hash    string
	Subject string
	When    time.Time
	Files   []string
}

// Short returns "abc1234 subject".
func (c Commit) Short() string {
	h := c.Hash
	if len(h) > 7 {
		h = h[:7]
	}
	return h + " " + c.Subject
}

func open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, dir)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

// IsRepo reports whether dir is inside a git repository.
func IsRepo(dir string) bool {
	_, err := open(dir)
	return err == nil
}

// Branch returns the current branch, or DetachedHead. A repository with
// no commits yet reports the branch HEAD points to.
func Branch(dir string) (string, error) {
	repo, err := open(dir)
	if err != nil {
		return "", err
	}
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short(), nil
	}
	return DetachedHead, nil
}

// CommitsSince returns commits reachable from HEAD made at or after since,
// newest first, at most limit (0 means no limit). An empty repository
// yields no commits.
func CommitsSince(dir string, since time.Time, limit int) ([]Commit, error) {
	repo, err := open(dir)
	if err != nil {
		return nil, err
	}
	if _, err := repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	opts := &git.LogOptions{Order: git.LogOrderCommitterTime}
	if !since.IsZero() {
		opts.Since = &since
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Subject: subject(c.Message),
			When:    c.Author.When,
			Files:   changedFiles(c),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return commits, nil
}

func subject(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return strings.TrimSpace(line)
}

// changedFiles lists the paths a commit touched. Stats failures (e.g.
// shallow history) yield nil.
func changedFiles(c *object.Commit) []string {
	stats, err := c.Stats()
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(stats))
	for _, s := range stats {
		files = append(files, s.Name)
	}
	return files
}

// Summaries renders commits as "abc1234 subject" lines.
func Summaries(commits []Commit) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.Short())
	}
	return out
}

// FilesChanged returns the sorted union of files touched by commits.
func FilesChanged(commits []Commit) []string {
	seen := map[string]bool{}
	var files []string
	for _, c := range commits {
		for _, f := range c.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

// Dirty reports whether the worktree has uncommitted changes.
func Dirty(dir string) (bool, error) {
	repo, err := open(dir)
	if err != nil {
		return false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}
	return !status.IsClean(), nil
}
