// gitinfo.go reads Git metadata to stamp artifacts and version output.
package gitinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DirtySuffix is appended to the commit hash whenever the working tree
// differs from the committed revision.
const DirtySuffix = ".modified"

var (
	// ErrNotARepository reports that the target directory carries no Git metadata.
	ErrNotARepository = errors.New("not a git repository")
	// ErrHeadUnresolved reports a repository whose HEAD points at nothing,
	// typically a freshly initialized checkout with zero commits.
	ErrHeadUnresolved = errors.New("HEAD is unresolved")
)

// Stamp identifies the exact source snapshot a build was produced from.
type Stamp struct {
	Commit string
	Dirty  bool
}

// String renders the stamp as the version identifier embedded into published
// artifacts: the commit hash, plus DirtySuffix when the tree is modified.
func (s Stamp) String() string {
	if s.Dirty {
		return s.Commit + DirtySuffix
	}
	return s.Commit
}

// Head returns the stamp for the repository at root. It only reads repository
// metadata; identical on-disk state always yields an identical stamp.
func Head(ctx context.Context, root string) (Stamp, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	if _, stderr, err := runGit(ctx, root, "rev-parse", "--git-dir"); err != nil {
		if isNotARepository(stderr) {
			return Stamp{}, fmt.Errorf("%w: %s", ErrNotARepository, root)
		}
		return Stamp{}, gitError("rev-parse --git-dir", stderr, err)
	}
	out, stderr, err := runGit(ctx, root, "rev-parse", "--verify", "HEAD")
	if err != nil {
		if isUnbornHead(stderr) {
			return Stamp{}, fmt.Errorf("%w: repository at %s has no commits", ErrHeadUnresolved, root)
		}
		return Stamp{}, gitError("rev-parse HEAD", stderr, err)
	}
	commit := strings.TrimSpace(out)
	if commit == "" {
		return Stamp{}, fmt.Errorf("%w: repository at %s has no commits", ErrHeadUnresolved, root)
	}
	statusOut, stderr, err := runGit(ctx, root, "status", "--porcelain")
	if err != nil {
		return Stamp{}, gitError("status", stderr, err)
	}
	return Stamp{Commit: commit, Dirty: len(strings.TrimSpace(statusOut)) > 0}, nil
}

func runGit(ctx context.Context, root string, args ...string) (string, string, error) {
	full := append([]string{"-C", root}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func gitError(op, stderr string, err error) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("git %s: %s", op, msg)
	}
	return fmt.Errorf("git %s: %w", op, err)
}

func isNotARepository(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "not a git repository")
}

func isUnbornHead(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "needed a single revision") ||
		strings.Contains(lower, "unknown revision") ||
		strings.Contains(lower, "ambiguous argument 'head'")
}
