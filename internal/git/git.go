// Package git locates the repository a marketplace lives in.
package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotRepository indicates dir is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")
	// ErrGitNotFound indicates no git binary is on PATH.
	ErrGitNotFound = errors.New("git not found")
)

// TopLevel returns the root of the work tree containing dir, as reported by
// "git rev-parse --show-toplevel".
//
// It returns ErrNotRepository only when git reports dir is outside a work
// tree. A missing dir, a cancelled ctx and a missing git binary
// (ErrGitNotFound) are reported as such.
func TopLevel(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", errors.Wrapf(err, "resolving %s", dir)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return "", errors.Mark(errors.Wrap(err, "looking up git"), ErrGitNotFound)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel")
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrapf(ctxErr, "git rev-parse in %s", dir)
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return "", errors.Mark(errors.Newf("git rev-parse in %s: %s", dir, msg), ErrNotRepository)
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.Newf("git rev-parse in %s: %s", dir, msg)
	}

	top := strings.TrimSpace(stdout.String())
	if top == "" {
		return "", errors.Newf("git rev-parse in %s: empty output", dir)
	}
	return top, nil
}
