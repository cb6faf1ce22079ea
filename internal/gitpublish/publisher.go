// Package gitpublish commits a distribution directory and pushes it to the
// upstream of the current branch.
package gitpublish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goGit "github.com/go-git/go-git/v5"
	goGitConfig "github.com/go-git/go-git/v5/config"
	goGitPlumbing "github.com/go-git/go-git/v5/plumbing"
	goGitObject "github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	goGitHTTP "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/eugenenazirov/sitepublish/internal/preflight"
)

const (
	defaultRemote  = "origin"
	defaultTimeout = 2 * time.Minute
	messageLayout  = "15:04 2006-01-02"
)

// ErrNothingToCommit is reported when staging produced no changes. It is not
// fatal: the push still runs.
var ErrNothingToCommit = errors.New("nothing to commit")

// Publisher stages, commits and pushes a distribution directory.
type Publisher struct {
	repoDir string
	distDir string
	logger  *zap.Logger

	auth    transport.AuthMethod
	author  *goGitObject.Signature
	clock   func() time.Time
	timeout time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAuth sets HTTP basic credentials for the push. Empty values are ignored.
func WithAuth(username, token string) Option {
	return func(p *Publisher) {
		if token == "" {
			return
		}
		if username == "" {
			username = "git"
		}
		p.auth = &goGitHTTP.BasicAuth{Username: username, Password: token}
	}
}

// WithAuthor overrides the commit signature otherwise read from git config.
func WithAuthor(name, email string) Option {
	return func(p *Publisher) {
		if name == "" || email == "" {
			return
		}
		p.author = &goGitObject.Signature{Name: name, Email: email}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		p.clock = clock
	}
}

// WithTimeout bounds the whole stage/commit/push sequence.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New constructs a Publisher for the repository found at repoDir.
func New(repoDir, distDir string, logger *zap.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{
		repoDir: repoDir,
		distDir: distDir,
		logger:  logger,
		clock:   time.Now,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preflight checks that the distribution directory exists inside a git
// worktree.
func (p *Publisher) Preflight(_ context.Context) error {
	if err := preflight.Directory("distribution directory", p.distDir); err != nil {
		return err
	}
	_, _, err := p.open()
	return err
}

// Publish stages the distribution directory, commits it and pushes the
// current branch.
func (p *Publisher) Publish(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	repo, rel, err := p.open()
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("stage %s: %w", rel, err)
	}
	p.logger.Info("staged distribution", zap.String("path", rel))

	hash, err := p.commit(repo, wt)
	switch {
	case errors.Is(err, ErrNothingToCommit):
		p.logger.Warn("nothing to commit, pushing existing history")
	case err != nil:
		return err
	default:
		p.logger.Info("committed", zap.String("commit", hash.String()))
	}

	return p.push(ctx, repo)
}

// open locates the repository and returns the distribution directory
// relative to its worktree root.
func (p *Publisher) open() (*goGit.Repository, string, error) {
	repo, err := goGit.PlainOpenWithOptions(p.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, "", &preflight.Error{Check: "git repository", Target: p.repoDir, Err: err}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", &preflight.Error{Check: "git worktree", Target: p.repoDir, Err: err}
	}

	root, err := resolve(wt.Filesystem.Root())
	if err != nil {
		return nil, "", &preflight.Error{Check: "git worktree", Target: wt.Filesystem.Root(), Err: err}
	}
	dist, err := resolve(p.distDir)
	if err != nil {
		return nil, "", &preflight.Error{Check: "distribution directory", Target: p.distDir, Err: err}
	}

	rel, err := filepath.Rel(root, dist)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, "", &preflight.Error{
			Check:  "distribution directory",
			Target: p.distDir,
			Err:    fmt.Errorf("outside worktree %s", root),
		}
	}
	return repo, filepath.ToSlash(rel), nil
}

func (p *Publisher) commit(repo *goGit.Repository, wt *goGit.Worktree) (goGitPlumbing.Hash, error) {
	status, err := wt.Status()
	if err != nil {
		return goGitPlumbing.ZeroHash, fmt.Errorf("worktree status: %w", err)
	}
	if !hasStagedChanges(status) {
		return goGitPlumbing.ZeroHash, ErrNothingToCommit
	}

	opts := &goGit.CommitOptions{}
	if p.author != nil {
		sig := *p.author
		sig.When = p.clock()
		opts.Author = &sig
	}

	hash, err := wt.Commit(p.message(), opts)
	if err != nil {
		return goGitPlumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}

func (p *Publisher) message() string {
	return "Site update " + p.clock().Local().Format(messageLayout)
}

func (p *Publisher) push(ctx context.Context, repo *goGit.Repository) error {
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("push: HEAD is detached at %s", head.Hash())
	}

	remote, merge, err := upstream(repo, head.Name())
	if err != nil {
		return err
	}

	refSpec := goGitConfig.RefSpec(fmt.Sprintf("%s:%s", head.Name(), merge))
	if err := refSpec.Validate(); err != nil {
		return fmt.Errorf("push refspec %s: %w", refSpec, err)
	}

	p.logger.Info("pushing", zap.String("remote", remote), zap.String("refspec", refSpec.String()))
	err = repo.PushContext(ctx, &goGit.PushOptions{
		RemoteName: remote,
		RefSpecs:   []goGitConfig.RefSpec{refSpec},
		Auth:       p.auth,
	})
	if errors.Is(err, goGit.NoErrAlreadyUpToDate) {
		p.logger.Info("remote already up to date", zap.String("remote", remote))
		return nil
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", remote, err)
	}
	return nil
}

// upstream returns the configured remote and merge ref of branch, falling
// back to origin and the same branch name.
func upstream(repo *goGit.Repository, branch goGitPlumbing.ReferenceName) (string, goGitPlumbing.ReferenceName, error) {
	cfg, err := repo.Config()
	if err != nil {
		return "", "", fmt.Errorf("read git config: %w", err)
	}

	remote, merge := defaultRemote, branch
	if b, ok := cfg.Branches[branch.Short()]; ok {
		if b.Remote != "" {
			remote = b.Remote
		}
		if b.Merge != "" {
			merge = b.Merge
		}
	}

	if _, ok := cfg.Remotes[remote]; !ok {
		return "", "", fmt.Errorf("push: remote %q is not configured for branch %s", remote, branch.Short())
	}
	return remote, merge, nil
}

func hasStagedChanges(status goGit.Status) bool {
	for _, fs := range status {
		if fs.Staging != goGit.Unmodified && fs.Staging != goGit.Untracked {
			return true
		}
	}
	return false
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
