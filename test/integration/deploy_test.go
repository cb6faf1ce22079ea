package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	goGit "github.com/go-git/go-git/v5"
	goGitConfig "github.com/go-git/go-git/v5/config"
	goGitObject "github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/sitepublish/internal/application"
	"github.com/eugenenazirov/sitepublish/internal/config"
	"github.com/eugenenazirov/sitepublish/internal/deploy"
)

// fakeCDN records every request to the storage and purge APIs.
type fakeCDN struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	failPath string
	server   *httptest.Server
}

func newFakeCDN(t *testing.T) *fakeCDN {
	t.Helper()
	f := &fakeCDN{bodies: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.bodies[r.URL.Path] = string(body)
		fail := f.failPath != "" && r.URL.Path == f.failPath
		f.mu.Unlock()

		if fail {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCDN) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeCDN) body(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

type site struct {
	repoDir   string
	remoteDir string
	distDir   string
	envFile   string
}

func mustNoError(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func newSite(t *testing.T) site {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := goGit.PlainInit(repoDir, false)
	mustNoError(t, err, "init repository")

	distDir := filepath.Join(repoDir, "dist")
	files := map[string]string{
		"README.md":                   "site",
		"dist/index.html":             "<h1>home</h1>",
		"dist/assets/app.js":          "console.log('v1')",
		"dist/assets/style.css":       "body{}",
		"dist/notes.txt":              "not published",
		"dist/node_modules/dep/ix.js": "ignored",
	}
	for name, content := range files {
		path := filepath.Join(repoDir, filepath.FromSlash(name))
		mustNoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "mkdir "+name)
		mustNoError(t, os.WriteFile(path, []byte(content), 0o644), "write "+name)
	}

	wt, err := repo.Worktree()
	mustNoError(t, err, "open worktree")
	_, err = wt.Add("README.md")
	mustNoError(t, err, "stage README")
	_, err = wt.Commit("initial", &goGit.CommitOptions{
		Author: &goGitObject.Signature{Name: "Site Bot", Email: "bot@example.com", When: time.Now()},
	})
	mustNoError(t, err, "initial commit")

	remoteDir := t.TempDir()
	_, err = goGit.PlainInit(remoteDir, true)
	mustNoError(t, err, "init remote")
	_, err = repo.CreateRemote(&goGitConfig.RemoteConfig{Name: "origin", URLs: []string{remoteDir}})
	mustNoError(t, err, "create remote")

	envFile := filepath.Join(t.TempDir(), "deploy.env")
	env := strings.Join([]string{
		`BUNNY_REGION="ny"`,
		`BUNNY_STORAGE_ZONE="site-bucket"`,
		`BUNNY_STORAGE_TOKEN='storage-token'`,
		`BUNNY_PULLZONE_ID=42`,
		`BUNNY_API_KEY=bunny-key`,
		`CLOUDFLARE_ZONE_ID=zone-1`,
		`CLOUDFLARE_API_KEY=cf-key`,
		`CLOUDFLARE_EMAIL=ops@example.com`,
		`GIT_AUTHOR_NAME=Site Bot`,
		`GIT_AUTHOR_EMAIL=bot@example.com`,
	}, "\n")
	mustNoError(t, os.WriteFile(envFile, []byte(env), 0o600), "write env file")

	return site{repoDir: repoDir, remoteDir: remoteDir, distDir: distDir, envFile: envFile}
}

func clearEnv(t *testing.T) {
	t.Helper()
	keys := append(config.RequiredKeys(), config.EnvCacheEmail, config.EnvGitAuthorName, config.EnvGitAuthorEmail,
		config.EnvGitUsername, config.EnvGitToken, config.EnvBuildCommand)
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func newApp(t *testing.T, s site, cdn *fakeCDN) *application.App {
	t.Helper()
	clearEnv(t)

	cfg, err := config.Load(&config.CLIOverrides{
		EnvFile: s.envFile,
		DistDir: &s.distDir,
		RepoDir: &s.repoDir,
	})
	mustNoError(t, err, "load configuration")
	if cfg.StorageToken != "storage-token" {
		t.Fatalf("expected quotes stripped from token, got %q", cfg.StorageToken)
	}

	app, err := application.New(cfg, zaptest.NewLogger(t),
		application.WithStorageBaseURL(cdn.server.URL),
		application.WithPurgeBaseURLs(cdn.server.URL, cdn.server.URL),
	)
	mustNoError(t, err, "create application")
	return app
}

func TestDeployBoth(t *testing.T) {
	s := newSite(t)
	cdn := newFakeCDN(t)
	app := newApp(t, s, cdn)

	mustNoError(t, app.Run(context.Background(), deploy.ModeBoth), "run")

	want := []string{
		"PUT /site-bucket/assets/app.js",
		"PUT /site-bucket/assets/style.css",
		"PUT /site-bucket/index.html",
		"POST /pullzone/42/purgeCache",
		"POST /client/v4/zones/zone-1/purge_cache",
	}
	if got := cdn.recorded(); !slices.Equal(got, want) {
		t.Fatalf("expected requests %v, got %v", want, got)
	}
	if got := cdn.body("/site-bucket/index.html"); got != "<h1>home</h1>" {
		t.Fatalf("unexpected uploaded body %q", got)
	}

	repo, err := goGit.PlainOpen(s.repoDir)
	mustNoError(t, err, "open repository")
	head, err := repo.Head()
	mustNoError(t, err, "resolve HEAD")
	commit, err := repo.CommitObject(head.Hash())
	mustNoError(t, err, "read commit")
	if !strings.HasPrefix(commit.Message, "Site update ") {
		t.Fatalf("unexpected commit message %q", commit.Message)
	}
	if commit.Author.Name != "Site Bot" {
		t.Fatalf("expected configured author, got %q", commit.Author.Name)
	}

	remote, err := goGit.PlainOpen(s.remoteDir)
	mustNoError(t, err, "open remote")
	ref, err := remote.Reference(head.Name(), true)
	mustNoError(t, err, "resolve remote branch")
	if ref.Hash() != head.Hash() {
		t.Fatalf("expected remote at %s, got %s", head.Hash(), ref.Hash())
	}
}

func TestDeployCDNUploadFailureAbortsBeforePurge(t *testing.T) {
	s := newSite(t)
	cdn := newFakeCDN(t)
	cdn.failPath = "/site-bucket/assets/style.css"
	app := newApp(t, s, cdn)

	err := app.Run(context.Background(), deploy.ModeCDN)

	var stepErr *deploy.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *deploy.StepError, got %v", err)
	}
	if stepErr.Step != deploy.StatePublishingCDN {
		t.Fatalf("expected failure while publishing to the CDN, got %s", stepErr.Step)
	}

	want := []string{
		"PUT /site-bucket/assets/app.js",
		"PUT /site-bucket/assets/style.css",
		"PUT /site-bucket/assets/style.css",
	}
	if got := cdn.recorded(); !slices.Equal(got, want) {
		t.Fatalf("expected requests %v, got %v", want, got)
	}
}

func TestDeployRepoLeavesCDNUntouched(t *testing.T) {
	s := newSite(t)
	cdn := newFakeCDN(t)
	app := newApp(t, s, cdn)

	mustNoError(t, app.Run(context.Background(), deploy.ModeRepo), "run")
	if got := cdn.recorded(); len(got) != 0 {
		t.Fatalf("expected no CDN requests, got %v", got)
	}
}
