package application

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/eugenenazirov/sitepublish/internal/build"
	"github.com/eugenenazirov/sitepublish/internal/config"
	"github.com/eugenenazirov/sitepublish/internal/deploy"
	"github.com/eugenenazirov/sitepublish/internal/gitpublish"
	"github.com/eugenenazirov/sitepublish/internal/purge"
	"github.com/eugenenazirov/sitepublish/internal/selector"
	"github.com/eugenenazirov/sitepublish/internal/storage"
	"github.com/eugenenazirov/sitepublish/internal/upload"
)

// App holds the wired deployment pipeline.
type App struct {
	builder  *build.Command
	repo     *gitpublish.Publisher
	cdn      *deploy.CDNPublisher
	uploader *upload.Uploader
	purger   *purge.Chain
	runner   *deploy.Runner
	logger   *zap.Logger
}

type endpoints struct {
	storage    string
	bunny      string
	cloudflare string
}

type options struct {
	endpoints   endpoints
	buildOutput io.Writer
	observer    deploy.Observer
}

// Option adjusts how New wires the pipeline.
type Option func(*options)

// WithStorageBaseURL sends uploads to base instead of the regional storage host.
func WithStorageBaseURL(base string) Option {
	return func(o *options) {
		o.endpoints.storage = base
	}
}

// WithPurgeBaseURLs overrides the pull-zone and edge cache API hosts.
func WithPurgeBaseURLs(bunny, cloudflare string) Option {
	return func(o *options) {
		o.endpoints.bunny = bunny
		o.endpoints.cloudflare = cloudflare
	}
}

// WithBuildOutput redirects the build command's stdout and stderr.
func WithBuildOutput(w io.Writer) Option {
	return func(o *options) {
		o.buildOutput = w
	}
}

// WithObserver forwards run state transitions to fn.
func WithObserver(fn deploy.Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var buildOpts []build.Option
	if o.buildOutput != nil {
		buildOpts = append(buildOpts, build.WithOutput(o.buildOutput, o.buildOutput))
	}
	builder := build.New(cfg.BuildCommand, cfg.RepoDir, logger.Named("build"), buildOpts...)

	repo := gitpublish.New(cfg.RepoDir, cfg.DistDir, logger.Named("git"),
		gitpublish.WithAuth(cfg.GitUsername, cfg.GitToken),
		gitpublish.WithAuthor(cfg.GitAuthorName, cfg.GitAuthorEmail),
		gitpublish.WithTimeout(cfg.GitTimeout),
	)

	store := storage.NewClient(cfg.StorageToken,
		storage.WithTimeout(cfg.UploadTimeout),
		storage.WithRateLimit(cfg.UploadRPS, cfg.UploadBurst),
		storage.WithLogger(logger.Named("storage")),
	)
	endpoint := storage.NewEndpoint(cfg.Region, cfg.StorageZone)
	endpoint.BaseURL = o.endpoints.storage

	uploader := upload.New(
		selector.New(cfg.DistDir, cfg.Extensions),
		endpoint,
		store,
		logger.Named("upload"),
		upload.WithConcurrency(cfg.UploadConcurrency),
	)

	purger := purge.NewChain(logger.Named("purge"),
		purge.NewBunny(cfg.PullZoneID, cfg.APIKey, purgeOptions(cfg, o.endpoints.bunny)...),
		purge.NewCloudflare(cfg.CacheZoneID, cfg.CacheAPIKey, cfg.CacheEmail, purgeOptions(cfg, o.endpoints.cloudflare)...),
	)

	cdn := deploy.NewCDNPublisher(cfg.DistDir, uploader, purger, logger.Named("cdn"))

	var runnerOpts []deploy.RunnerOption
	if o.observer != nil {
		runnerOpts = append(runnerOpts, deploy.WithObserver(o.observer))
	}
	runner := deploy.NewRunner(builder, repo, cdn, logger, runnerOpts...)

	return &App{
		builder:  builder,
		repo:     repo,
		cdn:      cdn,
		uploader: uploader,
		purger:   purger,
		runner:   runner,
		logger:   logger,
	}, nil
}

func purgeOptions(cfg config.Config, base string) []purge.Option {
	opts := []purge.Option{purge.WithTimeout(cfg.PurgeTimeout)}
	if base != "" {
		opts = append(opts, purge.WithBaseURL(base))
	}
	return opts
}

// Run executes one deployment in the given mode.
func (a *App) Run(ctx context.Context, mode deploy.Mode) error {
	return a.runner.Run(ctx, mode)
}
