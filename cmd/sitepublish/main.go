package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/sitepublish/internal/application"
	"github.com/eugenenazirov/sitepublish/internal/config"
	"github.com/eugenenazirov/sitepublish/internal/deploy"
	"github.com/eugenenazirov/sitepublish/internal/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	terminated, terminateCode := false, exitOK
	kingpinApp := kingpin.New("sitepublish", helpText()).
		UsageWriter(stdout).
		ErrorWriter(stderr).
		Terminate(func(code int) {
			terminated, terminateCode = true, code
		})
	kingpinApp.HelpFlag.Short('h')

	modeArg := kingpinApp.Arg("mode", "What to publish: repo, cdn or both").Default(string(deploy.ModeBoth)).String()
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Path to KEY=VALUE file (defaults to .env when present)").String()
	distDir := kingpinApp.Flag("dist", "Distribution directory to publish").String()
	repoDir := kingpinApp.Flag("repo", "Git repository containing the distribution directory").String()
	buildCommand := kingpinApp.Flag("build-command", "Command that builds the distribution directory").String()
	concurrency := kingpinApp.Flag("concurrency", "Number of parallel uploads").Default("-1").Int()
	verbose := kingpinApp.Flag("verbose", "Enable debug logging").Short('v').Bool()
	logFormat := kingpinApp.Flag("log-format", "Log encoding").Enum("json", "console")

	_, err := kingpinApp.Parse(args)
	if terminated {
		return terminateCode
	}
	if err != nil {
		fmt.Fprintf(stderr, "sitepublish: error: %v\n", err)
		kingpinApp.UsageWriter(stderr).Usage(nil)
		return exitUsage
	}

	mode, err := deploy.ParseMode(*modeArg)
	var usageErr *deploy.UsageError
	switch {
	case errors.Is(err, deploy.ErrHelp):
		kingpinApp.Usage(nil)
		return exitOK
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "sitepublish: error: %v\n", usageErr)
		kingpinApp.UsageWriter(stderr).Usage(nil)
		return exitUsage
	case err != nil:
		fmt.Fprintf(stderr, "sitepublish: error: %v\n", err)
		return exitUsage
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}
	if *distDir != "" {
		overrides.DistDir = distDir
	}
	if *repoDir != "" {
		overrides.RepoDir = repoDir
	}
	if *buildCommand != "" {
		overrides.BuildCommand = buildCommand
	}
	if *concurrency >= 0 {
		overrides.UploadConcurrency = concurrency
	}
	if *logFormat != "" {
		overrides.LogFormat = logFormat
	}
	if *verbose {
		overrides.Verbose = verbose
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		failureBanner(stderr, fmt.Errorf("load configuration: %w", err))
		return exitFailure
	}

	logger, err := logging.New(logging.WithFormat(cfg.LogFormat), logging.WithVerbose(cfg.Verbose))
	if err != nil {
		failureBanner(stderr, fmt.Errorf("initialize logger: %w", err))
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		failureBanner(stderr, fmt.Errorf("initialize application: %w", err))
		return exitFailure
	}

	ctx, stop := withSignals(context.Background(), logger)
	defer stop()

	if err := app.Run(ctx, mode); err != nil {
		failureBanner(stderr, err)
		return exitFailure
	}

	fmt.Fprintf(stdout, "Deployment complete (%s)\n", mode)
	return exitOK
}

func failureBanner(w io.Writer, err error) {
	fmt.Fprintf(w, "Deployment failed: %v\n", err)
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Build a static site and publish it to its git remote and Bunny CDN storage, then purge the Bunny and Cloudflare caches.\n\n")
	b.WriteString("Required configuration keys (environment or env file):\n")
	for _, key := range config.RequiredKeys() {
		b.WriteString("  " + key + "\n")
	}
	return b.String()
}

// withSignals returns a context canceled on SIGINT or SIGTERM.
func withSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-quit:
			logger.Warn("received signal, canceling deployment", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signalStop(quit)
		cancel()
	}
}
