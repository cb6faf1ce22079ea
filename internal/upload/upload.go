// Package upload pushes every selected file of a distribution to object
// storage. Each file gets at most two attempts; the second one runs with
// full request tracing. A file that fails both attempts aborts the run.
package upload

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/sitepublish/internal/selector"
	"github.com/eugenenazirov/sitepublish/internal/storage"
)

// maxAttempts per file: the initial upload plus one traced retry.
const maxAttempts = 2

// Source yields the files to upload.
type Source interface {
	Candidates() iter.Seq2[selector.Candidate, error]
}

// Resolver maps a relative path to its upload target.
type Resolver interface {
	Target(relativePath string) storage.Target
}

// Summary describes a completed upload run.
type Summary struct {
	Files    int
	Bytes    int64
	Duration time.Duration
}

// Uploader uploads a Source to storage.
type Uploader struct {
	source      Source
	resolver    Resolver
	store       storage.Uploader
	logger      *zap.Logger
	concurrency int
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithConcurrency uploads up to n files at once. Values below 2 keep the
// sequential behaviour.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// New constructs an Uploader.
func New(source Source, resolver Resolver, store storage.Uploader, logger *zap.Logger, opts ...Option) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Uploader{
		source:      source,
		resolver:    resolver,
		store:       store,
		logger:      logger,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadAll uploads every candidate and stops at the first file that cannot
// be stored.
func (u *Uploader) UploadAll(ctx context.Context) (Summary, error) {
	start := time.Now()

	var (
		files atomic.Int64
		bytes atomic.Int64
		err   error
	)
	record := func(n int64) {
		files.Add(1)
		bytes.Add(n)
	}

	if u.concurrency > 1 {
		err = u.uploadParallel(ctx, record)
	} else {
		err = u.uploadSequential(ctx, record)
	}

	summary := Summary{
		Files:    int(files.Load()),
		Bytes:    bytes.Load(),
		Duration: time.Since(start),
	}
	if err != nil {
		return summary, err
	}

	u.logger.Info("upload complete",
		zap.Int("files", summary.Files),
		zap.Int64("bytes", summary.Bytes),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (u *Uploader) uploadSequential(ctx context.Context, record func(int64)) error {
	for candidate, err := range u.source.Candidates() {
		if err != nil {
			return fmt.Errorf("select files: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := u.uploadFile(ctx, candidate)
		if err != nil {
			return err
		}
		record(n)
	}
	return nil
}

func (u *Uploader) uploadParallel(ctx context.Context, record func(int64)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	var selectErr error
	for candidate, err := range u.source.Candidates() {
		if err != nil {
			selectErr = fmt.Errorf("select files: %w", err)
			break
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			n, err := u.uploadFile(gctx, candidate)
			if err != nil {
				return err
			}
			record(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if selectErr != nil {
		return selectErr
	}
	return ctx.Err()
}

// uploadFile performs the initial attempt and, on failure, one traced retry.
func (u *Uploader) uploadFile(ctx context.Context, candidate selector.Candidate) (int64, error) {
	target := u.resolver.Target(candidate.RelativePath)
	logger := u.logger.With(zap.String("file", candidate.RelativePath), zap.String("target", target.URL))

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		var opts []storage.PutOption
		if attempt > 1 {
			opts = append(opts, storage.WithTrace(logger.With(zap.Int("attempt", attempt))))
		}

		n, err := u.put(ctx, candidate, target, opts...)
		if err == nil {
			logger.Info("uploaded", zap.Int64("bytes", n), zap.Int("attempt", attempt))
			return n, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, os.ErrNotExist) {
			break
		}
		if attempt < maxAttempts {
			logger.Warn("upload failed, retrying with request tracing", zap.Error(err))
		}
	}

	logger.Error("upload failed", zap.Error(lastErr))
	return 0, &Error{Target: target, Attempts: attempts, Err: lastErr}
}

func (u *Uploader) put(ctx context.Context, candidate selector.Candidate, target storage.Target, opts ...storage.PutOption) (int64, error) {
	f, err := os.Open(candidate.Path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", candidate.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", candidate.Path, err)
	}

	if err := u.store.Put(ctx, target, f, info.Size(), opts...); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
