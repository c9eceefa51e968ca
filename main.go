// Package main implements the archive manifest builder: a batch CLI that
// normalizes saved post JSON, correlates it with the media bucket's object
// listing, and writes the manifest, facet, and report artifacts the static
// archive site consumes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"reddit-archive/listing"
	"reddit-archive/manifest"
	"reddit-archive/media"
	"reddit-archive/normalize"
	"reddit-archive/orderindex"
	"reddit-archive/pkg/archive"
)

func main() {
	ctx := context.Background()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		postsDir  = flag.String("posts", envOr("POSTS_DIR", "./out"), "directory of saved post JSON files")
		outDir    = flag.String("out", envOr("SITE_DATA_DIR", "./site/data"), "output directory for site data artifacts")
		orderCSV  = flag.String("order", envOr("ORDER_CSV", "./order.csv"), "optional rank,url,id CSV for manual ordering")
		cachePath = flag.String("keys-cache", envOr("KEYS_CACHE", "./keys-cache.json"), "key-list cache file")
		bucket    = flag.String("bucket", os.Getenv("STORAGE_BUCKET"), "media bucket name")
		mediaBase = flag.String("media-base", os.Getenv("MEDIA_BASE_URL"), "public URL prefix the media bucket is served from")
		useCache  = flag.Bool("use-cache", false, "skip the live bucket listing and replay the key-list cache")
		validate  = flag.Bool("validate", false, "run the full pipeline but write nothing except the build report")
	)
	flag.Parse()

	lister, cleanup, err := buildLister(ctx, *bucket, *cachePath, *useCache, logger)
	if err != nil {
		logger.Error("Listing setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	warns := &archive.Collector{}
	builder := manifest.New(manifest.Config{
		PostsDir:     *postsDir,
		OutDir:       *outDir,
		ValidateOnly: *validate,
		Lister:       lister,
		Classifier:   media.NewClassifier(*mediaBase, logger, warns),
		Resolver:     media.NewResolver(logger, warns),
		Normalizer:   normalize.New(logger, warns),
		Order:        orderindex.Load(*orderCSV, logger),
		Logger:       logger,
		Warns:        warns,
	})

	report, err := builder.Run(ctx)
	if err != nil {
		logger.Error("Build failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Run summary",
		"posts", report.Posts,
		"normalized_posts_written", report.NormalizedPostsWritten,
		"warnings", len(report.Warnings),
		"out_dir", *outDir)
}

// buildLister picks the listing capability for this run: the cache replay
// when explicitly requested, the live bucket when one is configured, and
// otherwise an existing cache file as a local-development fallback. A run
// with no bucket and no cache cannot correlate media and fails fast.
func buildLister(ctx context.Context, bucket, cachePath string, useCache bool, logger *slog.Logger) (listing.Lister, func(), error) {
	noop := func() {}

	if useCache {
		if _, err := os.Stat(cachePath); err != nil {
			return nil, noop, fmt.Errorf("use-cache requested but cache is unreadable: %w", err)
		}
		logger.Info("Skipping live listing, replaying key-list cache", "path", cachePath)
		return listing.NewCache(cachePath, logger), noop, nil
	}

	if bucket != "" {
		var opts []option.ClientOption
		if creds := os.Getenv("GOOGLE_CREDENTIALS_JSON"); creds != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("initialize storage client: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}
		return listing.NewBucket(client, bucket, cachePath, logger), cleanup, nil
	}

	if _, err := os.Stat(cachePath); err == nil {
		logger.Info("No STORAGE_BUCKET set, falling back to key-list cache", "path", cachePath)
		return listing.NewCache(cachePath, logger), noop, nil
	}

	return nil, noop, errors.New("no STORAGE_BUCKET configured and no key-list cache available")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
