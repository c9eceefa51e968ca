// Package listing provides the bucket object-key listing capability used to
// correlate archived posts with their uploaded media. A Lister yields the
// full flat key list of the media bucket; the live implementation paginates
// to exhaustion and caches the result, the cache implementation replays a
// previous run, and Static substitutes a fixture in tests.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// Lister lists every object key under the media bucket.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Bucket lists keys live from Cloud Storage and writes the complete list
// through to a local cache file for later offline runs.
type Bucket struct {
	client    *storage.Client
	logger    *slog.Logger
	bucket    string
	cachePath string
}

// NewBucket creates a live bucket lister. cachePath may be empty to skip
// cache write-through.
func NewBucket(client *storage.Client, bucket, cachePath string, logger *slog.Logger) *Bucket {
	return &Bucket{
		client:    client,
		logger:    logger,
		bucket:    bucket,
		cachePath: cachePath,
	}
}

// List paginates the bucket listing to exhaustion. Each page depends on the
// previous continuation token, so the whole chain retries as one unit; a
// partial listing is never returned.
func (b *Bucket) List(ctx context.Context) ([]string, error) {
	var keys []string

	err := retry.Do(
		func() error {
			keys = keys[:0]
			start := time.Now()

			it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{})
			for {
				attrs, err := it.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					return fmt.Errorf("iterate bucket %s: %w", b.bucket, err)
				}
				keys = append(keys, attrs.Name)
			}

			b.logger.Info("Bucket listing completed",
				"bucket", b.bucket,
				"keys", len(keys),
				"duration_ms", time.Since(start).Milliseconds())
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			b.logger.Info("Retrying bucket listing after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("list after retries: %w", err)
	}

	if b.cachePath != "" {
		if err := writeCache(b.cachePath, keys); err != nil {
			// Cache write failure degrades the next offline run, not this one.
			b.logger.Warn("Failed to write key-list cache", "path", b.cachePath, "error", err)
		} else {
			b.logger.Info("Key-list cache written", "path", b.cachePath, "keys", len(keys))
		}
	}

	return keys, nil
}

// Cache replays the key list from a previous live run.
type Cache struct {
	logger *slog.Logger
	path   string
}

// NewCache creates a cache-file-backed lister.
func NewCache(path string, logger *slog.Logger) *Cache {
	return &Cache{logger: logger, path: path}
}

// List reads the cached key list. The shape matches a live listing exactly.
func (c *Cache) List(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read key-list cache: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal key-list cache: %w", err)
	}
	c.logger.Info("Key-list cache loaded", "path", c.path, "keys", len(keys))
	return keys, nil
}

// Static serves a fixed key list.
type Static []string

// List returns the fixed keys.
func (s Static) List(_ context.Context) ([]string, error) {
	return s, nil
}

func writeCache(path string, keys []string) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key list: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write key list: %w", err)
	}
	return nil
}
