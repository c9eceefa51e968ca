// Package manifest orchestrates a full archive build: it discovers saved
// post files, normalizes them, correlates them with the bucket listing,
// and writes the site's data artifacts.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reddit-archive/listing"
	"reddit-archive/media"
	"reddit-archive/normalize"
	"reddit-archive/pkg/archive"
)

const selftextPreviewRunes = 280

// Config wires a builder.
type Config struct {
	PostsDir     string
	OutDir       string
	ValidateOnly bool // normalize and resolve everything, write only the report
	Lister       listing.Lister
	Classifier   *media.Classifier
	Resolver     *media.Resolver
	Normalizer   *normalize.Normalizer
	Order        map[string]int
	Logger       *slog.Logger
	Warns        *archive.Collector
}

// Builder runs full manifest builds.
type Builder struct {
	cfg Config
}

// New creates a builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

type source struct {
	path string // file path on disk
	rel  string // path relative to the posts dir, for warnings
	stem string // filename without extension, used as the id hint
	hint string // subfolder name, a non-authoritative media-type hint
}

// Run executes one full rebuild. Individual bad records are skipped with
// warnings; only setup-level failures (unreadable posts dir, unwritable
// output dir) return an error. The report is written even in validate-only
// mode and reflects every warning collected along the way.
func (b *Builder) Run(ctx context.Context) (*archive.Report, error) {
	sources, err := b.discover()
	if err != nil {
		return nil, fmt.Errorf("discover post files: %w", err)
	}
	b.cfg.Logger.Info("Post files discovered", "count", len(sources), "dir", b.cfg.PostsDir)

	// The listing must run to exhaustion before classification; a failed
	// listing degrades the whole run to "no media found" with one warning
	// rather than aborting.
	keys, err := b.cfg.Lister.List(ctx)
	if err != nil {
		b.cfg.Logger.Warn("Object listing failed, resolving all posts without bucket media", "error", err)
		b.cfg.Warns.Warnf("", archive.WarnConfig, "object listing unavailable: %v", err)
		keys = nil
	}
	records := b.cfg.Classifier.Classify(keys)

	postsOut := filepath.Join(b.cfg.OutDir, "posts")
	if !b.cfg.ValidateOnly {
		if err := os.MkdirAll(postsOut, 0o755); err != nil {
			return nil, fmt.Errorf("create posts output dir: %w", err)
		}
	}

	var entries []archive.ManifestEntry
	var written, noMedia int
	seenIDs := make(map[string]bool)

	for _, src := range sources {
		raw, ok := b.readPost(src)
		if !ok {
			continue
		}

		post := b.cfg.Normalizer.Post(raw, src.stem)
		id := post.ID()

		if seenIDs[id] {
			b.cfg.Warns.Warnf(id, archive.WarnSchema, "duplicate post id from %s", src.rel)
		}
		seenIDs[id] = true

		if !b.cfg.ValidateOnly {
			if err := writeJSON(filepath.Join(postsOut, id+".json"), post); err != nil {
				b.cfg.Warns.Warnf(id, archive.WarnIO, "write canonical post: %v", err)
				b.cfg.Logger.Warn("Failed to write canonical post", "id", id, "error", err)
			} else {
				written++
			}
		}

		rec := records[id]
		if rec == nil {
			noMedia++
		}
		res := b.cfg.Resolver.Resolve(id, post, rec, src.hint)
		entries = append(entries, b.entry(id, post, res))
	}

	report := &archive.Report{
		Posts:                  len(entries),
		NormalizedPostsWritten: written,
		Warnings:               b.cfg.Warns.Warnings(),
	}
	if report.Warnings == nil {
		report.Warnings = []archive.Warning{}
	}

	if err := b.writeArtifacts(entries, report); err != nil {
		return report, err
	}

	b.cfg.Logger.Info("Build completed",
		"posts", report.Posts,
		"normalized_posts_written", report.NormalizedPostsWritten,
		"posts_without_bucket_media", noMedia,
		"bucket_keys", len(keys),
		"warnings", len(report.Warnings),
		"validate_only", b.cfg.ValidateOnly)

	return report, nil
}

// discover finds post JSON files directly under the posts dir plus one
// level of categorized subfolders. Directory listings come back sorted, so
// discovery order is stable across runs.
func (b *Builder) discover() ([]source, error) {
	dirEntries, err := os.ReadDir(b.cfg.PostsDir)
	if err != nil {
		return nil, err
	}

	var sources []source
	for _, e := range dirEntries {
		if !e.IsDir() {
			if s, ok := b.sourceFor(e.Name(), ""); ok {
				sources = append(sources, s)
			}
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(b.cfg.PostsDir, e.Name()))
		if err != nil {
			b.cfg.Warns.Warnf(e.Name(), archive.WarnIO, "read subfolder: %v", err)
			continue
		}
		for _, sub := range subEntries {
			if sub.IsDir() {
				continue
			}
			if s, ok := b.sourceFor(filepath.Join(e.Name(), sub.Name()), e.Name()); ok {
				sources = append(sources, s)
			}
		}
	}
	return sources, nil
}

func (b *Builder) sourceFor(rel, hint string) (source, bool) {
	if !strings.HasSuffix(rel, ".json") {
		return source{}, false
	}
	base := filepath.Base(rel)
	return source{
		path: filepath.Join(b.cfg.PostsDir, rel),
		rel:  rel,
		stem: strings.TrimSuffix(base, ".json"),
		hint: hint,
	}, true
}

// readPost parses one source file. Empty or corrupt files are skipped with
// a warning; a single bad file never aborts the run.
func (b *Builder) readPost(src source) (map[string]any, bool) {
	data, err := os.ReadFile(src.path)
	if err != nil {
		b.cfg.Warns.Warnf(src.rel, archive.WarnIO, "read post file: %v", err)
		b.cfg.Logger.Warn("Failed to read post file", "file", src.rel, "error", err)
		return nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		b.cfg.Warns.Warnf(src.rel, archive.WarnIO, "unparseable post file: %v", err)
		b.cfg.Logger.Warn("Skipping unparseable post file", "file", src.rel, "error", err)
		return nil, false
	}
	return raw, true
}

func (b *Builder) entry(id string, post archive.Post, res media.Resolution) archive.ManifestEntry {
	entry := archive.ManifestEntry{
		ID:              id,
		Title:           post.Str("title"),
		Subreddit:       post.Str("subreddit"),
		Author:          post.Str("author"),
		Permalink:       post.Str("permalink"),
		URL:             post.Str("url"),
		SelftextPreview: truncateRunes(post.Str("selftext"), selftextPreviewRunes),
		MediaType:       res.Type,
		MediaURLs:       res.URLs,
		MediaURLCompact: res.CompactURL,
		PreviewWidth:    res.PreviewWidth,
		PreviewHeight:   res.PreviewHeight,
		GalleryCount:    res.GalleryCount,
		MediaDir:        res.Dir,
	}
	if entry.MediaURLs == nil {
		entry.MediaURLs = []string{}
	}

	if v, ok := post.Num("created_utc"); ok {
		entry.CreatedUTC = &v
	}
	if v, ok := post.Num("score"); ok {
		entry.Score = &v
	}
	if v, ok := post.Num("num_comments"); ok {
		entry.NumComments = &v
	}

	entry.Flair = post.Str("link_flair_text")
	if entry.Flair == "" {
		entry.Flair = post.Str("flair")
	}
	entry.LinkDomain = post.Str("link_domain")
	if entry.LinkDomain == "" {
		entry.LinkDomain = post.Str("domain")
	}

	if res.Preview != "" {
		preview := res.Preview
		entry.MediaPreview = &preview
	}

	if rank, ok := b.cfg.Order[id]; ok {
		entry.OrderIndex = &rank
	}

	return entry
}

// writeArtifacts writes the three aggregate artifacts. The report is
// written last and unconditionally, so every run leaves a diagnostic trail
// even in validate-only mode.
func (b *Builder) writeArtifacts(entries []archive.ManifestEntry, report *archive.Report) error {
	if err := os.MkdirAll(b.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if !b.cfg.ValidateOnly {
		if entries == nil {
			entries = []archive.ManifestEntry{}
		}
		if err := writeJSON(filepath.Join(b.cfg.OutDir, "manifest.json"), entries); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		if err := writeJSON(filepath.Join(b.cfg.OutDir, "facets.json"), Facets(entries)); err != nil {
			return fmt.Errorf("write facets: %w", err)
		}
	}

	if err := writeJSON(filepath.Join(b.cfg.OutDir, "report.json"), report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
