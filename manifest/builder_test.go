package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reddit-archive/listing"
	"reddit-archive/media"
	"reddit-archive/normalize"
	"reddit-archive/pkg/archive"
)

const testBase = "https://media.example.com"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testBuilder(t *testing.T, postsDir, outDir string, keys []string, validate bool) *Builder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	warns := &archive.Collector{}
	return New(Config{
		PostsDir:     postsDir,
		OutDir:       outDir,
		ValidateOnly: validate,
		Lister:       listing.Static(keys),
		Classifier:   media.NewClassifier(testBase, logger, warns),
		Resolver:     media.NewResolver(logger, warns),
		Normalizer:   normalize.New(logger, warns),
		Order:        map[string]int{"p1": 4},
		Logger:       logger,
		Warns:        warns,
	})
}

func seedPosts(t *testing.T) string {
	t.Helper()
	postsDir := t.TempDir()
	writeFile(t, filepath.Join(postsDir, "media", "p1.json"),
		`{"id":"p1","title":"Hi","subreddit":"x","author":"y","created_utc":100,"score":10,"num_comments":2}`)
	writeFile(t, filepath.Join(postsDir, "text", "p2.json"),
		`{"id":"p2","title":"Words","subreddit":"x","author":"z","created_utc":200,"selftext":"just words"}`)
	return postsDir
}

// TestRunNoDropOnCorruptFile verifies a corrupt post file costs exactly
// that one entry plus one warning referencing it, and never the run.
func TestRunNoDropOnCorruptFile(t *testing.T) {
	postsDir := seedPosts(t)
	writeFile(t, filepath.Join(postsDir, "bad.json"), "{not json")

	b := testBuilder(t, postsDir, t.TempDir(), nil, false)
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Posts != 2 {
		t.Errorf("posts = %d, want 2 (corrupt file skipped, no stub)", report.Posts)
	}
	found := false
	for _, w := range report.Warnings {
		if w.Type == archive.WarnIO && strings.Contains(w.ID, "bad.json") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning references bad.json: %v", report.Warnings)
	}
}

func TestRunWritesAllArtifacts(t *testing.T) {
	postsDir := seedPosts(t)
	outDir := t.TempDir()

	b := testBuilder(t, postsDir, outDir, []string{"Videos/p1.mp4", "Images/p1.jpg"}, false)
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.NormalizedPostsWritten != 2 {
		t.Errorf("normalized_posts_written = %d, want 2", report.NormalizedPostsWritten)
	}
	for _, name := range []string{"manifest.json", "facets.json", "report.json", "posts/p1.json", "posts/p2.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var entries []archive.ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("manifest entries = %d, want 2", len(entries))
	}

	// Discovery order: media/ before text/.
	p1 := entries[0]
	if p1.ID != "p1" || p1.MediaType != media.TypeVideo {
		t.Errorf("entry p1 = %+v, want video resolution", p1)
	}
	if p1.MediaPreview == nil || *p1.MediaPreview != testBase+"/Images/p1.jpg" {
		t.Errorf("p1 preview = %v, want still image backfill", p1.MediaPreview)
	}
	if p1.OrderIndex == nil || *p1.OrderIndex != 4 {
		t.Errorf("p1 order_index = %v, want 4", p1.OrderIndex)
	}

	p2 := entries[1]
	if p2.ID != "p2" || p2.MediaType != media.TypeText {
		t.Errorf("entry p2 = %+v, want text resolution", p2)
	}
	if p2.MediaPreview != nil {
		t.Errorf("p2 preview = %v, want null", *p2.MediaPreview)
	}
	if p2.OrderIndex != nil {
		t.Errorf("p2 order_index = %v, want absent", *p2.OrderIndex)
	}
}

func TestRunValidateOnlyWritesOnlyReport(t *testing.T) {
	postsDir := seedPosts(t)
	outDir := t.TempDir()

	b := testBuilder(t, postsDir, outDir, nil, true)
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Posts != 2 {
		t.Errorf("posts = %d, want 2 (pipeline still runs)", report.Posts)
	}
	if report.NormalizedPostsWritten != 0 {
		t.Errorf("normalized_posts_written = %d, want 0", report.NormalizedPostsWritten)
	}
	if _, err := os.Stat(filepath.Join(outDir, "report.json")); err != nil {
		t.Errorf("report.json missing: %v", err)
	}
	for _, name := range []string{"manifest.json", "facets.json", "posts"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); !os.IsNotExist(err) {
			t.Errorf("artifact %s written in validate-only mode", name)
		}
	}
}

// TestRunIdempotent verifies identical inputs produce byte-identical
// manifest and facet artifacts across repeated runs.
func TestRunIdempotent(t *testing.T) {
	postsDir := seedPosts(t)
	// A post with no id exercises deterministic id synthesis.
	writeFile(t, filepath.Join(postsDir, "media", "unnamed.json"),
		`{"title":"untitled","comments":[{"author":"a","body":"hello","replies":[{"body":"nested"}]}]}`)
	keys := []string{"Images/p1/00.jpg", "Images/p1/01.jpg", "Gifs/p2.gif"}

	read := func(dir, name string) []byte {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	out1, out2 := t.TempDir(), t.TempDir()
	if _, err := testBuilder(t, postsDir, out1, keys, false).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := testBuilder(t, postsDir, out2, keys, false).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"manifest.json", "facets.json", "report.json"} {
		if !bytes.Equal(read(out1, name), read(out2, name)) {
			t.Errorf("%s differs across identical runs", name)
		}
	}
	if !bytes.Equal(read(out1, filepath.Join("posts", "unnamed.json")), read(out2, filepath.Join("posts", "unnamed.json"))) {
		t.Error("canonical post with synthesized ids differs across identical runs")
	}
}

// TestRunListingFailureDegrades verifies a dead listing degrades the run
// to text-only resolution with a single warning instead of aborting.
func TestRunListingFailureDegrades(t *testing.T) {
	postsDir := seedPosts(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	warns := &archive.Collector{}
	b := New(Config{
		PostsDir:   postsDir,
		OutDir:     t.TempDir(),
		Lister:     failingLister{},
		Classifier: media.NewClassifier(testBase, logger, warns),
		Resolver:   media.NewResolver(logger, warns),
		Normalizer: normalize.New(logger, warns),
		Order:      map[string]int{},
		Logger:     logger,
		Warns:      warns,
	})

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want graceful degradation", err)
	}
	if report.Posts != 2 {
		t.Errorf("posts = %d, want 2", report.Posts)
	}

	listingWarnings := 0
	for _, w := range report.Warnings {
		if w.Type == archive.WarnConfig {
			listingWarnings++
		}
	}
	if listingWarnings != 1 {
		t.Errorf("listing failure warned %d times, want exactly once", listingWarnings)
	}
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]string, error) {
	return nil, os.ErrDeadlineExceeded
}

func TestRunDuplicateIDWarns(t *testing.T) {
	postsDir := t.TempDir()
	writeFile(t, filepath.Join(postsDir, "one.json"), `{"id":"dup","title":"a","subreddit":"s","author":"u","created_utc":1}`)
	writeFile(t, filepath.Join(postsDir, "two.json"), `{"id":"dup","title":"b","subreddit":"s","author":"u","created_utc":2}`)

	b := testBuilder(t, postsDir, t.TempDir(), nil, false)
	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if report.Posts != 2 {
		t.Errorf("posts = %d, want 2 (duplicates kept, not dropped)", report.Posts)
	}
	found := false
	for _, w := range report.Warnings {
		if w.ID == "dup" && strings.Contains(w.Note, "duplicate post id") {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate-id warning: %v", report.Warnings)
	}
}
