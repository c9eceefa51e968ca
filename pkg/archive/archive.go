// Package archive contains the core domain types for the saved-post archive builder.
package archive

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Post is a permissive post record: the raw JSON object of a saved post,
// of no guaranteed shape. Normalization fills in the required fields and
// leaves every other key untouched, so the canonical document written to
// disk is a superset of the input.
type Post map[string]any

// Str returns the named field coerced to a string, or "" when the field
// is absent or not a string.
func (p Post) Str(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Num returns the named field as a float64 when it is finite-numeric.
func (p Post) Num(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Map returns the named field as a nested object, or nil.
func (p Post) Map(key string) map[string]any {
	if v, ok := p[key].(map[string]any); ok {
		return v
	}
	return nil
}

// ID returns the post's id field.
func (p Post) ID() string { return p.Str("id") }

// Comment is a canonical comment-tree node. Replies is never nil.
type Comment struct {
	ID      string     `json:"id"`
	Author  *string    `json:"author"`
	Body    string     `json:"body"`
	Score   *float64   `json:"score"`
	Replies []*Comment `json:"replies"`
}

// MediaRecord is the per-post classification of recognized storage objects.
// URL fields stay empty when no media base is configured, but the Has*
// flags and counts still reflect what the bucket holds, so resolution can
// report "media exists but is unreachable" instead of silently degrading
// to a text post.
type MediaRecord struct {
	Images        []string // loose single-image URLs, first-seen order, deduplicated
	Gallery       []string // gallery frame URLs ordered by embedded frame index
	Video         string   // primary video URL, "" when none
	AltVideo      string   // alternate-video (RedGiphys) URL, "" when none
	AnimatedImage string   // animated image (gif) URL, "" when none
	ImageCount    int      // recognized loose images
	FrameCount    int      // recognized gallery frames, counted before URL resolution
	HasVideo      bool
	HasAltVideo   bool
	HasAnimated   bool
}

// ManifestEntry is the flattened per-post projection driving the feed view.
type ManifestEntry struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Subreddit       string   `json:"subreddit"`
	Author          string   `json:"author"`
	CreatedUTC      *float64 `json:"created_utc"`
	Score           *float64 `json:"score"`
	NumComments     *float64 `json:"num_comments"`
	Flair           string   `json:"flair,omitempty"`
	Permalink       string   `json:"permalink,omitempty"`
	URL             string   `json:"url,omitempty"`
	LinkDomain      string   `json:"link_domain,omitempty"`
	SelftextPreview string   `json:"selftext_preview,omitempty"`
	MediaType       string   `json:"media_type"`
	MediaURLs       []string `json:"media_urls"`
	MediaURLCompact string   `json:"media_url_compact,omitempty"`
	MediaPreview    *string  `json:"media_preview"`
	PreviewWidth    int      `json:"preview_width,omitempty"`
	PreviewHeight   int      `json:"preview_height,omitempty"`
	GalleryCount    int      `json:"gallery_count,omitempty"`
	MediaDir        string   `json:"media_dir,omitempty"`
	OrderIndex      *int     `json:"order_index,omitempty"`
}

// FacetCount is one name/count pair in a facet table.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Warning is one recoverable anomaly recorded during a build.
type Warning struct {
	ID   string `json:"id,omitempty"`
	Note string `json:"note"`
	Type string `json:"type,omitempty"`
}

// Warning categories.
const (
	WarnSchema = "schema"
	WarnIO     = "io"
	WarnConfig = "config"
	WarnMedia  = "media"
)

// Report is the end-of-run diagnostic document.
type Report struct {
	Posts                  int       `json:"posts"`
	NormalizedPostsWritten int       `json:"normalized_posts_written"`
	Warnings               []Warning `json:"warnings"`
}

// Collector accumulates warnings for one build run. Warnings keep their
// append order; the build is single-threaded so no locking is needed.
type Collector struct {
	warnings []Warning
}

// Warn records one warning.
func (c *Collector) Warn(id, note, category string) {
	c.warnings = append(c.warnings, Warning{ID: id, Note: note, Type: category})
}

// Warnf records one warning with a formatted note.
func (c *Collector) Warnf(id, category, format string, args ...any) {
	c.Warn(id, fmt.Sprintf(format, args...), category)
}

// Warnings returns the accumulated warnings in append order.
func (c *Collector) Warnings() []Warning {
	return c.warnings
}

// Len returns the number of accumulated warnings.
func (c *Collector) Len() int { return len(c.warnings) }

// HashID derives a short deterministic id from the given parts.
// FNV-1a is enough for archive-scale collision resistance; parts are
// NUL-joined so ("ab","c") and ("a","bc") hash differently.
func HashID(parts ...string) string {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ShortHash is a 32-bit variant of HashID used for synthesized comment ids,
// where the positional path already disambiguates siblings.
func ShortHash(parts ...string) string {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%08x", h.Sum32())
}

// StillImage reports whether a URL ends in a still-image extension.
// Animated gifs and videos are deliberately excluded: previews must
// always be still images.
func StillImage(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
