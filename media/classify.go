// Package media turns the flat bucket key listing into per-post media
// records and decides each post's final media classification.
package media

import (
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"reddit-archive/pkg/archive"
)

// Bucket category prefixes, matching the uploader's layout.
const (
	prefixImages    = "Images"
	prefixVideos    = "Videos"
	prefixGifs      = "Gifs"
	prefixRedGiphys = "RedGiphys"
)

var stillExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".avif": true, ".bmp": true, ".tiff": true,
}

// Classifier parses bucket object keys into per-post media records.
type Classifier struct {
	logger     *slog.Logger
	warns      *archive.Collector
	warnedBase map[string]bool // posts already warned about a missing media base
	base       string          // media base URL; "" means URLs cannot be resolved
}

// NewClassifier creates a classifier. base is the public URL prefix the
// bucket is served from; when empty every derived URL is left unresolved
// and each affected post gets a single configuration warning.
func NewClassifier(base string, logger *slog.Logger, warns *archive.Collector) *Classifier {
	return &Classifier{
		logger:     logger,
		warns:      warns,
		warnedBase: make(map[string]bool),
		base:       strings.TrimSuffix(base, "/"),
	}
}

type galleryFrame struct {
	key   string
	index int
}

// Classify builds a media record per post id from the full key listing.
// Unrecognized keys are ignored. Gallery frames are ordered by their
// embedded two-digit index regardless of listing order, and loose images
// are deduplicated preserving first-seen order.
func (c *Classifier) Classify(keys []string) map[string]*archive.MediaRecord {
	records := make(map[string]*archive.MediaRecord)
	frames := make(map[string][]galleryFrame)
	seen := make(map[string]map[string]bool)
	counts := make(map[string]int)

	record := func(id string) *archive.MediaRecord {
		rec, ok := records[id]
		if !ok {
			rec = &archive.MediaRecord{}
			records[id] = rec
		}
		return rec
	}

	for _, key := range keys {
		parts := strings.Split(key, "/")
		ext := strings.ToLower(path.Ext(key))

		switch {
		case len(parts) == 3 && parts[0] == prefixImages && stillExts[ext]:
			// Gallery frame: Images/<id>/<NN>.<ext>
			stem := strings.TrimSuffix(parts[2], path.Ext(parts[2]))
			index, err := strconv.Atoi(stem)
			if err != nil || len(stem) != 2 {
				continue
			}
			counts[prefixImages]++
			frames[parts[1]] = append(frames[parts[1]], galleryFrame{key: key, index: index})

		case len(parts) == 2:
			id := strings.TrimSuffix(parts[1], path.Ext(parts[1]))
			if id == "" {
				continue
			}
			switch {
			case parts[0] == prefixVideos && ext == ".mp4":
				counts[prefixVideos]++
				rec := record(id)
				rec.HasVideo = true
				rec.Video = c.url(id, key)
			case parts[0] == prefixRedGiphys && ext == ".mp4":
				counts[prefixRedGiphys]++
				rec := record(id)
				rec.HasAltVideo = true
				rec.AltVideo = c.url(id, key)
			case parts[0] == prefixGifs && ext == ".gif":
				counts[prefixGifs]++
				rec := record(id)
				rec.HasAnimated = true
				rec.AnimatedImage = c.url(id, key)
			case parts[0] == prefixImages && stillExts[ext]:
				counts[prefixImages]++
				rec := record(id)
				rec.ImageCount++
				u := c.url(id, key)
				if u == "" {
					continue
				}
				if seen[id] == nil {
					seen[id] = make(map[string]bool)
				}
				if !seen[id][u] {
					seen[id][u] = true
					rec.Images = append(rec.Images, u)
				}
			}
		}
	}

	for id, list := range frames {
		sort.Slice(list, func(i, j int) bool {
			if list[i].index != list[j].index {
				return list[i].index < list[j].index
			}
			return list[i].key < list[j].key
		})
		rec := record(id)
		rec.FrameCount = len(list)
		for _, f := range list {
			if u := c.url(id, f.key); u != "" {
				rec.Gallery = append(rec.Gallery, u)
			}
		}
	}

	for cat, n := range counts {
		c.logger.Info("Bucket category classified", "category", cat, "keys", n)
	}

	return records
}

// url maps a recognized key to its public URL. With no media base the URL
// is unresolvable; the first unresolvable key of a post records one
// warning for that post.
func (c *Classifier) url(id, key string) string {
	if c.base == "" {
		if !c.warnedBase[id] {
			c.warnedBase[id] = true
			c.warns.Warn(id, "media base URL not configured; media URLs left unresolved", archive.WarnConfig)
		}
		return ""
	}
	return c.base + "/" + key
}
