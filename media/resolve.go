package media

import (
	"log/slog"
	"strings"

	"reddit-archive/pkg/archive"
)

// Media types a post can resolve to.
const (
	TypeImage   = "image"
	TypeGallery = "gallery"
	TypeVideo   = "video"
	TypeGif     = "gif"
	TypeText    = "text"
)

// Platform-provided preview resolutions are preferred inside this width
// band; the smallest member wins to keep list thumbnails cheap.
const (
	previewBandMin = 320
	previewBandMax = 960
)

// Resolution is the outcome of media resolution for one post.
type Resolution struct {
	Type          string
	URLs          []string
	CompactURL    string
	Preview       string // "" when no still-image preview could be found
	PreviewWidth  int
	PreviewHeight int
	GalleryCount  int
	Dir           string // bucket category the media came from, "" for external media
}

// Resolver decides the single best media classification for a post.
type Resolver struct {
	logger *slog.Logger
	warns  *archive.Collector
}

// NewResolver creates a resolver that records anomalies on warns.
func NewResolver(logger *slog.Logger, warns *archive.Collector) *Resolver {
	return &Resolver{logger: logger, warns: warns}
}

// Resolve applies the media priority policy: primary video, alternate
// video, animated image, gallery of at least two frames, single image
// (a lone gallery frame counts), then links embedded in the post's own
// text. hint is the discovery
// subfolder's non-authoritative media-type suggestion, consulted only when
// everything else resolves to text. The returned preview, when set, is
// guaranteed to be a still-image URL.
func (r *Resolver) Resolve(id string, post archive.Post, rec *archive.MediaRecord, hint string) Resolution {
	if rec == nil {
		rec = &archive.MediaRecord{}
	}

	res := r.classify(post, rec, hint)
	r.guaranteePreview(id, post, rec, &res)

	if impliesMedia(res.Type) && len(res.URLs) == 0 {
		r.warns.Warnf(id, archive.WarnMedia, "media type %s resolved but no usable media URL", res.Type)
	}

	if res.CompactURL == "" {
		if res.Preview != "" {
			res.CompactURL = res.Preview
		} else if len(res.URLs) > 0 {
			res.CompactURL = res.URLs[0]
		}
	}

	return res
}

func (r *Resolver) classify(post archive.Post, rec *archive.MediaRecord, hint string) Resolution {
	switch {
	case rec.HasVideo:
		return Resolution{Type: TypeVideo, URLs: nonEmpty(rec.Video), Preview: firstStill(rec), Dir: prefixVideos}
	case rec.HasAltVideo:
		return Resolution{Type: TypeVideo, URLs: nonEmpty(rec.AltVideo), Preview: firstStill(rec), Dir: prefixRedGiphys}
	case rec.HasAnimated:
		return Resolution{Type: TypeGif, URLs: nonEmpty(rec.AnimatedImage), Preview: firstStill(rec), Dir: prefixGifs}
	case rec.FrameCount >= 2:
		res := Resolution{Type: TypeGallery, URLs: rec.Gallery, GalleryCount: rec.FrameCount, Dir: prefixImages}
		if len(rec.Gallery) > 0 {
			res.Preview = rec.Gallery[0]
		}
		return res
	case rec.ImageCount >= 1:
		res := Resolution{Type: TypeImage, Dir: prefixImages}
		if len(rec.Images) > 0 {
			res.URLs = []string{rec.Images[0]}
			res.Preview = rec.Images[0]
		}
		return res
	case rec.FrameCount == 1:
		// A lone gallery frame is still uploaded media; treat it as a
		// single image rather than dropping it.
		res := Resolution{Type: TypeImage, Dir: prefixImages}
		if len(rec.Gallery) > 0 {
			res.URLs = []string{rec.Gallery[0]}
			res.Preview = rec.Gallery[0]
		}
		return res
	}

	// Nothing in the bucket: fall back to links embedded in the post body.
	links := embeddedImageLinks(post.Str("selftext"), post.Str("selftext_html"))
	switch {
	case len(links) >= 2:
		return Resolution{Type: TypeGallery, URLs: links, GalleryCount: len(links), Preview: links[0]}
	case len(links) == 1:
		return Resolution{Type: TypeImage, URLs: links, Preview: links[0]}
	}

	if t := hintType(hint); t != "" {
		return Resolution{Type: t}
	}
	return Resolution{Type: TypeText}
}

// guaranteePreview enforces the still-image invariant: a preview that is
// not recognizably a still image is discarded, then backfilled from the
// post's own media record, then from the platform-provided preview or
// thumbnail structure. A post whose media implies a preview but ends up
// without one gets a warning tagged with its resolved type.
func (r *Resolver) guaranteePreview(id string, post archive.Post, rec *archive.MediaRecord, res *Resolution) {
	if res.Preview != "" && !archive.StillImage(res.Preview) {
		res.Preview = ""
	}
	if res.Preview == "" {
		res.Preview = firstStill(rec)
	}
	if res.Preview == "" {
		res.Preview, res.PreviewWidth, res.PreviewHeight = platformPreview(post)
	}
	if res.Preview == "" && impliesMedia(res.Type) {
		r.warns.Warnf(id, archive.WarnMedia, "no still-image preview for %s post", res.Type)
	}
}

// platformPreview digs a still-image URL out of the platform's own preview
// structure, preferring the smallest resolution inside the target width
// band, then the first available resolution, then the generic thumbnail.
func platformPreview(post archive.Post) (url string, width, height int) {
	if preview := post.Map("preview"); preview != nil {
		if images, ok := preview["images"].([]any); ok && len(images) > 0 {
			if first, ok := images[0].(map[string]any); ok {
				if u, w, h := pickResolution(first); u != "" {
					return u, w, h
				}
			}
		}
	}

	thumb := post.Str("thumbnail")
	if strings.HasPrefix(thumb, "http://") || strings.HasPrefix(thumb, "https://") {
		w, _ := post.Num("thumbnail_width")
		h, _ := post.Num("thumbnail_height")
		return thumb, int(w), int(h)
	}
	return "", 0, 0
}

func pickResolution(image map[string]any) (url string, width, height int) {
	resolutions, ok := image["resolutions"].([]any)
	if !ok {
		return "", 0, 0
	}

	type candidate struct {
		url           string
		width, height int
	}
	var all []candidate
	for _, raw := range resolutions {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rec := archive.Post(m)
		u := strings.ReplaceAll(rec.Str("url"), "&amp;", "&")
		if u == "" {
			continue
		}
		w, _ := rec.Num("width")
		h, _ := rec.Num("height")
		all = append(all, candidate{url: u, width: int(w), height: int(h)})
	}
	if len(all) == 0 {
		return "", 0, 0
	}

	best := candidate{}
	for _, c := range all {
		if c.width < previewBandMin || c.width > previewBandMax {
			continue
		}
		if best.url == "" || c.width < best.width {
			best = c
		}
	}
	if best.url == "" {
		best = all[0]
	}
	return best.url, best.width, best.height
}

func firstStill(rec *archive.MediaRecord) string {
	for _, u := range rec.Images {
		if archive.StillImage(u) {
			return u
		}
	}
	for _, u := range rec.Gallery {
		if archive.StillImage(u) {
			return u
		}
	}
	return ""
}

func impliesMedia(mediaType string) bool {
	switch mediaType {
	case TypeImage, TypeGallery, TypeVideo, TypeGif:
		return true
	}
	return false
}

func hintType(hint string) string {
	switch strings.ToLower(hint) {
	case TypeImage, TypeGallery, TypeVideo, TypeGif:
		return strings.ToLower(hint)
	}
	return ""
}

func nonEmpty(urls ...string) []string {
	var out []string
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
