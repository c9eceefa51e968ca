package media

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)`)
	markdownLinkRe  = regexp.MustCompile(`(?:^|[^!])\[[^\]]*\]\(([^)\s]+)`)
	bareURLRe       = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)
)

var embeddedExts = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// embeddedImageLinks scans a post's own text body for image links when the
// bucket holds nothing for it. Markdown image syntax wins over markdown
// links, which win over bare URLs; html is the platform-rendered body and
// contributes <img> and <a> targets last. The result is deduplicated by
// URL in that priority order.
func embeddedImageLinks(text, html string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(raw string) {
		u := strings.TrimSpace(raw)
		u = strings.ReplaceAll(u, "&amp;", "&")
		if !isImageLink(u) || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	for _, m := range markdownImageRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range markdownLinkRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareURLRe.FindAllString(text, -1) {
		add(m)
	}

	if html != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			doc.Find("img").Each(func(_ int, s *goquery.Selection) {
				if src, ok := s.Attr("src"); ok {
					add(src)
				}
			})
			doc.Find("a").Each(func(_ int, s *goquery.Selection) {
				if href, ok := s.Attr("href"); ok {
					add(href)
				}
			})
		}
	}

	return out
}

// isImageLink reports whether a URL plausibly points at an embeddable
// image. Trailing query strings and fragments are ignored.
func isImageLink(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return false
	}
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range embeddedExts {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
