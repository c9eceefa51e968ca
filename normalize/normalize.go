// Package normalize turns raw saved-post JSON of arbitrary shape into the
// canonical documents the archive site consumes. Normalization is total:
// every input yields exactly one canonical record, and anomalies surface
// as build warnings rather than errors.
package normalize

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"reddit-archive/pkg/archive"
)

// Normalizer coerces raw post and comment records.
type Normalizer struct {
	logger *slog.Logger
	warns  *archive.Collector
}

// New creates a normalizer that records anomalies on warns.
func New(logger *slog.Logger, warns *archive.Collector) *Normalizer {
	return &Normalizer{logger: logger, warns: warns}
}

// Post coerces a raw post record into its canonical shape. Required fields
// are filled through fallbacks, comments are normalized in place, and every
// other field passes through verbatim. idHint (usually the source filename
// stem) is consulted before synthesizing an id from a content hash.
func (n *Normalizer) Post(raw map[string]any, idHint string) archive.Post {
	out := make(archive.Post, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	rec := archive.Post(raw)

	var coerced []string

	id := firstNonEmpty(
		strings.TrimSpace(rec.Str("id")),
		strings.TrimSpace(rec.Str("name")),
		strings.TrimSpace(rec.Str("reddit_id")),
		strings.TrimSpace(idHint),
	)
	if id == "" {
		id = "p-" + contentHash(raw)
		coerced = append(coerced, "id")
	}
	out["id"] = id

	for _, key := range []string{"title", "subreddit", "author"} {
		if _, ok := raw[key].(string); !ok {
			out[key] = ""
			coerced = append(coerced, key)
		}
	}

	if created, ok := rec.Num("created_utc"); ok {
		out["created_utc"] = created
	} else {
		out["created_utc"] = nil
		coerced = append(coerced, "created_utc")
	}

	if comments, ok := findComments(rec); ok {
		tree := make([]*archive.Comment, 0, len(comments))
		for i, node := range comments {
			tree = append(tree, n.Comment(node, id, id, strconv.Itoa(i)))
		}
		out["comments"] = tree
	} else {
		// Distinguish "no comments field" from "empty comments array":
		// only replace the key when a comment array actually existed.
		delete(out, "comments")
	}

	if len(coerced) > 0 {
		n.warns.Warnf(id, archive.WarnSchema, "coerced missing or invalid fields: %s", strings.Join(coerced, ", "))
		n.logger.Debug("Post fields coerced", "id", id, "fields", coerced)
	}

	return out
}

// findComments locates the post's comment array, checking raw.comments
// before raw.data.comments. A comments field of any other type counts as
// absent.
func findComments(rec archive.Post) ([]any, bool) {
	if arr, ok := rec["comments"].([]any); ok {
		return arr, true
	}
	if data := rec.Map("data"); data != nil {
		if arr, ok := data["comments"].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// contentHash hashes the whole raw record. encoding/json sorts map keys,
// so the same record always hashes the same.
func contentHash(raw map[string]any) string {
	data, err := json.Marshal(raw)
	if err != nil {
		// Unmarshalled JSON always re-marshals; guard anyway.
		return archive.HashID("unmarshalable")
	}
	return archive.HashID(string(data))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
