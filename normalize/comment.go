package normalize

import (
	"fmt"
	"strings"

	"reddit-archive/pkg/archive"
)

// Comment coerces an arbitrarily-shaped comment-like value into a canonical
// tree node. node may be a single comment object, a reddit Listing wrapper,
// a reply array, an empty string (meaning "no replies"), or garbage; none of
// these fail. path is the positional path from the post root (e.g. "0.2.1")
// and, together with parentID and a content hash, seeds deterministic id
// synthesis when the source carries no id.
func (n *Normalizer) Comment(node any, postID, parentID, path string) *archive.Comment {
	obj, ok := unwrapNode(node).(map[string]any)
	if !ok {
		// Non-object nodes normalize to a fully-defaulted comment.
		c := &archive.Comment{Replies: []*archive.Comment{}}
		c.ID = n.commentID(c, postID, parentID, path)
		return c
	}

	rec := archive.Post(obj)
	c := &archive.Comment{
		Body:    rec.Str("body"),
		Replies: []*archive.Comment{},
	}
	if author, ok := obj["author"].(string); ok {
		c.Author = &author
	}
	if score, ok := rec.Num("score"); ok {
		c.Score = &score
	}

	c.ID = strings.TrimSpace(rec.Str("id"))
	if c.ID == "" {
		c.ID = n.commentID(c, postID, parentID, path)
	}

	for i, child := range replyNodes(obj["replies"]) {
		c.Replies = append(c.Replies, n.Comment(child, postID, c.ID, fmt.Sprintf("%s.%d", path, i)))
	}

	return c
}

// commentID synthesizes a stable comment id from the parent id, the
// positional path, and a content hash of body and author. Identical input
// at the identical position always yields the identical id, which keeps
// rebuilds byte-identical.
func (n *Normalizer) commentID(c *archive.Comment, postID, parentID, path string) string {
	author := ""
	if c.Author != nil {
		author = *c.Author
	}
	id := "c-" + archive.ShortHash(parentID, path, c.Body, author)
	n.warns.Warnf(postID, archive.WarnSchema, "synthesized comment id %s at %s", id, path)
	return id
}

// unwrapNode peels listing-style packaging off a single comment node.
// A {kind: "t1", data: {…}} element yields its inner data, and a full
// {data: {children: […]}} wrapper yields its first comment child, so both
// shapes are accepted wherever a comment object is. Anything else passes
// through untouched.
func unwrapNode(node any) any {
	obj, ok := node.(map[string]any)
	if !ok {
		return node
	}
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return node
	}
	if _, isListing := data["children"].([]any); isListing {
		if children := replyNodes(obj); len(children) > 0 {
			return unwrapNode(children[0])
		}
		return nil
	}
	if kind, ok := obj["kind"].(string); ok && kind == "t1" {
		return data
	}
	return node
}

// replyNodes flattens a replies value into a list of child nodes. Reddit
// encodes "no replies" as the empty string, a pre-normalized archive as a
// plain array, and the raw API as a Listing wrapper:
//
//	{ "data": { "children": [ { "kind": "t1", "data": {…} }, … ] } }
func replyNodes(replies any) []any {
	switch v := replies.(type) {
	case []any:
		return v
	case map[string]any:
		data, ok := v["data"].(map[string]any)
		if !ok {
			return nil
		}
		children, ok := data["children"].([]any)
		if !ok {
			return nil
		}
		var nodes []any
		for _, ch := range children {
			wrapper, ok := ch.(map[string]any)
			if !ok {
				nodes = append(nodes, ch)
				continue
			}
			// Listing children wrap the comment under "data"; "more"
			// stubs and other kinds carry no comment content.
			if kind, ok := wrapper["kind"].(string); ok && kind != "t1" {
				continue
			}
			if inner, ok := wrapper["data"].(map[string]any); ok {
				nodes = append(nodes, inner)
			} else {
				nodes = append(nodes, ch)
			}
		}
		return nodes
	}
	return nil
}
