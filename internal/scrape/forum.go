package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// ForumHeader marks the start of the posts table on the front page.
const ForumHeader = "Last Forum Posts"

// ParseForum extracts the front page post list, newest first. Relative
// links are resolved against base.
func ParseForum(table ParsedTable, base string) []model.Post {
	baseURL, _ := url.Parse(base)

	var posts []model.Post
	found := false
	for _, row := range table {
		if row.Len() == 0 {
			continue
		}
		if !found {
			found = strings.Contains(row.Text(0), ForumHeader)
			continue
		}
		if row.Len() != 4 {
			continue
		}
		posts = append(posts, model.Post{
			Thread:     row.Text(0),
			ThreadLink: resolve(baseURL, row.Cells[0].Link),
			Poster:     row.Text(1),
			PosterLink: resolve(baseURL, row.Cells[1].Link),
		})
	}
	return posts
}

func resolve(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ParseForumFeed reads the forum RSS/Atom feed, newest first. Each entry
// becomes a post by its author in the thread named by the entry title.
func ParseForumFeed(body []byte) ([]model.Post, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse forum feed: %w", err)
	}

	posts := make([]model.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		post := model.Post{
			Thread:     strings.TrimSpace(item.Title),
			ThreadLink: item.Link,
		}
		switch {
		case item.Author != nil:
			post.Poster = item.Author.Name
		case len(item.Authors) > 0 && item.Authors[0] != nil:
			post.Poster = item.Authors[0].Name
		}
		posts = append(posts, post)
	}
	return posts, nil
}
