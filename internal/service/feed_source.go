package service

import (
	"context"
	"time"
)

// FeedData is the parsed representation of a podcast feed, produced by a
// FeedSource implementation.
type FeedData struct {
	Title       string
	Link        string
	Description string
	Author      string
	Language    string
	Items       []FeedItem
}

// FeedItem is one episode entry from a feed.
type FeedItem struct {
	GUID          string
	Title         string
	Description   string
	Link          string
	AudioURL      string
	AudioType     string
	AudioSize     int64
	Duration      int
	TranscriptURL string
	PublishedAt   *time.Time
}

// FeedSource fetches and parses a podcast feed. The service layer does not
// care about the feed format; the adapter owning the format lives elsewhere.
type FeedSource interface {
	// Fetch downloads and parses the feed at url.
	Fetch(ctx context.Context, url string) (*FeedData, error)
}
