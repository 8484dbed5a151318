// Package rss fetches and parses podcast RSS feeds.
package rss

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/service"
)

// Common feed errors.
var (
	// ErrInvalidFeed is returned when the document parses but contains no
	// usable channel.
	ErrInvalidFeed = errors.New("invalid RSS feed: no title or entries found")
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// rssDocument mirrors the RSS 2.0 structure plus the iTunes and
// Podcasting 2.0 extensions we care about.
type rssDocument struct {
	Channel struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		Description string `xml:"description"`
		Language    string `xml:"language"`
		Author      string `xml:"author"`
		ITunesOwner string `xml:"owner>name"`
		Items       []struct {
			Title       string `xml:"title"`
			GUID        string `xml:"guid"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			Duration    string `xml:"duration"`
			Enclosure   struct {
				URL    string `xml:"url,attr"`
				Type   string `xml:"type,attr"`
				Length int64  `xml:"length,attr"`
			} `xml:"enclosure"`
			Transcripts []struct {
				URL  string `xml:"url,attr"`
				Type string `xml:"type,attr"`
			} `xml:"transcript"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Client fetches podcast feeds over HTTP and parses them into the service
// layer's feed representation. Implements service.FeedSource.
type Client struct {
	client *http.Client
	logger *slog.Logger
}

var _ service.FeedSource = (*Client)(nil)

// NewClient creates a feed Client.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Fetch downloads and parses the feed at url.
func (c *Client) Fetch(ctx context.Context, url string) (*service.FeedData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch feed: status %s", resp.Status)
	}

	var doc rssDocument
	decoder := xml.NewDecoder(resp.Body)
	// Podcast feeds show up in every conceivable legacy encoding.
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("RSS parse error: %w", err)
	}

	return c.convert(&doc)
}

func (c *Client) convert(doc *rssDocument) (*service.FeedData, error) {
	ch := doc.Channel
	if ch.Title == "" && len(ch.Items) == 0 {
		return nil, ErrInvalidFeed
	}

	author := ch.Author
	if author == "" {
		author = ch.ITunesOwner
	}

	data := &service.FeedData{
		Title:       ch.Title,
		Link:        ch.Link,
		Description: cleanHTML(ch.Description),
		Author:      author,
		Language:    ch.Language,
	}

	for _, item := range ch.Items {
		// Items without audio are show notes, not episodes.
		if item.Enclosure.URL == "" {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Enclosure.URL
		}

		feedItem := service.FeedItem{
			GUID:        guid,
			Title:       item.Title,
			Description: cleanHTML(item.Description),
			Link:        item.Link,
			AudioURL:    item.Enclosure.URL,
			AudioType:   item.Enclosure.Type,
			AudioSize:   item.Enclosure.Length,
			Duration:    parseDuration(item.Duration),
		}

		if published, err := parsePubDate(item.PubDate); err == nil {
			feedItem.PublishedAt = &published
		}

		for _, transcript := range item.Transcripts {
			if transcript.URL != "" {
				feedItem.TranscriptURL = transcript.URL
				break
			}
		}

		data.Items = append(data.Items, feedItem)
	}

	return data, nil
}

// parsePubDate accepts the RFC 1123 variants seen in the wild.
func parsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", value)
}

// parseDuration converts itunes:duration values, either plain seconds or
// HH:MM:SS / MM:SS clock notation, into seconds.
func parseDuration(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if !strings.Contains(value, ":") {
		if seconds, err := strconv.Atoi(value); err == nil {
			return seconds
		}
		return 0
	}

	parts := strings.Split(value, ":")
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func cleanHTML(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}
