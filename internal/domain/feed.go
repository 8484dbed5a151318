package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FeedStatus represents the health of a subscribed feed.
type FeedStatus string

// Possible feed status values.
const (
	FeedStatusActive FeedStatus = "active"
	FeedStatusPaused FeedStatus = "paused"
	FeedStatusError  FeedStatus = "error"
)

// Common validation errors for Feed.
var (
	ErrEmptyFeedID  = errors.New("feed ID cannot be empty")
	ErrEmptyFeedURL = errors.New("feed URL cannot be empty")
)

// Feed represents a subscribed podcast feed. Feed-format parsing is handled
// by an external collaborator; the domain only records the subscription and
// its refresh bookkeeping.
type Feed struct {
	ID          uuid.UUID  `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Author      string     `json:"author"`
	Language    string     `json:"language"`
	Status      FeedStatus `json:"status"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	CheckError  string     `json:"check_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewFeed creates a new active Feed for the given URL.
func NewFeed(url string) (*Feed, error) {
	now := time.Now().UTC()
	feed := &Feed{
		ID:        uuid.New(),
		URL:       url,
		Status:    FeedStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := feed.Validate(); err != nil {
		return nil, err
	}

	return feed, nil
}

// Validate checks if the Feed has valid data.
func (f *Feed) Validate() error {
	if f.ID == uuid.Nil {
		return ErrEmptyFeedID
	}
	if f.URL == "" {
		return ErrEmptyFeedURL
	}
	return nil
}
