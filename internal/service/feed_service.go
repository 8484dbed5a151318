package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

// FeedService manages feed subscriptions and episode ingestion.
type FeedService struct {
	feeds    store.FeedStore
	episodes store.EpisodeStore
	tasks    TaskIndex
	engine   TaskEngine
	source   FeedSource
	logger   *slog.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(
	feeds store.FeedStore,
	episodes store.EpisodeStore,
	tasks TaskIndex,
	engine TaskEngine,
	source FeedSource,
	logger *slog.Logger,
) (*FeedService, error) {
	if feeds == nil || episodes == nil {
		return nil, errors.New("feed service requires feed and episode stores")
	}
	if tasks == nil || engine == nil {
		return nil, errors.New("feed service requires a task index and engine")
	}
	if source == nil {
		return nil, errors.New("feed service requires a feed source")
	}
	if logger == nil {
		return nil, errors.New("feed service requires a logger")
	}

	return &FeedService{
		feeds:    feeds,
		episodes: episodes,
		tasks:    tasks,
		engine:   engine,
		source:   source,
		logger:   logger,
	}, nil
}

// Get retrieves a feed by ID.
func (s *FeedService) Get(ctx context.Context, id uuid.UUID) (*domain.Feed, error) {
	return s.feeds.GetByID(ctx, id)
}

// List retrieves all subscribed feeds.
func (s *FeedService) List(ctx context.Context) ([]*domain.Feed, error) {
	return s.feeds.List(ctx)
}

// Delete removes a feed subscription.
func (s *FeedService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.feeds.Delete(ctx, id)
}

// Add subscribes to a feed. The feed is fetched synchronously so the caller
// gets immediate feedback on an unreachable or malformed URL, and the
// episodes present at subscription time are ingested in the same call.
func (s *FeedService) Add(ctx context.Context, url string) (*domain.Feed, error) {
	feed, err := domain.NewFeed(url)
	if err != nil {
		return nil, err
	}

	data, err := s.source.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	applyFeedData(feed, data)

	if err := s.feeds.Create(ctx, feed); err != nil {
		return nil, err
	}

	added, err := s.ingestItems(ctx, feed.ID, data.Items)
	if err != nil {
		// The subscription itself succeeded; partial ingestion is repaired
		// by the next refresh.
		s.logger.Error("episode ingestion incomplete for new feed",
			"feed_id", feed.ID,
			"ingested", added,
			"error", err)
	}

	s.logger.Info("feed added", "feed_id", feed.ID, "url", url, "episodes", added)
	return feed, nil
}

// Refresh submits a background task that re-fetches the feed and ingests any
// new episodes. At most one refresh per feed runs at a time.
func (s *FeedService) Refresh(ctx context.Context, feedID uuid.UUID) (uuid.UUID, error) {
	if _, err := s.feeds.GetByID(ctx, feedID); err != nil {
		return uuid.Nil, err
	}

	existing, err := s.tasks.FindActiveTask(ctx, task.TypeFeedRefresh, feedID)
	if err != nil && !errors.Is(err, task.ErrTaskNotFound) {
		return uuid.Nil, fmt.Errorf("failed to check for active task: %w", err)
	}
	if existing != nil {
		return uuid.Nil, ErrTaskAlreadyRunning
	}

	return s.engine.Submit(ctx, task.TypeFeedRefresh, feedID, s.refreshJob(feedID))
}

// refreshJob is the feed refresh task body.
func (s *FeedService) refreshJob(feedID uuid.UUID) task.Job {
	return func(ctx context.Context, progress task.ProgressFunc) (any, error) {
		feed, err := s.feeds.GetByID(ctx, feedID)
		if err != nil {
			return nil, fmt.Errorf("failed to load feed: %w", err)
		}

		progress(10)

		data, err := s.source.Fetch(ctx, feed.URL)
		if err != nil {
			s.recordCheckFailure(ctx, feed, err)
			return nil, fmt.Errorf("failed to fetch feed: %w", err)
		}

		progress(50)

		added, ingestErr := s.ingestItems(ctx, feed.ID, data.Items)

		applyFeedData(feed, data)
		now := time.Now().UTC()
		feed.LastChecked = &now
		feed.CheckError = ""
		feed.Status = domain.FeedStatusActive
		feed.UpdatedAt = now
		if err := s.feeds.Update(ctx, feed); err != nil {
			return nil, fmt.Errorf("failed to update feed: %w", err)
		}

		if ingestErr != nil {
			return nil, fmt.Errorf("ingested %d episodes before failing: %w", added, ingestErr)
		}

		return map[string]any{"new_episodes": added}, nil
	}
}

// recordCheckFailure stores the fetch error on the feed, best effort.
func (s *FeedService) recordCheckFailure(ctx context.Context, feed *domain.Feed, cause error) {
	now := time.Now().UTC()
	feed.LastChecked = &now
	feed.CheckError = cause.Error()
	feed.Status = domain.FeedStatusError
	feed.UpdatedAt = now
	if err := s.feeds.Update(ctx, feed); err != nil {
		s.logger.Error("failed to record feed check failure",
			"feed_id", feed.ID,
			"error", err)
	}
}

// ingestItems creates episodes for feed items not seen before, keyed by GUID.
// Returns the number of new episodes created.
func (s *FeedService) ingestItems(ctx context.Context, feedID uuid.UUID, items []FeedItem) (int, error) {
	added := 0
	for _, item := range items {
		_, err := s.episodes.FindByGUID(ctx, feedID, item.GUID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrEpisodeNotFound) {
			return added, fmt.Errorf("failed to check for existing episode: %w", err)
		}

		episode, err := domain.NewEpisode(feedID, item.GUID, item.Title)
		if err != nil {
			s.logger.Warn("skipping invalid feed item",
				"feed_id", feedID,
				"guid", item.GUID,
				"error", err)
			continue
		}
		episode.Description = item.Description
		episode.Link = item.Link
		episode.AudioURL = item.AudioURL
		episode.AudioType = item.AudioType
		episode.AudioSize = item.AudioSize
		episode.Duration = item.Duration
		episode.TranscriptURL = item.TranscriptURL
		episode.PublishedAt = item.PublishedAt

		if err := s.episodes.Create(ctx, episode); err != nil {
			if errors.Is(err, store.ErrEpisodeExists) {
				continue
			}
			return added, fmt.Errorf("failed to create episode: %w", err)
		}
		added++
	}
	return added, nil
}

// applyFeedData copies feed-level metadata from a fetched document.
func applyFeedData(feed *domain.Feed, data *FeedData) {
	feed.Title = data.Title
	feed.Description = data.Description
	feed.Author = data.Author
	feed.Language = data.Language
}
