package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/media"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/summarize"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
	"github.com/Zhong-Ze-Wei/podcast/internal/transcription"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nopProgress(int) {}

// fakeEpisodeStore is an in-memory store.EpisodeStore. Individual methods can
// be overridden through the Fn fields to inject failures.
type fakeEpisodeStore struct {
	mu             sync.Mutex
	episodes       map[uuid.UUID]*domain.Episode
	updateStatusFn func(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error
}

func newFakeEpisodeStore() *fakeEpisodeStore {
	return &fakeEpisodeStore{episodes: map[uuid.UUID]*domain.Episode{}}
}

func (f *fakeEpisodeStore) Create(ctx context.Context, episode *domain.Episode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.episodes {
		if existing.FeedID == episode.FeedID && existing.GUID == episode.GUID {
			return store.ErrEpisodeExists
		}
	}
	clone := *episode
	f.episodes[episode.ID] = &clone
	return nil
}

func (f *fakeEpisodeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return nil, store.ErrEpisodeNotFound
	}
	clone := *episode
	return &clone, nil
}

func (f *fakeEpisodeStore) FindByGUID(ctx context.Context, feedID uuid.UUID, guid string) (*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, episode := range f.episodes {
		if episode.FeedID == feedID && episode.GUID == guid {
			clone := *episode
			return &clone, nil
		}
	}
	return nil, store.ErrEpisodeNotFound
}

func (f *fakeEpisodeStore) List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Episode
	for _, episode := range f.episodes {
		if feedID != nil && episode.FeedID != *feedID {
			continue
		}
		clone := *episode
		result = append(result, &clone)
	}
	return result, nil
}

func (f *fakeEpisodeStore) Update(ctx context.Context, episode *domain.Episode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.episodes[episode.ID]; !ok {
		return store.ErrEpisodeNotFound
	}
	clone := *episode
	f.episodes[episode.ID] = &clone
	return nil
}

func (f *fakeEpisodeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return store.ErrEpisodeNotFound
	}
	episode.Status = status
	episode.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeEpisodeStore) SetAudioPath(ctx context.Context, id uuid.UUID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return store.ErrEpisodeNotFound
	}
	episode.AudioPath = path
	return nil
}

func (f *fakeEpisodeStore) SetHasTranscript(ctx context.Context, id uuid.UUID, has bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return store.ErrEpisodeNotFound
	}
	episode.HasTranscript = has
	return nil
}

func (f *fakeEpisodeStore) SetHasSummary(ctx context.Context, id uuid.UUID, has bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return store.ErrEpisodeNotFound
	}
	episode.HasSummary = has
	return nil
}

func (f *fakeEpisodeStore) WithTx(tx *sql.Tx) store.EpisodeStore { return f }

// mustStatus asserts the stored status of an episode.
func (f *fakeEpisodeStore) mustStatus(t *testing.T, id uuid.UUID) domain.EpisodeStatus {
	t.Helper()
	episode, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	return episode.Status
}

// fakeTranscriptStore is an in-memory store.TranscriptStore.
type fakeTranscriptStore struct {
	mu          sync.Mutex
	transcripts map[uuid.UUID]*domain.Transcript
}

func newFakeTranscriptStore() *fakeTranscriptStore {
	return &fakeTranscriptStore{transcripts: map[uuid.UUID]*domain.Transcript{}}
}

func (f *fakeTranscriptStore) Upsert(ctx context.Context, transcript *domain.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *transcript
	f.transcripts[transcript.EpisodeID] = &clone
	return nil
}

func (f *fakeTranscriptStore) GetByEpisode(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	transcript, ok := f.transcripts[episodeID]
	if !ok {
		return nil, store.ErrTranscriptNotFound
	}
	clone := *transcript
	return &clone, nil
}

func (f *fakeTranscriptStore) Delete(ctx context.Context, episodeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transcripts[episodeID]; !ok {
		return store.ErrTranscriptNotFound
	}
	delete(f.transcripts, episodeID)
	return nil
}

func (f *fakeTranscriptStore) WithTx(tx *sql.Tx) store.TranscriptStore { return f }

// fakeSummaryStore is an in-memory store.SummaryStore.
type fakeSummaryStore struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]map[string]*domain.Summary
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{summaries: map[uuid.UUID]map[string]*domain.Summary{}}
}

func (f *fakeSummaryStore) Upsert(ctx context.Context, summary *domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byTemplate, ok := f.summaries[summary.EpisodeID]
	if !ok {
		byTemplate = map[string]*domain.Summary{}
		f.summaries[summary.EpisodeID] = byTemplate
	}
	clone := *summary
	byTemplate[summary.TemplateName] = &clone
	return nil
}

func (f *fakeSummaryStore) GetByEpisodeAndTemplate(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.summaries[episodeID][templateName]
	if !ok {
		return nil, store.ErrSummaryNotFound
	}
	clone := *summary
	return &clone, nil
}

func (f *fakeSummaryStore) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Summary
	for _, summary := range f.summaries[episodeID] {
		clone := *summary
		result = append(result, &clone)
	}
	return result, nil
}

func (f *fakeSummaryStore) Delete(ctx context.Context, episodeID uuid.UUID, templateName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.summaries[episodeID][templateName]; !ok {
		return store.ErrSummaryNotFound
	}
	delete(f.summaries[episodeID], templateName)
	return nil
}

func (f *fakeSummaryStore) CountByEpisode(ctx context.Context, episodeID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaries[episodeID]), nil
}

func (f *fakeSummaryStore) WithTx(tx *sql.Tx) store.SummaryStore { return f }

// fakeTaskIndex implements TaskIndex with a settable active record.
type fakeTaskIndex struct {
	mu     sync.Mutex
	active map[string]*task.Record
}

func newFakeTaskIndex() *fakeTaskIndex {
	return &fakeTaskIndex{active: map[string]*task.Record{}}
}

func (f *fakeTaskIndex) setActive(taskType string, subjectID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[taskType+"/"+subjectID.String()] = &task.Record{
		ID:        uuid.New(),
		Type:      taskType,
		SubjectID: subjectID,
		Status:    task.StatusProcessing,
	}
}

func (f *fakeTaskIndex) FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*task.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.active[taskType+"/"+subjectID.String()]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return record, nil
}

// submittedTask captures one Submit call on the fakeEngine.
type submittedTask struct {
	taskType  string
	subjectID uuid.UUID
	job       task.Job
}

// fakeEngine records submissions without running them; tests invoke the
// captured job directly.
type fakeEngine struct {
	mu          sync.Mutex
	submissions []submittedTask
	submitErr   error
}

func (f *fakeEngine) Submit(ctx context.Context, taskType string, subjectID uuid.UUID, job task.Job) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return uuid.Nil, f.submitErr
	}
	f.submissions = append(f.submissions, submittedTask{taskType: taskType, subjectID: subjectID, job: job})
	return uuid.New(), nil
}

// lastJob returns the most recently submitted job.
func (f *fakeEngine) lastJob(t *testing.T) task.Job {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.submissions)
	return f.submissions[len(f.submissions)-1].job
}

// fakeAudioFetcher implements media.Fetcher.
type fakeAudioFetcher struct {
	fetchFn func(ctx context.Context, episodeID uuid.UUID, url string, progress media.ProgressFunc) (*media.Result, error)
}

func (f *fakeAudioFetcher) Fetch(ctx context.Context, episodeID uuid.UUID, url string, progress media.ProgressFunc) (*media.Result, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, episodeID, url, progress)
	}
	if progress != nil {
		progress(100)
	}
	return &media.Result{Path: "/data/media/" + episodeID.String() + ".mp3", Bytes: 2048}, nil
}

// fakeTranscriber implements transcription.Transcriber.
type fakeTranscriber struct {
	transcribeFn func(ctx context.Context, audioPath string, progress transcription.ProgressFunc) (*transcription.Result, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, progress transcription.ProgressFunc) (*transcription.Result, error) {
	if f.transcribeFn != nil {
		return f.transcribeFn(ctx, audioPath, progress)
	}
	return &transcription.Result{
		Text:   "backend transcript text",
		Source: domain.TranscriptSourceBackend,
	}, nil
}

// fakeTranscriptFetcher implements TranscriptFetcher.
type fakeTranscriptFetcher struct {
	fetchFn func(ctx context.Context, url string) (*transcription.Result, error)
}

func (f *fakeTranscriptFetcher) Fetch(ctx context.Context, url string) (*transcription.Result, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, url)
	}
	return &transcription.Result{
		Text:   "official transcript text",
		Source: domain.TranscriptSourceOfficial,
	}, nil
}

// fakeSummarizer implements Summarizer.
type fakeSummarizer struct {
	summarizeFn func(ctx context.Context, transcript string, req summarize.Request) (*summarize.Result, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string, req summarize.Request) (*summarize.Result, error) {
	if f.summarizeFn != nil {
		return f.summarizeFn(ctx, transcript, req)
	}
	return &summarize.Result{
		Fields:        map[string]any{"tldr": "a short recap", "tags": []any{"go"}},
		RawOutput:     `{"tldr":"a short recap","tags":["go"]}`,
		Model:         "gemini-2.0-flash",
		TemplateName:  req.TemplateName,
		EnabledBlocks: []string{"core_content"},
		Attempts:      1,
	}, nil
}

// fakeFeedSource implements FeedSource.
type fakeFeedSource struct {
	fetchFn func(ctx context.Context, url string) (*FeedData, error)
}

func (f *fakeFeedSource) Fetch(ctx context.Context, url string) (*FeedData, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, url)
	}
	return &FeedData{Title: "Test Show"}, nil
}

// episodeHarness wires an EpisodeService to fakes for testing.
type episodeHarness struct {
	episodes    *fakeEpisodeStore
	transcripts *fakeTranscriptStore
	summaries   *fakeSummaryStore
	tasks       *fakeTaskIndex
	engine      *fakeEngine
	audio       *fakeAudioFetcher
	transcriber *fakeTranscriber
	official    *fakeTranscriptFetcher
	summarizer  *fakeSummarizer
	svc         *EpisodeService
}

func newEpisodeHarness(t *testing.T) *episodeHarness {
	t.Helper()

	h := &episodeHarness{
		episodes:    newFakeEpisodeStore(),
		transcripts: newFakeTranscriptStore(),
		summaries:   newFakeSummaryStore(),
		tasks:       newFakeTaskIndex(),
		engine:      &fakeEngine{},
		audio:       &fakeAudioFetcher{},
		transcriber: &fakeTranscriber{},
		official:    &fakeTranscriptFetcher{},
		summarizer:  &fakeSummarizer{},
	}

	svc, err := NewEpisodeService(EpisodeServiceConfig{
		Episodes:    h.episodes,
		Transcripts: h.transcripts,
		Summaries:   h.summaries,
		Tasks:       h.tasks,
		Engine:      h.engine,
		Audio:       h.audio,
		Transcriber: h.transcriber,
		Official:    h.official,
		Summarizer:  h.summarizer,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// seedEpisode stores an episode in the given status and returns it.
func (h *episodeHarness) seedEpisode(t *testing.T, status domain.EpisodeStatus) *domain.Episode {
	t.Helper()

	episode, err := domain.NewEpisode(uuid.New(), "guid-"+uuid.NewString(), "Test Episode")
	require.NoError(t, err)
	episode.AudioURL = "https://example.com/audio.mp3"
	episode.Status = status
	if status != domain.StatusNew && status != domain.StatusAcquiring {
		episode.AudioPath = "/data/media/" + episode.ID.String() + ".mp3"
	}
	require.NoError(t, h.episodes.Create(context.Background(), episode))
	return episode
}
