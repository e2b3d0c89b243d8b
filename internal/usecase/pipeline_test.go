package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/imaging"
	"TrendIllustrator/internal/ports"
)

type fakeSource struct {
	stories []domain.Story
	err     error
}

func (f *fakeSource) FetchTrending(ctx context.Context, at time.Time) ([]domain.Story, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stories, nil
}

type fakeRepository struct {
	annotations map[string]domain.ImageAnnotation
	upserted    []domain.Story
	upsertErr   error
}

func (f *fakeRepository) UpsertStory(ctx context.Context, story domain.Story) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, story)
	return nil
}

func (f *fakeRepository) ImageAnnotations(ctx context.Context, storyIDs []string) (map[string]domain.ImageAnnotation, error) {
	out := map[string]domain.ImageAnnotation{}
	for _, id := range storyIDs {
		if ann, ok := f.annotations[id]; ok {
			out[id] = ann
		}
	}
	return out, nil
}

type fakeSummarizer struct {
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, story domain.Story) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + story.Title, nil
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(ctx context.Context, digest string) error {
	if f.err != nil {
		return f.err
	}
	f.digests = append(f.digests, digest)
	return nil
}

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.objects[key] = data
	return m.PublicURL(key), nil
}

func (m *memoryStore) PublicURL(key string) string { return "https://cdn.test/" + key }

func (m *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStore) Stat(ctx context.Context, key string) (ports.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return ports.ObjectInfo{}, fmt.Errorf("no object %s", key)
	}
	return ports.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

type memoryBackend struct {
	payload []byte
	err     error
	calls   int
}

func (m *memoryBackend) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

func pngPayload(n int) []byte {
	data := make([]byte, n)
	copy(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	return data
}

func skipPause(ctx context.Context, d time.Duration) error { return nil }

func newPipelineSelector(backend ports.ImageBackend, store ports.BlobStore) *imaging.Selector {
	validator := imaging.NewValidator(store, 0, nil)
	engine := imaging.NewEngine(backend, store, validator, imaging.NewPromptBuilder(0, 0), imaging.EngineConfig{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
	}, nil, nil).WithSleep(skipPause)
	return imaging.NewSelector(engine, 0, nil)
}

func trendingFixture(at time.Time) []domain.Story {
	return []domain.Story{
		{SourceID: "v1", Platform: "youtube", PublishedAt: at.Add(-time.Hour), Title: "Top story", ScoreExact: "91", ScoreRounded: "91"},
		{SourceID: "v2", Platform: "youtube", PublishedAt: at.Add(-2 * time.Hour), Title: "Second story", ScoreExact: "80", ScoreRounded: "80"},
		{SourceID: "v3", Platform: "youtube", PublishedAt: at.Add(-3 * time.Hour), Title: "Third story", ScoreExact: "12", ScoreRounded: "12"},
	}
}

func TestRunAssignsFingerprintsAndPersists(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{}
	backend := &memoryBackend{payload: pngPayload(16 * 1024)}

	p := NewPipeline(PipelineDeps{
		Source:     &fakeSource{stories: trendingFixture(at)},
		Repository: repo,
		Selector:   newPipelineSelector(backend, newMemoryStore()),
		TopN:       2,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.upserted) != 3 {
		t.Fatalf("expected 3 upserts, got %d", len(repo.upserted))
	}
	for _, story := range repo.upserted {
		if story.StoryID == "" {
			t.Fatalf("story %s missing fingerprint", story.SourceID)
		}
		if len(story.StoryID) != 64 {
			t.Fatalf("fingerprint %s is not a sha256 hex digest", story.StoryID)
		}
	}

	if backend.calls != 2 {
		t.Fatalf("top 2 stories must be illustrated, got %d backend calls", backend.calls)
	}

	ready := 0
	for _, story := range repo.upserted {
		if story.ImageStatus == domain.ImageReady {
			ready++
		}
	}
	if ready != 2 {
		t.Fatalf("expected 2 illustrated stories persisted, got %d", ready)
	}
}

func TestRunSubstitutesProcessingTimeForZeroPublish(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{}

	p := NewPipeline(PipelineDeps{
		Source: &fakeSource{stories: []domain.Story{
			{SourceID: "v1", Platform: "youtube", Title: "No date"},
		}},
		Repository: repo,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].StoryID == "" {
		t.Fatal("zero publish time must still yield a fingerprint")
	}
}

func TestRunReusesPriorAnnotations(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	backend := &memoryBackend{payload: pngPayload(16 * 1024)}

	// First pass populates the store and the repository.
	repo := &fakeRepository{}
	p := NewPipeline(PipelineDeps{
		Source:     &fakeSource{stories: trendingFixture(at)},
		Repository: repo,
		Selector:   newPipelineSelector(backend, store),
		TopN:       2,
	})
	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstCalls := backend.calls

	// Second pass over the same stories must not regenerate anything.
	p2 := NewPipeline(PipelineDeps{
		Source:     &fakeSource{stories: trendingFixture(at)},
		Repository: &fakeRepository{},
		Selector:   newPipelineSelector(backend, store),
		TopN:       2,
	})
	if err := p2.Run(context.Background(), at); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if backend.calls != firstCalls {
		t.Fatalf("rerun must reuse stored artifacts, calls went %d to %d", firstCalls, backend.calls)
	}
}

func TestRunMarksFailedSummaries(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{}
	summarizer := &fakeSummarizer{err: errors.New("model unavailable")}

	p := NewPipeline(PipelineDeps{
		Source: &fakeSource{stories: []domain.Story{
			{SourceID: "v1", Platform: "youtube", PublishedAt: at, Title: "A story"},
		}},
		Repository: repo,
		Summarizer: summarizer,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("summarizer failure must not abort the run: %v", err)
	}
	if repo.upserted[0].SummaryPrimary != imaging.SummaryFailedMarker {
		t.Fatalf("expected failure marker, got %q", repo.upserted[0].SummaryPrimary)
	}
}

func TestRunSkipsSummarizeWhenPresent(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	summarizer := &fakeSummarizer{}

	p := NewPipeline(PipelineDeps{
		Source: &fakeSource{stories: []domain.Story{
			{SourceID: "v1", Platform: "youtube", PublishedAt: at, Title: "A story", SummaryPrimary: "already summarized"},
		}},
		Summarizer: summarizer,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summarizer.calls != 0 {
		t.Fatalf("existing summary must not be regenerated, got %d calls", summarizer.calls)
	}
}

func TestRunPublishesDigest(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	backend := &memoryBackend{payload: pngPayload(16 * 1024)}

	p := NewPipeline(PipelineDeps{
		Source:   &fakeSource{stories: trendingFixture(at)},
		Selector: newPipelineSelector(backend, newMemoryStore()),
		Notifier: notifier,
		TopN:     2,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.digests) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(notifier.digests))
	}

	digest := notifier.digests[0]
	if !strings.Contains(digest, "Top story") || !strings.Contains(digest, "Second story") {
		t.Fatalf("digest missing top stories:\n%s", digest)
	}
	if !strings.Contains(digest, "https://cdn.test/") {
		t.Fatalf("digest missing image URLs:\n%s", digest)
	}
}

func TestRunSurvivesDigestFailure(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{}
	notifier := &fakeNotifier{err: errors.New("chat unreachable")}

	p := NewPipeline(PipelineDeps{
		Source:     &fakeSource{stories: trendingFixture(at)},
		Repository: repo,
		Notifier:   notifier,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("digest failure must not fail the pass: %v", err)
	}
	if len(repo.upserted) != 3 {
		t.Fatalf("stories must persist regardless of digest outcome, got %d", len(repo.upserted))
	}
}

func TestRunContinuesPastImageFailures(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{}
	backend := &memoryBackend{err: errors.New("backend down")}

	p := NewPipeline(PipelineDeps{
		Source:     &fakeSource{stories: trendingFixture(at)},
		Repository: repo,
		Selector:   newPipelineSelector(backend, newMemoryStore()),
		TopN:       2,
	})

	if err := p.Run(context.Background(), at); err != nil {
		t.Fatalf("image failures must not abort the run: %v", err)
	}
	if len(repo.upserted) != 3 {
		t.Fatalf("all stories must still be persisted, got %d", len(repo.upserted))
	}

	pending := 0
	for _, story := range repo.upserted {
		if story.ImageStatus == domain.ImagePending {
			pending++
		}
	}
	if pending != 2 {
		t.Fatalf("expected 2 pending annotations, got %d", pending)
	}
}

func TestRunPropagatesFetchFailure(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{
		Source: &fakeSource{err: errors.New("upstream down")},
	})

	if err := p.Run(context.Background(), time.Now()); err == nil {
		t.Fatal("fetch failure must abort the pass")
	}
}
