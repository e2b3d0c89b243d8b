package ports

import (
	"context"
	"time"

	"TrendIllustrator/internal/domain"
)

// StorySource pulls the current trending stories from upstream providers.
type StorySource interface {
	FetchTrending(ctx context.Context, at time.Time) ([]domain.Story, error)
}

// ImageBackend generates an illustration for a prompt and returns its bytes.
// Failures carry a typed classification (rate limit, auth, empty response).
type ImageBackend interface {
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// ObjectInfo describes a stored artifact.
type ObjectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// BlobStore persists image bytes under a key and resolves durable public
// URLs. Put replaces atomically: a partially written artifact must never
// become visible under the key, and a duplicate-key conflict from the
// backend resolves to the existing object's URL instead of an error.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// StoryRepository performs the durable upsert of annotated stories.
type StoryRepository interface {
	UpsertStory(ctx context.Context, story domain.Story) error
	ImageAnnotations(ctx context.Context, storyIDs []string) (map[string]domain.ImageAnnotation, error)
}

// Summarizer fills in a missing primary summary for a story.
type Summarizer interface {
	Summarize(ctx context.Context, story domain.Story) (string, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipeline passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
