package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/ports"
	"TrendIllustrator/internal/retry"
)

// artifactExtension fixes one file per story under a flat key space; the key
// doubles as a URL path segment for the serving layer.
const artifactExtension = ".jpg"

// ArtifactKey maps a story fingerprint to its blob store key.
func ArtifactKey(storyID string) string {
	return storyID + artifactExtension
}

// engine states per story; only CHECKING/GENERATING have internal work, the
// rest name the outcomes.
const (
	stateChecking   = "checking"
	stateSatisfied  = "satisfied"
	stateGenerating = "generating"
	stateReady      = "ready"
	stateFailed     = "failed"
)

// EnsureResult reports one EnsureImage outcome.
type EnsureResult struct {
	URL       string
	Status    domain.ImageStatus
	Generated bool
}

// EngineConfig bounds generation work.
type EngineConfig struct {
	Width      int
	Height     int
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Engine orchestrates "ensure story has a valid image": it enforces the
// non-destructive policy (a valid existing artifact is never regenerated or
// replaced unless forced) and the bounded retry/backoff loop around
// generation, persistence, and re-validation.
type Engine struct {
	backend   ports.ImageBackend
	store     ports.BlobStore
	validator *Validator
	prompts   *PromptBuilder
	retrier   *retry.Retrier
	cfg       EngineConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine wires collaborators. The retry classifier skips non-retryable
// backend failures (bad credentials never heal by waiting).
func NewEngine(
	backend ports.ImageBackend,
	store ports.BlobStore,
	validator *Validator,
	prompts *PromptBuilder,
	cfg EngineConfig,
	classifier retry.Classifier,
	logger *slog.Logger,
) *Engine {
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 576
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}

	retrier := retry.New(retry.Config{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Factor:      2,
	}, classifier, logger)

	return &Engine{
		backend:   backend,
		store:     store,
		validator: validator,
		prompts:   prompts,
		retrier:   retrier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithSleep overrides the backoff wait, for tests.
func (e *Engine) WithSleep(sleep retry.SleepFunc) *Engine {
	e.retrier.WithSleep(sleep)
	return e
}

// WithClock overrides the annotation timestamp source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// EnsureImage guarantees the story is annotated with its image state. A
// valid existing artifact is returned unchanged with zero backend calls
// unless force is set. Generation failures are downgraded to a pending
// annotation; they never abort the caller's batch. Even under force, the
// previously valid artifact stays live until a new one passes validation.
func (e *Engine) EnsureImage(ctx context.Context, story *domain.Story, force bool) EnsureResult {
	key := ArtifactKey(story.StoryID)

	e.debug("ensure image", "story_id", story.StoryID, "state", stateChecking, "force", force)

	if e.validator.IsValid(ctx, key) && !force {
		url := e.store.PublicURL(key)
		e.annotate(story, url, domain.ImageReady)
		e.debug("ensure image", "story_id", story.StoryID, "state", stateSatisfied, "url", url)
		return EnsureResult{URL: url, Status: domain.ImageReady}
	}

	e.debug("ensure image", "story_id", story.StoryID, "state", stateGenerating)

	var finalURL string
	err := e.retrier.Do(ctx, func() error {
		return e.generateOnce(ctx, story, key, &finalURL)
	})
	if err != nil {
		e.warn("image generation exhausted", "story_id", story.StoryID, "state", stateFailed, "error", err)
		e.annotate(story, "", domain.ImagePending)
		return EnsureResult{Status: domain.ImagePending}
	}

	e.annotate(story, finalURL, domain.ImageReady)
	e.debug("ensure image", "story_id", story.StoryID, "state", stateReady, "url", finalURL)
	return EnsureResult{URL: finalURL, Status: domain.ImageReady, Generated: true}
}

// generateOnce runs one full attempt: prompt, backend call, candidate check,
// atomic write, post-write re-validation. The candidate is vetted before the
// write so a previously valid artifact is only ever replaced by bytes that
// already passed the validity predicate; the post-write check then confirms
// the store holds what was sent.
func (e *Engine) generateOnce(ctx context.Context, story *domain.Story, key string, finalURL *string) error {
	prompt := e.prompts.Build(story)

	data, err := e.backend.Generate(ctx, prompt, e.cfg.Width, e.cfg.Height)
	if err != nil {
		return fmt.Errorf("backend generate: %w", err)
	}

	if err := e.validator.CheckPayload(key, data); err != nil {
		return fmt.Errorf("candidate rejected: %w", err)
	}

	url, err := e.store.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("store write: %w", err)
	}

	if !e.validator.IsValid(ctx, key) {
		return fmt.Errorf("artifact %s failed re-validation after write", key)
	}

	*finalURL = url
	return nil
}

func (e *Engine) annotate(story *domain.Story, url string, status domain.ImageStatus) {
	story.ImageURL = url
	story.ImageStatus = status
	story.ImageUpdatedAt = e.now().UTC()
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
