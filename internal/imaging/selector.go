package imaging

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/retry"
)

// DefaultTopN is how many top-ranked stories receive an illustration.
const DefaultTopN = 3

// Score resolves a story's popularity for ranking: the precise figure wins
// over the rounded one, and a story where neither parses ranks as 0.0.
func Score(story *domain.Story) float64 {
	if v, err := strconv.ParseFloat(story.ScoreExact, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(story.ScoreRounded, 64); err == nil {
		return v
	}
	return 0.0
}

// SelectTopN orders stories by score descending and returns at most n.
// Equal scores break deterministically: later publish time first, then
// source ID ascending, so reruns over reshuffled ingestion output pick the
// same stories.
func SelectTopN(stories []*domain.Story, n int) []*domain.Story {
	ranked := make([]*domain.Story, len(stories))
	copy(ranked, stories)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(ranked[i]), Score(ranked[j])
		if si != sj {
			return si > sj
		}
		if !ranked[i].PublishedAt.Equal(ranked[j].PublishedAt) {
			return ranked[i].PublishedAt.After(ranked[j].PublishedAt)
		}
		return ranked[i].SourceID < ranked[j].SourceID
	})

	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Selector drives the persistence engine over exactly the top N stories, in
// rank order, one full generate-and-validate cycle at a time.
type Selector struct {
	engine *Engine
	delay  time.Duration
	sleep  retry.SleepFunc
	logger *slog.Logger
}

// NewSelector wires the engine; delay is the pause between stories so the
// image backend's rate limits are respected. The pause aborts on context
// cancellation rather than holding up shutdown.
func NewSelector(engine *Engine, delay time.Duration, logger *slog.Logger) *Selector {
	return &Selector{
		engine: engine,
		delay:  delay,
		sleep:  retry.Wait,
		logger: logger,
	}
}

// WithSleep overrides the inter-story pause, for tests.
func (s *Selector) WithSleep(sleep retry.SleepFunc) *Selector {
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// ProcessTop ensures images for the n highest-ranked stories and aggregates
// per-story outcomes. A story's failure is recorded, never propagated; the
// remaining stories still run.
func (s *Selector) ProcessTop(ctx context.Context, stories []*domain.Story, n int, force bool) domain.RunReport {
	top := SelectTopN(stories, n)
	report := domain.RunReport{Fetched: len(stories), Selected: len(top)}

	for i, story := range top {
		if i > 0 && s.delay > 0 {
			_ = s.sleep(ctx, s.delay)
		}

		result := s.engine.EnsureImage(ctx, story, force)
		switch {
		case result.Status != domain.ImageReady:
			report.Failed++
		case result.Generated:
			report.Generated++
		default:
			report.Reused++
		}

		s.info("story processed",
			"rank", i+1,
			"story_id", story.StoryID,
			"score", Score(story),
			"status", string(result.Status),
			"generated", result.Generated)
	}

	return report
}

func (s *Selector) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
