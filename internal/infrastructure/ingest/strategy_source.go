package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendIllustrator/internal/config"
	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/ports"
	"TrendIllustrator/internal/source"
)

// StrategySource implements StorySource via registered source strategies.
type StrategySource struct {
	registry *source.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.StorySource = (*StrategySource)(nil)

// NewStrategySource wires the source registry with config-defined sources.
func NewStrategySource(reg *source.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// FetchTrending iterates over configured sources and executes their
// strategies, de-duplicating by (platform, source ID).
func (s *StrategySource) FetchTrending(ctx context.Context, at time.Time) ([]domain.Story, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	s.debug("fetch trending", "sources", len(s.sources))

	seen := map[string]struct{}{}
	var aggregated []domain.Story
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		req := source.Request{
			At:         at,
			SourceName: src.Name,
			Platform:   src.Platform,
			Region:     src.Region,
			URL:        src.URL,
			MaxResults: src.MaxResults,
			Options:    src.Options,
		}

		results, err := strategy.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch source %s: %w", src.Name, err)
		}

		for i := range results {
			if results[i].Platform == "" {
				results[i].Platform = src.Platform
			}
			dedup := results[i].Platform + "/" + results[i].SourceID
			if _, ok := seen[dedup]; ok {
				continue
			}
			seen[dedup] = struct{}{}
			aggregated = append(aggregated, results[i])
		}
		s.debug("source produced stories", "source", src.Name, "count", len(results))
	}

	s.debug("strategy source done", "total_stories", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
