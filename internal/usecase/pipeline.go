package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/identity"
	"TrendIllustrator/internal/imaging"
	"TrendIllustrator/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.StorySource
	Repository ports.StoryRepository
	Summarizer ports.Summarizer
	Selector   *imaging.Selector
	Notifier   ports.Notifier
	Logger     *slog.Logger
	TopN       int
	Force      bool
}

// Pipeline implements the trending-illustration workflow: fetch, fingerprint,
// summarize, illustrate the top N, upsert, notify.
type Pipeline struct {
	source     ports.StorySource
	repository ports.StoryRepository
	summarizer ports.Summarizer
	selector   *imaging.Selector
	notifier   ports.Notifier
	logger     *slog.Logger
	topN       int
	force      bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	topN := deps.TopN
	if topN <= 0 {
		topN = imaging.DefaultTopN
	}
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		summarizer: deps.Summarizer,
		selector:   deps.Selector,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		topN:       topN,
		force:      deps.Force,
	}
}

// Run executes one full pass at the given processing instant. Per-story
// image failures are recorded in the report, never propagated; only fetch
// and persistence problems abort the pass.
func (p *Pipeline) Run(ctx context.Context, at time.Time) error {
	if p.source == nil {
		return nil
	}

	runID := uuid.NewString()
	p.info("pipeline run started", "run_id", runID)

	stories, err := p.source.FetchTrending(ctx, at)
	if err != nil {
		return fmt.Errorf("fetch trending: %w", err)
	}

	refs := make([]*domain.Story, len(stories))
	ids := make([]string, len(stories))
	for i := range stories {
		refs[i] = &stories[i]
		p.fingerprint(refs[i], at)
		ids[i] = refs[i].StoryID
	}

	if p.repository != nil {
		annotations, err := p.repository.ImageAnnotations(ctx, ids)
		if err != nil {
			return fmt.Errorf("load image annotations: %w", err)
		}
		for _, story := range refs {
			if prior, ok := annotations[story.StoryID]; ok {
				story.ImageURL = prior.URL
				story.ImageStatus = prior.Status
				story.ImageUpdatedAt = prior.UpdatedAt
			}
		}
	}

	p.summarizeMissing(ctx, refs)

	var report domain.RunReport
	if p.selector != nil {
		report = p.selector.ProcessTop(ctx, refs, p.topN, p.force)
	}
	report.RunID = runID
	report.Fetched = len(stories)

	if p.repository != nil {
		for _, story := range refs {
			if err := p.repository.UpsertStory(ctx, *story); err != nil {
				return fmt.Errorf("persist story %s: %w", story.StoryID, err)
			}
		}
	}

	p.info("pipeline run finished",
		"run_id", runID,
		"fetched", report.Fetched,
		"selected", report.Selected,
		"generated", report.Generated,
		"reused", report.Reused,
		"failed", report.Failed)

	if p.notifier != nil {
		digest := buildDigest(report, imaging.SelectTopN(refs, p.topN))
		if err := p.notifier.PublishDigest(ctx, digest); err != nil {
			// The pass already persisted everything; a lost digest is not
			// worth failing the run over.
			p.warn("publish digest failed", "run_id", runID, "error", err)
		}
	}
	return nil
}

// fingerprint assigns the stable story ID. A zero publish time is
// substituted with the processing instant; that story will re-fingerprint on
// the next run, which is the availability-over-stability trade the ingestion
// layer accepts by not supplying a parsed instant.
func (p *Pipeline) fingerprint(story *domain.Story, at time.Time) {
	if story.StoryID != "" {
		return
	}
	publishedAt := story.PublishedAt
	if publishedAt.IsZero() {
		p.warn("publish time missing, substituting processing time",
			"source_id", story.SourceID, "platform", story.Platform)
		publishedAt = at
	}
	story.StoryID = identity.Derive(story.SourceID, story.Platform, publishedAt)
}

// summarizeMissing fills empty primary summaries. A summarizer failure marks
// the story so prompt building skips the broken text; it never aborts the run.
func (p *Pipeline) summarizeMissing(ctx context.Context, stories []*domain.Story) {
	if p.summarizer == nil {
		return
	}
	for _, story := range stories {
		if story.SummaryPrimary != "" {
			continue
		}
		summary, err := p.summarizer.Summarize(ctx, *story)
		if err != nil {
			p.warn("summarize failed", "story_id", story.StoryID, "error", err)
			story.SummaryPrimary = imaging.SummaryFailedMarker
			continue
		}
		story.SummaryPrimary = summary
	}
}

func buildDigest(report domain.RunReport, top []*domain.Story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", report.RunID)
	fmt.Fprintf(&b, "Stories: %d fetched, %d illustrated (%d new, %d reused, %d failed)\n\n",
		report.Fetched, report.Selected, report.Generated, report.Reused, report.Failed)

	for i, story := range top {
		fmt.Fprintf(&b, "%d. %s\n", i+1, story.Title)
		if story.ImageURL != "" {
			fmt.Fprintf(&b, "   %s\n", story.ImageURL)
		} else {
			fmt.Fprintf(&b, "   image %s\n", story.ImageStatus)
		}
	}

	return b.String()
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
