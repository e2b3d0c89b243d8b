package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/source"
)

// Option keys for selector-driven extraction; configured per source.
const (
	optItemSelector    = "itemSelector"
	optTitleSelector   = "titleSelector"
	optSummarySelector = "summarySelector"
	optDateSelector    = "dateSelector"
	optScoreSelector   = "scoreSelector"
	optIDAttr          = "idAttr"
	optDateLayout      = "dateLayout"
)

// TrendPageSource scrapes a trending-listing HTML page for platforms that
// expose no API. Extraction is driven entirely by configured selectors.
type TrendPageSource struct {
	client *http.Client
	logger *slog.Logger
}

// NewTrendPageSource wires an HTTP client; nil gets a 20s-timeout default.
func NewTrendPageSource(client *http.Client, logger *slog.Logger) *TrendPageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &TrendPageSource{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (t *TrendPageSource) Name() string {
	return "trendpage"
}

// Fetch downloads the configured page and extracts one story per item node.
// Items without a usable identifier are skipped; unparsable dates keep a
// zero instant for the pipeline to resolve.
func (t *TrendPageSource) Fetch(ctx context.Context, req source.Request) ([]domain.Story, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no URL configured for source %s", req.SourceName)
	}
	itemSel := req.Options[optItemSelector]
	if itemSel == "" {
		return nil, fmt.Errorf("no item selector configured for source %s", req.SourceName)
	}

	doc, err := t.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}

	max := req.MaxResults
	if max <= 0 {
		max = 25
	}

	var stories []domain.Story
	doc.Find(itemSel).EachWithBreak(func(i int, item *goquery.Selection) bool {
		story, ok := extractStory(item, req)
		if ok {
			stories = append(stories, story)
		}
		return len(stories) < max
	})

	t.debug("trend page fetch complete", "source", req.SourceName, "stories", len(stories))
	return stories, nil
}

func (t *TrendPageSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TrendIllustrator/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trend page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractStory(item *goquery.Selection, req source.Request) (domain.Story, bool) {
	id, _ := item.Attr(req.Options[optIDAttr])
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Story{}, false
	}

	story := domain.Story{
		SourceID: id,
		Platform: req.Platform,
		Title:    text(item, req.Options[optTitleSelector]),
	}
	story.SummaryFallback = text(item, req.Options[optSummarySelector])
	story.ScoreExact = text(item, req.Options[optScoreSelector])

	if raw := text(item, req.Options[optDateSelector]); raw != "" {
		layout := req.Options[optDateLayout]
		if layout == "" {
			layout = time.RFC3339
		}
		if parsed, err := time.Parse(layout, raw); err == nil {
			story.PublishedAt = parsed
		}
	}

	return story, true
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func (t *TrendPageSource) debug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}
