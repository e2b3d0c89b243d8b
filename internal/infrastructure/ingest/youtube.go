package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/source"
)

// youtubeCategories maps Data API category IDs to the template vocabulary
// used by prompt building. Unknown IDs fall through to the generic default.
var youtubeCategories = map[string]string{
	"10": "music",
	"17": "sports",
	"20": "gaming",
	"24": "entertainment",
	"25": "news",
}

// YouTubeSource pulls the most-popular chart from the YouTube Data API.
type YouTubeSource struct {
	apiKey  string
	service *youtube.Service
	logger  *slog.Logger
}

// NewYouTubeSource validates credentials eagerly: a missing key is a startup
// configuration error, not a per-story retry case.
func NewYouTubeSource(ctx context.Context, apiKey string, logger *slog.Logger) (*YouTubeSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube source requires an API key")
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &YouTubeSource{apiKey: apiKey, service: svc, logger: logger}, nil
}

// Name identifies the strategy inside the registry.
func (y *YouTubeSource) Name() string {
	return "youtube"
}

// Fetch lists the trending chart for the requested region and maps each
// video into a story record. Videos whose publish time fails to parse keep a
// zero instant; the pipeline substitutes its processing time explicitly.
func (y *YouTubeSource) Fetch(ctx context.Context, req source.Request) ([]domain.Story, error) {
	maxResults := int64(req.MaxResults)
	if maxResults <= 0 {
		maxResults = 25
	}

	call := y.service.Videos.List([]string{"snippet", "statistics"}).
		Chart("mostPopular").
		MaxResults(maxResults)
	if req.Region != "" {
		call = call.RegionCode(req.Region)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list trending videos: %w", err)
	}

	stories := make([]domain.Story, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			y.warn("unparsable publish time", "video_id", item.Id, "raw", item.Snippet.PublishedAt)
			publishedAt = time.Time{}
		}

		story := domain.Story{
			SourceID:        item.Id,
			Platform:        req.Platform,
			PublishedAt:     publishedAt,
			Title:           item.Snippet.Title,
			SummaryFallback: item.Snippet.Description,
			Category:        youtubeCategories[item.Snippet.CategoryId],
			URL:             "https://www.youtube.com/watch?v=" + item.Id,
		}

		if item.Statistics != nil {
			exact, rounded := popularity(item.Statistics.ViewCount, item.Statistics.LikeCount)
			story.ScoreExact = exact
			story.ScoreRounded = rounded
		}

		stories = append(stories, story)
	}

	y.debug("youtube fetch complete", "region", req.Region, "stories", len(stories))
	return stories, nil
}

// popularity folds views and likes into one monotonic figure. The exact
// variant keeps full precision; the rounded one is the display value.
func popularity(views, likes uint64) (exact, rounded string) {
	score := float64(views) + 25.0*float64(likes)
	return strconv.FormatFloat(score, 'f', -1, 64), strconv.FormatFloat(score, 'f', 0, 64)
}

func (y *YouTubeSource) debug(msg string, args ...any) {
	if y.logger != nil {
		y.logger.Debug(msg, args...)
	}
}

func (y *YouTubeSource) warn(msg string, args ...any) {
	if y.logger != nil {
		y.logger.Warn(msg, args...)
	}
}
