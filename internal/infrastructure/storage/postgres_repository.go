package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"TrendIllustrator/internal/domain"
	"TrendIllustrator/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists annotated stories into Postgres. The image
// engine never touches the database; this is the caller-side durable upsert.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.StoryRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertStory writes the story snapshot keyed by story_id. The image
// annotation columns are only overwritten with fresher values; a pending
// result never clears a previously stored ready URL.
func (r *PostgresRepository) UpsertStory(ctx context.Context, story domain.Story) error {
	if r.db == nil {
		return nil
	}

	query, args, err := psql.Insert("stories").
		Columns("story_id", "source_id", "platform", "published_at", "title",
			"summary_primary", "summary_fallback", "category", "score_exact",
			"score_rounded", "url", "image_url", "image_status", "image_updated_at").
		Values(story.StoryID, story.SourceID, story.Platform, story.PublishedAt,
			story.Title, story.SummaryPrimary, story.SummaryFallback, story.Category,
			story.ScoreExact, story.ScoreRounded, story.URL, story.ImageURL,
			string(story.ImageStatus), story.ImageUpdatedAt).
		Suffix(`ON CONFLICT (story_id) DO UPDATE
            SET title = EXCLUDED.title,
                summary_primary = EXCLUDED.summary_primary,
                summary_fallback = EXCLUDED.summary_fallback,
                category = EXCLUDED.category,
                score_exact = EXCLUDED.score_exact,
                score_rounded = EXCLUDED.score_rounded,
                image_url = CASE WHEN EXCLUDED.image_url <> '' THEN EXCLUDED.image_url ELSE stories.image_url END,
                image_status = CASE WHEN EXCLUDED.image_url <> '' THEN EXCLUDED.image_status ELSE stories.image_status END,
                image_updated_at = CASE WHEN EXCLUDED.image_url <> '' THEN EXCLUDED.image_updated_at ELSE stories.image_updated_at END,
                updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert story %s: %w", story.StoryID, err)
	}

	return nil
}

// ImageAnnotations loads the persisted image state for the given story IDs
// so re-runs carry previous annotations forward.
func (r *PostgresRepository) ImageAnnotations(ctx context.Context, storyIDs []string) (map[string]domain.ImageAnnotation, error) {
	result := make(map[string]domain.ImageAnnotation)
	if r.db == nil || len(storyIDs) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("story_id", "image_url", "image_status", "image_updated_at").
		From("stories").
		Where(sq.Eq{"story_id": storyIDs}).
		Where(sq.NotEq{"image_url": ""}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build annotations query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		var annotation domain.ImageAnnotation
		if err := rows.Scan(&id, &annotation.URL, &status, &annotation.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		annotation.Status = domain.ImageStatus(status)
		result[id] = annotation
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}
