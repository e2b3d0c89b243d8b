package domain

import "time"

// Story is one ranked content item for a single pipeline pass. Records are
// created fresh by ingestion each run; the derived StoryID is the only field
// expected to survive across runs.
type Story struct {
	SourceID        string
	Platform        string
	PublishedAt     time.Time
	Title           string
	SummaryPrimary  string
	SummaryFallback string
	Category        string
	URL             string

	// Popularity figures arrive as strings from ingestion. ScoreExact is the
	// high-precision variant and wins over ScoreRounded when both parse.
	ScoreExact   string
	ScoreRounded string

	// StoryID is the deterministic fingerprint, computed once per lifetime.
	StoryID string

	ImageURL       string
	ImageStatus    ImageStatus
	ImageUpdatedAt time.Time
}

// ImageStatus tracks the illustration state reported back to ingestion.
type ImageStatus string

const (
	ImagePending ImageStatus = "pending"
	ImageReady   ImageStatus = "ready"
	ImageFailed  ImageStatus = "failed"
)

// ImageAnnotation is the persisted image state carried forward between runs.
type ImageAnnotation struct {
	URL       string
	Status    ImageStatus
	UpdatedAt time.Time
}

// RunReport aggregates per-story outcomes of one pipeline pass.
type RunReport struct {
	RunID     string
	Fetched   int
	Selected  int
	Generated int
	Reused    int
	Failed    int
}
