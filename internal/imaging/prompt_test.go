package imaging

import (
	"strings"
	"testing"

	"TrendIllustrator/internal/domain"
)

func TestBuildPrefersPrimarySummary(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)
	prompt := b.Build(&domain.Story{
		Title:          "A title",
		SummaryPrimary: "A streamer breaks a speedrun world record",
		Category:       "gaming",
	})

	if !strings.Contains(prompt, "speedrun world record") {
		t.Fatalf("primary summary missing from prompt: %s", prompt)
	}
	if !strings.Contains(prompt, "video game scene") {
		t.Fatalf("gaming template not applied: %s", prompt)
	}
}

func TestBuildFallsBackThroughCandidates(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)

	prompt := b.Build(&domain.Story{
		SummaryFallback: "Championship final goes to penalties",
		Category:        "sports",
	})
	if !strings.Contains(prompt, "penalties") {
		t.Fatalf("fallback summary not used: %s", prompt)
	}

	prompt = b.Build(&domain.Story{Title: "Surprise album announcement stuns fans"})
	if !strings.Contains(prompt, "album announcement") {
		t.Fatalf("title not used when summaries are empty: %s", prompt)
	}
}

func TestBuildRejectsFailureMarker(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)
	prompt := b.Build(&domain.Story{
		SummaryPrimary: SummaryFailedMarker + " model unavailable",
		Title:          "Volcano eruption footage goes viral",
		Category:       "news",
	})

	if strings.Contains(prompt, "summary failed") || strings.Contains(prompt, "model unavailable") {
		t.Fatalf("failure marker leaked into prompt: %s", prompt)
	}
	if !strings.Contains(prompt, "Volcano eruption") {
		t.Fatalf("expected fallback to title: %s", prompt)
	}
}

func TestBuildStripsMarkupAndEntities(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)
	prompt := b.Build(&domain.Story{
		SummaryPrimary: "<p>Cats &amp; dogs <b>together</b><script>alert(1)</script></p>",
	})

	if strings.ContainsAny(prompt, "<>&") {
		t.Fatalf("markup survived sanitization: %s", prompt)
	}
	if !strings.Contains(prompt, "Cats dogs together") {
		t.Fatalf("expected sanitized text, got: %s", prompt)
	}
}

func TestBuildUnknownCategoryUsesGenericTemplate(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)
	prompt := b.Build(&domain.Story{
		SummaryPrimary: "Something interesting happened",
		Category:       "astrology",
	})

	if !strings.Contains(prompt, "editorial illustration about") {
		t.Fatalf("generic template not applied: %s", prompt)
	}
}

func TestBuildTruncatesOnWordBoundary(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(80, 0)
	prompt := b.Build(&domain.Story{
		SummaryPrimary: strings.Repeat("word ", 100),
	})

	if n := len([]rune(prompt)); n > 80 {
		t.Fatalf("prompt exceeds limit: %d runes", n)
	}
	if strings.HasSuffix(prompt, "wor") {
		t.Fatalf("word split at truncation: %s", prompt)
	}
}

func TestBuildNeverEmpty(t *testing.T) {
	t.Parallel()

	b := NewPromptBuilder(0, 0)

	for _, story := range []*domain.Story{
		nil,
		{},
		{SummaryPrimary: "©™☃"},
		{Title: "   "},
	} {
		prompt := b.Build(story)
		if len([]rune(prompt)) < defaultMinPromptRunes {
			t.Fatalf("prompt below floor for %+v: %q", story, prompt)
		}
	}
}
