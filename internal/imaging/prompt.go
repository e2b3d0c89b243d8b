package imaging

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"TrendIllustrator/internal/domain"
)

const (
	// SummaryFailedMarker prefixes summaries whose generation failed; such
	// text must never reach the image backend.
	SummaryFailedMarker = "[summary failed]"

	defaultMaxPromptRunes = 600
	defaultMinPromptRunes = 20

	genericDescription = "a popular trending online video story"

	// safeDefaultPrompt is the last-resort prompt when sanitization leaves
	// nothing usable.
	safeDefaultPrompt = "editorial illustration of a trending internet video story, " +
		"vibrant colors, modern digital art, no text, no watermark"
)

// categoryTemplates wrap the sanitized content with domain-appropriate
// visual descriptors. The empty key is the generic default.
var categoryTemplates = map[string]string{
	"gaming": "dynamic video game scene inspired by: %s. " +
		"vivid neon palette, dramatic lighting, digital concept art, no text, no watermark",
	"sports": "energetic sports moment inspired by: %s. " +
		"stadium atmosphere, motion and intensity, photorealistic, no text, no watermark",
	"entertainment": "glamorous entertainment scene inspired by: %s. " +
		"stage lights, cinematic composition, rich colors, no text, no watermark",
	"news": "serious editorial news illustration about: %s. " +
		"clean journalistic style, muted palette, symbolic imagery, no faces, no text, no watermark",
	"music": "expressive music scene inspired by: %s. " +
		"concert lighting, dynamic composition, vibrant atmosphere, no text, no watermark",
	"": "editorial illustration about: %s. " +
		"modern digital art, balanced composition, vibrant colors, no text, no watermark",
}

// allowedRunes keeps word characters, common punctuation, and the Latin and
// Cyrillic scripts; everything else is dropped during sanitization.
var (
	allowedRunes = regexp.MustCompile(`[^0-9A-Za-z\p{Latin}\p{Cyrillic}\s.,!?:;'"()\-]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// PromptBuilder turns story text into a sanitized, category-aware
// generation prompt. Build is total: it never fails and never returns an
// empty or injection-bearing string.
type PromptBuilder struct {
	maxRunes int
	minRunes int
}

// NewPromptBuilder applies defaults for non-positive limits.
func NewPromptBuilder(maxRunes, minRunes int) *PromptBuilder {
	if maxRunes <= 0 {
		maxRunes = defaultMaxPromptRunes
	}
	if minRunes <= 0 {
		minRunes = defaultMinPromptRunes
	}
	return &PromptBuilder{maxRunes: maxRunes, minRunes: minRunes}
}

// Build selects the best text the story offers, sanitizes it, and wraps it
// in the category template. Content priority: primary summary, fallback
// summary, title, generic description.
func (b *PromptBuilder) Build(story *domain.Story) string {
	if story == nil {
		story = &domain.Story{}
	}
	content := b.selectContent(story)

	template, ok := categoryTemplates[normalizeCategory(story.Category)]
	if !ok {
		template = categoryTemplates[""]
	}

	prompt := strings.Replace(template, "%s", content, 1)
	prompt = sanitize(prompt)
	prompt = truncateOnWord(prompt, b.maxRunes)

	if len([]rune(prompt)) < b.minRunes {
		return safeDefaultPrompt
	}
	return prompt
}

func (b *PromptBuilder) selectContent(story *domain.Story) string {
	candidates := []string{genericDescription}
	if story != nil {
		candidates = []string{
			story.SummaryPrimary,
			story.SummaryFallback,
			story.Title,
			genericDescription,
		}
	}

	for _, candidate := range candidates {
		cleaned := truncateOnWord(sanitize(candidate), b.maxRunes/2)
		if cleaned == "" || strings.HasPrefix(candidate, SummaryFailedMarker) {
			continue
		}
		return cleaned
	}
	return genericDescription
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// sanitize strips markup, decodes entities, normalizes unicode, applies the
// character allow-list, and collapses whitespace.
func sanitize(s string) string {
	if s == "" {
		return ""
	}

	if strings.ContainsAny(s, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}

	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	s = allowedRunes.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// truncateOnWord cuts s to at most max runes without splitting a word.
func truncateOnWord(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	if idx := strings.LastIndexAny(cut, " \t"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:-")
}
