package knowledge

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

// SubtopicExtractor pulls a short topic phrase out of outline text so the
// second retrieval stage can refine its query. Extract reports whether a
// usable phrase was found.
type SubtopicExtractor interface {
	Extract(text string) (string, bool)
}

// ExtractorChain tries each extractor in order and returns the first hit.
type ExtractorChain []SubtopicExtractor

func (c ExtractorChain) Extract(text string) (string, bool) {
	for _, e := range c {
		if s, ok := e.Extract(text); ok {
			return s, true
		}
	}
	return "", false
}

// ExtractAcross runs each extractor over every text before falling through
// to the next extractor. A structural match in any text outranks an earlier
// text's sentence fallback, so prose-only chunks cannot shadow a heading
// that appears later in the result set.
func (c ExtractorChain) ExtractAcross(texts []string) (string, bool) {
	for _, e := range c {
		for _, text := range texts {
			if s, ok := e.Extract(text); ok {
				return s, true
			}
		}
	}
	return "", false
}

// DefaultExtractorChain matches outline text the way exam curricula are
// usually laid out: numbered section headings first, then bullet lines,
// then a plain first sentence.
func DefaultExtractorChain() ExtractorChain {
	return ExtractorChain{
		NumberedSectionExtractor{},
		BulletLineExtractor{},
		FirstSentenceExtractor{},
	}
}

var numberedSectionRe = regexp.MustCompile(`\d+(?:\.\d+)*\s+([A-Z][^\n\r\.]{10,80})`)

// NumberedSectionExtractor matches curriculum-style headings such as
// "3.2 Access Control Models".
type NumberedSectionExtractor struct{}

func (NumberedSectionExtractor) Extract(text string) (string, bool) {
	m := numberedSectionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

var bulletLineRe = regexp.MustCompile(`(?m)^\s*[-•*]\s+([A-Z][^\n\r]{10,80})`)

// BulletLineExtractor matches the first capitalized bullet item.
type BulletLineExtractor struct{}

func (BulletLineExtractor) Extract(text string) (string, bool) {
	m := bulletLineRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// FirstSentenceExtractor falls back to the first sentence of reasonable
// length. Sentence boundaries come from prose rather than naive splitting
// so abbreviations inside outline prose do not cut the phrase short.
type FirstSentenceExtractor struct{}

func (FirstSentenceExtractor) Extract(text string) (string, bool) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return "", false
	}
	for _, sent := range doc.Sentences() {
		s := strings.TrimSpace(sent.Text)
		if len(s) >= 20 && len(s) <= 150 {
			return s, true
		}
	}
	return "", false
}
